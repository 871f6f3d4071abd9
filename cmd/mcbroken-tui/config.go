package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tinytelemetry/mcbroken/internal/model"
)

const defaultPeerURL = "ws://" + model.DefaultAPIAddr + model.DefaultPeerPath

// cliConfig holds only emulator-relevant configuration.
type cliConfig struct {
	PeerURL string `mapstructure:"peer-url"`
}

func loadCLIConfig(configPath string, flags *pflag.FlagSet) (cliConfig, error) {
	var cfg cliConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("MCBROKEN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("peer-url", defaultPeerURL)

	if flags != nil {
		if f := flags.Lookup("peer-url"); f != nil && f.Changed {
			if err := v.BindPFlag("peer-url", f); err != nil {
				return cfg, err
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "mcbroken", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if !strings.HasPrefix(cfg.PeerURL, "ws://") && !strings.HasPrefix(cfg.PeerURL, "wss://") {
		return cfg, fmt.Errorf("invalid peer-url %q: want ws:// or wss://", cfg.PeerURL)
	}
	return cfg, nil
}
