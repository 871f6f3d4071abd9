package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tinytelemetry/mcbroken/internal/model"
	"github.com/tinytelemetry/mcbroken/internal/settings"
)

const (
	defaultAPIAddr          = model.DefaultAPIAddr
	defaultUpstreamURL      = model.DefaultUpstreamURL
	defaultUpstreamTimeout  = model.DefaultUpstreamTimeout
	defaultCacheMaxAge      = model.DefaultCacheMaxAge
	defaultGPSTimeout       = model.DefaultGPSTimeout
	defaultGPSMaximumAge    = model.DefaultGPSMaximumAge
	defaultAckTimeout       = model.DefaultAckTimeout
	defaultPeerWriteTimeout = 5 * time.Second
	defaultUserAgent        = "mcbroken-bridge"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	APIAddr          string        `mapstructure:"api-addr"`
	UpstreamURL      string        `mapstructure:"upstream-url"`
	UpstreamTimeout  time.Duration `mapstructure:"upstream-timeout"`
	CacheMaxAge      time.Duration `mapstructure:"cache-max-age"`
	UserAgent        string        `mapstructure:"user-agent"`
	SettingsPath     string        `mapstructure:"settings-path"`
	SavedSlots       []string      `mapstructure:"saved-slots"`
	LocationLat      *float64      `mapstructure:"location-lat"`
	LocationLon      *float64      `mapstructure:"location-lon"`
	GPSTimeout       time.Duration `mapstructure:"gps-timeout"`
	GPSMaximumAge    time.Duration `mapstructure:"gps-maximum-age"`
	AckTimeout       time.Duration `mapstructure:"ack-timeout"`
	PeerWriteTimeout time.Duration `mapstructure:"peer-write-timeout"`
	ConfigPath       string        `mapstructure:"-"` // not from config file
}

// pinnedLocation returns the configured fixed position, if any.
func (c appConfig) pinnedLocation() (model.Coordinate, bool) {
	if c.LocationLat == nil || c.LocationLon == nil {
		return model.Coordinate{}, false
	}
	return model.Coordinate{Lat: *c.LocationLat, Lon: *c.LocationLon}, true
}

// boundFlags are the command-line flags that override config keys.
var boundFlags = []string{"api-addr", "upstream-url", "settings-path"}

func loadConfig(configPath string, flags *pflag.FlagSet) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("MCBROKEN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("upstream-url", defaultUpstreamURL)
	v.SetDefault("upstream-timeout", defaultUpstreamTimeout)
	v.SetDefault("cache-max-age", defaultCacheMaxAge)
	v.SetDefault("user-agent", defaultUserAgent)
	v.SetDefault("settings-path", filepath.Join(home, ".config", "mcbroken", "slots.yml"))
	v.SetDefault("saved-slots", []string{})
	v.SetDefault("gps-timeout", defaultGPSTimeout)
	v.SetDefault("gps-maximum-age", defaultGPSMaximumAge)
	v.SetDefault("ack-timeout", defaultAckTimeout)
	v.SetDefault("peer-write-timeout", defaultPeerWriteTimeout)

	// No default: a pinned location only exists when configured.
	_ = v.BindEnv("location-lat")
	_ = v.BindEnv("location-lon")

	if flags != nil {
		for _, name := range boundFlags {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(name, f); err != nil {
					return cfg, fmt.Errorf("binding flag %s: %w", name, err)
				}
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
	if _, err := os.Stat(v.ConfigFileUsed()); err == nil {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	// Expand ~ in settings-path
	if strings.HasPrefix(cfg.SettingsPath, "~/") {
		cfg.SettingsPath = filepath.Join(home, cfg.SettingsPath[2:])
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c appConfig) validate() error {
	if c.UpstreamURL == "" {
		return fmt.Errorf("upstream-url must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"upstream-timeout":   c.UpstreamTimeout,
		"cache-max-age":      c.CacheMaxAge,
		"gps-timeout":        c.GPSTimeout,
		"gps-maximum-age":    c.GPSMaximumAge,
		"ack-timeout":        c.AckTimeout,
		"peer-write-timeout": c.PeerWriteTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid %s: %s", name, d)
		}
	}
	if err := settings.Validate(c.SavedSlots); err != nil {
		return fmt.Errorf("invalid saved-slots: %w", err)
	}
	if (c.LocationLat == nil) != (c.LocationLon == nil) {
		return fmt.Errorf("location-lat and location-lon must be set together")
	}
	if loc, ok := c.pinnedLocation(); ok && !loc.Valid() {
		return fmt.Errorf("invalid pinned location %.5f,%.5f", loc.Lat, loc.Lon)
	}
	return nil
}
