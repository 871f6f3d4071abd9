package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yml"), nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.APIAddr != defaultAPIAddr || cfg.UpstreamURL != defaultUpstreamURL {
		t.Errorf("addr/url = %q %q", cfg.APIAddr, cfg.UpstreamURL)
	}
	if cfg.CacheMaxAge != 60*time.Second || cfg.GPSTimeout != 12*time.Second || cfg.GPSMaximumAge != 30*time.Second {
		t.Errorf("durations = %s %s %s", cfg.CacheMaxAge, cfg.GPSTimeout, cfg.GPSMaximumAge)
	}
	if _, ok := cfg.pinnedLocation(); ok {
		t.Error("pinned location without configuration")
	}
	if cfg.ConfigPath != "" {
		t.Errorf("ConfigPath = %q for a missing file", cfg.ConfigPath)
	}
}

func TestLoadConfigFileEnvAndFlags(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "config.yml")
	body := "upstream-url: http://file.example/markers.json\n" +
		"cache-max-age: 30s\n" +
		"saved-slots: [main st, abbey road]\n" +
		"settings-path: ~/slots.yml\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MCBROKEN_LOCATION_LAT", "51.5")
	t.Setenv("MCBROKEN_LOCATION_LON", "-0.12")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("api-addr", "", "")
	if err := flags.Parse([]string{"--api-addr", "0.0.0.0:8080"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path, flags)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.UpstreamURL != "http://file.example/markers.json" || cfg.CacheMaxAge != 30*time.Second {
		t.Errorf("file values = %q %s", cfg.UpstreamURL, cfg.CacheMaxAge)
	}
	if len(cfg.SavedSlots) != 2 || cfg.SavedSlots[1] != "abbey road" {
		t.Errorf("saved slots = %q", cfg.SavedSlots)
	}
	if cfg.SettingsPath != filepath.Join(home, "slots.yml") {
		t.Errorf("settings path = %q", cfg.SettingsPath)
	}
	if cfg.APIAddr != "0.0.0.0:8080" {
		t.Errorf("api addr = %q, want flag value", cfg.APIAddr)
	}
	loc, ok := cfg.pinnedLocation()
	if !ok || loc.Lat != 51.5 || loc.Lon != -0.12 {
		t.Errorf("pinned = %+v %v", loc, ok)
	}
	if cfg.ConfigPath != path {
		t.Errorf("ConfigPath = %q", cfg.ConfigPath)
	}
}

func TestValidateRejects(t *testing.T) {
	lat := 10.0
	bad := 200.0
	base := func() appConfig {
		return appConfig{
			UpstreamURL: "http://x", UpstreamTimeout: time.Second, CacheMaxAge: time.Second,
			GPSTimeout: time.Second, GPSMaximumAge: time.Second, AckTimeout: time.Second, PeerWriteTimeout: time.Second,
		}
	}
	tests := []struct {
		name   string
		mutate func(*appConfig)
	}{
		{"empty url", func(c *appConfig) { c.UpstreamURL = "" }},
		{"zero timeout", func(c *appConfig) { c.UpstreamTimeout = 0 }},
		{"six slots", func(c *appConfig) { c.SavedSlots = []string{"a", "b", "c", "d", "e", "f"} }},
		{"half location", func(c *appConfig) { c.LocationLat = &lat }},
		{"bad longitude", func(c *appConfig) { c.LocationLat, c.LocationLon = &lat, &bad }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			if err := cfg.validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if err := base().validate(); err != nil {
		t.Fatalf("base config rejected: %v", err)
	}
}
