package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SVV_SERVER", "SVV_LOG_LEVEL", "SVV_SPORT"} {
		t.Setenv(k, "")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate: %v", err)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Render.GaugeAlpha != 0.15 || cfg.Render.FPS != 30 {
		t.Errorf("unexpected defaults: %+v", cfg.Render)
	}
	if got := cfg.Server.SocketURL(); got != "ws://localhost:8000/ws/analyze" {
		t.Errorf("SocketURL = %q", got)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  url: ws://analysis:9000/
  connect_timeout: 2s
render:
  gauge_alpha: 0.3
  bands:
    warning: 45
    caution: 90
sport: tennis
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ConnectTimeout != 2*time.Second {
		t.Errorf("ConnectTimeout = %v", cfg.Server.ConnectTimeout)
	}
	if cfg.Server.StopAckTimeout != 3*time.Second {
		t.Errorf("StopAckTimeout default lost: %v", cfg.Server.StopAckTimeout)
	}
	if cfg.Server.SocketURL() != "ws://analysis:9000/ws/analyze" {
		t.Errorf("SocketURL = %q", cfg.Server.SocketURL())
	}
	if cfg.Render.GaugeAlpha != 0.3 || cfg.Render.Bands.Warning != 45 {
		t.Errorf("render not applied: %+v", cfg.Render)
	}
	if cfg.Render.TrailCapacity != 15 {
		t.Errorf("TrailCapacity default lost: %d", cfg.Render.TrailCapacity)
	}
	if cfg.Sport != "tennis" {
		t.Errorf("Sport = %q", cfg.Sport)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("render: [unclosed"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("Load should fail for malformed YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SVV_SERVER", "wss://remote")
	t.Setenv("SVV_LOG_LEVEL", "debug")
	t.Setenv("SVV_SPORT", "table_tennis")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.URL != "wss://remote" || cfg.Log.Level != "debug" || cfg.Sport != "table_tennis" {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero alpha", func(c *Config) { c.Render.GaugeAlpha = 0 }},
		{"alpha above one", func(c *Config) { c.Render.GaugeAlpha = 1.5 }},
		{"zero fps", func(c *Config) { c.Render.FPS = 0 }},
		{"bands inverted", func(c *Config) { c.Render.Bands.Caution = 50 }},
		{"empty trail", func(c *Config) { c.Render.TrailCapacity = 0 }},
		{"zero width", func(c *Config) { c.Render.DefaultWidth = 0 }},
		{"zero heatmap cadence", func(c *Config) { c.Render.HeatmapEvery = 0 }},
		{"negative timeout", func(c *Config) { c.Server.ConnectTimeout = -time.Second }},
		{"unknown sport", func(c *Config) { c.Sport = "curling" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"no server", func(c *Config) { c.Server.URL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestAlphaOfOneIsValid(t *testing.T) {
	cfg := Default()
	cfg.Render.GaugeAlpha = 1
	if err := cfg.Validate(); err != nil {
		t.Errorf("alpha 1 should be valid: %v", err)
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("SVV_SPORT", "")
	os.Unsetenv("SVV_SPORT")

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SVV_SPORT=tennis\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("SVV_SPORT"); got != "tennis" {
		t.Errorf("SVV_SPORT = %q, want tennis", got)
	}

	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored: %v", err)
	}
}

func TestNextSport(t *testing.T) {
	tests := []struct{ in, want string }{
		{"badminton", "tennis"},
		{"tennis", "table_tennis"},
		{"table_tennis", "badminton"},
		{"unknown", "badminton"},
	}
	for _, tt := range tests {
		if got := NextSport(tt.in); got != tt.want {
			t.Errorf("NextSport(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn")
	if err != nil || l != slog.LevelWarn {
		t.Errorf("ParseLevel(warn) = %v, %v", l, err)
	}
	if _, err := ParseLevel(""); err == nil {
		t.Error("empty level should be rejected")
	}
}

func TestTickInterval(t *testing.T) {
	r := Default().Render
	if got := r.TickInterval(); got != time.Second/30 {
		t.Errorf("TickInterval = %v", got)
	}
}
