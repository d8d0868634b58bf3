// Package config loads the viewer configuration from YAML, a .env file and
// the process environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Sports are the selectable sports, in cycling order.
var Sports = []string{"badminton", "tennis", "table_tennis"}

// Config is the complete viewer configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Render  RenderConfig  `yaml:"render" json:"render"`
	Sport   string        `yaml:"sport" json:"sport"`
	History HistoryConfig `yaml:"history" json:"history"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

// ServerConfig addresses the analysis server.
type ServerConfig struct {
	URL    string `yaml:"url" json:"url"`         // ws:// or wss:// base
	WSPath string `yaml:"ws_path" json:"ws_path"` // analysis socket path
	APIURL string `yaml:"api_url" json:"api_url"` // demos and upload endpoints

	// Zero means wait forever.
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	StopAckTimeout time.Duration `yaml:"stop_ack_timeout" json:"stop_ack_timeout"`
}

// SocketURL joins URL and WSPath.
func (s ServerConfig) SocketURL() string {
	return strings.TrimRight(s.URL, "/") + "/" + strings.TrimLeft(s.WSPath, "/")
}

// RenderConfig tunes the panels.
type RenderConfig struct {
	FPS                 int         `yaml:"fps" json:"fps"`
	GaugeAlpha          float64     `yaml:"gauge_alpha" json:"gauge_alpha"`
	GaugeMax            float64     `yaml:"gauge_max" json:"gauge_max"`
	Bands               BandsConfig `yaml:"bands" json:"bands"`
	VisibilityThreshold float64     `yaml:"visibility_threshold" json:"visibility_threshold"`
	TrailCapacity       int         `yaml:"trail_capacity" json:"trail_capacity"`
	TrackedJoint        string      `yaml:"tracked_joint" json:"tracked_joint"`
	HeatmapEvery        uint64      `yaml:"heatmap_every" json:"heatmap_every"`
	DefaultWidth        int         `yaml:"default_width" json:"default_width"`
	DefaultHeight       int         `yaml:"default_height" json:"default_height"`
	FlashTicks          int         `yaml:"flash_ticks" json:"flash_ticks"`
}

// TickInterval is the render clock period.
func (r RenderConfig) TickInterval() time.Duration {
	if r.FPS <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(r.FPS)
}

// BandsConfig holds the gauge colour thresholds in degrees.
type BandsConfig struct {
	Warning float64 `yaml:"warning" json:"warning"`
	Caution float64 `yaml:"caution" json:"caution"`
}

// HistoryConfig controls the session history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:            "ws://localhost:8000",
			WSPath:         "/ws/analyze",
			APIURL:         "http://localhost:8000",
			ConnectTimeout: 10 * time.Second,
			StopAckTimeout: 3 * time.Second,
		},
		Render: RenderConfig{
			FPS:                 30,
			GaugeAlpha:          0.15,
			GaugeMax:            180,
			Bands:               BandsConfig{Warning: 60, Caution: 120},
			VisibilityThreshold: 0.5,
			TrailCapacity:       15,
			TrackedJoint:        "right_wrist",
			HeatmapEvery:        10,
			DefaultWidth:        960,
			DefaultHeight:       540,
			FlashTicks:          12,
		},
		Sport:   "badminton",
		History: HistoryConfig{Enabled: true, Path: ".sportvision/history.db"},
		Log:     LogConfig{Level: "info", File: ".sportvision/svv.log"},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads variables from a .env file without overriding ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv applies SVV_SERVER, SVV_LOG_LEVEL and SVV_SPORT.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SVV_SERVER"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("SVV_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SVV_SPORT"); v != "" {
		c.Sport = v
	}
}

// Validate checks every field. Failures wrap ErrInvalid.
func (c *Config) Validate() error {
	r := c.Render
	switch {
	case c.Server.URL == "":
		return invalid("server.url is required")
	case c.Server.ConnectTimeout < 0 || c.Server.StopAckTimeout < 0:
		return invalid("server timeouts must be >= 0")
	case r.FPS <= 0:
		return invalid("render.fps must be > 0, got %d", r.FPS)
	case r.GaugeAlpha <= 0 || r.GaugeAlpha > 1:
		return invalid("render.gauge_alpha must be in (0,1], got %g", r.GaugeAlpha)
	case r.GaugeMax <= 0:
		return invalid("render.gauge_max must be > 0")
	case r.Bands.Caution <= r.Bands.Warning:
		return invalid("render.bands.caution (%g) must exceed warning (%g)", r.Bands.Caution, r.Bands.Warning)
	case r.VisibilityThreshold < 0 || r.VisibilityThreshold > 1:
		return invalid("render.visibility_threshold must be in [0,1]")
	case r.TrailCapacity < 1:
		return invalid("render.trail_capacity must be >= 1")
	case r.HeatmapEvery < 1:
		return invalid("render.heatmap_every must be >= 1")
	case r.DefaultWidth <= 0 || r.DefaultHeight <= 0:
		return invalid("render default dimensions must be > 0")
	case r.FlashTicks < 1:
		return invalid("render.flash_ticks must be >= 1")
	case !ValidSport(c.Sport):
		return invalid("sport %q must be one of %s", c.Sport, strings.Join(Sports, ", "))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ValidSport reports whether s is a known sport.
func ValidSport(s string) bool {
	for _, sp := range Sports {
		if sp == s {
			return true
		}
	}
	return false
}

// NextSport returns the sport after s in cycling order.
func NextSport(s string) string {
	for i, sp := range Sports {
		if sp == s {
			return Sports[(i+1)%len(Sports)]
		}
	}
	return Sports[0]
}

// ParseLevel maps a log level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, invalid("log.level %q", s)
	}
	return l, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
