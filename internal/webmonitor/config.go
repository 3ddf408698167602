package webmonitor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/herdwatch/live-overlay/internal/detection"
	"github.com/herdwatch/live-overlay/internal/feed"
)

// Config defines the runtime configuration for the overlay server.
type Config struct {
	Addr              string        `yaml:"addr"`
	FeedURL           string        `yaml:"feed_url"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	StartPaused       bool          `yaml:"start_paused"`
	ViewportWidth     int           `yaml:"viewport_width"`
	ViewportHeight    int           `yaml:"viewport_height"`
	JPEGQuality       int           `yaml:"jpeg_quality"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
	SettingsDB        string        `yaml:"settings_db"`
	LogLevel          string        `yaml:"log_level"`
	LogColor          bool          `yaml:"log_color"`
}

// DefaultConfig returns the stock configuration. An empty FeedURL means no
// upstream service, so every tick is simulated.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		FeedURL:           "",
		PollInterval:      feed.DefaultInterval,
		RequestTimeout:    2 * time.Second,
		ViewportWidth:     1280,
		ViewportHeight:    720,
		JPEGQuality:       75,
		KeepaliveInterval: 30 * time.Second,
		SettingsDB:        "./data/settings.db",
		LogLevel:          "info",
		LogColor:          true,
	}
}

// LoadFile overlays the YAML file at path onto cfg.
func LoadFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays OVERLAY_* environment variables onto cfg. Unparsable
// values are ignored.
func ApplyEnv(cfg Config) Config {
	cfg.Addr = getEnv("OVERLAY_ADDR", cfg.Addr)
	cfg.FeedURL = getEnv("OVERLAY_FEED_URL", cfg.FeedURL)
	cfg.PollInterval = getEnvAsDuration("OVERLAY_POLL_INTERVAL", cfg.PollInterval)
	cfg.RequestTimeout = getEnvAsDuration("OVERLAY_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.StartPaused = getEnvAsBool("OVERLAY_START_PAUSED", cfg.StartPaused)
	cfg.ViewportWidth = getEnvAsInt("OVERLAY_VIEWPORT_WIDTH", cfg.ViewportWidth)
	cfg.ViewportHeight = getEnvAsInt("OVERLAY_VIEWPORT_HEIGHT", cfg.ViewportHeight)
	cfg.JPEGQuality = getEnvAsInt("OVERLAY_JPEG_QUALITY", cfg.JPEGQuality)
	cfg.KeepaliveInterval = getEnvAsDuration("OVERLAY_KEEPALIVE_INTERVAL", cfg.KeepaliveInterval)
	cfg.SettingsDB = getEnv("OVERLAY_SETTINGS_DB", cfg.SettingsDB)
	cfg.LogLevel = getEnv("OVERLAY_LOG_LEVEL", cfg.LogLevel)
	cfg.LogColor = getEnvAsBool("OVERLAY_LOG_COLOR", cfg.LogColor)
	return cfg
}

// normalized fills zero values from DefaultConfig.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		c.ViewportWidth, c.ViewportHeight = def.ViewportWidth, def.ViewportHeight
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		c.JPEGQuality = def.JPEGQuality
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = def.KeepaliveInterval
	}
	return c
}

// Viewport returns the configured initial viewport.
func (c Config) Viewport() detection.Viewport {
	return detection.Viewport{Width: c.ViewportWidth, Height: c.ViewportHeight}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
