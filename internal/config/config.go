// Package config provides configuration management for streamavatar
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Animation AnimationConfig `mapstructure:"animation"`
	Gesture   GestureConfig   `mapstructure:"gesture"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Server    ServerConfig    `mapstructure:"server"`
	Render    RenderConfig    `mapstructure:"render"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AnimationConfig tunes the animation controller. Times are in seconds.
type AnimationConfig struct {
	MaxDelta         float64 `mapstructure:"max_delta"`
	EntranceDuration float64 `mapstructure:"entrance_duration"`
	BlinkMinInterval float64 `mapstructure:"blink_min_interval"`
	BlinkMaxInterval float64 `mapstructure:"blink_max_interval"`
	SpeakingHz       float64 `mapstructure:"speaking_hz"`
	Seed             int64   `mapstructure:"seed"` // 0 = seeded from the clock
}

// Gesture source kinds
const (
	SourceHTTP = "http"
	SourceFile = "file"
	SourceGLTF = "gltf"
)

// GestureConfig selects where gesture recordings come from
type GestureConfig struct {
	Source   string        `mapstructure:"source"` // http, file, gltf
	BaseURL  string        `mapstructure:"base_url"`
	Dir      string        `mapstructure:"dir"`
	GLTFPath string        `mapstructure:"gltf_path"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Watch    bool          `mapstructure:"watch"` // Invalidate cached files on change (file source)
}

// FeedConfig configures the SSE trigger feed
type FeedConfig struct {
	URL               string        `mapstructure:"url"`
	Enabled           bool          `mapstructure:"enabled"`
	TriggersPerSecond float64       `mapstructure:"triggers_per_second"`
	Burst             int           `mapstructure:"burst"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnectDelay time.Duration `mapstructure:"max_reconnect_delay"`
}

// ServerConfig configures the frame broadcast server
type ServerConfig struct {
	Addr         string  `mapstructure:"addr"`
	BroadcastFPS float64 `mapstructure:"broadcast_fps"`
}

// RenderConfig configures the render loop
type RenderConfig struct {
	FPS int `mapstructure:"fps"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Dir        string `mapstructure:"dir"`
	Console    bool   `mapstructure:"console"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Animation: AnimationConfig{
			MaxDelta:         0.1,
			EntranceDuration: 0.8,
			BlinkMinInterval: 3,
			BlinkMaxInterval: 5,
			SpeakingHz:       6,
		},
		Gesture: GestureConfig{
			Source:  SourceHTTP,
			BaseURL: "http://localhost:8090/gestures",
			Dir:     "gestures",
			Timeout: 10 * time.Second,
			Watch:   true,
		},
		Feed: FeedConfig{
			URL:               "http://localhost:8090/events",
			Enabled:           false,
			TriggersPerSecond: 4,
			Burst:             2,
			ReconnectDelay:    3 * time.Second,
			MaxReconnectDelay: 60 * time.Second,
		},
		Server: ServerConfig{
			Addr:         ":8765",
			BroadcastFPS: 30,
		},
		Render: RenderConfig{
			FPS: 60,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Console:    true,
			MaxSizeMB:  20,
			MaxBackups: 3,
		},
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".streamavatar"), nil
}

// New returns a viper instance with defaults, search paths and environment
// overrides registered. An explicit configFile replaces the search paths.
func New(configFile string) *viper.Viper {
	v := viper.New()
	setKeys(v.SetDefault, DefaultConfig())

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	// Environment variable overrides, e.g. STREAMAVATAR_SERVER_ADDR
	v.SetEnvPrefix("STREAMAVATAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// setKeys passes every configuration key and its value in cfg to set.
func setKeys(set func(key string, value any), cfg *Config) {
	set("animation.max_delta", cfg.Animation.MaxDelta)
	set("animation.entrance_duration", cfg.Animation.EntranceDuration)
	set("animation.blink_min_interval", cfg.Animation.BlinkMinInterval)
	set("animation.blink_max_interval", cfg.Animation.BlinkMaxInterval)
	set("animation.speaking_hz", cfg.Animation.SpeakingHz)
	set("animation.seed", cfg.Animation.Seed)

	set("gesture.source", cfg.Gesture.Source)
	set("gesture.base_url", cfg.Gesture.BaseURL)
	set("gesture.dir", cfg.Gesture.Dir)
	set("gesture.gltf_path", cfg.Gesture.GLTFPath)
	set("gesture.timeout", cfg.Gesture.Timeout)
	set("gesture.watch", cfg.Gesture.Watch)

	set("feed.url", cfg.Feed.URL)
	set("feed.enabled", cfg.Feed.Enabled)
	set("feed.triggers_per_second", cfg.Feed.TriggersPerSecond)
	set("feed.burst", cfg.Feed.Burst)
	set("feed.reconnect_delay", cfg.Feed.ReconnectDelay)
	set("feed.max_reconnect_delay", cfg.Feed.MaxReconnectDelay)

	set("server.addr", cfg.Server.Addr)
	set("server.broadcast_fps", cfg.Server.BroadcastFPS)

	set("render.fps", cfg.Render.FPS)

	set("logging.level", cfg.Logging.Level)
	set("logging.dir", cfg.Logging.Dir)
	set("logging.console", cfg.Logging.Console)
	set("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	set("logging.max_backups", cfg.Logging.MaxBackups)
}

// Load reads configuration from file and environment. A missing config file
// is not an error; defaults and environment apply.
func Load(configFile string) (*Config, *viper.Viper, error) {
	v := New(configFile)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := Decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// Decode unmarshals and validates the current state of v.
func Decode(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Gesture.Source {
	case SourceHTTP:
		if c.Gesture.BaseURL == "" {
			return errors.New("gesture.base_url is required for the http source")
		}
	case SourceFile:
		if c.Gesture.Dir == "" {
			return errors.New("gesture.dir is required for the file source")
		}
	case SourceGLTF:
		if c.Gesture.GLTFPath == "" {
			return errors.New("gesture.gltf_path is required for the gltf source")
		}
	default:
		return fmt.Errorf("unknown gesture.source %q", c.Gesture.Source)
	}

	if c.Animation.MaxDelta <= 0 {
		return errors.New("animation.max_delta must be positive")
	}
	if c.Animation.BlinkMinInterval <= 0 || c.Animation.BlinkMaxInterval < c.Animation.BlinkMinInterval {
		return fmt.Errorf("invalid blink interval [%g, %g]", c.Animation.BlinkMinInterval, c.Animation.BlinkMaxInterval)
	}
	if c.Render.FPS <= 0 {
		return errors.New("render.fps must be positive")
	}
	if c.Server.BroadcastFPS <= 0 {
		return errors.New("server.broadcast_fps must be positive")
	}
	if c.Feed.Enabled && c.Feed.URL == "" {
		return errors.New("feed.url is required when the feed is enabled")
	}
	return nil
}

// Watch reloads the config file on change and hands every valid result to
// fn. Invalid edits are logged and skipped.
func Watch(v *viper.Viper, logger zerolog.Logger, fn func(*Config)) {
	log := logger.With().Str("component", "config").Logger()

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := Decode(v)
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name).Msg("Ignoring invalid config change")
			return
		}
		log.Info().Str("file", e.Name).Msg("Config reloaded")
		fn(cfg)
	})
	v.WatchConfig()
}

// Save writes the configuration to path as YAML
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	v := viper.New()
	setKeys(v.Set, cfg)

	return v.WriteConfigAs(path)
}
