package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the relay daemon configuration
type Config struct {
	Engine   EngineConfig `toml:"engine"`
	Port     int          `toml:"port"` // 0 picks the first free port from DefaultPort
	Webhook  string       `toml:"webhook_url"`
	LogLevel string       `toml:"log_level"`
}

// EngineConfig locates the download engine the relay drives
type EngineConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

const (
	DefaultPort      = 1710
	DefaultEngineURL = "http://127.0.0.1:1700"
)

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	return &Config{
		Engine:   EngineConfig{URL: DefaultEngineURL},
		LogLevel: "info",
	}
}

// LoadConfig reads the TOML file at path, applies environment overrides and validates.
// A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("NGDM_ENGINE_URL"); v != "" {
		c.Engine.URL = v
	}
	if v := os.Getenv("NGDM_ENGINE_TOKEN"); v != "" {
		c.Engine.Token = v
	}
	if v := os.Getenv("NGDM_WEBHOOK_URL"); v != "" {
		c.Webhook = v
	}
	if v := os.Getenv("NGDM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("NGDM_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid NGDM_PORT %q", v)
		}
		c.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Engine.URL = strings.TrimRight(strings.TrimSpace(c.Engine.URL), "/")
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration for obvious mistakes
func (c *Config) Validate() error {
	if c.Engine.URL == "" {
		return errors.New("engine url is required")
	}
	u, err := url.Parse(c.Engine.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid engine url %q", c.Engine.URL)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.Webhook != "" {
		if u, err := url.Parse(c.Webhook); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid webhook url %q", c.Webhook)
		}
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps a level name onto slog levels
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
