// Package config handles EmojiArt configuration from YAML files.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"EmojiArt/internal/document"
)

// Config is the top-level EmojiArt configuration.
type Config struct {
	Document DocumentConfig `yaml:"document"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Share    ShareConfig    `yaml:"share"`
	Palettes PaletteConfig  `yaml:"palettes"`
	Export   ExportConfig   `yaml:"export"`
	Log      LogConfig      `yaml:"log"`
}

// DocumentConfig controls which document is opened and how it is autosaved.
type DocumentConfig struct {
	Path             string        `yaml:"path"` // empty: autosave file
	Autosave         string        `yaml:"autosave"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
}

// FetchConfig controls background image downloads.
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes"`
	UserAgent string        `yaml:"user_agent"`
}

// ShareConfig controls the live share server.
type ShareConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Advertise bool   `yaml:"advertise"` // mDNS
	Name      string `yaml:"name"`
}

type PaletteConfig struct {
	Path  string `yaml:"path"`
	Store string `yaml:"store"`
}

type ExportConfig struct {
	PageSize    string `yaml:"page_size"`   // A4 | Letter | ...
	Orientation string `yaml:"orientation"` // P | L
}

type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Document.Autosave == "" {
		c.Document.Autosave = document.DefaultAutosaveFile
	}
	if c.Document.AutosaveInterval <= 0 {
		c.Document.AutosaveInterval = document.DefaultAutosaveInterval
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = document.DefaultFetchTimeout
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = document.DefaultMaxBytes
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = document.DefaultUserAgent
	}
	if c.Share.Port <= 0 {
		c.Share.Port = 8888
	}
	if c.Share.Name == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "emojiart"
		}
		c.Share.Name = host
	}
	if c.Palettes.Path == "" {
		c.Palettes.Path = "palettes.db"
	}
	if c.Palettes.Store == "" {
		c.Palettes.Store = "Main"
	}
	if c.Export.PageSize == "" {
		c.Export.PageSize = "A4"
	}
	if c.Export.Orientation == "" {
		c.Export.Orientation = "L"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// SlogLevel maps the configured level name onto slog. Unknown names log at info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
