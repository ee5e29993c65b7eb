package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
	"vidshelf/internal/media"
)

// Environment variables that override the config file.
const (
	EnvVideoDir  = "VIDEO_DIR"
	EnvSortOrder = "VIDSHELF_SORT_ORDER"
	EnvRestrict  = "VIDSHELF_RESTRICT"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Library    LibraryConfig    `yaml:"library"`
	Database   DatabaseConfig   `yaml:"database"`
	Thumbnails ThumbnailsConfig `yaml:"thumbnails"`
	Logging    LoggingConfig    `yaml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type LibraryConfig struct {
	Path               string `yaml:"path"`
	RestrictToReserved bool   `yaml:"restrict_to_reserved"`
	SortOrder          string `yaml:"sort_order"` // newest | name
	Locale             string `yaml:"locale"`
	TrashDir           string `yaml:"trash_dir"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ThumbnailsConfig struct {
	OutputDir     string `yaml:"output_dir"`
	CacheCapacity int    `yaml:"cache_capacity"`
	CacheMaxSize  int64  `yaml:"cache_max_size"` // bytes
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"` // mutating routes; 0 disables
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         6540,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0,
		},
		Library: LibraryConfig{
			SortOrder: string(media.SortByCreatedDesc),
			Locale:    "ja",
			TrashDir:  "data/trash",
		},
		Database: DatabaseConfig{
			Path: "data/vidshelf.db",
		},
		Thumbnails: ThumbnailsConfig{
			OutputDir:     "data/thumbnails",
			CacheCapacity: 1000,
			CacheMaxSize:  256 * 1024 * 1024, // 256 MB
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
	}
}

// LoadDotEnv reads KEY=VALUE pairs from path into the environment without
// overwriting variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads the YAML file at path on top of the defaults and then applies
// environment overrides. An empty path or missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvVideoDir); ok {
		cfg.Library.Path = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvSortOrder); ok && strings.TrimSpace(v) != "" {
		cfg.Library.SortOrder = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvRestrict); ok && strings.TrimSpace(v) != "" {
		restrict, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRestrict, err)
		}
		cfg.Library.RestrictToReserved = restrict
	}
	return nil
}

// Validate checks values that would otherwise only fail at request time.
// An empty library path is allowed; listing then reports it as unconfigured.
func (c *Config) Validate() error {
	if _, ok := media.ParseSortOrder(c.Library.SortOrder); !ok {
		return fmt.Errorf("library.sort_order: unknown value %q", c.Library.SortOrder)
	}
	if c.Library.Locale != "" {
		if _, err := language.Parse(c.Library.Locale); err != nil {
			return fmt.Errorf("library.locale: %w", err)
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	if c.Thumbnails.CacheCapacity <= 0 {
		return fmt.Errorf("thumbnails.cache_capacity: must be positive")
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rate_limit.requests_per_minute: must not be negative")
	}
	return nil
}

// ScanOptions is the immutable snapshot the indexer works from.
func (c *Config) ScanOptions() media.ScanOptions {
	order, ok := media.ParseSortOrder(c.Library.SortOrder)
	if !ok {
		order = media.SortByCreatedDesc
	}
	return media.ScanOptions{
		Root:                c.Library.Path,
		RestrictToSubfolder: c.Library.RestrictToReserved,
		SortOrder:           order,
		Locale:              c.Library.Locale,
	}
}
