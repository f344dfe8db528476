// Package config loads the hxnav server configuration from a YAML file and
// HXNAV_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pthm/hxnav/lib/payload"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HXNAV_"

// Config is the server configuration.
type Config struct {
	Addr             string      `yaml:"addr"`
	Dev              bool        `yaml:"dev"`
	CookieSecrets    []string    `yaml:"cookie_secrets"`
	CompatibilityKey uint32      `yaml:"compatibility_key"`
	MaxBodyBytes     int64       `yaml:"max_body_bytes"`
	Shell            string      `yaml:"shell"` // path to an HTML shell template
	LogLevel         string      `yaml:"log_level"`
	LogFormat        string      `yaml:"log_format"`
	Trace            bool        `yaml:"trace"`
	Cache            CacheConfig `yaml:"cache"`
	RateLimit        RateConfig  `yaml:"rate_limit"`
}

// CacheConfig configures the render cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	Vary    []string      `yaml:"vary"`
}

// RateConfig configures the server-wide request limiter. A zero RPS
// disables it.
type RateConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Addr:             ":8080",
		CompatibilityKey: payload.CompatibilityKey,
		MaxBodyBytes:     10 << 20,
		LogLevel:         "info",
		LogFormat:        "text",
		Cache: CacheConfig{
			TTL: time.Minute,
		},
	}
}

// Load reads the configuration. Defaults are applied first, then the file
// at path (skipped when path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing YAML: %w", err)
		}
	}
	if err := applyEnvOverrides(cfg, getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	env := func(name string) string {
		return strings.TrimSpace(getenv(EnvPrefix + name))
	}

	if v := env("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := env("SHELL"); v != "" {
		cfg.Shell = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := env("COOKIE_SECRETS"); v != "" {
		cfg.CookieSecrets = splitList(v)
	}
	if v := env("CACHE_VARY"); v != "" {
		cfg.Cache.Vary = splitList(v)
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"DEV", &cfg.Dev},
		{"TRACE", &cfg.Trace},
		{"CACHE_ENABLED", &cfg.Cache.Enabled},
	}
	for _, b := range bools {
		v := env(b.name)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, b.name, err)
		}
		*b.dst = parsed
	}

	if v := env("COMPATIBILITY_KEY"); v != "" {
		key, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("config: %sCOMPATIBILITY_KEY: %w", EnvPrefix, err)
		}
		cfg.CompatibilityKey = uint32(key)
	}
	if v := env("MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %sMAX_BODY_BYTES: %w", EnvPrefix, err)
		}
		cfg.MaxBodyBytes = n
	}
	if v := env("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: %sRATE_LIMIT_RPS: %w", EnvPrefix, err)
		}
		cfg.RateLimit.RPS = f
	}
	if v := env("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sRATE_LIMIT_BURST: %w", EnvPrefix, err)
		}
		cfg.RateLimit.Burst = n
	}
	if v := env("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sCACHE_TTL: %w", EnvPrefix, err)
		}
		cfg.Cache.TTL = d
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("max_body_bytes must not be negative"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q: want text or json", c.LogFormat))
	}
	for i, s := range c.CookieSecrets {
		if s == "" {
			errs = append(errs, fmt.Errorf("cookie_secrets[%d] is empty", i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// Logger builds the logger described by the configuration.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
