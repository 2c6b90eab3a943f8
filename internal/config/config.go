// Package config resolves the server configuration from defaults, an optional
// TOML or YAML file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	StoreRedis    = "redis"
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Port         string
	Store        string
	Codec        string
	RedisAddr    string
	RedisPrefix  string
	PostgresDSN  string
	TickInterval time.Duration
	LogLevel     string
	Email        Email
}

type Email struct {
	APIKey      string
	FromName    string
	FromAddress string
	To          string
}

// fileConfig mirrors Config as it appears on disk. Empty values leave the
// current setting untouched.
type fileConfig struct {
	Port         string    `toml:"port" yaml:"port"`
	Store        string    `toml:"store" yaml:"store"`
	Codec        string    `toml:"codec" yaml:"codec"`
	RedisAddr    string    `toml:"redis_addr" yaml:"redis_addr"`
	RedisPrefix  string    `toml:"redis_prefix" yaml:"redis_prefix"`
	PostgresDSN  string    `toml:"postgres_dsn" yaml:"postgres_dsn"`
	TickInterval string    `toml:"tick_interval" yaml:"tick_interval"`
	LogLevel     string    `toml:"log_level" yaml:"log_level"`
	Email        fileEmail `toml:"email" yaml:"email"`
}

type fileEmail struct {
	APIKey      string `toml:"api_key" yaml:"api_key"`
	FromName    string `toml:"from_name" yaml:"from_name"`
	FromAddress string `toml:"from_address" yaml:"from_address"`
	To          string `toml:"to" yaml:"to"`
}

func Default() *Config {
	return &Config{
		Port:         "8080",
		Store:        StoreRedis,
		Codec:        "json",
		RedisAddr:    "localhost:6379",
		TickInterval: time.Second,
		LogLevel:     "info",
		Email: Email{
			FromName: "Tempo",
		},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		return fmt.Errorf("unsupported config file extension %q (use .toml, .yaml or .yml)", ext)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return c.merge(fc)
}

// ApplyEnv overrides settings from the environment. lookup is normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	return c.merge(fileConfig{
		Port:         get("PORT"),
		Store:        get("TEMPO_STORE"),
		Codec:        get("TEMPO_CODEC"),
		RedisAddr:    get("TEMPO_REDIS_ADDR"),
		RedisPrefix:  get("TEMPO_REDIS_PREFIX"),
		PostgresDSN:  get("POSTGRES_DSN"),
		TickInterval: get("TEMPO_TICK_INTERVAL"),
		LogLevel:     get("TEMPO_LOG_LEVEL"),
		Email: fileEmail{
			APIKey:      get("EMAIL_API_KEY"),
			FromName:    get("FROM_NAME"),
			FromAddress: get("FROM_ADDRESS"),
			To:          get("NOTIFY_EMAIL_TO"),
		},
	})
}

func (c *Config) merge(fc fileConfig) error {
	setString(&c.Port, fc.Port)
	setString(&c.Store, strings.ToLower(fc.Store))
	setString(&c.Codec, strings.ToLower(fc.Codec))
	setString(&c.RedisAddr, fc.RedisAddr)
	setString(&c.RedisPrefix, fc.RedisPrefix)
	setString(&c.PostgresDSN, fc.PostgresDSN)
	setString(&c.LogLevel, strings.ToLower(fc.LogLevel))
	setString(&c.Email.APIKey, fc.Email.APIKey)
	setString(&c.Email.FromName, fc.Email.FromName)
	setString(&c.Email.FromAddress, fc.Email.FromAddress)
	setString(&c.Email.To, fc.Email.To)

	if fc.TickInterval != "" {
		d, err := time.ParseDuration(fc.TickInterval)
		if err != nil {
			return fmt.Errorf("invalid tick interval %q: %w", fc.TickInterval, err)
		}
		c.TickInterval = d
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Store {
	case StoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis store requires a redis address"))
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres store requires POSTGRES_DSN"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (available: redis, memory, postgres)", c.Store))
	}

	if c.Codec != "json" && c.Codec != "cbor" {
		errs = append(errs, fmt.Errorf("unknown codec %q (available: json, cbor)", c.Codec))
	}

	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick interval must be positive, got %s", c.TickInterval))
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if c.Email.APIKey != "" && (c.Email.FromAddress == "" || c.Email.To == "") {
		errs = append(errs, errors.New("email notifications require FROM_ADDRESS and NOTIFY_EMAIL_TO"))
	}

	return errors.Join(errs...)
}

func (c *Config) EmailEnabled() bool {
	return c.Email.APIKey != ""
}

// ArchiveEnabled reports whether completions are recorded in Postgres.
func (c *Config) ArchiveEnabled() bool {
	return c.PostgresDSN != ""
}

func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
