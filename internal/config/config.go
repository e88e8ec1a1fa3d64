// Package config loads service and CLI settings from a .env file, an
// optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Skufu/medsafe/internal/detect"
	"github.com/Skufu/medsafe/internal/logging"
)

// EnvPrefix prefixes every environment variable, e.g. MEDSAFE_STORAGE_DRIVER.
const EnvPrefix = "MEDSAFE"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverYAML     = "yaml"
)

type Config struct {
	Port        string `mapstructure:"port" yaml:"port"`
	GinMode     string `mapstructure:"gin_mode" yaml:"gin_mode"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
	// SeedFile is imported when the storage backend is empty. The built-in
	// dataset is used when it is unset.
	SeedFile string `mapstructure:"seed_file" yaml:"seed_file"`
	// AdminToken guards the admin routes. Empty disables them.
	AdminToken string `mapstructure:"admin_token" yaml:"admin_token"`

	Storage   Storage        `mapstructure:"storage" yaml:"storage"`
	Detector  Detector       `mapstructure:"detector" yaml:"detector"`
	Cache     Cache          `mapstructure:"cache" yaml:"cache"`
	RateLimit RateLimit      `mapstructure:"rate_limit" yaml:"rate_limit"`
	Log       logging.Config `mapstructure:"log" yaml:"log"`
}

type Storage struct {
	Driver     string `mapstructure:"driver" yaml:"driver"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	YAMLPath   string `mapstructure:"yaml_path" yaml:"yaml_path"`
}

type Detector struct {
	MaxExhaustive int `mapstructure:"max_exhaustive" yaml:"max_exhaustive"`
}

type Cache struct {
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type RateLimit struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps"`
	Burst int     `mapstructure:"burst" yaml:"burst"`
}

// SetDefaults registers every key with its default so that environment
// variables are picked up for all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("database_url", "")
	v.SetDefault("seed_file", "")
	v.SetDefault("admin_token", "")
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite_path", "data/medsafe.db")
	v.SetDefault("storage.yaml_path", "data/medsafe.yaml")
	v.SetDefault("detector.max_exhaustive", detect.DefaultMaxExhaustive)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("rate_limit.rps", 20.0)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration into v and decodes it. Precedence, highest
// first: values already set on v (flags), MEDSAFE_* variables, the
// unprefixed PORT/GIN_MODE/DATABASE_URL variables, the config file,
// defaults. A .env file in the working directory is loaded into the
// environment first. With an empty file, medsafe.yaml is looked up in
// the working directory and /etc/medsafe; not finding one is fine.
func Load(v *viper.Viper, file string) (*Config, error) {
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{
		"port":         "PORT",
		"gin_mode":     "GIN_MODE",
		"database_url": "DATABASE_URL",
	} {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("medsafe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/medsafe")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required when storage.driver=sqlite")
		}
	case DriverYAML:
		if c.Storage.YAMLPath == "" {
			return errors.New("storage.yaml_path is required when storage.driver=yaml")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when storage.driver=postgres")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q (want memory, sqlite, postgres or yaml)", c.Storage.Driver)
	}
	if c.Detector.MaxExhaustive < 2 || c.Detector.MaxExhaustive > detect.Limit {
		return fmt.Errorf("detector.max_exhaustive must be between 2 and %d, got %d", detect.Limit, c.Detector.MaxExhaustive)
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl must not be negative")
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate_limit values must not be negative")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst == 0 {
		return errors.New("rate_limit.burst must be positive when rate_limit.rps is set")
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.AdminToken != "" {
		c.AdminToken = "***"
	}
	if c.DatabaseURL != "" {
		c.DatabaseURL = "***"
	}
	return c
}
