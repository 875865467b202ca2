package di

import (
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/internal/cacheinfra"
	"github.com/goliatone/go-query-cache/recipe"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ConfigEnv overrides the configuration file path.
const ConfigEnv = "QUERYCACHE_CONFIG"

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the full application configuration.
type Config struct {
	Cache    cache.Config           `yaml:"cache"`
	Store    string                 `yaml:"store"`
	Redis    cacheinfra.RedisConfig `yaml:"redis"`
	Memory   cacheinfra.Config      `yaml:"memory"`
	Database DatabaseConfig         `yaml:"database"`
	Log      LogConfig              `yaml:"log"`
}

// DatabaseConfig selects the backing store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Validate checks the database settings.
func (c DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(recipe.DriverSQLite, "sqlite", recipe.DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
	)
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Validate checks the log settings.
func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "error")),
	)
}

// DefaultConfig uses the in-process store and a local sqlite file.
func DefaultConfig() Config {
	return Config{
		Cache:  cache.DefaultConfig(),
		Store:  StoreMemory,
		Redis:  cacheinfra.DefaultRedisConfig(),
		Memory: cacheinfra.DefaultConfig(),
		Database: DatabaseConfig{
			Driver: recipe.DriverSQLite,
			DSN:    "querycache.db",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate checks every section. Store settings are only checked for the
// selected store.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Cache),
		validation.Field(&c.Store, validation.Required, validation.In(StoreMemory, StoreRedis)),
		validation.Field(&c.Database),
		validation.Field(&c.Log),
	)
	if err != nil {
		return err
	}
	switch c.Store {
	case StoreRedis:
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	case StoreMemory:
		if err := c.Memory.Validate(); err != nil {
			return fmt.Errorf("memory: %w", err)
		}
	}
	return nil
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path falls back to $QUERYCACHE_CONFIG; when that is
// empty too the defaults are returned.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the application logger.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.Development {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	switch cfg.Level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return zapConfig.Build()
}
