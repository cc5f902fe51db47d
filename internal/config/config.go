package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Cache          CacheConfig          `yaml:"cache" mapstructure:"cache"`
	Snapshot       SnapshotConfig       `yaml:"snapshot" mapstructure:"snapshot"`
	Rentcast       RentcastConfig       `yaml:"rentcast" mapstructure:"rentcast"`
	Scraper        ScraperConfig        `yaml:"scraper" mapstructure:"scraper"`
	Merger         MergerConfig         `yaml:"merger" mapstructure:"merger"`
	ValuationCache ValuationCacheConfig `yaml:"valuation_cache" mapstructure:"valuation_cache"`
	Store          StoreConfig          `yaml:"store" mapstructure:"store"`
	Redis          RedisConfig          `yaml:"redis" mapstructure:"redis"`
	Server         ServerConfig         `yaml:"server" mapstructure:"server"`
	Log            LogConfig            `yaml:"log" mapstructure:"log"`
}

// CacheConfig configures the in-process property and analysis caches.
type CacheConfig struct {
	MaxEntries    int           `yaml:"max_entries" mapstructure:"max_entries"`
	PropertyTTL   time.Duration `yaml:"property_ttl" mapstructure:"property_ttl"`
	AnalysisTTL   time.Duration `yaml:"analysis_ttl" mapstructure:"analysis_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// Snapshot sink kinds.
const (
	SinkNone  = "none"
	SinkFile  = "file"
	SinkRedis = "redis"
	SinkStore = "store"
)

// SnapshotConfig configures cache persistence across restarts.
type SnapshotConfig struct {
	Sink           string        `yaml:"sink" mapstructure:"sink"`
	Path           string        `yaml:"path" mapstructure:"path"`
	RedisKey       string        `yaml:"redis_key" mapstructure:"redis_key"`
	RestoreOnStart bool          `yaml:"restore_on_start" mapstructure:"restore_on_start"`
	SaveOnShutdown bool          `yaml:"save_on_shutdown" mapstructure:"save_on_shutdown"`
	Interval       time.Duration `yaml:"interval" mapstructure:"interval"`
}

// RentcastConfig configures the valuation API client.
type RentcastConfig struct {
	Key               string        `yaml:"key" mapstructure:"key"`
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	CompCount         int           `yaml:"comp_count" mapstructure:"comp_count"`
}

// ScraperConfig configures the listing scraper service.
type ScraperConfig struct {
	Endpoint     string        `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey       string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Retries      int           `yaml:"retries" mapstructure:"retries"`
	ExcludePaths []string      `yaml:"exclude_paths" mapstructure:"exclude_paths"`
	Hosts        []string      `yaml:"hosts" mapstructure:"hosts"`
}

// MergerConfig sets reconciliation defaults.
type MergerConfig struct {
	IncludeValuationAPI bool   `yaml:"include_valuation_api" mapstructure:"include_valuation_api"`
	IncludeEstimates    bool   `yaml:"include_estimates" mapstructure:"include_estimates"`
	DefaultsFile        string `yaml:"defaults_file" mapstructure:"defaults_file"`
	Concurrency         int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// ValuationCacheConfig configures the shared Redis cache in front of the valuation API.
type ValuationCacheConfig struct {
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL         time.Duration `yaml:"ttl" mapstructure:"ttl"`
	NegativeTTL time.Duration `yaml:"negative_ttl" mapstructure:"negative_ttl"`
}

// StoreConfig configures the history and snapshot database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	AllowedOrigins     []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROPERTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.property_ttl", 24*time.Hour)
	v.SetDefault("cache.analysis_ttl", 6*time.Hour)
	v.SetDefault("cache.sweep_interval", 10*time.Minute)
	v.SetDefault("snapshot.sink", SinkNone)
	v.SetDefault("snapshot.path", "data/cache-snapshot.json")
	v.SetDefault("snapshot.redis_key", "property-engine:cache-snapshot")
	v.SetDefault("snapshot.restore_on_start", true)
	v.SetDefault("snapshot.save_on_shutdown", true)
	v.SetDefault("snapshot.interval", 0)
	v.SetDefault("rentcast.key", "")
	v.SetDefault("rentcast.base_url", "https://api.rentcast.io/v1")
	v.SetDefault("rentcast.requests_per_second", 5.0)
	v.SetDefault("rentcast.timeout", 15*time.Second)
	v.SetDefault("rentcast.comp_count", 10)
	v.SetDefault("scraper.endpoint", "")
	v.SetDefault("scraper.api_key", "")
	v.SetDefault("scraper.timeout", 30*time.Second)
	v.SetDefault("scraper.retries", 2)
	v.SetDefault("scraper.exclude_paths", []string{})
	v.SetDefault("scraper.hosts", []string{})
	v.SetDefault("merger.include_valuation_api", true)
	v.SetDefault("merger.include_estimates", true)
	v.SetDefault("merger.defaults_file", "")
	v.SetDefault("merger.concurrency", 4)
	v.SetDefault("valuation_cache.enabled", false)
	v.SetDefault("valuation_cache.ttl", 12*time.Hour)
	v.SetDefault("valuation_cache.negative_ttl", 30*time.Minute)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/property-engine.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_per_minute", 120)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
// Modes: "serve", "reconcile", "snapshot", "migrate".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimitPerMinute < 0 {
			errs = append(errs, "server.rate_limit_per_minute must be >= 0")
		}
		errs = append(errs, c.validateCommon()...)
		errs = append(errs, c.validateSnapshot()...)
	case "reconcile":
		errs = append(errs, c.validateCommon()...)
	case "snapshot":
		errs = append(errs, c.validateSnapshot()...)
		if c.Snapshot.Sink == SinkNone || c.Snapshot.Sink == "" {
			errs = append(errs, "snapshot.sink must be set")
		}
	case "migrate":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateCommon() []string {
	var errs []string
	if c.Merger.Concurrency < 1 || c.Merger.Concurrency > 32 {
		errs = append(errs, "merger.concurrency must be between 1 and 32")
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, "cache.max_entries must be >= 0")
	}
	if c.Cache.PropertyTTL < 0 || c.Cache.AnalysisTTL < 0 {
		errs = append(errs, "cache ttl values must be >= 0")
	}
	if c.Rentcast.CompCount < 0 || c.Rentcast.CompCount > 25 {
		errs = append(errs, "rentcast.comp_count must be between 0 and 25")
	}
	if c.ValuationCache.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required when valuation_cache.enabled")
	}
	return errs
}

func (c *Config) validateSnapshot() []string {
	var errs []string
	switch c.Snapshot.Sink {
	case "", SinkNone:
	case SinkFile:
		if c.Snapshot.Path == "" {
			errs = append(errs, "snapshot.path is required for the file sink")
		}
	case SinkRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required for the redis sink")
		}
	case SinkStore:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the store sink")
		}
	default:
		errs = append(errs, fmt.Sprintf("snapshot.sink %q is not one of none, file, redis, store", c.Snapshot.Sink))
	}
	if c.Snapshot.Interval < 0 {
		errs = append(errs, "snapshot.interval must be >= 0")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
