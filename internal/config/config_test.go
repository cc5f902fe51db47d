package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Temp dir so no config.yaml or .env is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, 24*time.Hour, cfg.Cache.PropertyTTL)
	assert.Equal(t, 6*time.Hour, cfg.Cache.AnalysisTTL)
	assert.Equal(t, 10*time.Minute, cfg.Cache.SweepInterval)
	assert.Equal(t, SinkNone, cfg.Snapshot.Sink)
	assert.True(t, cfg.Snapshot.RestoreOnStart)
	assert.True(t, cfg.Snapshot.SaveOnShutdown)
	assert.Equal(t, "https://api.rentcast.io/v1", cfg.Rentcast.BaseURL)
	assert.InDelta(t, 5.0, cfg.Rentcast.RequestsPerSecond, 0.001)
	assert.Equal(t, 10, cfg.Rentcast.CompCount)
	assert.Equal(t, 30*time.Second, cfg.Scraper.Timeout)
	assert.True(t, cfg.Merger.IncludeValuationAPI)
	assert.True(t, cfg.Merger.IncludeEstimates)
	assert.Equal(t, 4, cfg.Merger.Concurrency)
	assert.False(t, cfg.ValuationCache.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.ValuationCache.NegativeTTL)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 120, cfg.Server.RateLimitPerMinute)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/props
log:
  level: debug
  format: console
cache:
  property_ttl: 2h
snapshot:
  sink: file
  path: /tmp/snap.json
scraper:
  hosts: [zillow.com, redfin.com]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/props", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 2*time.Hour, cfg.Cache.PropertyTTL)
	assert.Equal(t, SinkFile, cfg.Snapshot.Sink)
	assert.Equal(t, []string{"zillow.com", "redfin.com"}, cfg.Scraper.Hosts)
	// Defaults still apply for unset values
	assert.Equal(t, 6*time.Hour, cfg.Cache.AnalysisTTL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("PROPERTY_STORE_DRIVER", "postgres")
	t.Setenv("PROPERTY_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("PROPERTY_SERVER_PORT", "3000")
	t.Setenv("PROPERTY_CACHE_PROPERTY_TTL", "45m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 45*time.Minute, cfg.Cache.PropertyTTL)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)

	key := "PROPERTY_RENTCAST_KEY"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv(key) }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Rentcast.Key)
}

func TestLoadDotEnvDoesNotOverrideEnv(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PROPERTY_REDIS_ADDR=dotenv:6379\n"), 0o600))
	t.Setenv("PROPERTY_REDIS_ADDR", "env:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env:6379", cfg.Redis.Addr)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the defaults Validate cares about.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Server.RateLimitPerMinute = 120
	cfg.Merger.Concurrency = 4
	cfg.Cache.MaxEntries = 1000
	cfg.Rentcast.CompCount = 10
	cfg.Snapshot.Sink = SinkNone
	cfg.Store.DatabaseURL = "data/property-engine.db"
	return cfg
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Merger.Concurrency = 0
	err := cfg.Validate("reconcile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merger.concurrency must be between 1 and 32")

	cfg.Merger.Concurrency = 33
	assert.Error(t, cfg.Validate("reconcile"))

	cfg.Merger.Concurrency = 32
	assert.NoError(t, cfg.Validate("reconcile"))
}

func TestValidateValuationCacheNeedsRedis(t *testing.T) {
	cfg := validDefaults()
	cfg.ValuationCache.Enabled = true

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.addr is required when valuation_cache.enabled")

	cfg.Redis.Addr = "localhost:6379"
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateSnapshotSinks(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("snapshot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot.sink must be set")

	cfg.Snapshot.Sink = SinkFile
	err = cfg.Validate("snapshot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot.path is required")

	cfg.Snapshot.Path = "snap.json"
	assert.NoError(t, cfg.Validate("snapshot"))

	cfg.Snapshot.Sink = SinkRedis
	err = cfg.Validate("snapshot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.addr is required for the redis sink")

	cfg.Snapshot.Sink = "s3"
	err = cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `snapshot.sink "s3"`)
}

func TestValidateMigrate(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("migrate"))

	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
