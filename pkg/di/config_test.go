package di

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "querycache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Hour, cfg.Cache.DetailTTL)
	assert.Equal(t, 24*time.Hour, cfg.Cache.SearchTTL)
	assert.Equal(t, 256*1024, cfg.Cache.MaxPayloadBytes)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
store: redis
cache:
  namespace: kitchen
  search_ttl: 12h
  operation_timeout: 250ms
  known_filters: [Soup, Salad]
  track_keys: true
redis:
  addr: cache.internal:6379
  breaker:
    enabled: true
    min_requests: 20
    failure_threshold: 0.25
database:
  driver: postgres
  dsn: postgres://localhost/recipes?sslmode=disable
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "kitchen", cfg.Cache.Namespace)
	assert.Equal(t, 12*time.Hour, cfg.Cache.SearchTTL)
	assert.Equal(t, 10*time.Hour, cfg.Cache.DetailTTL, "unset keys keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Cache.OperationTimeout)
	assert.Equal(t, []string{"Soup", "Salad"}, cfg.Cache.KnownFilters)
	assert.True(t, cfg.Cache.TrackKeys)
	assert.Equal(t, "cache.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, uint32(20), cfg.Redis.Breaker.MinRequests)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "store: memory\ncache:\n  codec: json\n")
	t.Setenv(ConfigEnv, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Cache.Codec)
}

func TestLoad_NoPathReturnsDefaults(t *testing.T) {
	t.Setenv(ConfigEnv, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Store, cfg.Store)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown store",
			content: "store: memcached\n",
			wantErr: "Store: must be a valid value",
		},
		{
			name:    "unknown codec",
			content: "cache:\n  codec: gob\n",
			wantErr: "Codec: must be a valid value",
		},
		{
			name:    "unsupported driver",
			content: "database:\n  driver: oracle\n",
			wantErr: "Driver: must be a valid value",
		},
		{
			name:    "bad memory config",
			content: "memory:\n  capacity: 0\n",
			wantErr: "memory: config error in field Capacity",
		},
		{
			name:    "negative tracked key bound",
			content: "cache:\n  max_tracked_keys: -1\n",
			wantErr: "MaxTrackedKeys: must be no less than 0",
		},
		{
			name:    "redis checked only when selected",
			content: "store: redis\nredis:\n  addr: \"\"\n",
			wantErr: "redis: config error in field Addr",
		},
		{
			name:    "malformed yaml",
			content: "cache: [\n",
			wantErr: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_RedisIgnoredForMemoryStore(t *testing.T) {
	_, err := Load(writeConfig(t, "store: memory\nredis:\n  addr: \"\"\n"))
	assert.NoError(t, err)
}

func TestLoad_MemoryIgnoredForRedisStore(t *testing.T) {
	cfg, err := Load(writeConfig(t, "store: redis\nmemory:\n  capacity: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Zero(t, cfg.Memory.Capacity)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = NewLogger(LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}
