package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "dbcache.db", cfg.SQLitePath)
	assert.Equal(t, "dbcache", cfg.SQLiteTable)
	assert.Equal(t, "json", cfg.Codec)
	assert.Equal(t, "", cfg.KeyPrefix)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DBCACHE_STORE", "redis")
	t.Setenv("DBCACHE_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("DBCACHE_KEY_PREFIX", "user42:")
	t.Setenv("DBCACHE_CODEC", "msgpack")
	t.Setenv("DBCACHE_QUERY_TIMEOUT", "1d")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "redis://cache:6379/2", cfg.RedisURL)
	assert.Equal(t, "user42:", cfg.KeyPrefix)
	assert.Equal(t, "msgpack", cfg.Codec)
	assert.Equal(t, 24*time.Hour, cfg.QueryTimeout)
}

func TestLoadLeavesValidationToCaller(t *testing.T) {
	t.Setenv("DBCACHE_STORE", "postgres")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Error(t, cfg.Validate())
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("DBCACHE_QUERY_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidate(t *testing.T) {
	valid := Config{Store: StoreMemory, Codec: "yaml", LogFormat: "json", QueryTimeout: time.Second}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.Store = "postgres"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Codec = "xml"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.LogFormat = "text"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.QueryTimeout = 0
	assert.Error(t, bad.Validate())

	bad = valid
	bad.OTLPURL = "localhost:4318"
	assert.Error(t, bad.Validate())

	ok := valid
	ok.OTLPURL = "https://otel.example.com"
	assert.NoError(t, ok.Validate())
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("1w2d")
	require.NoError(t, err)
	assert.Equal(t, 9*24*time.Hour, d)

	d, err = ParseDuration(" 90s ")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseDuration("later")
	assert.Error(t, err)
}
