package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentuity/go-dbcache/cache"
	"github.com/agentuity/go-dbcache/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store:        config.StoreSQLite,
		SQLitePath:   filepath.Join(t.TempDir(), "cache.db"),
		SQLiteTable:  "dbcache",
		Codec:        "json",
		LogLevel:     "error",
		LogFormat:    "console",
		QueryTimeout: 5 * time.Second,
	}
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	local := *cfg
	root := newRootCommand(&local)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestGetCommand(t *testing.T) {
	cfg := testConfig(t)

	out, errOut, err := run(t, cfg, "get", "greeting", "--max-age", "1h", "--", "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
	assert.Contains(t, errOut, "source: live")

	out, errOut, err = run(t, cfg, "get", "greeting", "--max-age", "1h", "--", "echo", "changed")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
	assert.Contains(t, errOut, "source: cache")

	out, _, err = run(t, cfg, "query", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestGetCommandFailingAccessor(t *testing.T) {
	cfg := testConfig(t)
	_, errOut, err := run(t, cfg, "get", "key", "--max-age", "1h", "--", "false")
	require.Error(t, err)
	assert.Contains(t, errOut, "Error getting key")

	_, _, err = run(t, cfg, "query", "key")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestGetCommandRequiresPolicy(t *testing.T) {
	cfg := testConfig(t)
	_, _, err := run(t, cfg, "get", "key", "--", "echo", "x")
	assert.Error(t, err)

	_, _, err = run(t, cfg, "get", "key", "--max-age", "1h", "--expires-at", "2024-01-01T00:00:00Z", "--", "echo", "x")
	assert.Error(t, err)
}

func TestQueryCommandNotFound(t *testing.T) {
	cfg := testConfig(t)
	_, errOut, err := run(t, cfg, "--prefix", "p:", "query", "missing")
	require.Error(t, err)
	assert.Equal(t, "missing: not found\n", errOut)
}

func TestWarmAndDeleteCommands(t *testing.T) {
	cfg := testConfig(t)
	file := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(file, []byte(`[
		{"name": "b", "value": 2},
		{"name": "a", "value": 1}
	]`), 0o600))

	out, _, err := run(t, cfg, "--codec", "msgpack", "warm", file, "--key", "name")
	require.NoError(t, err)
	assert.Equal(t, "a\t2\nb\t1\n", out)

	out, _, err = run(t, cfg, "--codec", "msgpack", "query", "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"a","value":1}`, out)

	out, _, err = run(t, cfg, "delete", "a")
	require.NoError(t, err)
	assert.Equal(t, "deleted a\n", out)

	_, errOut, err := run(t, cfg, "delete", "a")
	require.NoError(t, err)
	assert.Equal(t, "a: not found\n", errOut)
}

func TestWarmCommandMissingKey(t *testing.T) {
	cfg := testConfig(t)
	file := filepath.Join(t.TempDir(), "items.yaml")
	require.NoError(t, os.WriteFile(file, []byte("- name: a\n- value: 1\n"), 0o600))

	_, _, err := run(t, cfg, "warm", file, "--key", "name")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `item 1 has no "name" field`)
}

func TestInvalidStoreFlag(t *testing.T) {
	cfg := testConfig(t)
	_, _, err := run(t, cfg, "--store", "postgres", "query", "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store")
}

func TestStoreFlagOverridesInvalidEnv(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = "postgres"
	_, errOut, err := run(t, cfg, "--store", "memory", "query", "key")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	assert.Equal(t, "key: not found\n", errOut)
}

func TestQueryTimeoutFlag(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = config.StoreMemory

	_, _, err := run(t, cfg, "--query-timeout", "1d", "query", "key")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	_, _, err = run(t, cfg, "--query-timeout", "soon", "query", "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --query-timeout")

	_, _, err = run(t, cfg, "--query-timeout", "0s", "query", "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query timeout must be positive")
}

func TestInvalidOTLPFlag(t *testing.T) {
	cfg := testConfig(t)
	_, _, err := run(t, cfg, "--otlp-url", "collector:4318", "query", "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid OTLP url")
}

func TestParsePolicy(t *testing.T) {
	p, err := parsePolicy("1d", "")
	require.NoError(t, err)
	assert.Equal(t, "max-age 24h0m0s", p.String())

	p, err = parsePolicy("", "2024-03-01T12:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "expires 2024-03-01T12:00:00Z", p.String())

	_, err = parsePolicy("", "yesterday")
	assert.Error(t, err)
	_, err = parsePolicy("", "")
	assert.Error(t, err)
}
