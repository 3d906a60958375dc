// Package config loads the dbcache command line configuration from the
// environment.
package config

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/xhit/go-str2duration/v2"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config is the dbcache command line configuration. Every field can be set
// from the environment and overridden by a flag.
type Config struct {
	Store          string        `env:"DBCACHE_STORE" envDefault:"sqlite"`
	SQLitePath     string        `env:"DBCACHE_SQLITE_PATH" envDefault:"dbcache.db"`
	SQLiteTable    string        `env:"DBCACHE_SQLITE_TABLE" envDefault:"dbcache"`
	RedisURL       string        `env:"DBCACHE_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisNamespace string        `env:"DBCACHE_REDIS_NAMESPACE" envDefault:"dbcache"`
	KeyPrefix      string        `env:"DBCACHE_KEY_PREFIX"`
	Codec          string        `env:"DBCACHE_CODEC" envDefault:"json"`
	LogLevel       string        `env:"DBCACHE_LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"DBCACHE_LOG_FORMAT" envDefault:"console"`
	QueryTimeout   time.Duration `env:"DBCACHE_QUERY_TIMEOUT" envDefault:"5s"`
	OTLPURL        string        `env:"DBCACHE_OTLP_URL"`
	OTLPToken      string        `env:"DBCACHE_OTLP_TOKEN"`
}

// ParseDuration accepts Go durations plus day and week units ("1d12h", "2w").
func ParseDuration(s string) (time.Duration, error) {
	d, err := str2duration.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// Load parses the configuration from the environment. It does not validate
// the result, since flags may still override it; call Validate once they have
// been applied.
func Load() (Config, error) {
	var cfg Config
	opts := env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): func(v string) (interface{}, error) {
				return ParseDuration(v)
			},
		},
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks that the enumerated settings hold known values.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("config: unknown store %q (want memory, sqlite or redis)", c.Store)
	}
	switch strings.ToLower(c.Codec) {
	case "json", "msgpack", "yaml", "yml":
	default:
		return fmt.Errorf("config: unknown codec %q (want json, msgpack or yaml)", c.Codec)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown log format %q (want console or json)", c.LogFormat)
	}
	if c.OTLPURL != "" {
		u, err := url.Parse(c.OTLPURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config: invalid OTLP url %q (want http or https)", c.OTLPURL)
		}
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("config: query timeout must be positive, got %s", c.QueryTimeout)
	}
	return nil
}
