package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentuity/go-dbcache/cache"
	"github.com/agentuity/go-dbcache/config"
	"github.com/agentuity/go-dbcache/logger"
	"github.com/agentuity/go-dbcache/rowstore"
	"github.com/agentuity/go-dbcache/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newRootCommand(&cfg).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	var queryTimeout string
	root := &cobra.Command{
		Use:           "dbcache",
		Short:         "Read-through cache backed by SQLite or Redis",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			d, err := config.ParseDuration(queryTimeout)
			if err != nil {
				return fmt.Errorf("invalid --query-timeout: %w", err)
			}
			cfg.QueryTimeout = d
			return cfg.Validate()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&cfg.Store, "store", cfg.Store, "row store backend: memory, sqlite or redis")
	flags.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database file")
	flags.StringVar(&cfg.SQLiteTable, "sqlite-table", cfg.SQLiteTable, "SQLite table holding cache rows")
	flags.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis connection URL")
	flags.StringVar(&cfg.RedisNamespace, "redis-namespace", cfg.RedisNamespace, "prefix for every Redis key")
	flags.StringVar(&cfg.KeyPrefix, "prefix", cfg.KeyPrefix, "string prepended to every cache key (no separator is added)")
	flags.StringVar(&cfg.Codec, "codec", cfg.Codec, "value encoding: json, msgpack or yaml")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: trace, debug, info, warn, error")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: console or json")
	flags.StringVar(&queryTimeout, "query-timeout", cfg.QueryTimeout.String(), "per-operation store timeout (e.g. 5s, 2m, 1d)")
	flags.StringVar(&cfg.OTLPURL, "otlp-url", cfg.OTLPURL, "OTLP collector URL; spans are exported when set")
	flags.StringVar(&cfg.OTLPToken, "otlp-token", cfg.OTLPToken, "bearer token for the OTLP collector")

	root.AddCommand(
		newGetCommand(cfg),
		newQueryCommand(cfg),
		newWarmCommand(cfg),
		newDeleteCommand(cfg),
	)
	return root
}

func newLogger(cmd *cobra.Command, cfg *config.Config) logger.Logger {
	level, ok := logger.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logger.LevelInfo
	}
	if cfg.LogFormat == "json" {
		return logger.NewJSONLoggerWithWriter(cmd.ErrOrStderr(), level)
	}
	return logger.NewConsoleLoggerWithWriter(cmd.ErrOrStderr(), level)
}

func openStore(cfg *config.Config) (rowstore.Store, func(), error) {
	timeout := rowstore.WithQueryTimeout(cfg.QueryTimeout)
	switch cfg.Store {
	case config.StoreMemory:
		s := rowstore.NewInMemory()
		return s, func() { s.Close() }, nil
	case config.StoreSQLite:
		s, err := rowstore.NewSQLite(cfg.SQLitePath, rowstore.WithTable(cfg.SQLiteTable), timeout)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("error parsing Redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		s := rowstore.NewRedis(client, rowstore.WithNamespace(cfg.RedisNamespace), timeout)
		return s, func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// openController builds a controller from the configuration. The returned
// function flushes exported spans and releases the store.
func openController(cmd *cobra.Command, cfg *config.Config) (*cache.Controller, func(), error) {
	codec, err := cache.CodecByName(cfg.Codec)
	if err != nil {
		return nil, nil, err
	}
	store, closer, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.OTLPURL != "" {
		shutdown, err := telemetry.New(cmd.Context(), cfg.OTLPURL, cfg.OTLPToken, "dbcache")
		if err != nil {
			closer()
			return nil, nil, err
		}
		closeStore := closer
		closer = func() {
			shutdown()
			closeStore()
		}
	}
	log := logger.WithKV(newLogger(cmd, cfg), "store", cfg.Store)
	c := cache.New(store,
		cache.WithKeyPrefix(cfg.KeyPrefix),
		cache.WithCodec(codec),
		cache.WithLogger(log),
	)
	return c, closer, nil
}
