package rowstore

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// Store is the durable keyed row storage a cache controller delegates to.
type Store interface {
	// EnsureReady prepares the backing storage (for example creating the
	// table). It is idempotent and may be called repeatedly.
	EnsureReady(ctx context.Context) error
	// Get returns the row stored under key. A missing row is reported with
	// found=false and a nil error.
	Get(ctx context.Context, key string) (bool, Entry, error)
	// Set creates the row for key or overwrites its value, refreshing the
	// modification time. It returns the identifier the store assigned to the row.
	Set(ctx context.Context, key string, value string) (int64, error)
	// Delete removes the row for key, reporting whether one existed.
	Delete(ctx context.Context, key string) (bool, error)
	// Close releases any resources owned by the store.
	Close() error
}

// Entry is a single stored row.
type Entry struct {
	ID         int64
	Key        string
	Value      string
	CreatedAt  time.Time
	ModifiedAt time.Time // zero until the row is first overwritten
}

// ReferenceTime returns the time of the most recent write to the row.
func (e Entry) ReferenceTime() time.Time {
	if !e.ModifiedAt.IsZero() {
		return e.ModifiedAt
	}
	return e.CreatedAt
}

// DefaultQueryTimeout is the per-operation timeout for stores that perform
// I/O (SQLite, Redis).
const DefaultQueryTimeout = 5 * time.Second

// DefaultTable is the SQLite table used when WithTable is not given.
const DefaultTable = "dbcache"

// DefaultNamespace is the Redis key namespace used when WithNamespace is not given.
const DefaultNamespace = "dbcache"

var ErrInvalidTable = errors.New("rowstore: invalid table name")

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type config struct {
	now          func() time.Time
	queryTimeout time.Duration
	table        string
	namespace    string
}

// Option configures a Store implementation.
type Option func(*config)

func defaultConfig() config {
	return config{
		now:          time.Now,
		queryTimeout: DefaultQueryTimeout,
		table:        DefaultTable,
		namespace:    DefaultNamespace,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithClock sets the function used to timestamp writes. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed stores.
// Defaults to DefaultQueryTimeout (5 seconds).
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.queryTimeout = d
		}
	}
}

// WithTable sets the SQLite table name. The name may be schema qualified
// ("main.cache"). Applies to the SQLite backend only.
func WithTable(name string) Option {
	return func(c *config) { c.table = name }
}

// WithNamespace sets the prefix for every Redis key the store writes.
// Applies to the Redis backend only.
func WithNamespace(ns string) Option {
	return func(c *config) { c.namespace = ns }
}

// ValidateTable reports whether name can be used as a table identifier.
func ValidateTable(name string) error {
	if !tableNameRegex.MatchString(name) {
		return ErrInvalidTable
	}
	return nil
}

func queryCtx(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
