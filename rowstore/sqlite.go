package rowstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// busyTimeoutMillis is how long a connection waits for a competing writer.
const busyTimeoutMillis = 5000

type sqliteStore struct {
	db      *sql.DB
	ownsDB  bool
	wal     bool
	cfg     config
	once    sync.Once
	queries sqliteQueries
}

type sqliteQueries struct {
	create string
	get    string
	upsert string
	delete string
}

var _ Store = (*sqliteStore)(nil)

func newSQLiteQueries(table string) sqliteQueries {
	return sqliteQueries{
		create: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL UNIQUE,
		value BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		modified_at INTEGER NULL
	)`, table),
		get: fmt.Sprintf(`SELECT id, value, created_at, modified_at FROM %s WHERE key = ?`, table),
		upsert: fmt.Sprintf(`INSERT INTO %s (key, value, created_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, modified_at = excluded.created_at
		RETURNING id`, table),
		delete: fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, table),
	}
}

// NewSQLite returns a new Store backed by SQLite.
// If dbPath is empty or ":memory:", an in-memory database is used.
// The table is not created until EnsureReady is called.
func NewSQLite(dbPath string, opts ...Option) (Store, error) {
	cfg := applyOptions(opts)
	if err := ValidateTable(cfg.table); err != nil {
		return nil, err
	}
	if dbPath == "" {
		dbPath = ":memory:"
	}
	memory := dbPath == ":memory:"
	dsn := dbPath
	if !memory {
		// The pragma runs on every pooled connection, so concurrent writers
		// wait for the lock instead of failing with SQLITE_BUSY.
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(" + strconv.Itoa(busyTimeoutMillis) + ")"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("rowstore: open sqlite %q: %w", dbPath, err)
	}
	if memory {
		// Each connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}
	return &sqliteStore{
		db:      db,
		ownsDB:  true,
		wal:     !memory,
		cfg:     cfg,
		queries: newSQLiteQueries(cfg.table),
	}, nil
}

// NewSQLiteDB returns a new Store using an existing SQLite connection pool.
// The caller owns db; Close does not close it.
func NewSQLiteDB(db *sql.DB, opts ...Option) (Store, error) {
	cfg := applyOptions(opts)
	if err := ValidateTable(cfg.table); err != nil {
		return nil, err
	}
	return &sqliteStore{
		db:      db,
		cfg:     cfg,
		queries: newSQLiteQueries(cfg.table),
	}, nil
}

func (s *sqliteStore) EnsureReady(ctx context.Context) error {
	qctx, cancel := queryCtx(ctx, s.cfg.queryTimeout)
	defer cancel()
	if s.wal {
		// WAL for better concurrent read performance.
		if _, err := s.db.ExecContext(qctx, "PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("rowstore: enable wal: %w", err)
		}
	}
	if _, err := s.db.ExecContext(qctx, s.queries.create); err != nil {
		return fmt.Errorf("rowstore: create table %s: %w", s.cfg.table, err)
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, key string) (bool, Entry, error) {
	qctx, cancel := queryCtx(ctx, s.cfg.queryTimeout)
	defer cancel()
	var (
		id         int64
		data       []byte
		createdAt  int64
		modifiedAt sql.NullInt64
	)
	err := s.db.QueryRowContext(qctx, s.queries.get, key).Scan(&id, &data, &createdAt, &modifiedAt)
	if err == sql.ErrNoRows {
		return false, Entry{}, nil
	}
	if err != nil {
		return false, Entry{}, fmt.Errorf("rowstore: get %q: %w", key, err)
	}
	entry := Entry{
		ID:        id,
		Key:       key,
		Value:     string(data),
		CreatedAt: time.Unix(0, createdAt).UTC(),
	}
	if modifiedAt.Valid {
		entry.ModifiedAt = time.Unix(0, modifiedAt.Int64).UTC()
	}
	return true, entry, nil
}

func (s *sqliteStore) Set(ctx context.Context, key string, value string) (int64, error) {
	qctx, cancel := queryCtx(ctx, s.cfg.queryTimeout)
	defer cancel()
	var id int64
	now := s.cfg.now().UnixNano()
	if err := s.db.QueryRowContext(qctx, s.queries.upsert, key, []byte(value), now).Scan(&id); err != nil {
		return 0, fmt.Errorf("rowstore: set %q: %w", key, err)
	}
	return id, nil
}

func (s *sqliteStore) Delete(ctx context.Context, key string) (bool, error) {
	qctx, cancel := queryCtx(ctx, s.cfg.queryTimeout)
	defer cancel()
	result, err := s.db.ExecContext(qctx, s.queries.delete, key)
	if err != nil {
		return false, fmt.Errorf("rowstore: delete %q: %w", key, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *sqliteStore) Close() error {
	var dbErr error
	s.once.Do(func() {
		if s.ownsDB {
			dbErr = s.db.Close()
		}
	})
	return dbErr
}
