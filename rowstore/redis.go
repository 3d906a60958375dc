package rowstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// upsertScript creates or overwrites a row hash in one step.
// KEYS[1] is the row key, KEYS[2] the identifier sequence.
// ARGV[1] is the value, ARGV[2] the write time in unix nanoseconds.
var upsertScript = redis.NewScript(`
local id = redis.call('HGET', KEYS[1], 'id')
if id then
	redis.call('HSET', KEYS[1], 'v', ARGV[1], 'm', ARGV[2])
	return tonumber(id)
end
id = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'c', ARGV[2], 'id', id)
return id
`)

type redisStore struct {
	client *redis.Client
	cfg    config
}

var _ Store = (*redisStore)(nil)

// NewRedis returns a new Store backed by Redis. Each row is a hash with the
// fields "v" (value), "id", "c" (created) and "m" (modified).
// The caller owns the redis.Client lifecycle; Close is a no-op on the client.
func NewRedis(client *redis.Client, opts ...Option) Store {
	return &redisStore{
		client: client,
		cfg:    applyOptions(opts),
	}
}

func (s *redisStore) rowKey(key string) string {
	if s.cfg.namespace == "" {
		return "row:" + key
	}
	return s.cfg.namespace + ":row:" + key
}

func (s *redisStore) seqKey() string {
	if s.cfg.namespace == "" {
		return "seq"
	}
	return s.cfg.namespace + ":seq"
}

func (s *redisStore) EnsureReady(ctx context.Context) error {
	qctx, cancel := queryCtx(ctx, s.cfg.queryTimeout)
	defer cancel()
	if err := s.client.Ping(qctx).Err(); err != nil {
		return fmt.Errorf("rowstore: redis ping: %w", err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, key string) (bool, Entry, error) {
	qctx, cancel := queryCtx(ctx, s.cfg.queryTimeout)
	defer cancel()
	vals, err := s.client.HMGet(qctx, s.rowKey(key), "v", "id", "c", "m").Result()
	if err != nil {
		return false, Entry{}, fmt.Errorf("rowstore: get %q: %w", key, err)
	}
	if len(vals) != 4 || vals[0] == nil {
		return false, Entry{}, nil
	}
	entry := Entry{Key: key}
	entry.Value, _ = vals[0].(string)
	if entry.ID, err = parseInt(vals[1]); err != nil {
		return false, Entry{}, fmt.Errorf("rowstore: get %q: bad id: %w", key, err)
	}
	created, err := parseInt(vals[2])
	if err != nil {
		return false, Entry{}, fmt.Errorf("rowstore: get %q: bad created time: %w", key, err)
	}
	entry.CreatedAt = time.Unix(0, created).UTC()
	if vals[3] != nil {
		modified, err := parseInt(vals[3])
		if err != nil {
			return false, Entry{}, fmt.Errorf("rowstore: get %q: bad modified time: %w", key, err)
		}
		entry.ModifiedAt = time.Unix(0, modified).UTC()
	}
	return true, entry, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value string) (int64, error) {
	qctx, cancel := queryCtx(ctx, s.cfg.queryTimeout)
	defer cancel()
	now := s.cfg.now().UnixNano()
	id, err := upsertScript.Run(qctx, s.client, []string{s.rowKey(key), s.seqKey()}, value, now).Int64()
	if err != nil {
		return 0, fmt.Errorf("rowstore: set %q: %w", key, err)
	}
	return id, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) (bool, error) {
	qctx, cancel := queryCtx(ctx, s.cfg.queryTimeout)
	defer cancel()
	n, err := s.client.Del(qctx, s.rowKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("rowstore: delete %q: %w", key, err)
	}
	return n > 0, nil
}

// Close is a no-op; the caller owns the redis.Client lifecycle.
func (s *redisStore) Close() error {
	return nil
}

func parseInt(v any) (int64, error) {
	str, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected type %T", v)
	}
	return strconv.ParseInt(str, 10, 64)
}
