package rowstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T, opts ...Option) Store {
		_, client := newTestRedis(t)
		s := NewRedis(client, opts...)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestRedisNamespaceKeys(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedis(client, WithNamespace("app"))
	require.NoError(t, s.EnsureReady(ctx))

	_, err := s.Set(ctx, "key", "value")
	require.NoError(t, err)

	assert.True(t, mr.Exists("app:row:key"))
	assert.Equal(t, "value", mr.HGet("app:row:key", "v"))
	seq, err := mr.Get("app:seq")
	require.NoError(t, err)
	assert.Equal(t, "1", seq)
}

func TestRedisEmptyNamespace(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedis(client, WithNamespace(""))
	_, err := s.Set(ctx, "key", "value")
	require.NoError(t, err)
	assert.True(t, mr.Exists("row:key"))
}

func TestRedisNamespacesIsolated(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	a := NewRedis(client, WithNamespace("a"))
	b := NewRedis(client, WithNamespace("b"))

	_, err := a.Set(ctx, "key", "value")
	require.NoError(t, err)
	found, _, err := b.Get(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestRedisUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedis(client)
	mr.Close()

	assert.Error(t, s.EnsureReady(ctx))
	_, _, err := s.Get(ctx, "key")
	assert.Error(t, err)
	_, err = s.Set(ctx, "key", "value")
	assert.Error(t, err)
}

func TestRedisCorruptRow(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedis(client, WithNamespace("ns"))
	mr.HSet("ns:row:key", "v", "value", "id", "x", "c", "1")

	_, _, err := s.Get(ctx, "key")
	assert.Error(t, err)
}
