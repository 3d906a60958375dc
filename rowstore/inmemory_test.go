package rowstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T, opts ...Option) Store {
		s := NewInMemory(opts...)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestInMemoryCancelledContext(t *testing.T) {
	s := NewInMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.Get(ctx, "key")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Set(ctx, "key", "value")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Delete(ctx, "key")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInMemoryConcurrentSet(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Set(ctx, fmt.Sprintf("key-%d", i%10), "value")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	mem := s.(*inMemoryStore)
	mem.mutex.Lock()
	assert.Len(t, mem.rows, 10)
	assert.Equal(t, int64(10), mem.seq)
	mem.mutex.Unlock()
}
