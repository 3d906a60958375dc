package rowstore

import (
	"context"
	"sync"
)

type inMemoryStore struct {
	rows  map[string]*Entry
	mutex sync.Mutex
	seq   int64
	cfg   config
}

var _ Store = (*inMemoryStore)(nil)

// NewInMemory returns a Store that keeps its rows in process memory.
// Rows are lost when the process exits.
func NewInMemory(opts ...Option) Store {
	return &inMemoryStore{
		rows: make(map[string]*Entry),
		cfg:  applyOptions(opts),
	}
}

func (s *inMemoryStore) EnsureReady(_ context.Context) error {
	return nil
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (bool, Entry, error) {
	if err := ctx.Err(); err != nil {
		return false, Entry{}, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	row, ok := s.rows[key]
	if !ok {
		return false, Entry{}, nil
	}
	return true, *row, nil
}

func (s *inMemoryStore) Set(ctx context.Context, key string, value string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := s.cfg.now()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if row, ok := s.rows[key]; ok {
		row.Value = value
		row.ModifiedAt = now
		return row.ID, nil
	}
	s.seq++
	s.rows[key] = &Entry{
		ID:        s.seq,
		Key:       key,
		Value:     value,
		CreatedAt: now,
	}
	return s.seq, nil
}

func (s *inMemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mutex.Lock()
	_, ok := s.rows[key]
	if ok {
		delete(s.rows, key)
	}
	s.mutex.Unlock()
	return ok, nil
}

func (s *inMemoryStore) Close() error {
	return nil
}
