// Package memstore keeps traces in memory. Used by tests.
package memstore

import (
	"context"
	"sync"

	"github.com/discochess/dxmetrics/internal/tracestore"
)

// Compile-time check that Store implements tracestore.Store.
var _ tracestore.Store = (*Store)(nil)

// Store holds decompressed traces in memory.
type Store struct {
	mu     sync.RWMutex
	traces map[string][]byte
}

// New creates an empty store.
func New() *Store {
	return &Store{
		traces: make(map[string][]byte),
	}
}

// Put stores a copy of data under name.
func (s *Store) Put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	s.traces[name] = copied
}

// ReadTrace returns a copy of the named trace.
func (s *Store) ReadTrace(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.traces[name]
	if !ok {
		return nil, tracestore.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WriteTrace stores a copy of data. Traces are kept uncompressed.
func (s *Store) WriteTrace(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Put(name, data)
	return nil
}

// Close is a no-op for the memory store.
func (s *Store) Close() error {
	return nil
}
