package consumercache

import (
	"context"
	"sync/atomic"
)

// MemoryStore is the default single-instance Store backend: an
// atomic.Pointer swap, no serialization.
type MemoryStore struct {
	val atomic.Pointer[Aggregate]
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Get implements Store. Returns (nil, nil) if nothing has been cached yet.
func (m *MemoryStore) Get(_ context.Context) (*Aggregate, error) {
	return m.val.Load(), nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, agg *Aggregate) error {
	m.val.Store(agg)
	return nil
}
