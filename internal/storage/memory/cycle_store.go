// Package memory keeps cycle records and archived blobs in process memory,
// for development and tests.
package memory

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/JakeFAU/harpoon/internal/fragment"
	"github.com/JakeFAU/harpoon/internal/storage"
)

// DefaultCacheSize bounds the records kept when no size is given.
const DefaultCacheSize = 1024

// CycleStore holds the most recent cycle records, evicting the least
// recently used once full.
type CycleStore struct {
	cache *lru.Cache[string, fragment.CycleRecord]
}

// NewCycleStore constructs a CycleStore holding at most size records.
func NewCycleStore(size int) (*CycleStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, fragment.CycleRecord](size)
	if err != nil {
		return nil, fmt.Errorf("create cycle cache: %w", err)
	}
	return &CycleStore{cache: cache}, nil
}

// SaveCycle stores record under its ID, replacing any earlier record.
func (s *CycleStore) SaveCycle(_ context.Context, record fragment.CycleRecord) error {
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	s.cache.Add(record.ID, record)
	return nil
}

// GetCycle fetches a record by ID.
func (s *CycleStore) GetCycle(_ context.Context, id string) (fragment.CycleRecord, error) {
	record, ok := s.cache.Get(id)
	if !ok {
		return fragment.CycleRecord{}, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return record, nil
}

// Len reports how many records are held.
func (s *CycleStore) Len() int {
	return s.cache.Len()
}
