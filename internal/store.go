package internal

import (
	"context"
	"sort"
	"sync"
)

// MemStore is the in-memory RecordStore. It backs worktree views by default;
// the badger adapter provides the durable variant.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*MemoryRecord
}

var _ RecordStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]*MemoryRecord)}
}

func (s *MemStore) Get(ctx context.Context, id string) (*MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemStore) Put(ctx context.Context, rec *MemoryRecord) error {
	if !ValidRecordID(rec.ID) {
		return ErrInvalidRecordID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *MemStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

func (s *MemStore) Query(ctx context.Context, filter RecordFilter) ([]*MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*MemoryRecord
	for _, rec := range s.records {
		if filter.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len reports the number of stored records.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
