package store

import (
	"context"
	"sync"
)

// MemoryStore keeps snapshots in memory. Used by the memory backend
// and by tests; contents are lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[int64]*Snapshot
	nextID    int64
	latestID  int64
}

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[int64]*Snapshot),
		nextID:    1,
	}
}

// SaveSnapshot implements SnapshotWriter.
func (s *MemoryStore) SaveSnapshot(_ context.Context, snap *Snapshot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *snap
	stored.ID = s.nextID
	s.snapshots[stored.ID] = &stored
	s.latestID = stored.ID
	s.nextID++
	return stored.ID, nil
}

// GetSnapshot implements SnapshotReader.
func (s *MemoryStore) GetSnapshot(_ context.Context, id int64) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return nil, ErrNoSnapshot
	}
	copied := *snap
	return &copied, nil
}

// LatestSnapshot implements SnapshotReader.
func (s *MemoryStore) LatestSnapshot(_ context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latestID == 0 {
		return nil, ErrNoSnapshot
	}
	copied := *s.snapshots[s.latestID]
	return &copied, nil
}

// Close implements SnapshotStore.
func (s *MemoryStore) Close() error { return nil }
