package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the newest entries in a fixed-size ring. When the
// ring is full the oldest entry is overwritten.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []*Entry
	next     int
	size     int
	capacity int
}

// NewMemoryStore creates a ring store holding up to capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryStore{
		entries:  make([]*Entry, capacity),
		capacity: capacity,
	}
}

// Append stores one entry, overwriting the oldest when full.
func (s *MemoryStore) Append(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[s.next] = e
	s.next = (s.next + 1) % s.capacity
	if s.size < s.capacity {
		s.size++
	}
	return nil
}

// Search returns matching entries, newest first.
func (s *MemoryStore) Search(_ context.Context, q Query) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for i := 0; i < s.size; i++ {
		idx := (s.next - 1 - i + s.capacity*2) % s.capacity
		e := s.entries[idx]
		if e == nil || !q.matches(e) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// PruneBefore removes entries older than the cutoff.
func (s *MemoryStore) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]*Entry, 0, s.size)
	for i := 0; i < s.size; i++ {
		idx := (s.next - s.size + i + s.capacity*2) % s.capacity
		e := s.entries[idx]
		if e != nil && !e.OccurredAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}

	removed := int64(s.size - len(kept))
	s.entries = make([]*Entry, s.capacity)
	copy(s.entries, kept)
	s.size = len(kept)
	s.next = s.size % s.capacity
	return removed, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(s.size), nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
