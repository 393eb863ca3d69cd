package memory

import (
	"context"
	"sync"

	"resights/internal/audit"
)

// DefaultLimit is the ring size used when none is given.
const DefaultLimit = 1000

// InMemoryStore keeps the most recent events in a fixed-size ring.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
	next   int
	full   bool
}

func NewInMemoryStore(limit int) *InMemoryStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &InMemoryStore{events: make([]audit.Event, limit)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[s.next] = event
	s.next = (s.next + 1) % len(s.events)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

// ListRecent returns up to limit events, newest first. A non-positive limit
// returns everything held.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	size := s.next
	if s.full {
		size = len(s.events)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]audit.Event, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (s.next - 1 - i + len(s.events)) % len(s.events)
		out = append(out, s.events[idx])
	}
	return out, nil
}

// Clear drops all held events.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make([]audit.Event, len(s.events))
	s.next = 0
	s.full = false
}
