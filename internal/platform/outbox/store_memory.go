package outbox

import (
	"context"
	"sync"
	"time"

	id "claimverifier/pkg/domain"
)

// InMemoryStore is an ordered in-process outbox.
type InMemoryStore struct {
	mu     sync.Mutex
	events []Event
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) FetchUnpublished(_ context.Context, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.PublishedAt != nil {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []id.EventID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := make(map[id.EventID]struct{}, len(ids))
	for _, eventID := range ids {
		pending[eventID] = struct{}{}
	}
	for i := range s.events {
		if _, ok := pending[s.events[i].ID]; ok {
			published := at
			s.events[i].PublishedAt = &published
		}
	}
	return nil
}

// All returns a copy of every event, for tests and diagnostics.
func (s *InMemoryStore) All() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}
