// Package memory keeps audit events in process. It backs tests and the
// default server wiring where no audit sink is configured.
package memory

import (
	"context"
	"sync"

	audit "docdesk/pkg/platform/audit"
)

// InMemoryStore is an append-only event log indexed by subject. Reads return copies.
type InMemoryStore struct {
	mu        sync.RWMutex
	log       []audit.Event
	bySubject map[string][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{bySubject: make(map[string][]int)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := len(s.log)
	s.log = append(s.log, event)
	if event.Subject != "" {
		s.bySubject[event.Subject] = append(s.bySubject[event.Subject], pos)
	}
	return nil
}

// ListBySubject returns the trail of one document or application, oldest first.
func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pick(s.bySubject[subject]), nil
}

func (s *InMemoryStore) pick(positions []int) []audit.Event {
	out := make([]audit.Event, 0, len(positions))
	for _, pos := range positions {
		out = append(out, s.log[pos])
	}
	return out
}
