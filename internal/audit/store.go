package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"datamod/pkg/platform/sentinel"
)

// Store persists run audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
	Get(ctx context.Context, runID uuid.UUID) (Event, error)
}

// InMemoryStore keeps events in process. Used by tests and the console tool.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListRecent returns up to limit events, most recently finished first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinishedAt.After(out[j].FinishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) Get(_ context.Context, runID uuid.UUID) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, event := range s.events {
		if event.RunID == runID {
			return event, nil
		}
	}
	return Event{}, fmt.Errorf("modification run %s: %w", runID, sentinel.ErrNotFound)
}
