package memory

import (
	"context"
	"time"

	"github.com/xenking/storefront/internal/outbox"
)

// OutboxRepository implements outbox.Store over events recorded by
// Store.Execute.
type OutboxRepository struct {
	s *Store
}

var _ outbox.Store = (*OutboxRepository)(nil)

func (r *OutboxRepository) FetchPending(_ context.Context, limit int) ([]*outbox.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := min(limit, len(r.s.events))
	out := make([]*outbox.Event, n)
	for i := range n {
		cp := *r.s.events[i]
		out[i] = &cp
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(_ context.Context, id int64, _ time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i, e := range r.s.events {
		if e.ID == id {
			r.s.events = append(r.s.events[:i], r.s.events[i+1:]...)
			return nil
		}
	}
	return nil
}

// Pending returns the number of unpublished events.
func (r *OutboxRepository) Pending() int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.events)
}
