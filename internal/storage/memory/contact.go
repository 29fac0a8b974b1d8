package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/xenking/storefront/internal/domain/contact"
)

// MessageRepository implements contact.Repository.
type MessageRepository struct {
	s *Store
}

var _ contact.Repository = (*MessageRepository)(nil)

func (r *MessageRepository) Create(_ context.Context, m *contact.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *m
	r.s.messages[m.ID] = &cp
	return nil
}

func (r *MessageRepository) List(_ context.Context, f contact.Filter) ([]contact.Message, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]contact.Message, 0, len(r.s.messages))
	for _, m := range r.s.messages {
		if f.Read != nil && m.Read != *f.Read {
			continue
		}
		if f.Subject != "" && m.Subject != f.Subject {
			continue
		}
		matched = append(matched, *m)
	}
	slices.SortFunc(matched, func(a, b contact.Message) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return paginate(matched, f.Page, f.Limit), len(matched), nil
}

func (r *MessageRepository) CountUnread(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, m := range r.s.messages {
		if !m.Read {
			n++
		}
	}
	return n, nil
}

func (r *MessageRepository) MarkRead(_ context.Context, id string) (*contact.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok {
		return nil, contact.ErrNotFound
	}
	m.Read = true
	cp := *m
	return &cp, nil
}

func (r *MessageRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.messages[id]; !ok {
		return contact.ErrNotFound
	}
	delete(r.s.messages, id)
	return nil
}
