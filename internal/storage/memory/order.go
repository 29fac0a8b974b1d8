package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/xenking/storefront/internal/domain/order"
)

// OrderRepository implements order.Repository. Orders are created through
// Store.Execute.
type OrderRepository struct {
	s *Store
}

var _ order.Repository = (*OrderRepository)(nil)

func (r *OrderRepository) GetByID(_ context.Context, id string) (*order.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *OrderRepository) List(_ context.Context, f order.Filter) ([]order.Order, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]order.Order, 0, len(r.s.orders))
	for _, o := range r.s.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		matched = append(matched, *cloneOrder(o))
	}
	slices.SortFunc(matched, func(a, b order.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return paginate(matched, f.Page, f.Limit), len(matched), nil
}

func (r *OrderRepository) UpdateStatus(_ context.Context, id string, status order.Status) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = r.s.now()
	return cloneOrder(o), nil
}
