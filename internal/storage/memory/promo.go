package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/xenking/storefront/internal/domain/promo"
)

// PromoRepository implements promo.Repository.
type PromoRepository struct {
	s *Store
}

var _ promo.Repository = (*PromoRepository)(nil)

func (r *PromoRepository) FindActive(_ context.Context, code string, now time.Time) (*promo.Code, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.promos[promo.Canonical(code)]
	if !ok || !c.Active || c.Expired(now) {
		return nil, promo.ErrInvalid
	}
	return clonePromo(c), nil
}

func (r *PromoRepository) GetByID(_ context.Context, id string) (*promo.Code, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c := r.byID(id)
	if c == nil {
		return nil, promo.ErrNotFound
	}
	return clonePromo(c), nil
}

func (r *PromoRepository) List(_ context.Context) ([]promo.Code, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]promo.Code, 0, len(r.s.promos))
	for _, c := range r.s.promos {
		out = append(out, *clonePromo(c))
	}
	slices.SortFunc(out, func(a, b promo.Code) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})
	return out, nil
}

func (r *PromoRepository) Create(_ context.Context, c *promo.Code) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := promo.Canonical(c.Code)
	if _, ok := r.s.promos[key]; ok {
		return promo.ErrDuplicate
	}
	cp := clonePromo(c)
	cp.Code = key
	r.s.promos[key] = cp
	return nil
}

func (r *PromoRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := r.byID(id)
	if c == nil {
		return promo.ErrNotFound
	}
	delete(r.s.promos, c.Code)
	return nil
}

func (r *PromoRepository) SetActive(_ context.Context, id string, active bool) (*promo.Code, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := r.byID(id)
	if c == nil {
		return nil, promo.ErrNotFound
	}
	c.Active = active
	c.UpdatedAt = r.s.now()
	return clonePromo(c), nil
}

// byID scans the code index. Caller holds s.mu.
func (r *PromoRepository) byID(id string) *promo.Code {
	for _, c := range r.s.promos {
		if c.ID == id {
			return c
		}
	}
	return nil
}
