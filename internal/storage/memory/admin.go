package memory

import (
	"context"
	"strings"
	"time"

	"github.com/xenking/storefront/internal/domain/admin"
)

// AdminRepository implements admin.Repository.
type AdminRepository struct {
	s *Store
}

var _ admin.Repository = (*AdminRepository)(nil)

func (r *AdminRepository) FindByLogin(_ context.Context, login string) (*admin.Admin, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.admins {
		if !a.Active {
			continue
		}
		if a.Username == login || strings.EqualFold(a.Email, login) {
			return cloneAdmin(a), nil
		}
	}
	return nil, admin.ErrNotFound
}

func (r *AdminRepository) GetByID(_ context.Context, id string) (*admin.Admin, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.admins[id]
	if !ok {
		return nil, admin.ErrNotFound
	}
	return cloneAdmin(a), nil
}

func (r *AdminRepository) Upsert(_ context.Context, a *admin.Admin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, existing := range r.s.admins {
		if existing.Username == a.Username {
			a.ID = id
			a.CreatedAt = existing.CreatedAt
			break
		}
	}
	r.s.admins[a.ID] = cloneAdmin(a)
	return nil
}

func (r *AdminRepository) TouchLogin(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.admins[id]
	if !ok {
		return admin.ErrNotFound
	}
	a.LastLogin = &at
	return nil
}

func cloneAdmin(a *admin.Admin) *admin.Admin {
	cp := *a
	if a.LastLogin != nil {
		v := *a.LastLogin
		cp.LastLogin = &v
	}
	return &cp
}
