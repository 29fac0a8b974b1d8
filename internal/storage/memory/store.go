// Package memory implements every storefront repository in process memory.
// It backs the "memory" storage driver and service-level tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/contact"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promo"
	"github.com/xenking/storefront/internal/outbox"
)

// Store holds all entities behind a single lock. Transactions hold the lock
// for their whole duration, so they are serializable.
type Store struct {
	mu       sync.RWMutex
	products map[string]*product.Product
	promos   map[string]*promo.Code // by canonical code
	orders   map[string]*order.Order
	messages map[string]*contact.Message
	admins   map[string]*admin.Admin
	events   []*outbox.Event
	eventSeq int64
	now      func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		products: make(map[string]*product.Product),
		promos:   make(map[string]*promo.Code),
		orders:   make(map[string]*order.Order),
		messages: make(map[string]*contact.Message),
		admins:   make(map[string]*admin.Admin),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Products returns the catalog repository view.
func (s *Store) Products() *ProductRepository { return &ProductRepository{s: s} }

// Promos returns the promo code repository view.
func (s *Store) Promos() *PromoRepository { return &PromoRepository{s: s} }

// Orders returns the order repository view.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

// Messages returns the contact inbox repository view.
func (s *Store) Messages() *MessageRepository { return &MessageRepository{s: s} }

// Admins returns the admin account repository view.
func (s *Store) Admins() *AdminRepository { return &AdminRepository{s: s} }

// Outbox returns the pending event view.
func (s *Store) Outbox() *OutboxRepository { return &OutboxRepository{s: s} }

var _ order.TxManager = (*Store)(nil)

// Execute runs fn under the store lock and undoes its writes if it fails.
func (s *Store) Execute(ctx context.Context, fn func(ctx context.Context, uow order.UnitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	u := &unitOfWork{s: s}
	if err := fn(ctx, u); err != nil {
		for i := len(u.undo) - 1; i >= 0; i-- {
			u.undo[i]()
		}
		return err
	}
	return nil
}

type unitOfWork struct {
	s    *Store
	undo []func()
}

// Redeem applies the conditional increment. Caller holds s.mu.
func (u *unitOfWork) Redeem(_ context.Context, code string, now time.Time) (*promo.Code, error) {
	c, ok := u.s.promos[promo.Canonical(code)]
	if !ok || !c.Active || c.Expired(now) {
		return nil, promo.ErrInvalid
	}
	if c.Exhausted() {
		return nil, promo.ErrUsageLimit
	}
	c.UsedCount++
	u.undo = append(u.undo, func() { c.UsedCount-- })
	return clonePromo(c), nil
}

// Create inserts o and its placed event. Caller holds s.mu.
func (u *unitOfWork) Create(_ context.Context, o *order.Order) error {
	u.s.orders[o.ID] = cloneOrder(o)
	id := o.ID
	u.undo = append(u.undo, func() { delete(u.s.orders, id) })

	ev, err := outbox.NewEvent(o.ID, order.EventPlaced, order.NewPlacedEvent(o))
	if err != nil {
		return err
	}
	u.s.eventSeq++
	ev.ID = u.s.eventSeq
	u.s.events = append(u.s.events, ev)
	n := len(u.s.events) - 1
	u.undo = append(u.undo, func() { u.s.events = u.s.events[:n] })
	return nil
}

func cloneProduct(p *product.Product) *product.Product {
	cp := *p
	cp.Colors = append([]string(nil), p.Colors...)
	cp.Sizes = append([]string(nil), p.Sizes...)
	cp.Images = append([]string(nil), p.Images...)
	return &cp
}

func clonePromo(c *promo.Code) *promo.Code {
	cp := *c
	if c.MaxUses != nil {
		v := *c.MaxUses
		cp.MaxUses = &v
	}
	return &cp
}

func cloneOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	if o.PromoCode != nil {
		v := *o.PromoCode
		cp.PromoCode = &v
	}
	if o.Customer.Phone2 != nil {
		v := *o.Customer.Phone2
		cp.Customer.Phone2 = &v
	}
	return &cp
}

func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return nil
	}
	return items[start:min(start+limit, len(items))]
}
