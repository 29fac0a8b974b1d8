package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/contact"
	"github.com/xenking/storefront/internal/domain/fault"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promo"
)

func seed(t *testing.T, s *Store, maxUses *int) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Products().Create(ctx, &product.Product{
		ID:        "p1",
		Name:      "Classic Hoodie",
		Price:     decimal.RequireFromString("850.00"),
		Category:  product.CategoryHoodies,
		Colors:    []string{"Black"},
		Sizes:     []string{"M"},
		Images:    []string{"/img/hoodie.jpg"},
		CreatedAt: now,
		UpdatedAt: now,
	}))
	require.NoError(t, s.Promos().Create(ctx, &promo.Code{
		ID:        "c1",
		Code:      "once",
		Percent:   10,
		ExpiresAt: now.Add(24 * time.Hour),
		MaxUses:   maxUses,
		Active:    true,
		CreatedAt: now,
	}))
}

func newOrderService(t *testing.T, s *Store) *order.Service {
	t.Helper()
	svc, err := order.NewService(
		s.Products(),
		promo.NewService(s.Promos(), time.Second),
		s.Orders(),
		s,
		order.Config{StoreTimeout: time.Second, DefaultCity: "Cairo", DefaultGovernorate: "Cairo"},
	)
	require.NoError(t, err)
	return svc
}

func placeRequest(code string) order.PlaceRequest {
	return order.PlaceRequest{
		ProductID:    "p1",
		CustomerName: "Jane Doe",
		Address:      "1 Nile St",
		Phone1:       "01000000000",
		Color:        "Black",
		Size:         "M",
		Quantity:     2,
		PromoCode:    code,
	}
}

func TestStore_ConcurrentRedemption(t *testing.T) {
	s := New()
	one := 1
	seed(t, s, &one)
	svc := newOrderService(t, s)

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(context.Background(), placeRequest("ONCE"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case fault.KindOf(err) == fault.Conflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, conflicts)

	c, err := s.Promos().GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.UsedCount)

	_, total, err := s.Orders().List(context.Background(), order.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, s.Outbox().Pending())
}

func TestStore_PlaceOrderRecordsEvent(t *testing.T) {
	s := New()
	seed(t, s, nil)
	svc := newOrderService(t, s)

	placed, err := svc.PlaceOrder(context.Background(), placeRequest("once"))
	require.NoError(t, err)
	assert.True(t, placed.Summary.Total.Equal(decimal.RequireFromString("1530")))

	events, err := s.Outbox().FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, placed.Order.ID, events[0].AggregateID)
	assert.Equal(t, order.EventPlaced, events[0].Type)

	require.NoError(t, s.Outbox().MarkPublished(context.Background(), events[0].ID, time.Now()))
	assert.Zero(t, s.Outbox().Pending())
}

func TestStore_ExecuteRollsBack(t *testing.T) {
	s := New()
	seed(t, s, nil)

	boom := errors.New("boom")
	err := s.Execute(context.Background(), func(ctx context.Context, uow order.UnitOfWork) error {
		_, err := uow.Redeem(ctx, "ONCE", time.Now())
		require.NoError(t, err)
		require.NoError(t, uow.Create(ctx, &order.Order{ID: "o1", Status: order.StatusPending}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	c, err := s.Promos().GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Zero(t, c.UsedCount)

	_, err = s.Orders().GetByID(context.Background(), "o1")
	require.ErrorIs(t, err, order.ErrNotFound)
	assert.Zero(t, s.Outbox().Pending())
}

func TestUnitOfWork_Redeem(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name    string
		code    promo.Code
		wantErr error
	}{
		{
			name: "ok",
			code: promo.Code{ID: "c", Code: "X", Active: true, ExpiresAt: now.Add(time.Hour)},
		},
		{
			name:    "inactive",
			code:    promo.Code{ID: "c", Code: "X", ExpiresAt: now.Add(time.Hour)},
			wantErr: promo.ErrInvalid,
		},
		{
			name:    "expired",
			code:    promo.Code{ID: "c", Code: "X", Active: true, ExpiresAt: now},
			wantErr: promo.ErrInvalid,
		},
		{
			name:    "exhausted",
			code:    promo.Code{ID: "c", Code: "X", Active: true, ExpiresAt: now.Add(time.Hour), MaxUses: ptr(2), UsedCount: 2},
			wantErr: promo.ErrUsageLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			require.NoError(t, s.Promos().Create(context.Background(), &tt.code))

			err := s.Execute(context.Background(), func(ctx context.Context, uow order.UnitOfWork) error {
				_, err := uow.Redeem(ctx, "x", now)
				return err
			})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			c, err := s.Promos().GetByID(context.Background(), "c")
			require.NoError(t, err)
			assert.Equal(t, tt.code.UsedCount+1, c.UsedCount)
		})
	}
}

func TestPromoRepository(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()
	repo := s.Promos()

	require.NoError(t, repo.Create(ctx, &promo.Code{ID: "a", Code: "save10", Active: true, ExpiresAt: now.Add(time.Hour), CreatedAt: now}))
	require.ErrorIs(t, repo.Create(ctx, &promo.Code{ID: "b", Code: "SAVE10"}), promo.ErrDuplicate)

	c, err := repo.FindActive(ctx, " Save10 ", now)
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", c.Code)

	_, err = repo.SetActive(ctx, "a", false)
	require.NoError(t, err)
	_, err = repo.FindActive(ctx, "SAVE10", now)
	require.ErrorIs(t, err, promo.ErrInvalid)

	require.NoError(t, repo.Delete(ctx, "a"))
	require.ErrorIs(t, repo.Delete(ctx, "a"), promo.ErrNotFound)
}

func TestProductRepository_List(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now().UTC()
	for i := range 3 {
		require.NoError(t, s.Products().Create(ctx, &product.Product{
			ID:        fmt.Sprintf("p%d", i),
			Name:      fmt.Sprintf("Tee %d", i),
			Category:  product.CategoryTShirts,
			SoldOut:   i == 2,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := s.Products().List(ctx, product.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "p2", all[0].ID)

	available := false
	list, err := s.Products().List(ctx, product.Filter{SoldOut: &available})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	got, err := s.Products().GetByIDs(ctx, []string{"p0", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Returned values are copies.
	got[0].Name = "changed"
	p, err := s.Products().GetByID(ctx, "p0")
	require.NoError(t, err)
	assert.Equal(t, "Tee 0", p.Name)
}

func TestMessageRepository(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now().UTC()
	for i := range 5 {
		require.NoError(t, s.Messages().Create(ctx, &contact.Message{
			ID:        fmt.Sprintf("m%d", i),
			Subject:   contact.SubjectOrder,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	_, err := s.Messages().MarkRead(ctx, "m0")
	require.NoError(t, err)

	unread, err := s.Messages().CountUnread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, unread)

	page, total, err := s.Messages().List(ctx, contact.Filter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "m2", page[0].ID)

	require.ErrorIs(t, s.Messages().Delete(ctx, "nope"), contact.ErrNotFound)
}

func ptr[T any](v T) *T { return &v }
