package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/storefront/internal/auth"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/memory"
	"github.com/xenking/storefront/internal/storage/redis"
)

func TestNewServices_OrdersBypassProductCache(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Products().Create(ctx, &product.Product{
		ID:       "p1",
		Name:     "Classic Hoodie",
		Price:    decimal.RequireFromString("850.00"),
		Category: product.CategoryHoodies,
		Colors:   []string{"Black"},
		Sizes:    []string{"M"},
		Images:   []string{"hoodie.jpg"},
	}))

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := redis.NewProductCache(store.Products(), client, time.Minute)

	// Warm the cache, then flip the flag underneath it so Redis keeps the
	// pre-toggle entry.
	_, err := cache.GetByID(ctx, "p1")
	require.NoError(t, err)
	_, err = store.Products().SetSoldOut(ctx, "p1", true)
	require.NoError(t, err)
	require.True(t, mr.Exists("product:p1"))

	cfg := validConfig()
	cfg.Defaults = DefaultsConfig{City: "Cairo", Governorate: "Cairo"}
	tokens, err := auth.NewJWT(cfg.JWT.Secret, cfg.JWT.TTL)
	require.NoError(t, err)

	services, err := newServices(&cfg, &repositories{
		products: store.Products(),
		catalog:  cache,
		promos:   store.Promos(),
		orders:   store.Orders(),
		tx:       store,
		messages: store.Messages(),
		admins:   store.Admins(),
		events:   store.Outbox(),
	}, tokens, noop.NewMeterProvider())
	require.NoError(t, err)

	cached, err := services.Products.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, cached.SoldOut, "catalog reads go through the cache")

	_, err = services.Orders.PlaceOrder(ctx, order.PlaceRequest{
		ProductID:    "p1",
		CustomerName: "Jane Doe",
		Address:      "1 Nile St",
		Phone1:       "01000000000",
		Color:        "Black",
		Size:         "M",
		Quantity:     1,
	})
	require.ErrorIs(t, err, order.ErrSoldOut)
	assert.Zero(t, store.Outbox().Pending())
}

func TestNewServices_CatalogDefaultsToProducts(t *testing.T) {
	store := memory.New()
	cfg := validConfig()
	tokens, err := auth.NewJWT(cfg.JWT.Secret, cfg.JWT.TTL)
	require.NoError(t, err)

	services, err := newServices(&cfg, &repositories{
		products: store.Products(),
		promos:   store.Promos(),
		orders:   store.Orders(),
		tx:       store,
		messages: store.Messages(),
		admins:   store.Admins(),
		events:   store.Outbox(),
	}, tokens, noop.NewMeterProvider())
	require.NoError(t, err)

	_, err = services.Products.Get(context.Background(), "missing")
	require.ErrorIs(t, err, product.ErrNotFound)
}
