// Package redis caches catalog reads in Redis.
package redis

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Connect parses url, connects and pings.
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

var _ product.Repository = (*ProductCache)(nil)

// ProductCache is a read-through cache in front of a product.Repository.
// Single-product reads are cached; writes go to the inner repository and
// evict the key. Redis errors are logged and the inner repository answers.
type ProductCache struct {
	inner   product.Repository
	client  *goredis.Client
	baseTTL time.Duration
}

// NewProductCache wraps inner. Entries live for ttl plus up to a minute of
// jitter.
func NewProductCache(inner product.Repository, client *goredis.Client, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProductCache{inner: inner, client: client, baseTTL: ttl}
}

func (c *ProductCache) GetByID(ctx context.Context, id string) (*product.Product, error) {
	p, err := c.get(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		zctx.From(ctx).Warn("Product cache read failed", zap.String("product_id", id), zap.Error(err))
	}

	p, err = c.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, p)
	return p, nil
}

// GetByIDs serves hits from one MGET and loads the rest from the inner
// repository.
func (c *ProductCache) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		zctx.From(ctx).Warn("Product cache multi-read failed", zap.Error(err))
		return c.inner.GetByIDs(ctx, ids)
	}

	var (
		out     = make([]product.Product, 0, len(ids))
		missing []string
	)
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var p product.Product
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		out = append(out, p)
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.inner.GetByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for i := range loaded {
		c.set(ctx, &loaded[i])
	}
	return append(out, loaded...), nil
}

// List is not cached; filtered listings change with every catalog write.
func (c *ProductCache) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	return c.inner.List(ctx, f)
}

func (c *ProductCache) Create(ctx context.Context, p *product.Product) error {
	return c.inner.Create(ctx, p)
}

func (c *ProductCache) Update(ctx context.Context, p *product.Product) error {
	if err := c.inner.Update(ctx, p); err != nil {
		return err
	}
	c.evict(ctx, p.ID)
	return nil
}

func (c *ProductCache) Delete(ctx context.Context, id string) error {
	if err := c.inner.Delete(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, id)
	return nil
}

func (c *ProductCache) SetSoldOut(ctx context.Context, id string, soldOut bool) (*product.Product, error) {
	p, err := c.inner.SetSoldOut(ctx, id, soldOut)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, id)
	return p, nil
}

func (c *ProductCache) get(ctx context.Context, id string) (*product.Product, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}
	var p product.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "unmarshal product")
	}
	return &p, nil
}

func (c *ProductCache) set(ctx context.Context, p *product.Product) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	jitter := time.Duration(rand.IntN(60)) * time.Second
	if err := c.client.Set(ctx, cacheKey(p.ID), data, c.baseTTL+jitter).Err(); err != nil {
		zctx.From(ctx).Warn("Product cache write failed", zap.String("product_id", p.ID), zap.Error(err))
	}
}

func (c *ProductCache) evict(ctx context.Context, id string) {
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		zctx.From(ctx).Warn("Product cache evict failed", zap.String("product_id", id), zap.Error(err))
	}
}

func cacheKey(id string) string {
	return "product:" + id
}
