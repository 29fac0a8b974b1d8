package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig is a per-client token bucket: Max requests per Window,
// with bursts of up to Max.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
	// Skip exempts matching requests, e.g. health probes.
	Skip func(*http.Request) bool
}

type bucket struct {
	lim  *rate.Limiter
	last time.Time
}

// buckets holds one token bucket per key. A bucket untouched for a whole
// window is full again, so dropping it loses nothing.
type buckets struct {
	cfg    RateLimitConfig
	refill rate.Limit

	mu    sync.Mutex
	byKey map[string]*bucket
}

func newBuckets(cfg RateLimitConfig) *buckets {
	if cfg.Max <= 0 {
		cfg.Max = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	return &buckets{
		cfg:    cfg,
		refill: rate.Limit(float64(cfg.Max) / cfg.Window.Seconds()),
		byKey:  make(map[string]*bucket),
	}
}

// decision is the outcome of taking one token.
type decision struct {
	allowed    bool
	remaining  int
	retryAfter time.Duration
	// full is when the bucket is back to Max tokens.
	full time.Time
}

func (b *buckets) take(key string, now time.Time) decision {
	b.mu.Lock()
	defer b.mu.Unlock()

	bk, ok := b.byKey[key]
	if !ok {
		bk = &bucket{lim: rate.NewLimiter(b.refill, b.cfg.Max)}
		b.byKey[key] = bk
	}
	bk.last = now

	d := decision{allowed: bk.lim.AllowN(now, 1)}
	tokens := bk.lim.TokensAt(now)
	if !d.allowed {
		d.retryAfter = b.untilTokens(1 - tokens)
	}
	d.remaining = max(int(tokens), 0)
	d.full = now.Add(b.untilTokens(float64(b.cfg.Max) - tokens))
	return d
}

func (b *buckets) untilTokens(n float64) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n / float64(b.refill) * float64(time.Second))
}

func (b *buckets) evictIdle(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, bk := range b.byKey {
		if now.Sub(bk.last) >= b.cfg.Window {
			delete(b.byKey, key)
		}
	}
}

func (b *buckets) evictEvery(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				b.evictIdle(now)
			}
		}
	}()
}

// RateLimit limits each client to cfg.Max requests per cfg.Window. Rejected
// requests get 429 with Retry-After; every counted response carries the
// X-RateLimit-* headers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return limitBy(newBuckets(cfg), nil)
}

// RateLimitWithCleanup is RateLimit with idle buckets evicted every window
// until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	b := newBuckets(cfg)
	b.evictEvery(ctx, b.cfg.Window)
	return limitBy(b, nil)
}

// RouteRateLimit is a separate budget per client and matched route. Mount
// it on individual chi routes that are worth guessing against, such as
// login or code validation. Each route gets its own bucket.
func RouteRateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	b := newBuckets(cfg)
	b.evictEvery(ctx, b.cfg.Window)
	return limitBy(b, func(r *http.Request) string {
		return r.Method + " " + RoutePattern(r)
	})
}

func limitBy(b *buckets, scope func(*http.Request) string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if b.cfg.Skip != nil && b.cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			key := b.cfg.KeyFunc(r)
			if scope != nil {
				key = scope(r) + "|" + key
			}
			d := b.take(key, time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(b.cfg.Max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.full.Unix(), 10))
			if !d.allowed {
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(d.retryAfter.Seconds()))))
				WriteError(w, http.StatusTooManyRequests, "too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// RemoteAddr host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
