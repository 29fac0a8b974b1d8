package httpmiddleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type limitedRequest struct {
	remote string
	xff    string
	apiKey string
	want   int
}

func TestRateLimit(t *testing.T) {
	byAPIKey := func(r *http.Request) string { return r.Header.Get("X-API-Key") }

	tests := []struct {
		name    string
		max     int
		keyFunc func(*http.Request) string
		steps   []limitedRequest
	}{
		{
			name: "within budget",
			max:  3,
			steps: []limitedRequest{
				{remote: "192.168.1.1:1", want: http.StatusOK},
				{remote: "192.168.1.1:2", want: http.StatusOK},
				{remote: "192.168.1.1:3", want: http.StatusOK},
			},
		},
		{
			name: "budget spent",
			max:  2,
			steps: []limitedRequest{
				{remote: "10.0.0.1:1", want: http.StatusOK},
				{remote: "10.0.0.1:1", want: http.StatusOK},
				{remote: "10.0.0.1:1", want: http.StatusTooManyRequests},
			},
		},
		{
			name: "clients are independent",
			max:  1,
			steps: []limitedRequest{
				{remote: "10.0.0.1:1", want: http.StatusOK},
				{remote: "10.0.0.2:1", want: http.StatusOK},
				{remote: "10.0.0.1:2", want: http.StatusTooManyRequests},
			},
		},
		{
			name: "first forwarded hop is the client",
			max:  1,
			steps: []limitedRequest{
				{remote: "192.168.1.1:1", xff: "203.0.113.50, 70.41.3.18", want: http.StatusOK},
				{remote: "192.168.1.2:1", xff: "203.0.113.50, 70.41.3.18", want: http.StatusTooManyRequests},
			},
		},
		{
			name:    "custom key",
			max:     1,
			keyFunc: byAPIKey,
			steps: []limitedRequest{
				{apiKey: "key-a", want: http.StatusOK},
				{apiKey: "key-a", want: http.StatusTooManyRequests},
				{apiKey: "key-b", want: http.StatusOK},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RateLimit(RateLimitConfig{Max: tt.max, Window: time.Minute, KeyFunc: tt.keyFunc})(okHandler())
			for i, step := range tt.steps {
				req := httptest.NewRequest(http.MethodGet, "/", nil)
				if step.remote != "" {
					req.RemoteAddr = step.remote
				}
				if step.xff != "" {
					req.Header.Set("X-Forwarded-For", step.xff)
				}
				if step.apiKey != "" {
					req.Header.Set("X-API-Key", step.apiKey)
				}
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)
				assert.Equal(t, step.want, w.Code, "request %d", i+1)
				assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
			}
		})
	}
}

func TestRateLimit_Rejection(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:9999"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}
	first := send()
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	send()

	w := send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	// One token refills every 30s.
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(429), body["code"])
	assert.Equal(t, "too many requests, please try again later", body["message"])
}

func TestRateLimit_Skip(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		Skip:   func(r *http.Request) bool { return r.URL.Path == "/livez" },
	})(okHandler())

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/livez", nil)
		req.RemoteAddr = "10.0.0.9:1"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRouteRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	guard := RouteRateLimit(ctx, RateLimitConfig{Max: 2, Window: time.Minute})
	r := chi.NewRouter()
	r.With(guard).Post("/api/admin/login", okHandler().ServeHTTP)
	r.With(guard).Post("/api/promocodes/validate", okHandler().ServeHTTP)
	r.Get("/api/products", okHandler().ServeHTTP)

	send := func(method, path, remote string) int {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	const client = "198.51.100.7:1000"
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "/api/admin/login", client))
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "/api/admin/login", client))
	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodPost, "/api/admin/login", client))

	// Each guarded route has its own bucket.
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "/api/promocodes/validate", client))
	// Another client still has its full budget.
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "/api/admin/login", "198.51.100.8:1000"))
	// Unguarded routes are not counted.
	for range 5 {
		assert.Equal(t, http.StatusOK, send(http.MethodGet, "/api/products", client))
	}
}

func TestBuckets_Refill(t *testing.T) {
	b := newBuckets(RateLimitConfig{Max: 2, Window: 2 * time.Second})
	t0 := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	require.True(t, b.take("k", t0).allowed)
	require.True(t, b.take("k", t0).allowed)

	d := b.take("k", t0)
	require.False(t, d.allowed)
	assert.Equal(t, time.Second, d.retryAfter)
	assert.Equal(t, t0.Add(2*time.Second), d.full)

	d = b.take("k", t0.Add(time.Second))
	assert.True(t, d.allowed)
	assert.Equal(t, 0, d.remaining)
}

func TestBuckets_EvictIdle(t *testing.T) {
	b := newBuckets(RateLimitConfig{Max: 1, Window: time.Minute})
	t0 := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	b.take("idle", t0)
	b.take("busy", t0.Add(50*time.Second))
	b.evictIdle(t0.Add(time.Minute))

	assert.NotContains(t, b.byKey, "idle")
	assert.Contains(t, b.byKey, "busy")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{name: "remote addr", remote: "10.1.1.1:5000", want: "10.1.1.1"},
		{name: "forwarded list", remote: "10.1.1.1:5000", header: map[string]string{"X-Forwarded-For": " 203.0.113.9 , 10.0.0.1"}, want: "203.0.113.9"},
		{name: "real ip", remote: "10.1.1.1:5000", header: map[string]string{"X-Real-IP": "203.0.113.10"}, want: "203.0.113.10"},
		{name: "no port", remote: "unix-socket", want: "unix-socket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
