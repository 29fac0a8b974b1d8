package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	pending   []*Event
	published []int64
	fetchErr  error
}

func (m *mockStore) FetchPending(_ context.Context, limit int) ([]*Event, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []*Event
	for _, e := range m.pending {
		if len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *mockStore) MarkPublished(_ context.Context, id int64, _ time.Time) error {
	m.published = append(m.published, id)
	for i, e := range m.pending {
		if e.ID == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			break
		}
	}
	return nil
}

type mockPublisher struct {
	sent   []*Event
	failOn int64
}

func (m *mockPublisher) Publish(_ context.Context, e *Event) error {
	if e.ID == m.failOn {
		return errors.New("broker down")
	}
	m.sent = append(m.sent, e)
	return nil
}

func newEvents(n int) []*Event {
	out := make([]*Event, n)
	for i := range n {
		out[i] = &Event{ID: int64(i + 1), AggregateID: "order", Type: "order.placed"}
	}
	return out
}

func TestRelay_Flush(t *testing.T) {
	store := &mockStore{pending: newEvents(3)}
	pub := &mockPublisher{}
	r := NewRelay(store, pub, time.Second)

	n, err := r.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int64{1, 2, 3}, store.published)
	assert.Empty(t, store.pending)
	assert.Len(t, pub.sent, 3)
}

func TestRelay_FlushStopsAtFailure(t *testing.T) {
	store := &mockStore{pending: newEvents(3)}
	pub := &mockPublisher{failOn: 2}
	r := NewRelay(store, pub, time.Second)

	n, err := r.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1}, store.published)
	assert.Len(t, store.pending, 2)

	// Retried on the next flush once the broker recovers.
	pub.failOn = 0
	n, err = r.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, store.pending)
}

func TestRelay_FlushBatch(t *testing.T) {
	store := &mockStore{pending: newEvents(150)}
	r := NewRelay(store, &mockPublisher{}, time.Second)

	n, err := r.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Len(t, store.pending, 50)
}

func TestRelay_FetchError(t *testing.T) {
	store := &mockStore{fetchErr: errors.New("db down")}
	_, err := NewRelay(store, &mockPublisher{}, time.Second).Flush(context.Background())
	require.Error(t, err)
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	store := &mockStore{pending: newEvents(1)}
	pub := &mockPublisher{}
	r := NewRelay(store, pub, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return len(store.published) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestNewEvent(t *testing.T) {
	e, err := NewEvent("o1", "order.placed", map[string]string{"orderId": "o1"})
	require.NoError(t, err)
	assert.Equal(t, "o1", e.AggregateID)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(e.Payload, &payload))
	assert.Equal(t, "o1", payload["orderId"])
}
