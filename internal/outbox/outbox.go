// Package outbox relays events recorded in the same transaction as domain
// writes to a message broker.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Event is a domain event waiting to be published.
type Event struct {
	ID          int64
	AggregateID string
	Type        string
	Payload     []byte
	CreatedAt   time.Time
}

// NewEvent encodes payload as JSON.
func NewEvent(aggregateID, typ string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s payload", typ)
	}
	return &Event{
		AggregateID: aggregateID,
		Type:        typ,
		Payload:     data,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Store reads and acknowledges pending events, oldest first.
type Store interface {
	FetchPending(ctx context.Context, limit int) ([]*Event, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error
}

// Publisher delivers an event to the broker.
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
}

// Relay periodically moves pending events from Store to Publisher. Delivery
// is at-least-once: an event published but not acknowledged is sent again.
type Relay struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	batch     int
}

// NewRelay creates a Relay polling every interval.
func NewRelay(store Store, publisher Publisher, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{store: store, publisher: publisher, interval: interval, batch: 100}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil {
				zctx.From(ctx).Warn("Outbox flush failed", zap.Error(err))
			}
		}
	}
}

// Flush publishes one batch of pending events and returns how many were
// acknowledged. Publishing stops at the first failure so events of one
// aggregate stay in order.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.store.FetchPending(ctx, r.batch)
	if err != nil {
		return 0, errors.Wrap(err, "fetch pending events")
	}

	lg := zctx.From(ctx)
	for i, e := range events {
		if err := r.publisher.Publish(ctx, e); err != nil {
			return i, errors.Wrapf(err, "publish event %d", e.ID)
		}
		if err := r.store.MarkPublished(ctx, e.ID, time.Now().UTC()); err != nil {
			return i, errors.Wrapf(err, "mark event %d", e.ID)
		}
		lg.Debug("Event published",
			zap.Int64("event_id", e.ID),
			zap.String("type", e.Type),
			zap.String("aggregate_id", e.AggregateID),
		)
	}
	return len(events), nil
}
