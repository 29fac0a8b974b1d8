package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/outbox"
)

var _ outbox.Store = (*OutboxRepository)(nil)

// OutboxRepository implements outbox.Store over the outbox_events table.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository returns an OutboxRepository that uses the given pool.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]*outbox.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events WHERE published_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, classify(err, "fetch outbox events")
	}
	defer rows.Close()

	var out []*outbox.Event
	for rows.Next() {
		var e outbox.Event
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.Type, &e.Payload, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan outbox event")
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate outbox events")
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.pool.Exec(ctx, `UPDATE outbox_events SET published_at = $2 WHERE id = $1`, id, at); err != nil {
		return classify(err, "mark outbox event")
	}
	return nil
}

func insertEvent(ctx context.Context, q querier, e *outbox.Event) error {
	err := q.QueryRow(ctx, `INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		e.AggregateID, e.Type, e.Payload, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return classify(err, "record outbox event")
	}
	return nil
}
