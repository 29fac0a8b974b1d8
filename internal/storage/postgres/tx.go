package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/promo"
	"github.com/xenking/storefront/internal/outbox"
)

var _ order.TxManager = (*TxManager)(nil)

// TxManager runs order checkout writes in a single database transaction.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager returns a TxManager that uses the given pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// Execute commits if fn returns nil and rolls back otherwise. Domain
// sentinels returned by fn stay matchable with errors.Is.
func (m *TxManager) Execute(ctx context.Context, fn func(ctx context.Context, uow order.UnitOfWork) error) error {
	err := pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		return fn(ctx, &unitOfWork{tx: tx})
	})
	if err != nil {
		return errors.Wrap(err, "checkout transaction")
	}
	return nil
}

type unitOfWork struct {
	tx pgx.Tx
}

func (u *unitOfWork) Redeem(ctx context.Context, code string, now time.Time) (*promo.Code, error) {
	return redeem(ctx, u.tx, code, now)
}

// Create inserts o and records its placed event in the outbox.
func (u *unitOfWork) Create(ctx context.Context, o *order.Order) error {
	if err := insertOrder(ctx, u.tx, o); err != nil {
		return err
	}
	ev, err := outbox.NewEvent(o.ID, order.EventPlaced, order.NewPlacedEvent(o))
	if err != nil {
		return errors.Wrap(err, "build placed event")
	}
	return insertEvent(ctx, u.tx, ev)
}
