package postgres

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
)

const orderColumns = `id, customer_name, customer_email, customer_phone, customer_phone2,
	customer_address, customer_city, customer_governorate,
	items, total, discount, promo_code, status, created_at, updated_at`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Orders
// are inserted by TxManager.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, classify(err, "get order "+id)
	}
	return o, nil
}

func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, int, error) {
	var (
		where string
		args  []any
	)
	if f.Status != "" {
		where = ` WHERE status = $1`
		args = append(args, string(f.Status))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, classify(err, "count orders")
	}

	q := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		page := max(f.Page, 1)
		n := len(args)
		q += ` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
		args = append(args, f.Limit, (page-1)*f.Limit)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, classify(err, "list orders")
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan order")
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify(err, "iterate orders")
	}
	return out, total, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, `UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 RETURNING `+orderColumns, id, string(status))
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, classify(err, "update order status "+id)
	}
	return o, nil
}

// insertOrder writes o with its items serialized into the JSONB column.
func insertOrder(ctx context.Context, q querier, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}
	c := o.Customer
	_, err = q.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		o.ID, c.Name, c.Email, c.Phone, c.Phone2, c.Address, c.City, c.Governorate,
		items, o.Total, o.Discount, o.PromoCode, string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return classify(err, "create order "+o.ID)
	}
	return nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o      order.Order
		items  []byte
		status string
	)
	c := &o.Customer
	if err := row.Scan(
		&o.ID, &c.Name, &c.Email, &c.Phone, &c.Phone2, &c.Address, &c.City, &c.Governorate,
		&items, &o.Total, &o.Discount, &o.PromoCode, &status, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, errors.Wrapf(err, "unmarshal items of order %s", o.ID)
	}
	o.Status = order.Status(status)
	return &o, nil
}
