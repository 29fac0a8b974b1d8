package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/promo"
)

const promoColumns = `id, code, percent, expires_at, max_uses, used_count, active, created_at, updated_at`

var _ promo.Repository = (*PromoRepository)(nil)

// PromoRepository implements promo.Repository backed by PostgreSQL. Codes
// are stored in canonical form.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

func (r *PromoRepository) FindActive(ctx context.Context, code string, now time.Time) (*promo.Code, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes
		WHERE code = $1 AND active AND expires_at > $2`, promo.Canonical(code), now)
	c, err := scanPromo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrInvalid
		}
		return nil, classify(err, "find promo code")
	}
	return c, nil
}

func (r *PromoRepository) GetByID(ctx context.Context, id string) (*promo.Code, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE id = $1`, id)
	c, err := scanPromo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrNotFound
		}
		return nil, classify(err, "get promo code "+id)
	}
	return c, nil
}

func (r *PromoRepository) List(ctx context.Context) ([]promo.Code, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+promoColumns+` FROM promo_codes ORDER BY created_at DESC, code`)
	if err != nil {
		return nil, classify(err, "list promo codes")
	}
	defer rows.Close()

	var out []promo.Code
	for rows.Next() {
		c, err := scanPromo(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan promo code")
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate promo codes")
	}
	return out, nil
}

func (r *PromoRepository) Create(ctx context.Context, c *promo.Code) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO promo_codes (`+promoColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, promo.Canonical(c.Code), c.Percent, c.ExpiresAt, c.MaxUses,
		c.UsedCount, c.Active, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return promo.ErrDuplicate
		}
		return classify(err, "create promo code")
	}
	return nil
}

const upsertPromo = `INSERT INTO promo_codes (` + promoColumns + `)
	VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $7)
	ON CONFLICT (code) DO UPDATE
	SET percent = EXCLUDED.percent, expires_at = EXCLUDED.expires_at,
	    max_uses = EXCLUDED.max_uses, active = EXCLUDED.active,
	    updated_at = EXCLUDED.updated_at`

// UpsertBatch inserts codes, or refreshes the terms of codes that already
// exist. Used counts of existing codes are preserved. All codes are written
// in one round trip.
func (r *PromoRepository) UpsertBatch(ctx context.Context, codes []promo.Code) error {
	if len(codes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range codes {
		batch.Queue(upsertPromo,
			c.ID, promo.Canonical(c.Code), c.Percent, c.ExpiresAt, c.MaxUses, c.Active, c.CreatedAt,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return classify(err, "upsert promo codes")
	}
	return nil
}

func (r *PromoRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM promo_codes WHERE id = $1`, id)
	if err != nil {
		return classify(err, "delete promo code "+id)
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrNotFound
	}
	return nil
}

func (r *PromoRepository) SetActive(ctx context.Context, id string, active bool) (*promo.Code, error) {
	row := r.pool.QueryRow(ctx, `UPDATE promo_codes SET active = $2, updated_at = now()
		WHERE id = $1 RETURNING `+promoColumns, id, active)
	c, err := scanPromo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrNotFound
		}
		return nil, classify(err, "set promo active "+id)
	}
	return c, nil
}

// redeem consumes one use of code inside q's transaction. The increment is
// conditional so concurrent redemptions of the last use cannot both succeed.
func redeem(ctx context.Context, q querier, code string, now time.Time) (*promo.Code, error) {
	code = promo.Canonical(code)
	row := q.QueryRow(ctx, `UPDATE promo_codes
		SET used_count = used_count + 1, updated_at = $2
		WHERE code = $1 AND active AND expires_at > $2
		  AND (max_uses IS NULL OR used_count < max_uses)
		RETURNING `+promoColumns, code, now)
	c, err := scanPromo(row)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, classify(err, "redeem promo code")
	}

	// Nothing updated: tell an exhausted code apart from an unusable one.
	var usable bool
	err = q.QueryRow(ctx, `SELECT active AND expires_at > $2 FROM promo_codes WHERE code = $1`,
		code, now).Scan(&usable)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, promo.ErrInvalid
	case err != nil:
		return nil, classify(err, "inspect promo code")
	case usable:
		return nil, promo.ErrUsageLimit
	default:
		return nil, promo.ErrInvalid
	}
}

func scanPromo(row pgx.Row) (*promo.Code, error) {
	var c promo.Code
	if err := row.Scan(
		&c.ID, &c.Code, &c.Percent, &c.ExpiresAt, &c.MaxUses,
		&c.UsedCount, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}
