package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/admin"
)

const adminColumns = `id, username, email, password_hash, role, active, last_login, created_at`

var _ admin.Repository = (*AdminRepository)(nil)

// AdminRepository implements admin.Repository backed by PostgreSQL.
type AdminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository returns an AdminRepository that uses the given pool.
func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

func (r *AdminRepository) FindByLogin(ctx context.Context, login string) (*admin.Admin, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins
		WHERE active AND (username = $1 OR email = lower($1))`, login)
	return r.scanOne(row, "find admin")
}

func (r *AdminRepository) GetByID(ctx context.Context, id string) (*admin.Admin, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id)
	return r.scanOne(row, "get admin "+id)
}

// Upsert keeps the id and creation time of an existing account with the same
// username and writes them back into a.
func (r *AdminRepository) Upsert(ctx context.Context, a *admin.Admin) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO admins (`+adminColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (username) DO UPDATE
		SET email = EXCLUDED.email, password_hash = EXCLUDED.password_hash,
		    role = EXCLUDED.role, active = EXCLUDED.active
		RETURNING id, created_at`,
		a.ID, a.Username, a.Email, a.PasswordHash, string(a.Role), a.Active, a.LastLogin, a.CreatedAt,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return classify(err, "upsert admin "+a.Username)
	}
	return nil
}

func (r *AdminRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE admins SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return classify(err, "touch admin login")
	}
	if tag.RowsAffected() == 0 {
		return admin.ErrNotFound
	}
	return nil
}

func (r *AdminRepository) scanOne(row pgx.Row, op string) (*admin.Admin, error) {
	var (
		a    admin.Admin
		role string
	)
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &role, &a.Active, &a.LastLogin, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, admin.ErrNotFound
		}
		return nil, classify(err, op)
	}
	a.Role = admin.Role(role)
	return &a, nil
}
