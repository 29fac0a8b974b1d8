package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/product"
)

const productColumns = `id, name, price, description, category, colors, sizes, images, sold_out, created_at, updated_at`

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, classify(err, "get product "+id)
	}
	return p, nil
}

func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, classify(err, "get products")
	}
	return collectProducts(rows)
}

// List builds its WHERE clause from the non-zero criteria of f.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(string(f.Category)))
	}
	if f.SoldOut != nil {
		where = append(where, "sold_out = "+arg(*f.SoldOut))
	}
	if f.Search != "" {
		p := arg("%" + escapeLike(f.Search) + "%")
		where = append(where, "(name ILIKE "+p+" OR description ILIKE "+p+")")
	}

	q := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, classify(err, "list products")
	}
	return collectProducts(rows)
}

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Name, p.Price, p.Description, string(p.Category),
		p.Colors, p.Sizes, p.Images, p.SoldOut, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return classify(err, "create product "+p.ID)
	}
	return nil
}

// Upsert inserts p or replaces the catalog fields of an existing product
// with the same id, keeping its creation time.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, price = EXCLUDED.price,
		    description = EXCLUDED.description, category = EXCLUDED.category,
		    colors = EXCLUDED.colors, sizes = EXCLUDED.sizes, images = EXCLUDED.images,
		    sold_out = EXCLUDED.sold_out, updated_at = EXCLUDED.updated_at`,
		p.ID, p.Name, p.Price, p.Description, string(p.Category),
		p.Colors, p.Sizes, p.Images, p.SoldOut, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return classify(err, "upsert product "+p.ID)
	}
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products
		SET name = $2, price = $3, description = $4, category = $5,
		    colors = $6, sizes = $7, images = $8, sold_out = $9, updated_at = $10
		WHERE id = $1`,
		p.ID, p.Name, p.Price, p.Description, string(p.Category),
		p.Colors, p.Sizes, p.Images, p.SoldOut, p.UpdatedAt,
	)
	if err != nil {
		return classify(err, "update product "+p.ID)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return classify(err, "delete product "+id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) SetSoldOut(ctx context.Context, id string, soldOut bool) (*product.Product, error) {
	row := r.pool.QueryRow(ctx, `UPDATE products SET sold_out = $2, updated_at = now()
		WHERE id = $1 RETURNING `+productColumns, id, soldOut)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, classify(err, "set sold out "+id)
	}
	return p, nil
}

func scanProduct(row pgx.Row) (*product.Product, error) {
	var (
		p        product.Product
		category string
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Price, &p.Description, &category,
		&p.Colors, &p.Sizes, &p.Images, &p.SoldOut, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Category = product.Category(category)
	return &p, nil
}

func collectProducts(rows pgx.Rows) ([]product.Product, error) {
	defer rows.Close()

	var out []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate products")
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
