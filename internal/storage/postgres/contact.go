package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/contact"
)

const messageColumns = `id, name, email, phone, subject, body, read, created_at`

var _ contact.Repository = (*MessageRepository)(nil)

// MessageRepository implements contact.Repository backed by PostgreSQL.
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository returns a MessageRepository that uses the given pool.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Create(ctx context.Context, m *contact.Message) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO contact_messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.Name, m.Email, m.Phone, string(m.Subject), m.Body, m.Read, m.CreatedAt,
	)
	if err != nil {
		return classify(err, "create message")
	}
	return nil
}

func (r *MessageRepository) List(ctx context.Context, f contact.Filter) ([]contact.Message, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Read != nil {
		where = append(where, "read = "+arg(*f.Read))
	}
	if f.Subject != "" {
		where = append(where, "subject = "+arg(string(f.Subject)))
	}
	cond := ""
	if len(where) > 0 {
		cond = ` WHERE ` + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM contact_messages`+cond, args...).Scan(&total); err != nil {
		return nil, 0, classify(err, "count messages")
	}

	q := `SELECT ` + messageColumns + ` FROM contact_messages` + cond + ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		page := max(f.Page, 1)
		q += ` LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg((page-1)*f.Limit)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, classify(err, "list messages")
	}
	defer rows.Close()

	var out []contact.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan message")
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify(err, "iterate messages")
	}
	return out, total, nil
}

func (r *MessageRepository) CountUnread(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM contact_messages WHERE NOT read`).Scan(&n); err != nil {
		return 0, classify(err, "count unread messages")
	}
	return n, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, id string) (*contact.Message, error) {
	row := r.pool.QueryRow(ctx, `UPDATE contact_messages SET read = TRUE
		WHERE id = $1 RETURNING `+messageColumns, id)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contact.ErrNotFound
		}
		return nil, classify(err, "mark message read "+id)
	}
	return m, nil
}

func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM contact_messages WHERE id = $1`, id)
	if err != nil {
		return classify(err, "delete message "+id)
	}
	if tag.RowsAffected() == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func scanMessage(row pgx.Row) (*contact.Message, error) {
	var (
		m       contact.Message
		subject string
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &subject, &m.Body, &m.Read, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Subject = contact.Subject(subject)
	return &m, nil
}
