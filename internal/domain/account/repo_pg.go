package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/db"
)

const clientCols = `id, tenant_id, name, email, password_hash, pin_hash, role, is_active, created_at, updated_at`

// Clients are cross-tenant, so statements name the shared schema explicitly
// and run on the pool rather than the tenant-pinned connection.
type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) ClientRepository {
	return &repoPG{pool: pool}
}

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.PasswordHash, &c.PinHash,
		&c.Role, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.HasPIN = c.PinHash != nil && *c.PinHash != ""
	return &c, nil
}

func (r *repoPG) Create(ctx context.Context, c *Client) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO shared.clients (id, tenant_id, name, email, password_hash, pin_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		c.ID, c.TenantID, c.Name, c.Email, c.PasswordHash, c.PinHash, c.Role, c.IsActive,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	switch {
	case db.IsUniqueViolation(err, "clients_email_key"):
		return apperr.Conflict("a client with email %s already exists", c.Email)
	case db.IsUniqueViolation(err, "clients_tenant_id_key"):
		return apperr.Conflict("tenant %s already exists", c.TenantID)
	}
	return db.Classify(err, "client")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx,
		`SELECT `+clientCols+` FROM shared.clients WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, "client")
	}
	return c, nil
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx,
		`SELECT `+clientCols+` FROM shared.clients WHERE LOWER(email) = $1`, strings.ToLower(email)))
	if err != nil {
		return nil, db.Classify(err, "client")
	}
	return c, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Client, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM shared.clients`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+clientCols+` FROM shared.clients ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var items []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *repoPG) exec(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return db.Classify(err, "client")
	}
	if tag.RowsAffected() == 0 {
		return db.Classify(pgx.ErrNoRows, "client")
	}
	return nil
}

func (r *repoPG) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return r.exec(ctx, `UPDATE shared.clients SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
}

func (r *repoPG) UpdatePin(ctx context.Context, id uuid.UUID, hash string) error {
	return r.exec(ctx, `UPDATE shared.clients SET pin_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.exec(ctx, `UPDATE shared.clients SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}
