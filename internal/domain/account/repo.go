package account

import (
	"context"

	"github.com/google/uuid"
)

// ClientRepository stores clients in the shared schema.
type ClientRepository interface {
	Create(ctx context.Context, c *Client) error
	GetByID(ctx context.Context, id uuid.UUID) (*Client, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*Client, error)
	List(ctx context.Context, limit, offset int) ([]*Client, int, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	UpdatePin(ctx context.Context, id uuid.UUID, hash string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// Provisioner prepares the database schema of a new tenant.
type Provisioner interface {
	Provision(ctx context.Context, tenantID string) error
}
