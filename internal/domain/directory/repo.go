package directory

import (
	"context"

	"github.com/google/uuid"
)

type DoctorRepository interface {
	Create(ctx context.Context, d *ReferredDoctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*ReferredDoctor, error)
	// GetByPhone returns the active doctor holding phone.
	GetByPhone(ctx context.Context, phone string) (*ReferredDoctor, error)
	Update(ctx context.Context, d *ReferredDoctor) error
	List(ctx context.Context, f DoctorFilter, limit, offset int) ([]*ReferredDoctor, int, error)
}

type PaymentModeRepository interface {
	Create(ctx context.Context, m *PaymentMode) error
	GetByID(ctx context.Context, id uuid.UUID) (*PaymentMode, error)
	Update(ctx context.Context, m *PaymentMode) error
	List(ctx context.Context, active *bool, limit, offset int) ([]*PaymentMode, int, error)
}

// SnapshotRewriter replaces the referring-doctor snapshot on every bill that
// was issued under oldPhone.
type SnapshotRewriter interface {
	RewriteDoctorSnapshot(ctx context.Context, oldPhone string, snap DoctorSnapshot) (int64, error)
}
