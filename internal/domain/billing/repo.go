package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/labdesk/labdesk/internal/domain/directory"
)

// ErrDuplicateBillNumber is returned by Create when the bill number is
// already taken.
var ErrDuplicateBillNumber = errors.New("bill number already exists")

type Repository interface {
	// Create inserts the bill with its test groups and payments.
	Create(ctx context.Context, b *Bill) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bill, error)
	GetByNumber(ctx context.Context, billNumber string) (*Bill, error)
	// Update rewrites the bill row and replaces its test groups and payments.
	Update(ctx context.Context, b *Bill) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// Delete removes the bill; its report, test groups and payments cascade.
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Bill, int, error)
	// ListBetween loads every bill dated within [from, to]. Nil bounds are
	// open.
	ListBetween(ctx context.Context, from, to *time.Time) ([]*Bill, error)

	// NextSequence atomically reserves the next sequence number for the day
	// prefix. The reservation is rolled back with the enclosing transaction.
	NextSequence(ctx context.Context, dayPrefix string) (int, error)
	// PeekSequence returns the number NextSequence would hand out.
	PeekSequence(ctx context.Context, dayPrefix string) (int, error)

	// MissingReports lists bills that have no report.
	MissingReports(ctx context.Context) ([]uuid.UUID, error)

	RewriteDoctorSnapshot(ctx context.Context, oldPhone string, snap directory.DoctorSnapshot) (int64, error)
	UpdateReportProgress(ctx context.Context, billID uuid.UUID, status string, reportDate *time.Time) error
}
