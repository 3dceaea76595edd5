package report

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	GetByBillID(ctx context.Context, billID uuid.UUID) (*Report, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Report, int, error)
	// ReplaceRows overwrites the rows of a report in order.
	ReplaceRows(ctx context.Context, reportID uuid.UUID, rows []Row) error
	SetReportDate(ctx context.Context, id uuid.UUID, date *time.Time) error
}

// BillProgress mirrors report progress onto the owning bill.
type BillProgress interface {
	UpdateReportProgress(ctx context.Context, billID uuid.UUID, status string, reportDate *time.Time) error
}
