package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labdesk/labdesk/internal/platform/db"
	"github.com/labdesk/labdesk/internal/platform/search"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const reportCols = `id, bill_id, report_date, created_at, updated_at`

func scanReport(row pgx.Row) (*Report, error) {
	var r Report
	if err := row.Scan(&r.ID, &r.BillID, &r.ReportDate, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts the report and its rows. Callers that create the bill in
// the same unit of work run this inside their transaction.
func (r *repoPG) Create(ctx context.Context, rep *Report) error {
	rep.ID = uuid.New()
	conn := db.Conn(ctx, r.pool)
	err := conn.QueryRow(ctx, `
		INSERT INTO reports (id, bill_id, report_date)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		rep.ID, rep.BillID, rep.ReportDate,
	).Scan(&rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		return db.Classify(err, "report")
	}
	return insertRows(ctx, conn, rep.ID, rep.Rows)
}

func insertRows(ctx context.Context, conn db.Querier, reportID uuid.UUID, rows []Row) error {
	for i, row := range rows {
		_, err := conn.Exec(ctx, `
			INSERT INTO report_rows (report_id, position, test_id, test_group_id, test_name,
				units, methodology, normal_range, result, flag, remarks)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			reportID, i, row.TestID, row.TestGroupID, row.TestName,
			row.Units, row.Methodology, row.NormalRange, row.Result, row.Flag, row.Remarks)
		if err != nil {
			return fmt.Errorf("insert report row %d: %w", i, err)
		}
	}
	return nil
}

func (r *repoPG) loadRows(ctx context.Context, rep *Report) error {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT test_id, test_group_id, test_name, units, methodology, normal_range, result, flag, remarks
		FROM report_rows WHERE report_id = $1 ORDER BY position`, rep.ID)
	if err != nil {
		return fmt.Errorf("load report rows: %w", err)
	}
	defer rows.Close()

	rep.Rows = []Row{}
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.TestID, &row.TestGroupID, &row.TestName, &row.Units, &row.Methodology,
			&row.NormalRange, &row.Result, &row.Flag, &row.Remarks); err != nil {
			return err
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	rep, err := scanReport(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+reportCols+` FROM reports WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, "report")
	}
	if err := r.loadRows(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *repoPG) GetByBillID(ctx context.Context, billID uuid.UUID) (*Report, error) {
	rep, err := scanReport(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+reportCols+` FROM reports WHERE bill_id = $1`, billID))
	if err != nil {
		return nil, db.Classify(err, "report")
	}
	if err := r.loadRows(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Report, int, error) {
	q := search.NewQuery("reports r JOIN bills b ON b.id = r.bill_id",
		"r.id, r.bill_id, r.report_date, r.created_at, r.updated_at, b.bill_number, b.patient_name").
		Contains(f.Search, "b.patient_name", "b.bill_number").
		OrderBy("r.created_at DESC")
	if f.Generated != nil {
		if *f.Generated {
			q.Add("r.report_date IS NOT NULL")
		} else {
			q.Add("r.report_date IS NULL")
		}
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}
	rows, err := conn.Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var items []*Report
	for rows.Next() {
		var rep Report
		if err := rows.Scan(&rep.ID, &rep.BillID, &rep.ReportDate, &rep.CreatedAt, &rep.UpdatedAt,
			&rep.BillNumber, &rep.PatientName); err != nil {
			return nil, 0, err
		}
		items = append(items, &rep)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ReplaceRows(ctx context.Context, reportID uuid.UUID, rows []Row) error {
	conn := db.Conn(ctx, r.pool)
	tag, err := conn.Exec(ctx, `UPDATE reports SET updated_at = NOW() WHERE id = $1`, reportID)
	if err != nil {
		return fmt.Errorf("touch report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.Classify(pgx.ErrNoRows, "report")
	}
	if _, err := conn.Exec(ctx, `DELETE FROM report_rows WHERE report_id = $1`, reportID); err != nil {
		return fmt.Errorf("clear report rows: %w", err)
	}
	return insertRows(ctx, conn, reportID, rows)
}

func (r *repoPG) SetReportDate(ctx context.Context, id uuid.UUID, date *time.Time) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE reports SET report_date = $2, updated_at = NOW() WHERE id = $1`, id, date)
	if err != nil {
		return fmt.Errorf("set report date: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.Classify(pgx.ErrNoRows, "report")
	}
	return nil
}
