package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labdesk/labdesk/internal/platform/db"
	"github.com/labdesk/labdesk/internal/platform/search"
)

// =========== Referred Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

const doctorCols = `id, name, phone, qualification, is_active, created_at, updated_at`

func scanDoctor(row pgx.Row) (*ReferredDoctor, error) {
	var d ReferredDoctor
	if err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.Qualification, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *ReferredDoctor) error {
	d.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO referred_doctors (id, name, phone, qualification, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Phone, d.Qualification, d.IsActive,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return db.Classify(err, "doctor phone")
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ReferredDoctor, error) {
	d, err := scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM referred_doctors WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, "referred doctor")
	}
	return d, nil
}

func (r *doctorRepoPG) GetByPhone(ctx context.Context, phone string) (*ReferredDoctor, error) {
	d, err := scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM referred_doctors WHERE phone = $1 AND is_active`, phone))
	if err != nil {
		return nil, db.Classify(err, "referred doctor")
	}
	return d, nil
}

func (r *doctorRepoPG) Update(ctx context.Context, d *ReferredDoctor) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE referred_doctors SET name = $2, phone = $3, qualification = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.Name, d.Phone, d.Qualification, d.IsActive,
	).Scan(&d.UpdatedAt)
	if db.IsUniqueViolation(err, "") {
		return db.Classify(err, "doctor phone")
	}
	return db.Classify(err, "referred doctor")
}

func (r *doctorRepoPG) List(ctx context.Context, f DoctorFilter, limit, offset int) ([]*ReferredDoctor, int, error) {
	q := search.NewQuery("referred_doctors", doctorCols).
		Contains(f.Search, "name", "phone", "qualification").
		OrderBy("name ASC")
	if f.Active != nil {
		q.Eq("is_active", *f.Active)
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count referred doctors: %w", err)
	}
	rows, err := conn.Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list referred doctors: %w", err)
	}
	defer rows.Close()

	var items []*ReferredDoctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// =========== Payment Mode Repository ===========

type paymentModeRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentModeRepoPG(pool *pgxpool.Pool) PaymentModeRepository {
	return &paymentModeRepoPG{pool: pool}
}

const paymentModeCols = `id, name, description, is_active, created_at, updated_at`

func scanPaymentMode(row pgx.Row) (*PaymentMode, error) {
	var m PaymentMode
	if err := row.Scan(&m.ID, &m.Name, &m.Description, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *paymentModeRepoPG) Create(ctx context.Context, m *PaymentMode) error {
	m.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO payment_modes (id, name, description, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		m.ID, m.Name, m.Description, m.IsActive,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	return db.Classify(err, "payment mode")
}

func (r *paymentModeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PaymentMode, error) {
	m, err := scanPaymentMode(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+paymentModeCols+` FROM payment_modes WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, "payment mode")
	}
	return m, nil
}

func (r *paymentModeRepoPG) Update(ctx context.Context, m *PaymentMode) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE payment_modes SET name = $2, description = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.Name, m.Description, m.IsActive,
	).Scan(&m.UpdatedAt)
	return db.Classify(err, "payment mode")
}

func (r *paymentModeRepoPG) List(ctx context.Context, active *bool, limit, offset int) ([]*PaymentMode, int, error) {
	q := search.NewQuery("payment_modes", paymentModeCols).OrderBy("name ASC")
	if active != nil {
		q.Eq("is_active", *active)
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payment modes: %w", err)
	}
	rows, err := conn.Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payment modes: %w", err)
	}
	defer rows.Close()

	var items []*PaymentMode
	for rows.Next() {
		m, err := scanPaymentMode(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
