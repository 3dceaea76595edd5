package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labdesk/labdesk/internal/domain/directory"
	"github.com/labdesk/labdesk/internal/platform/db"
	"github.com/labdesk/labdesk/internal/platform/search"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const billCols = `b.id, b.bill_number, b.patient_name, b.patient_age, b.patient_gender, b.patient_phone,
	b.patient_address, b.referred_by_doctor_id, b.referred_by_name, b.referred_by_phone,
	b.referred_by_qualification, b.total_amount, b.tax_amount, b.total_with_tax, b.to_be_paid_amount,
	b.discount, b.final_amount, b.paid_amount, b.dues, b.payment_status, b.is_payment_mode_enabled,
	b.bill_date, b.sample_collection_date, b.sample_received_date, b.report_date, b.status, b.notes,
	b.created_at, b.updated_at`

// billNumberPattern matches the bill numbers of one day prefix ($1).
const billNumberPattern = `('^' || $1::text || '[0-9]+$')`

func scanBill(row pgx.Row) (*Bill, error) {
	var (
		b        Bill
		doctorID *uuid.UUID
		refName  *string
		refPhone *string
		refQual  *string
	)
	err := row.Scan(&b.ID, &b.BillNumber, &b.Patient.Name, &b.Patient.Age, &b.Patient.Gender, &b.Patient.Phone,
		&b.Patient.Address, &doctorID, &refName, &refPhone,
		&refQual, &b.TotalAmount, &b.TaxAmount, &b.TotalWithTax, &b.ToBePaidAmount,
		&b.Discount, &b.FinalAmount, &b.PaidAmount, &b.Dues, &b.PaymentStatus, &b.IsPaymentModeEnabled,
		&b.BillDate, &b.SampleCollectionDate, &b.SampleReceivedDate, &b.ReportDate, &b.Status, &b.Notes,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if refName != nil {
		b.ReferredBy = &ReferredBy{DoctorID: doctorID, Name: *refName, Qualification: refQual}
		if refPhone != nil {
			b.ReferredBy.Phone = *refPhone
		}
	}
	b.TestGroups = []BillTestGroup{}
	b.Payments = []Payment{}
	return &b, nil
}

func referredArgs(r *ReferredBy) (doctorID *uuid.UUID, name, phone, qual *string) {
	if r == nil {
		return nil, nil, nil, nil
	}
	name = &r.Name
	if r.Phone != "" {
		phone = &r.Phone
	}
	return r.DoctorID, name, phone, r.Qualification
}

func (r *repoPG) Create(ctx context.Context, b *Bill) error {
	b.ID = uuid.New()
	conn := db.Conn(ctx, r.pool)
	doctorID, refName, refPhone, refQual := referredArgs(b.ReferredBy)

	err := conn.QueryRow(ctx, `
		INSERT INTO bills (id, bill_number, patient_name, patient_age, patient_gender, patient_phone,
			patient_address, referred_by_doctor_id, referred_by_name, referred_by_phone,
			referred_by_qualification, total_amount, tax_amount, total_with_tax, to_be_paid_amount,
			discount, final_amount, paid_amount, dues, payment_status, is_payment_mode_enabled,
			bill_date, sample_collection_date, sample_received_date, report_date, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25, $26, $27)
		RETURNING created_at, updated_at`,
		b.ID, b.BillNumber, b.Patient.Name, b.Patient.Age, b.Patient.Gender, b.Patient.Phone,
		b.Patient.Address, doctorID, refName, refPhone,
		refQual, b.TotalAmount, b.TaxAmount, b.TotalWithTax, b.ToBePaidAmount,
		b.Discount, b.FinalAmount, b.PaidAmount, b.Dues, b.PaymentStatus, b.IsPaymentModeEnabled,
		b.BillDate, b.SampleCollectionDate, b.SampleReceivedDate, b.ReportDate, b.Status, b.Notes,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if db.IsUniqueViolation(err, "bills_bill_number_key") {
		return ErrDuplicateBillNumber
	}
	if err != nil {
		return db.Classify(err, "bill")
	}
	return insertChildren(ctx, conn, b)
}

func insertChildren(ctx context.Context, conn db.Querier, b *Bill) error {
	for i, g := range b.TestGroups {
		if _, err := conn.Exec(ctx, `
			INSERT INTO bill_test_groups (bill_id, position, test_group_id, name, price)
			VALUES ($1, $2, $3, $4, $5)`,
			b.ID, i, g.TestGroupID, g.Name, g.Price); err != nil {
			return fmt.Errorf("insert bill test group: %w", err)
		}
	}
	for i := range b.Payments {
		p := &b.Payments[i]
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if _, err := conn.Exec(ctx, `
			INSERT INTO bill_payments (id, bill_id, position, payment_mode_id, mode_name, amount, reference, paid_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, b.ID, i, p.PaymentModeID, p.Mode, p.Amount, p.Reference, p.PaidAt); err != nil {
			return fmt.Errorf("insert bill payment: %w", err)
		}
	}
	return nil
}

// loadChildren attaches test groups and payments to bills with one query
// each.
func loadChildren(ctx context.Context, conn db.Querier, bills []*Bill) error {
	if len(bills) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Bill, len(bills))
	ids := make([]uuid.UUID, 0, len(bills))
	for _, b := range bills {
		byID[b.ID] = b
		ids = append(ids, b.ID)
	}

	rows, err := conn.Query(ctx, `
		SELECT bill_id, test_group_id, name, price FROM bill_test_groups
		WHERE bill_id = ANY($1) ORDER BY bill_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load bill test groups: %w", err)
	}
	for rows.Next() {
		var billID uuid.UUID
		var g BillTestGroup
		if err := rows.Scan(&billID, &g.TestGroupID, &g.Name, &g.Price); err != nil {
			rows.Close()
			return err
		}
		byID[billID].TestGroups = append(byID[billID].TestGroups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = conn.Query(ctx, `
		SELECT bill_id, id, payment_mode_id, mode_name, amount, reference, paid_at FROM bill_payments
		WHERE bill_id = ANY($1) ORDER BY bill_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load bill payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var billID uuid.UUID
		var p Payment
		if err := rows.Scan(&billID, &p.ID, &p.PaymentModeID, &p.Mode, &p.Amount, &p.Reference, &p.PaidAt); err != nil {
			return err
		}
		byID[billID].Payments = append(byID[billID].Payments, p)
	}
	return rows.Err()
}

func (r *repoPG) get(ctx context.Context, where string, arg interface{}) (*Bill, error) {
	conn := db.Conn(ctx, r.pool)
	b, err := scanBill(conn.QueryRow(ctx, `SELECT `+billCols+` FROM bills b WHERE `+where, arg))
	if err != nil {
		return nil, db.Classify(err, "bill")
	}
	if err := loadChildren(ctx, conn, []*Bill{b}); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return r.get(ctx, "b.id = $1", id)
}

func (r *repoPG) GetByNumber(ctx context.Context, billNumber string) (*Bill, error) {
	return r.get(ctx, "b.bill_number = $1", billNumber)
}

func (r *repoPG) Update(ctx context.Context, b *Bill) error {
	conn := db.Conn(ctx, r.pool)
	doctorID, refName, refPhone, refQual := referredArgs(b.ReferredBy)

	err := conn.QueryRow(ctx, `
		UPDATE bills SET patient_name = $2, patient_age = $3, patient_gender = $4, patient_phone = $5,
			patient_address = $6, referred_by_doctor_id = $7, referred_by_name = $8, referred_by_phone = $9,
			referred_by_qualification = $10, total_amount = $11, tax_amount = $12, total_with_tax = $13,
			to_be_paid_amount = $14, discount = $15, final_amount = $16, paid_amount = $17, dues = $18,
			payment_status = $19, is_payment_mode_enabled = $20, bill_date = $21,
			sample_collection_date = $22, sample_received_date = $23, report_date = $24, status = $25,
			notes = $26, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		b.ID, b.Patient.Name, b.Patient.Age, b.Patient.Gender, b.Patient.Phone,
		b.Patient.Address, doctorID, refName, refPhone,
		refQual, b.TotalAmount, b.TaxAmount, b.TotalWithTax,
		b.ToBePaidAmount, b.Discount, b.FinalAmount, b.PaidAmount, b.Dues,
		b.PaymentStatus, b.IsPaymentModeEnabled, b.BillDate,
		b.SampleCollectionDate, b.SampleReceivedDate, b.ReportDate, b.Status,
		b.Notes,
	).Scan(&b.UpdatedAt)
	if err != nil {
		return db.Classify(err, "bill")
	}

	if _, err := conn.Exec(ctx, `DELETE FROM bill_test_groups WHERE bill_id = $1`, b.ID); err != nil {
		return fmt.Errorf("clear bill test groups: %w", err)
	}
	if _, err := conn.Exec(ctx, `DELETE FROM bill_payments WHERE bill_id = $1`, b.ID); err != nil {
		return fmt.Errorf("clear bill payments: %w", err)
	}
	return insertChildren(ctx, conn, b)
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE bills SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return db.Classify(err, "bill")
	}
	if tag.RowsAffected() == 0 {
		return db.Classify(pgx.ErrNoRows, "bill")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM bills WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.Classify(pgx.ErrNoRows, "bill")
	}
	return nil
}

var sortColumns = map[string]string{
	"billDate":      "b.bill_date",
	"billNumber":    "b.bill_number",
	"finalAmount":   "b.final_amount",
	"patientName":   "b.patient_name",
	"paymentStatus": "b.payment_status",
	"status":        "b.status",
	"createdAt":     "b.created_at",
}

const testGroupMatch = `EXISTS (SELECT 1 FROM bill_test_groups t WHERE t.bill_id = b.id AND t.name ILIKE ?)`

// searchClause builds the free-text condition for scope. It returns an
// empty clause for an empty term.
func searchClause(term, scope string) (string, []interface{}) {
	if term == "" {
		return "", nil
	}
	pattern := "%" + search.EscapeLike(term) + "%"
	var parts []string
	switch scope {
	case SearchPatientName:
		parts = []string{"b.patient_name ILIKE ?"}
	case SearchPatientPhone:
		parts = []string{"b.patient_phone ILIKE ?"}
	case SearchDoctorName:
		parts = []string{"b.referred_by_name ILIKE ?"}
	case SearchAddress:
		parts = []string{"b.patient_address ILIKE ?"}
	case SearchTestGroup:
		parts = []string{testGroupMatch}
	default:
		parts = []string{
			"b.patient_name ILIKE ?",
			"b.patient_phone ILIKE ?",
			"b.bill_number ILIKE ?",
			"b.referred_by_name ILIKE ?",
			"b.patient_address ILIKE ?",
			testGroupMatch,
		}
	}
	args := make([]interface{}, len(parts))
	for i := range parts {
		args[i] = pattern
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func buildListQuery(f ListFilter) *search.Query {
	q := search.NewQuery("bills b", billCols)
	if clause, args := searchClause(f.Search, f.SearchBy); clause != "" {
		q.Add(clause, args...)
	}
	if f.Status != "" {
		q.Eq("b.status", f.Status)
	}
	if f.PaymentStatus != "" {
		q.Eq("b.payment_status", f.PaymentStatus)
	}
	if f.StartDate != nil {
		q.Compare("b.bill_date", "gte", *f.StartDate)
	}
	if f.EndDate != nil {
		q.Compare("b.bill_date", "lte", *f.EndDate)
	}
	if f.Amount != nil {
		q.Compare("b.final_amount", f.AmountOp, *f.Amount)
	}
	if f.DoctorID != nil {
		q.Eq("b.referred_by_doctor_id", *f.DoctorID)
	}
	q.Sort(f.SortBy, f.SortOrder, sortColumns, "b.bill_date DESC, b.bill_number DESC")
	return q
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Bill, int, error) {
	q := buildListQuery(f)
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bills: %w", err)
	}

	items, err := r.collect(ctx, conn, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bills: %w", err)
	}
	return items, total, nil
}

func (r *repoPG) ListBetween(ctx context.Context, from, to *time.Time) ([]*Bill, error) {
	q := search.NewQuery("bills b", billCols)
	if from != nil {
		q.Compare("b.bill_date", "gte", *from)
	}
	if to != nil {
		q.Compare("b.bill_date", "lte", *to)
	}
	sql := fmt.Sprintf("SELECT %s FROM bills b WHERE %s ORDER BY b.bill_date", billCols, q.Where())

	items, err := r.collect(ctx, db.Conn(ctx, r.pool), sql, q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list bills for statistics: %w", err)
	}
	return items, nil
}

func (r *repoPG) collect(ctx context.Context, conn db.Querier, sql string, args ...interface{}) ([]*Bill, error) {
	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	var items []*Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadChildren(ctx, conn, items); err != nil {
		return nil, err
	}
	return items, nil
}

// NextSequence upserts the per-day counter. The first call of a day seeds it
// from the highest bill number already stored for the prefix; later calls
// never fall behind stored numbers either. The row lock taken by the upsert
// serialises concurrent creators until their transaction ends.
func (r *repoPG) NextSequence(ctx context.Context, dayPrefix string) (int, error) {
	var seq int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO bill_sequences (day_prefix, last_seq)
		SELECT $1::text, COALESCE(MAX(CAST(SUBSTRING(bill_number FROM 9) AS INTEGER)), 0) + 1
		FROM bills WHERE bill_number ~ `+billNumberPattern+`
		ON CONFLICT (day_prefix) DO UPDATE
			SET last_seq = GREATEST(bill_sequences.last_seq + 1, EXCLUDED.last_seq)
		RETURNING last_seq`, dayPrefix).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next bill sequence: %w", err)
	}
	return seq, nil
}

func (r *repoPG) PeekSequence(ctx context.Context, dayPrefix string) (int, error) {
	var seq int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT GREATEST(
			COALESCE((SELECT last_seq FROM bill_sequences WHERE day_prefix = $1::text), 0),
			COALESCE((SELECT MAX(CAST(SUBSTRING(bill_number FROM 9) AS INTEGER))
				FROM bills WHERE bill_number ~ `+billNumberPattern+`), 0)
		) + 1`, dayPrefix).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("peek bill sequence: %w", err)
	}
	return seq, nil
}

func (r *repoPG) MissingReports(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT b.id FROM bills b
		LEFT JOIN reports r ON r.bill_id = b.id
		WHERE r.id IS NULL
		ORDER BY b.created_at`)
	if err != nil {
		return nil, fmt.Errorf("find bills without report: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repoPG) RewriteDoctorSnapshot(ctx context.Context, oldPhone string, snap directory.DoctorSnapshot) (int64, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE bills SET referred_by_doctor_id = $2, referred_by_name = $3, referred_by_phone = $4,
			referred_by_qualification = $5, updated_at = NOW()
		WHERE referred_by_phone = $1`,
		oldPhone, snap.DoctorID, snap.Name, snap.Phone, snap.Qualification)
	if err != nil {
		return 0, fmt.Errorf("rewrite doctor snapshot: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateReportProgress moves the bill to status unless status is empty or
// the bill was already delivered. A nil reportDate keeps the stored one.
func (r *repoPG) UpdateReportProgress(ctx context.Context, billID uuid.UUID, status string, reportDate *time.Time) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE bills SET
			status = CASE WHEN $2::text = '' OR status = 'Delivered' THEN status ELSE $2::text END,
			report_date = COALESCE($3, report_date),
			updated_at = NOW()
		WHERE id = $1`, billID, status, reportDate)
	if err != nil {
		return db.Classify(err, "bill")
	}
	if tag.RowsAffected() == 0 {
		return db.Classify(pgx.ErrNoRows, "bill")
	}
	return nil
}
