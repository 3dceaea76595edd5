package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/labdesk/labdesk/internal/domain/catalog"
	"github.com/labdesk/labdesk/internal/domain/directory"
	"github.com/labdesk/labdesk/internal/domain/report"
	"github.com/labdesk/labdesk/internal/domain/settings"
	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/db"
	"github.com/labdesk/labdesk/internal/platform/metrics"
	"github.com/labdesk/labdesk/internal/platform/search"
)

// maxBillNumberAttempts bounds creation retries after a bill number clash.
const maxBillNumberAttempts = 3

// DirectPaymentMode names payments entered without payment modes.
const DirectPaymentMode = "Direct"

// GroupResolver loads test groups with their active tests, in request order.
type GroupResolver interface {
	Resolve(ctx context.Context, ids []uuid.UUID) ([]*catalog.TestGroup, error)
}

type SettingsReader interface {
	GetSettings(ctx context.Context) (*settings.Settings, error)
}

// DoctorDirectory is the part of the directory the billing engine consults.
type DoctorDirectory interface {
	FindOrCreate(ctx context.Context, name, phone string, qualification *string) (*directory.ReferredDoctor, error)
	GetPaymentMode(ctx context.Context, id uuid.UUID) (*directory.PaymentMode, error)
}

// ReportBuilder keeps the report of a bill in step with its test groups.
type ReportBuilder interface {
	CreateForBill(ctx context.Context, billID uuid.UUID, groups []*catalog.TestGroup) (*report.Report, error)
	RebuildForBill(ctx context.Context, billID uuid.UUID, groups []*catalog.TestGroup) error
}

// Deps bundles the collaborators of Service.
type Deps struct {
	Repo      Repository
	Groups    GroupResolver
	Settings  SettingsReader
	Directory DoctorDirectory
	Reports   ReportBuilder
	Tx        db.Transactor
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

type Service struct {
	repo      Repository
	groups    GroupResolver
	settings  SettingsReader
	directory DoctorDirectory
	reports   ReportBuilder
	tx        db.Transactor
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		repo:      d.Repo,
		groups:    d.Groups,
		settings:  d.Settings,
		directory: d.Directory,
		reports:   d.Reports,
		tx:        d.Tx,
		metrics:   d.Metrics,
		logger:    d.Logger,
		now:       time.Now,
	}
}

// FormatBillNumber joins a YYYYMMDD day prefix and a sequence number.
func FormatBillNumber(dayPrefix string, seq int) string {
	return fmt.Sprintf("%s%04d", dayPrefix, seq)
}

func (s *Service) dayPrefix() string {
	return s.now().Format("20060102")
}

// CreateBill prices the requested test groups, numbers the bill and stores it
// together with its report skeleton in one transaction.
func (s *Service) CreateBill(ctx context.Context, in *BillInput) (*Bill, error) {
	if in.Patient == nil || strings.TrimSpace(in.Patient.Name) == "" {
		return nil, apperr.Validation("patient name is required")
	}
	if len(in.TestGroupIDs) == 0 {
		return nil, apperr.Validation("at least one test group is required")
	}
	if err := validateTarget(in.ToBePaidAmount); err != nil {
		return nil, err
	}

	groups, err := s.groups.Resolve(ctx, in.TestGroupIDs)
	if err != nil {
		return nil, err
	}
	cfg, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	b := &Bill{
		Patient:              *in.Patient,
		TestGroups:           snapshotGroups(groups),
		IsPaymentModeEnabled: cfg.PaymentModeEnabled,
		Payments:             []Payment{},
		BillDate:             s.now(),
		Status:               StatusSampleCollected,
	}
	b.Patient.Name = strings.TrimSpace(b.Patient.Name)
	if in.IsPaymentModeEnabled != nil {
		b.IsPaymentModeEnabled = *in.IsPaymentModeEnabled
	}
	if err := applyDetails(b, in); err != nil {
		return nil, err
	}
	if b.IsPaymentModeEnabled && in.Payments != nil {
		if b.Payments, err = s.buildPayments(ctx, in.Payments); err != nil {
			return nil, err
		}
	}
	if err := validateAmount(in.PaidAmount, "paid amount"); err != nil {
		return nil, err
	}

	t := Compute(Inputs{
		Prices:             groupPrices(b.TestGroups),
		TaxEnabled:         cfg.TaxEnabled,
		TaxPercentage:      decimal.NewFromFloat(cfg.TaxPercentage),
		Target:             in.ToBePaidAmount,
		PaymentModeEnabled: b.IsPaymentModeEnabled,
		Payments:           paymentAmounts(b.Payments),
		DirectPaid:         in.PaidAmount,
	})
	b.setTotals(t)
	b.ToBePaidAmount = floatPtr(in.ToBePaidAmount)
	s.logMarkup(b)

	b.ReferredBy = s.referredBy(ctx, in.ReferredBy)

	prefix := s.dayPrefix()
	for attempt := 1; ; attempt++ {
		err = s.tx.InTx(ctx, func(ctx context.Context) error {
			seq, err := s.repo.NextSequence(ctx, prefix)
			if err != nil {
				return err
			}
			b.BillNumber = FormatBillNumber(prefix, seq)
			if err := s.repo.Create(ctx, b); err != nil {
				return err
			}
			if _, err := s.reports.CreateForBill(ctx, b.ID, groups); err != nil {
				return fmt.Errorf("create report: %w", err)
			}
			return nil
		})
		if !errors.Is(err, ErrDuplicateBillNumber) {
			break
		}
		if attempt == maxBillNumberAttempts {
			return nil, apperr.Conflict("could not assign a unique bill number, please retry")
		}
		s.metrics.BillNumberRetried()
		s.logger.Warn().Str("bill_number", b.BillNumber).Int("attempt", attempt).Msg("bill number taken, retrying")
	}
	if err != nil {
		return nil, err
	}

	s.metrics.BillCreated(db.TenantFromContext(ctx), b.PaymentStatus, b.FinalAmount)
	return b, nil
}

func (s *Service) GetBill(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, billNumber string) (*Bill, error) {
	return s.repo.GetByNumber(ctx, billNumber)
}

func (s *Service) ListBills(ctx context.Context, f ListFilter, limit, offset int) ([]*Bill, int, error) {
	if f.SearchBy == "" {
		f.SearchBy = SearchAll
	}
	if !validSearchScopes[f.SearchBy] {
		return nil, 0, apperr.Validation("invalid searchBy %q", f.SearchBy)
	}
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Validation("invalid status %q", f.Status)
	}
	if f.PaymentStatus != "" && !validPaymentStatuses[f.PaymentStatus] {
		return nil, 0, apperr.Validation("invalid paymentStatus %q", f.PaymentStatus)
	}
	if f.Amount != nil {
		if f.AmountOp == "" {
			f.AmountOp = "eq"
		}
		if !search.ValidComparator(f.AmountOp) {
			return nil, 0, apperr.Validation("invalid amountOp %q", f.AmountOp)
		}
	}
	return s.repo.List(ctx, f, limit, offset)
}

// ListBetween returns every bill dated within the bounds. Nil bounds are
// open.
func (s *Service) ListBetween(ctx context.Context, from, to *time.Time) ([]*Bill, error) {
	return s.repo.ListBetween(ctx, from, to)
}

// UpdateBill applies a partial update. Totals follow three separate
// triggers:
//   - test groups changed, or payments and target changed together: full
//     recompute, rebuilding the report rows when the groups changed
//   - only the target changed: final amount and discount from the stored
//     totals, status against the stored paid amount
//   - only payments changed: paid amount, status and dues against the stored
//     final amount
func (s *Service) UpdateBill(ctx context.Context, id uuid.UUID, in *BillInput) (*Bill, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *current

	if in.Patient != nil {
		if strings.TrimSpace(in.Patient.Name) == "" {
			return nil, apperr.Validation("patient name is required")
		}
		next.Patient = *in.Patient
		next.Patient.Name = strings.TrimSpace(next.Patient.Name)
	}
	if err := applyDetails(&next, in); err != nil {
		return nil, err
	}
	if err := validateTarget(in.ToBePaidAmount); err != nil {
		return nil, err
	}
	if err := validateAmount(in.PaidAmount, "paid amount"); err != nil {
		return nil, err
	}

	var groups []*catalog.TestGroup
	groupsChanged := false
	if in.TestGroupIDs != nil {
		if len(in.TestGroupIDs) == 0 {
			return nil, apperr.Validation("at least one test group is required")
		}
		if !sameGroups(current.TestGroups, in.TestGroupIDs) {
			if groups, err = s.groups.Resolve(ctx, in.TestGroupIDs); err != nil {
				return nil, err
			}
			next.TestGroups = snapshotGroups(groups)
			groupsChanged = true
		}
	}

	modeChanged := false
	if in.IsPaymentModeEnabled != nil {
		modeChanged = *in.IsPaymentModeEnabled != current.IsPaymentModeEnabled
		next.IsPaymentModeEnabled = *in.IsPaymentModeEnabled
	}
	if in.Payments != nil {
		if next.Payments, err = s.buildPayments(ctx, in.Payments); err != nil {
			return nil, err
		}
	}
	paymentsChanged := in.Payments != nil || in.PaidAmount != nil || modeChanged

	target := decimalPtr(current.ToBePaidAmount)
	targetChanged := false
	if in.ToBePaidAmount != nil {
		targetChanged = target == nil || !target.Equal(in.ToBePaidAmount.Round(2))
		target = in.ToBePaidAmount
	} else if groupsChanged {
		// A target priced against the old groups no longer applies.
		target = nil
	}

	t := current.totals()
	paid := paidFor(&next, in)
	switch {
	case groupsChanged || (paymentsChanged && targetChanged):
		total, tax := t.TotalAmount, t.TaxAmount
		if groupsChanged {
			cfg, err := s.settings.GetSettings(ctx)
			if err != nil {
				return nil, err
			}
			total = sum(groupPrices(next.TestGroups))
			tax = Tax(total, cfg.TaxEnabled, decimal.NewFromFloat(cfg.TaxPercentage))
		}
		t = Settle(total, tax, target, paid)
	case targetChanged:
		t = Reprice(t, target)
	case paymentsChanged:
		t = Repay(t, paid)
	}
	next.setTotals(t)
	next.ToBePaidAmount = floatPtr(target)
	if targetChanged || groupsChanged {
		s.logMarkup(&next)
	}

	if in.ReferredBy != nil {
		next.ReferredBy = s.referredBy(ctx, in.ReferredBy)
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, &next); err != nil {
			return err
		}
		if groupsChanged {
			if err := s.reports.RebuildForBill(ctx, next.ID, groups); err != nil {
				return fmt.Errorf("rebuild report: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// UpdateStatus moves the bill through its sample and report workflow.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Bill, error) {
	if !validStatuses[status] {
		return nil, apperr.Validation("invalid status %q", status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// AddPayment records one more payment. With payment modes enabled it is
// appended as an entry, otherwise it is added to the directly paid amount.
func (s *Service) AddPayment(ctx context.Context, id uuid.UUID, in PaymentInput) (*Bill, error) {
	if in.Amount == nil || !in.Amount.IsPositive() {
		return nil, apperr.Validation("payment amount must be positive")
	}
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	mode := DirectPaymentMode
	var paid decimal.Decimal
	if b.IsPaymentModeEnabled {
		p, err := s.buildPayment(ctx, in)
		if err != nil {
			return nil, err
		}
		b.Payments = append(b.Payments, p)
		mode = p.Mode
		paid = sum(paymentAmounts(b.Payments))
	} else {
		paid = decimal.NewFromFloat(b.PaidAmount).Add(in.Amount.Round(2))
	}
	b.setTotals(Repay(b.totals(), paid))

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.PaymentRecorded(mode)
	return b, nil
}

// DeleteBill removes the bill and, through the schema, its report.
func (s *Service) DeleteBill(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// NextBillNumber previews the number the next bill created today would get.
// It reserves nothing.
func (s *Service) NextBillNumber(ctx context.Context) (string, error) {
	prefix := s.dayPrefix()
	seq, err := s.repo.PeekSequence(ctx, prefix)
	if err != nil {
		return "", err
	}
	return FormatBillNumber(prefix, seq), nil
}

// ReconcileReports builds the missing report of every bill that has none,
// using the current catalog. Bills that fail are logged and skipped; the
// number of reports created is returned.
func (s *Service) ReconcileReports(ctx context.Context) (int, error) {
	ids, err := s.repo.MissingReports(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, id := range ids {
		b, err := s.repo.GetByID(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("bill_id", id.String()).Msg("reconcile: load bill failed")
			continue
		}
		groups := s.resolveAvailable(ctx, b)
		if _, err := s.reports.CreateForBill(ctx, b.ID, groups); err != nil {
			s.logger.Warn().Err(err).Str("bill_number", b.BillNumber).Msg("reconcile: create report failed")
			continue
		}
		created++
	}
	s.logger.Info().Int("missing", len(ids)).Int("created", created).Msg("report reconciliation finished")
	return created, nil
}

// resolveAvailable resolves the bill's test groups one by one, skipping
// groups deleted since the bill was issued.
func (s *Service) resolveAvailable(ctx context.Context, b *Bill) []*catalog.TestGroup {
	var groups []*catalog.TestGroup
	for _, g := range b.TestGroups {
		resolved, err := s.groups.Resolve(ctx, []uuid.UUID{g.TestGroupID})
		if err != nil {
			s.logger.Warn().Err(err).
				Str("bill_number", b.BillNumber).
				Str("test_group_id", g.TestGroupID.String()).
				Msg("reconcile: test group unavailable")
			continue
		}
		groups = append(groups, resolved...)
	}
	return groups
}

// referredBy builds the doctor snapshot and links it to the directory. A
// failed lookup leaves the snapshot without a doctor id.
func (s *Service) referredBy(ctx context.Context, in *ReferredByInput) *ReferredBy {
	if in == nil {
		return nil
	}
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	if name == "" && phone == "" {
		return nil
	}
	ref := &ReferredBy{Name: name, Phone: phone, Qualification: in.Qualification}
	if name == "" || phone == "" {
		return ref
	}

	d, err := s.directory.FindOrCreate(ctx, name, phone, in.Qualification)
	if err != nil {
		s.logger.Warn().Err(err).Str("phone", phone).Msg("referred doctor lookup failed, saving snapshot only")
		return ref
	}
	docID := d.ID
	ref.DoctorID = &docID
	return ref
}

func (s *Service) buildPayments(ctx context.Context, inputs []PaymentInput) ([]Payment, error) {
	out := make([]Payment, 0, len(inputs))
	for _, in := range inputs {
		p, err := s.buildPayment(ctx, in)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// buildPayment validates an entry and snapshots its payment mode name.
func (s *Service) buildPayment(ctx context.Context, in PaymentInput) (Payment, error) {
	if err := validateAmount(in.Amount, "payment amount"); err != nil {
		return Payment{}, err
	}
	amount := decimal.Zero
	if in.Amount != nil {
		amount = in.Amount.Round(2)
	}
	p := Payment{
		ID:            uuid.New(),
		PaymentModeID: in.PaymentModeID,
		Mode:          strings.TrimSpace(in.Mode),
		Amount:        amount.InexactFloat64(),
		Reference:     in.Reference,
		PaidAt:        s.now(),
	}
	if in.Date != nil {
		p.PaidAt = *in.Date
	}

	if in.PaymentModeID != nil {
		m, err := s.directory.GetPaymentMode(ctx, *in.PaymentModeID)
		if apperr.IsNotFound(err) {
			return Payment{}, apperr.Validation("invalid payment mode")
		}
		if err != nil {
			return Payment{}, err
		}
		p.Mode = m.Name
	} else if p.Mode == "" {
		return Payment{}, apperr.Validation("payment mode is required")
	}
	return p, nil
}

func (s *Service) logMarkup(b *Bill) {
	if b.Discount < 0 {
		s.logger.Info().
			Float64("total_with_tax", b.TotalWithTax).
			Float64("final_amount", b.FinalAmount).
			Msg("target payable exceeds total, recording markup as negative discount")
	}
}

// applyDetails copies the descriptive fields that never affect totals.
func applyDetails(b *Bill, in *BillInput) error {
	if in.Status != nil {
		if !validStatuses[*in.Status] {
			return apperr.Validation("invalid status %q", *in.Status)
		}
		b.Status = *in.Status
	}
	if in.BillDate != nil {
		b.BillDate = *in.BillDate
	}
	if in.SampleCollectionDate != nil {
		b.SampleCollectionDate = in.SampleCollectionDate
	}
	if in.SampleReceivedDate != nil {
		b.SampleReceivedDate = in.SampleReceivedDate
	}
	if in.Notes != nil {
		b.Notes = in.Notes
	}
	return nil
}

// paidFor picks the paid amount of an updated bill: the entries when
// payment modes are on, else the submitted or stored direct amount.
func paidFor(b *Bill, in *BillInput) decimal.Decimal {
	if b.IsPaymentModeEnabled {
		return sum(paymentAmounts(b.Payments))
	}
	if in.PaidAmount != nil {
		return in.PaidAmount.Round(2)
	}
	return decimal.NewFromFloat(b.PaidAmount)
}

func validateTarget(target *decimal.Decimal) error {
	return validateAmount(target, "toBePaidAmount")
}

func validateAmount(v *decimal.Decimal, field string) error {
	if v != nil && v.IsNegative() {
		return apperr.Validation("%s cannot be negative", field)
	}
	return nil
}

func snapshotGroups(groups []*catalog.TestGroup) []BillTestGroup {
	out := make([]BillTestGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, BillTestGroup{TestGroupID: g.ID, Name: g.Name, Price: g.Price})
	}
	return out
}

func sameGroups(current []BillTestGroup, ids []uuid.UUID) bool {
	if len(current) != len(ids) {
		return false
	}
	for i, g := range current {
		if g.TestGroupID != ids[i] {
			return false
		}
	}
	return true
}

func groupPrices(groups []BillTestGroup) []decimal.Decimal {
	out := make([]decimal.Decimal, len(groups))
	for i, g := range groups {
		out[i] = decimal.NewFromFloat(g.Price)
	}
	return out
}

func paymentAmounts(payments []Payment) []decimal.Decimal {
	out := make([]decimal.Decimal, len(payments))
	for i, p := range payments {
		out[i] = decimal.NewFromFloat(p.Amount)
	}
	return out
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total.Round(2)
}

func floatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.Round(2).InexactFloat64()
	return &f
}

func decimalPtr(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}
