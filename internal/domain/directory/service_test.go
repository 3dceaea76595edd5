package directory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labdesk/labdesk/internal/platform/apperr"
)

// =========== Mocks ===========

type mockDoctorRepo struct {
	store   map[uuid.UUID]*ReferredDoctor
	creates int
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{store: make(map[uuid.UUID]*ReferredDoctor)}
}

func (m *mockDoctorRepo) phoneTaken(phone string, except uuid.UUID) bool {
	for id, d := range m.store {
		if id != except && d.IsActive && d.Phone == phone {
			return true
		}
	}
	return false
}

func (m *mockDoctorRepo) Create(_ context.Context, d *ReferredDoctor) error {
	if d.IsActive && m.phoneTaken(d.Phone, uuid.Nil) {
		return apperr.Conflict("doctor phone already exists")
	}
	d.ID = uuid.New()
	cp := *d
	m.store[d.ID] = &cp
	m.creates++
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*ReferredDoctor, error) {
	d, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("referred doctor not found")
	}
	cp := *d
	return &cp, nil
}

func (m *mockDoctorRepo) GetByPhone(_ context.Context, phone string) (*ReferredDoctor, error) {
	for _, d := range m.store {
		if d.IsActive && d.Phone == phone {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("referred doctor not found")
}

func (m *mockDoctorRepo) Update(_ context.Context, d *ReferredDoctor) error {
	if _, ok := m.store[d.ID]; !ok {
		return apperr.NotFound("referred doctor not found")
	}
	if d.IsActive && m.phoneTaken(d.Phone, d.ID) {
		return apperr.Conflict("doctor phone already exists")
	}
	cp := *d
	m.store[d.ID] = &cp
	return nil
}

func (m *mockDoctorRepo) List(_ context.Context, f DoctorFilter, limit, offset int) ([]*ReferredDoctor, int, error) {
	var out []*ReferredDoctor
	for _, d := range m.store {
		if f.Active != nil && d.IsActive != *f.Active {
			continue
		}
		out = append(out, d)
	}
	return out, len(out), nil
}

type mockPaymentModeRepo struct {
	store map[uuid.UUID]*PaymentMode
}

func newMockPaymentModeRepo() *mockPaymentModeRepo {
	return &mockPaymentModeRepo{store: make(map[uuid.UUID]*PaymentMode)}
}

func (m *mockPaymentModeRepo) Create(_ context.Context, pm *PaymentMode) error {
	for _, existing := range m.store {
		if existing.Name == pm.Name {
			return apperr.Conflict("payment mode already exists")
		}
	}
	pm.ID = uuid.New()
	cp := *pm
	m.store[pm.ID] = &cp
	return nil
}

func (m *mockPaymentModeRepo) GetByID(_ context.Context, id uuid.UUID) (*PaymentMode, error) {
	pm, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("payment mode not found")
	}
	cp := *pm
	return &cp, nil
}

func (m *mockPaymentModeRepo) Update(_ context.Context, pm *PaymentMode) error {
	if _, ok := m.store[pm.ID]; !ok {
		return apperr.NotFound("payment mode not found")
	}
	cp := *pm
	m.store[pm.ID] = &cp
	return nil
}

func (m *mockPaymentModeRepo) List(_ context.Context, active *bool, limit, offset int) ([]*PaymentMode, int, error) {
	var out []*PaymentMode
	for _, pm := range m.store {
		if active != nil && pm.IsActive != *active {
			continue
		}
		out = append(out, pm)
	}
	return out, len(out), nil
}

type rewriteCall struct {
	oldPhone string
	snap     DoctorSnapshot
}

type mockRewriter struct {
	calls []rewriteCall
	err   error
}

func (m *mockRewriter) RewriteDoctorSnapshot(_ context.Context, oldPhone string, snap DoctorSnapshot) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.calls = append(m.calls, rewriteCall{oldPhone: oldPhone, snap: snap})
	return 3, nil
}

type inlineTx struct{ calls int }

func (t *inlineTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type testDeps struct {
	doctors  *mockDoctorRepo
	modes    *mockPaymentModeRepo
	rewriter *mockRewriter
	tx       *inlineTx
}

func newTestService() (*Service, *testDeps) {
	d := &testDeps{
		doctors:  newMockDoctorRepo(),
		modes:    newMockPaymentModeRepo(),
		rewriter: &mockRewriter{},
		tx:       &inlineTx{},
	}
	return NewService(d.doctors, d.modes, d.rewriter, d.tx, zerolog.Nop()), d
}

func strPtr(s string) *string { return &s }

// =========== Referred Doctor Tests ===========

func TestValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"9876543210", true},
		{"987654321", false},
		{"98765432100", false},
		{"98765x3210", false},
		{"", false},
		{"+919876543", false},
	}
	for _, tt := range tests {
		if got := ValidPhone(tt.phone); got != tt.want {
			t.Errorf("ValidPhone(%q) = %v, want %v", tt.phone, got, tt.want)
		}
	}
}

func TestService_CreateDoctor(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	d, err := svc.CreateDoctor(ctx, &DoctorInput{Name: strPtr("Dr. Rao"), Phone: strPtr(" 9876543210 ")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Phone != "9876543210" || !d.IsActive {
		t.Errorf("unexpected doctor %+v", d)
	}

	if _, err := svc.CreateDoctor(ctx, &DoctorInput{Name: strPtr("Dr. Other"), Phone: strPtr("9876543210")}); !apperr.IsConflict(err) {
		t.Errorf("expected conflict for duplicate phone, got %v", err)
	}
	if _, err := svc.CreateDoctor(ctx, &DoctorInput{Name: strPtr("Dr. Short"), Phone: strPtr("12345")}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for malformed phone, got %v", err)
	}
	if _, err := svc.CreateDoctor(ctx, &DoctorInput{Phone: strPtr("9999999999")}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for missing name, got %v", err)
	}
}

func TestService_UpdateDoctor_SamePhoneEditsInPlace(t *testing.T) {
	svc, deps := newTestService()
	ctx := context.Background()
	d, _ := svc.CreateDoctor(ctx, &DoctorInput{Name: strPtr("Dr. Rao"), Phone: strPtr("9876543210")})

	updated, err := svc.UpdateDoctor(ctx, d.ID, &DoctorInput{Qualification: strPtr("MD")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ID != d.ID {
		t.Error("expected same row when phone is unchanged")
	}
	if len(deps.rewriter.calls) != 0 {
		t.Error("expected no bill rewrite without a phone change")
	}
	if deps.tx.calls != 0 {
		t.Error("expected no transaction for an in-place edit")
	}
}

func TestService_UpdateDoctor_PhoneChangeCreatesNewRow(t *testing.T) {
	svc, deps := newTestService()
	ctx := context.Background()
	old, _ := svc.CreateDoctor(ctx, &DoctorInput{Name: strPtr("Dr. Rao"), Phone: strPtr("9876543210"), Qualification: strPtr("MBBS")})

	repl, err := svc.UpdateDoctor(ctx, old.ID, &DoctorInput{Name: strPtr("Dr. S. Rao"), Phone: strPtr("9123456780")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repl.ID == old.ID {
		t.Fatal("expected a new doctor row for a phone change")
	}
	if repl.Phone != "9123456780" || repl.Name != "Dr. S. Rao" || repl.Qualification == nil || *repl.Qualification != "MBBS" {
		t.Errorf("unexpected replacement %+v", repl)
	}

	stored := deps.doctors.store[old.ID]
	if stored.Phone != "9876543210" || stored.Name != "Dr. Rao" || !stored.IsActive {
		t.Errorf("existing row must stay unchanged, got %+v", stored)
	}
	if stored.Qualification == nil || *stored.Qualification != "MBBS" {
		t.Errorf("existing row lost its qualification, got %v", stored.Qualification)
	}

	if len(deps.rewriter.calls) != 1 {
		t.Fatalf("expected 1 rewrite call, got %d", len(deps.rewriter.calls))
	}
	call := deps.rewriter.calls[0]
	if call.oldPhone != "9876543210" || call.snap.DoctorID != repl.ID || call.snap.Phone != "9123456780" || call.snap.Name != "Dr. S. Rao" {
		t.Errorf("unexpected rewrite call %+v", call)
	}
	if deps.tx.calls != 1 {
		t.Errorf("expected phone change to run in one transaction, got %d", deps.tx.calls)
	}
}

func TestService_UpdateDoctor_PhoneTaken(t *testing.T) {
	svc, deps := newTestService()
	ctx := context.Background()
	a, _ := svc.CreateDoctor(ctx, &DoctorInput{Name: strPtr("A"), Phone: strPtr("1111111111")})
	svc.CreateDoctor(ctx, &DoctorInput{Name: strPtr("B"), Phone: strPtr("2222222222")})

	_, err := svc.UpdateDoctor(ctx, a.ID, &DoctorInput{Phone: strPtr("2222222222")})
	if !apperr.IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}
	if len(deps.rewriter.calls) != 0 {
		t.Error("bills must not be rewritten when the replacement fails")
	}
}

func TestService_DeleteDoctor_IsSoft(t *testing.T) {
	svc, deps := newTestService()
	ctx := context.Background()
	d, _ := svc.CreateDoctor(ctx, &DoctorInput{Name: strPtr("A"), Phone: strPtr("1111111111")})

	if err := svc.DeleteDoctor(ctx, d.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deps.doctors.store[d.ID].IsActive {
		t.Error("expected doctor to be deactivated")
	}
	if err := svc.DeleteDoctor(ctx, uuid.New()); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_FindOrCreate(t *testing.T) {
	svc, deps := newTestService()
	ctx := context.Background()

	created, err := svc.FindOrCreate(ctx, "Dr. Mehta", "9000000001", strPtr("MD"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := svc.FindOrCreate(ctx, "Dr. Mehta", "9000000001", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != created.ID || deps.doctors.creates != 1 {
		t.Error("expected existing doctor to be matched by phone")
	}

	renamed, err := svc.FindOrCreate(ctx, "Dr. A. Mehta", "9000000001", strPtr("MD, DM"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if renamed.ID != created.ID || renamed.Name != "Dr. A. Mehta" || *renamed.Qualification != "MD, DM" {
		t.Errorf("expected name and qualification refresh, got %+v", renamed)
	}
	if deps.doctors.store[created.ID].Name != "Dr. A. Mehta" {
		t.Error("expected refresh to be persisted")
	}

	if _, err := svc.FindOrCreate(ctx, "Dr. X", "123", nil); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// =========== Payment Mode Tests ===========

func TestService_PaymentModes(t *testing.T) {
	svc, deps := newTestService()
	ctx := context.Background()

	cash, err := svc.CreatePaymentMode(ctx, &PaymentModeInput{Name: strPtr("Cash")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.CreatePaymentMode(ctx, &PaymentModeInput{Name: strPtr("Cash")}); !apperr.IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}
	if _, err := svc.CreatePaymentMode(ctx, &PaymentModeInput{Name: strPtr("  ")}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}

	updated, err := svc.UpdatePaymentMode(ctx, cash.ID, &PaymentModeInput{Description: strPtr("Counter cash")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Description == nil || *updated.Description != "Counter cash" {
		t.Errorf("unexpected description %v", updated.Description)
	}

	if err := svc.DeletePaymentMode(ctx, cash.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, ok := deps.modes.store[cash.ID]
	if !ok {
		t.Fatal("soft delete must keep the row")
	}
	if stored.IsActive {
		t.Error("expected payment mode to be inactive")
	}

	active := true
	items, total, _ := svc.ListPaymentModes(ctx, &active, 20, 0)
	if total != 0 || len(items) != 0 {
		t.Errorf("expected no active modes, got %d", total)
	}
}
