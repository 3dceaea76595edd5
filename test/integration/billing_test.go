//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labdesk/labdesk/internal/domain/billing"
	"github.com/labdesk/labdesk/internal/domain/catalog"
	"github.com/labdesk/labdesk/internal/domain/directory"
	"github.com/labdesk/labdesk/internal/domain/report"
	"github.com/labdesk/labdesk/internal/domain/settings"
	"github.com/labdesk/labdesk/internal/domain/stats"
	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/db"
)

func enableTax(t *testing.T, ctx context.Context, s *stack, pct float64) {
	t.Helper()
	on := true
	_, err := s.settings.UpdateSettings(ctx, &settings.SettingsInput{TaxPercentage: &pct, TaxEnabled: &on})
	require.NoError(t, err)
}

func TestCreateBill_PersistsTotalsAndReport(t *testing.T) {
	tenant := newTenant(t, "bill")
	ctx := tenantCtx(t, tenant)
	s := newStack(t)
	enableTax(t, ctx, s, 10)

	cbc := seedGroup(t, ctx, s, "CBC", 500, "Hemoglobin", "WBC Count")
	lipid := seedGroup(t, ctx, s, "Lipid", 300, "Cholesterol")

	b, err := s.billing.CreateBill(ctx, &billing.BillInput{
		Patient:        &billing.Patient{Name: "Asha Rao"},
		TestGroupIDs:   []uuid.UUID{cbc.ID, lipid.ID},
		ToBePaidAmount: money("800"),
		PaidAmount:     money("200"),
	})
	require.NoError(t, err)

	stored, err := s.billing.GetBill(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 800.0, stored.TotalAmount)
	assert.Equal(t, 80.0, stored.TaxAmount)
	assert.Equal(t, 880.0, stored.TotalWithTax)
	assert.Equal(t, 80.0, stored.Discount)
	assert.Equal(t, 800.0, stored.FinalAmount)
	assert.Equal(t, 600.0, stored.Dues)
	assert.Equal(t, billing.PaymentPartiallyPaid, stored.PaymentStatus)
	assert.Equal(t, billing.StatusSampleCollected, stored.Status)
	require.Len(t, stored.TestGroups, 2)
	assert.Equal(t, "CBC", stored.TestGroups[0].Name)
	assert.Equal(t, "Lipid", stored.TestGroups[1].Name)

	byNumber, err := s.billing.GetByNumber(ctx, b.BillNumber)
	require.NoError(t, err)
	assert.Equal(t, b.ID, byNumber.ID)

	rep, err := s.reports.GetByBill(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, rep.Rows, 3)
	assert.Equal(t, "Hemoglobin", rep.Rows[0].TestName)
	assert.Equal(t, "WBC Count", rep.Rows[1].TestName)
	assert.Equal(t, "Cholesterol", rep.Rows[2].TestName)
}

func TestCreateBill_ConcurrentNumbersAreUnique(t *testing.T) {
	tenant := newTenant(t, "seq")
	s := newStack(t)
	setup := tenantCtx(t, tenant)
	g := seedGroup(t, setup, s, "Thyroid", 450, "TSH")

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]bool)
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, release, err := db.AcquireTenantConn(context.Background(), globalPool, tenant)
			var b *billing.Bill
			if err == nil {
				b, err = s.billing.CreateBill(ctx, &billing.BillInput{
					Patient:      &billing.Patient{Name: "Concurrent Patient"},
					TestGroupIDs: []uuid.UUID{g.ID},
				})
			}
			release()
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers[b.BillNumber] = true
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Len(t, numbers, n)

	prefix := time.Now().Format("20060102")
	for i := 1; i <= n; i++ {
		assert.True(t, numbers[billing.FormatBillNumber(prefix, i)], "missing bill number %d", i)
	}

	next, err := s.billing.NextBillNumber(setup)
	require.NoError(t, err)
	assert.Equal(t, billing.FormatBillNumber(prefix, n+1), next)
}

func TestCreateBill_UnknownGroupRejected(t *testing.T) {
	tenant := newTenant(t, "atomic")
	ctx := tenantCtx(t, tenant)
	s := newStack(t)

	_, err := s.billing.CreateBill(ctx, &billing.BillInput{
		Patient:      &billing.Patient{Name: "Nobody"},
		TestGroupIDs: []uuid.UUID{uuid.New()},
	})
	require.Error(t, err)

	items, total, err := s.billing.ListBills(ctx, billing.ListFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestDeleteBill_CascadesReport(t *testing.T) {
	tenant := newTenant(t, "cascade")
	ctx := tenantCtx(t, tenant)
	s := newStack(t)
	g := seedGroup(t, ctx, s, "Sugar", 150, "Fasting Glucose")

	b, err := s.billing.CreateBill(ctx, &billing.BillInput{
		Patient:      &billing.Patient{Name: "Ravi"},
		TestGroupIDs: []uuid.UUID{g.ID},
	})
	require.NoError(t, err)
	_, err = s.reports.GetByBill(ctx, b.ID)
	require.NoError(t, err)

	require.NoError(t, s.billing.DeleteBill(ctx, b.ID))

	_, err = s.reports.GetByBill(ctx, b.ID)
	assert.True(t, apperr.IsNotFound(err), "got %v", err)
	_, err = s.billing.GetBill(ctx, b.ID)
	assert.True(t, apperr.IsNotFound(err), "got %v", err)
}

func TestUpdateBill_GroupChangeRebuildsReport(t *testing.T) {
	tenant := newTenant(t, "rebuild")
	ctx := tenantCtx(t, tenant)
	s := newStack(t)
	cbc := seedGroup(t, ctx, s, "CBC", 500, "Hemoglobin", "WBC Count")
	thyroid := seedGroup(t, ctx, s, "Thyroid", 450, "TSH")

	b, err := s.billing.CreateBill(ctx, &billing.BillInput{
		Patient:      &billing.Patient{Name: "Meera"},
		TestGroupIDs: []uuid.UUID{cbc.ID},
	})
	require.NoError(t, err)

	updated, err := s.billing.UpdateBill(ctx, b.ID, &billing.BillInput{
		TestGroupIDs: []uuid.UUID{cbc.ID, thyroid.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 950.0, updated.FinalAmount)

	rep, err := s.reports.GetByBill(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, rep.Rows, 3)
	assert.Equal(t, "TSH", rep.Rows[2].TestName)
}

func TestReportResults_CompleteBill(t *testing.T) {
	tenant := newTenant(t, "results")
	ctx := tenantCtx(t, tenant)
	s := newStack(t)
	g := seedGroup(t, ctx, s, "Sugar", 150, "Fasting Glucose", "PP Glucose")

	b, err := s.billing.CreateBill(ctx, &billing.BillInput{
		Patient:      &billing.Patient{Name: "Kiran"},
		TestGroupIDs: []uuid.UUID{g.ID},
	})
	require.NoError(t, err)
	rep, err := s.reports.GetByBill(ctx, b.ID)
	require.NoError(t, err)

	first, second := 0, 1
	_, err = s.reports.UpdateResults(ctx, rep.ID, []report.ResultInput{{Position: &first, Result: strPtr("92")}})
	require.NoError(t, err)
	stored, err := s.billing.GetBill(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusInProgress, stored.Status)
	assert.NotNil(t, stored.ReportDate)

	_, err = s.reports.UpdateResults(ctx, rep.ID, []report.ResultInput{{Position: &second, Result: strPtr("130")}})
	require.NoError(t, err)
	stored, err = s.billing.GetBill(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusCompleted, stored.Status)
}

func TestDoctorPhoneChange_RewritesBills(t *testing.T) {
	tenant := newTenant(t, "doctor")
	ctx := tenantCtx(t, tenant)
	s := newStack(t)
	g := seedGroup(t, ctx, s, "CBC", 500, "Hemoglobin")

	var ids []uuid.UUID
	for _, patient := range []string{"Anil", "Sunita"} {
		b, err := s.billing.CreateBill(ctx, &billing.BillInput{
			Patient:      &billing.Patient{Name: patient},
			ReferredBy:   &billing.ReferredByInput{Name: "Dr. Mehta", Phone: "9876543210", Qualification: strPtr("MD")},
			TestGroupIDs: []uuid.UUID{g.ID},
		})
		require.NoError(t, err)
		require.NotNil(t, b.ReferredBy)
		require.NotNil(t, b.ReferredBy.DoctorID)
		ids = append(ids, b.ID)
	}

	first, err := s.billing.GetBill(ctx, ids[0])
	require.NoError(t, err)
	doctorID := *first.ReferredBy.DoctorID

	replacement, err := s.directory.UpdateDoctor(ctx, doctorID, &directory.DoctorInput{Phone: strPtr("9123456780")})
	require.NoError(t, err)
	assert.NotEqual(t, doctorID, replacement.ID)

	for _, id := range ids {
		b, err := s.billing.GetBill(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "9123456780", b.ReferredBy.Phone)
		assert.Equal(t, "Dr. Mehta", b.ReferredBy.Name)
		assert.Equal(t, replacement.ID, *b.ReferredBy.DoctorID)
	}

	old, err := s.directory.GetDoctor(ctx, doctorID)
	require.NoError(t, err)
	assert.True(t, old.IsActive)
	assert.Equal(t, "Dr. Mehta", old.Name)
	assert.NotEqual(t, "9123456780", old.Phone)
}

func TestListBills_SearchAndFilters(t *testing.T) {
	tenant := newTenant(t, "list")
	ctx := tenantCtx(t, tenant)
	s := newStack(t)
	cbc := seedGroup(t, ctx, s, "CBC", 500, "Hemoglobin")
	lipid := seedGroup(t, ctx, s, "Lipid Profile", 300, "Cholesterol")

	for _, in := range []billing.BillInput{
		{Patient: &billing.Patient{Name: "Asha Rao", Phone: strPtr("9000000001")}, TestGroupIDs: []uuid.UUID{cbc.ID}, PaidAmount: money("500")},
		{Patient: &billing.Patient{Name: "Ravi Kumar"}, TestGroupIDs: []uuid.UUID{lipid.ID}},
		{Patient: &billing.Patient{Name: "Asha Menon"}, TestGroupIDs: []uuid.UUID{cbc.ID, lipid.ID}, PaidAmount: money("100")},
	} {
		in := in
		_, err := s.billing.CreateBill(ctx, &in)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter billing.ListFilter
		want   int
	}{
		{"all", billing.ListFilter{}, 3},
		{"patient name", billing.ListFilter{Search: "asha", SearchBy: "patientName"}, 2},
		{"patient phone", billing.ListFilter{Search: "0001", SearchBy: "patientPhone"}, 1},
		{"test group", billing.ListFilter{Search: "lipid", SearchBy: "testGroup"}, 2},
		{"paid", billing.ListFilter{PaymentStatus: billing.PaymentPaid}, 1},
		{"pending", billing.ListFilter{PaymentStatus: billing.PaymentPending}, 1},
		{"amount gte", billing.ListFilter{Amount: floatPtr(500), AmountOp: "gte"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := s.billing.ListBills(ctx, tt.filter, 20, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, total)
			assert.Len(t, items, tt.want)
		})
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestStatistics_OverDatabase(t *testing.T) {
	tenant := newTenant(t, "stats")
	ctx := tenantCtx(t, tenant)
	s := newStack(t)
	g := seedGroup(t, ctx, s, "CBC", 500, "Hemoglobin")

	for _, paid := range []string{"500", "0"} {
		_, err := s.billing.CreateBill(ctx, &billing.BillInput{
			Patient:      &billing.Patient{Name: "Patient " + paid},
			TestGroupIDs: []uuid.UUID{g.ID},
			PaidAmount:   money(paid),
		})
		require.NoError(t, err)
	}

	sum, err := stats.NewService(s.billing).Summarize(ctx, stats.Query{Range: stats.ScopeToday})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalCases)
	assert.Equal(t, 1000.0, sum.TotalRevenue)
	assert.Equal(t, 500.0, sum.TotalReceived)
	assert.Equal(t, 500.0, sum.PendingAmount)
	assert.Equal(t, 50.0, sum.CollectionEfficiency)
	require.Len(t, sum.TopTestGroups, 1)
	assert.Equal(t, 2, sum.TopTestGroups[0].Count)
}

func TestReconcileReports_CreatesMissing(t *testing.T) {
	tenant := newTenant(t, "reconcile")
	ctx := tenantCtx(t, tenant)
	s := newStack(t)
	g := seedGroup(t, ctx, s, "CBC", 500, "Hemoglobin")

	b, err := s.billing.CreateBill(ctx, &billing.BillInput{
		Patient:      &billing.Patient{Name: "Legacy"},
		TestGroupIDs: []uuid.UUID{g.ID},
	})
	require.NoError(t, err)
	_, err = globalPool.Exec(ctx, "DELETE FROM "+db.SchemaName(tenant)+".reports WHERE bill_id = $1", b.ID)
	require.NoError(t, err)

	n, err := s.billing.ReconcileReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rep, err := s.reports.GetByBill(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, rep.Rows, 1)

	n, err = s.billing.ReconcileReports(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteGroup_CascadesOwnedTests(t *testing.T) {
	tenant := newTenant(t, "groupdel")
	ctx := tenantCtx(t, tenant)
	s := newStack(t)
	cbc := seedGroup(t, ctx, s, "CBC", 500, "Hemoglobin", "WBC Count")
	code, name := "LOOSE-1", "Blood Sugar"
	loose, err := s.catalog.CreateTest(ctx, &catalog.TestInput{Code: &code, Name: &name})
	require.NoError(t, err)

	countTests := func(groupID uuid.UUID) int {
		var n int
		err := db.Conn(ctx, globalPool).QueryRow(ctx,
			"SELECT COUNT(*) FROM tests WHERE test_group_id = $1", groupID).Scan(&n)
		require.NoError(t, err)
		return n
	}
	require.Equal(t, 2, countTests(cbc.ID))

	require.NoError(t, s.catalog.DeleteGroup(ctx, cbc.ID))

	assert.Equal(t, 0, countTests(cbc.ID))
	_, err = s.catalog.GetGroup(ctx, cbc.ID)
	assert.True(t, apperr.IsNotFound(err), "got %v", err)
	got, err := s.catalog.GetTest(ctx, loose.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blood Sugar", got.Name)
}
