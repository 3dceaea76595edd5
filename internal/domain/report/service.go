package report

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/labdesk/labdesk/internal/domain/catalog"
	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/db"
	"github.com/labdesk/labdesk/internal/platform/metrics"
)

// Bill workflow states driven by result entry.
const (
	billInProgress = "InProgress"
	billCompleted  = "Completed"
)

type Service struct {
	repo    Repository
	bills   BillProgress
	tx      db.Transactor
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo Repository, bills BillProgress, tx db.Transactor, m *metrics.Metrics) *Service {
	return &Service{repo: repo, bills: bills, tx: tx, metrics: m, now: time.Now}
}

// BuildRows flattens the tests of groups into report rows, in group order
// and then test order within each group.
func BuildRows(groups []*catalog.TestGroup) []Row {
	rows := []Row{}
	for _, g := range groups {
		gid := g.ID
		for _, t := range g.Tests {
			rows = append(rows, Row{
				TestID:      t.ID,
				TestGroupID: &gid,
				TestName:    t.Name,
				Units:       t.Units,
				Methodology: t.Methodology,
				NormalRange: t.NormalRange,
			})
		}
	}
	return rows
}

// carryOver copies entered results from previous onto next for tests present
// in both. Repeated tests are matched in order.
func carryOver(previous, next []Row) []Row {
	pending := make(map[uuid.UUID][]Row)
	for _, row := range previous {
		pending[row.TestID] = append(pending[row.TestID], row)
	}
	for i := range next {
		queue := pending[next[i].TestID]
		if len(queue) == 0 {
			continue
		}
		next[i].Result = queue[0].Result
		next[i].Flag = queue[0].Flag
		next[i].Remarks = queue[0].Remarks
		pending[next[i].TestID] = queue[1:]
	}
	return next
}

// CreateForBill persists the report skeleton for a new bill.
func (s *Service) CreateForBill(ctx context.Context, billID uuid.UUID, groups []*catalog.TestGroup) (*Report, error) {
	rep := &Report{BillID: billID, Rows: BuildRows(groups)}
	if err := s.repo.Create(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// RebuildForBill regenerates the rows after the bill's test groups changed,
// keeping results already entered for tests that remain.
func (s *Service) RebuildForBill(ctx context.Context, billID uuid.UUID, groups []*catalog.TestGroup) error {
	rep, err := s.repo.GetByBillID(ctx, billID)
	if apperr.IsNotFound(err) {
		_, err = s.CreateForBill(ctx, billID, groups)
		return err
	}
	if err != nil {
		return err
	}
	return s.repo.ReplaceRows(ctx, rep.ID, carryOver(rep.Rows, BuildRows(groups)))
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Report, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByBill(ctx context.Context, billID uuid.UUID) (*Report, error) {
	return s.repo.GetByBillID(ctx, billID)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Report, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// UpdateResults applies result entries and recomputes their flags. The first
// save stamps the report date. The bill moves to Completed once every row
// has a result, otherwise to InProgress.
func (s *Service) UpdateResults(ctx context.Context, id uuid.UUID, inputs []ResultInput) (*Report, error) {
	if len(inputs) == 0 {
		return nil, apperr.Validation("results are required")
	}
	rep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	wasComplete := rep.Complete()

	for _, in := range inputs {
		idx, err := rowIndex(rep.Rows, in)
		if err != nil {
			return nil, err
		}
		if err := applyResult(&rep.Rows[idx], in); err != nil {
			return nil, err
		}
	}

	stamped := false
	if rep.ReportDate == nil {
		now := s.now()
		rep.ReportDate = &now
		stamped = true
	}
	status := billInProgress
	if rep.Complete() {
		status = billCompleted
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.ReplaceRows(ctx, rep.ID, rep.Rows); err != nil {
			return err
		}
		if stamped {
			if err := s.repo.SetReportDate(ctx, rep.ID, rep.ReportDate); err != nil {
				return err
			}
		}
		return s.bills.UpdateReportProgress(ctx, rep.BillID, status, rep.ReportDate)
	})
	if err != nil {
		return nil, err
	}

	if status == billCompleted && !wasComplete {
		s.metrics.ReportCompleted()
	}
	return rep, nil
}

// SetReportDate overrides the report date on the report and its bill.
func (s *Service) SetReportDate(ctx context.Context, id uuid.UUID, date time.Time) (*Report, error) {
	if date.IsZero() {
		return nil, apperr.Validation("reportDate is required")
	}
	rep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rep.ReportDate = &date
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SetReportDate(ctx, rep.ID, &date); err != nil {
			return err
		}
		return s.bills.UpdateReportProgress(ctx, rep.BillID, "", &date)
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func rowIndex(rows []Row, in ResultInput) (int, error) {
	if in.Position != nil {
		p := *in.Position
		if p < 0 || p >= len(rows) {
			return 0, apperr.Validation("row position %d is out of range", p)
		}
		if in.TestID != uuid.Nil && rows[p].TestID != in.TestID {
			return 0, apperr.Validation("row %d does not hold test %s", p, in.TestID)
		}
		return p, nil
	}
	for i, row := range rows {
		if row.TestID == in.TestID {
			return i, nil
		}
	}
	return 0, apperr.Validation("test %s is not part of this report", in.TestID)
}

func applyResult(row *Row, in ResultInput) error {
	if in.Remarks != nil {
		row.Remarks = strings.TrimSpace(*in.Remarks)
	}
	if in.Result == nil && in.Flag == nil {
		return nil
	}
	if in.Result != nil {
		row.Result = strings.TrimSpace(*in.Result)
	}
	explicit := ""
	if in.Flag != nil {
		if !ValidFlag(*in.Flag) {
			return apperr.Validation("flag must be one of Normal, Low, High")
		}
		explicit = *in.Flag
	}
	normalRange := ""
	if row.NormalRange != nil {
		normalRange = *row.NormalRange
	}
	row.Flag = ResolveFlag(row.Result, normalRange, explicit)
	return nil
}
