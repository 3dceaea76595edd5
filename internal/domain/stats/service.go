package stats

import (
	"context"
	"time"

	"github.com/labdesk/labdesk/internal/domain/billing"
	"github.com/labdesk/labdesk/internal/platform/apperr"
)

// BillSource loads the bills dated within a window. Nil bounds are open.
type BillSource interface {
	ListBetween(ctx context.Context, from, to *time.Time) ([]*billing.Bill, error)
}

type Service struct {
	bills BillSource
	now   func() time.Time
}

func NewService(bills BillSource) *Service {
	return &Service{bills: bills, now: time.Now}
}

// Summarize aggregates the bills selected by q. An empty range means
// overall.
func (s *Service) Summarize(ctx context.Context, q Query) (*Summary, error) {
	if q.Range == "" {
		q.Range = ScopeOverall
	}
	now := s.now()
	from, to, err := Window(q, now)
	if err != nil {
		return nil, err
	}
	bills, err := s.bills.ListBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	sum := Aggregate(bills, q.Range, now)
	sum.From, sum.To = from, to
	return sum, nil
}

// Window resolves the bill_date bounds of a scope. Day bounds are inclusive,
// from 00:00:00.000 to 23:59:59.999 local time.
func Window(q Query, now time.Time) (from, to *time.Time, err error) {
	now = now.In(time.Local)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	endOfToday := today.AddDate(0, 0, 1).Add(-time.Millisecond)

	switch q.Range {
	case ScopeOverall:
		return nil, nil, nil
	case ScopeToday:
		return &today, &endOfToday, nil
	case ScopeMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local)
		return &start, &endOfToday, nil
	case ScopeYTD:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.Local)
		return &start, &endOfToday, nil
	case ScopeCustom:
		if q.StartDate == "" || q.EndDate == "" {
			return nil, nil, apperr.Validation("startDate and endDate are required for a custom range")
		}
		start, err := billing.StartOfDay(q.StartDate)
		if err != nil {
			return nil, nil, apperr.Validation("invalid startDate, expected YYYY-MM-DD")
		}
		end, err := billing.EndOfDay(q.EndDate)
		if err != nil {
			return nil, nil, apperr.Validation("invalid endDate, expected YYYY-MM-DD")
		}
		if end.Before(start) {
			return nil, nil, apperr.Validation("endDate is before startDate")
		}
		return &start, &end, nil
	default:
		return nil, nil, apperr.Validation("invalid range %q", q.Range)
	}
}
