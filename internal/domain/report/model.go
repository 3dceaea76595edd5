package report

import (
	"time"

	"github.com/google/uuid"
)

// Report holds the results for one bill. Rows snapshot the tests as they were
// when the bill was created.
type Report struct {
	ID         uuid.UUID  `json:"id"`
	BillID     uuid.UUID  `json:"billId"`
	ReportDate *time.Time `json:"reportDate"`
	Rows       []Row      `json:"results"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`

	// Populated by list queries.
	BillNumber  string `json:"billNumber,omitempty"`
	PatientName string `json:"patientName,omitempty"`
}

type Row struct {
	TestID      uuid.UUID  `json:"testId"`
	TestGroupID *uuid.UUID `json:"testGroupId,omitempty"`
	TestName    string     `json:"testName"`
	Units       *string    `json:"units,omitempty"`
	Methodology *string    `json:"methodology,omitempty"`
	NormalRange *string    `json:"normalRange,omitempty"`
	Result      string     `json:"result"`
	Flag        string     `json:"flag"`
	Remarks     string     `json:"remarks"`
}

// Complete reports whether every row carries a result.
func (r *Report) Complete() bool {
	if len(r.Rows) == 0 {
		return false
	}
	for _, row := range r.Rows {
		if row.Result == "" {
			return false
		}
	}
	return true
}

// ResultInput updates one row. Position addresses the row directly; when it
// is nil the first row for TestID is used.
type ResultInput struct {
	TestID   uuid.UUID `json:"testId"`
	Position *int      `json:"position"`
	Result   *string   `json:"result"`
	Flag     *string   `json:"flag"`
	Remarks  *string   `json:"remarks"`
}

type Filter struct {
	Search string
	// Generated selects reports with (true) or without (false) a report date.
	Generated *bool
}
