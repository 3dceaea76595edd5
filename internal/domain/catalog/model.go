package catalog

import (
	"time"

	"github.com/google/uuid"
)

// TestGroup is a priced package of diagnostic tests. Bills reference test
// groups; the individual tests become rows of the report.
type TestGroup struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Price          float64   `json:"price"`
	SampleType     *string   `json:"sampleType,omitempty"`
	SampleTestedIn *string   `json:"sampleTestedIn,omitempty"`
	IsActive       bool      `json:"isActive"`
	Tests          []*Test   `json:"tests,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Test is a single measurable analyte. NormalRange drives the result flag,
// e.g. "13-17", "<200" or ">=40".
type Test struct {
	ID          uuid.UUID  `json:"id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	NormalRange *string    `json:"normalRange,omitempty"`
	Units       *string    `json:"units,omitempty"`
	Methodology *string    `json:"methodology,omitempty"`
	IsActive    bool       `json:"isActive"`
	TestGroupID *uuid.UUID `json:"testGroupId,omitempty"`
	Position    int        `json:"position"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// GroupInput carries create and update fields. Nil fields are left
// unchanged on update.
type GroupInput struct {
	Name           *string     `json:"name"`
	Price          *float64    `json:"price"`
	SampleType     *string     `json:"sampleType"`
	SampleTestedIn *string     `json:"sampleTestedIn"`
	IsActive       *bool       `json:"isActive"`
	TestIDs        []uuid.UUID `json:"tests"`
}

type TestInput struct {
	Code        *string    `json:"code"`
	Name        *string    `json:"name"`
	NormalRange *string    `json:"normalRange"`
	Units       *string    `json:"units"`
	Methodology *string    `json:"methodology"`
	IsActive    *bool      `json:"isActive"`
	TestGroupID *uuid.UUID `json:"testGroupId"`
}

type GroupFilter struct {
	Search string
	Active *bool
}

type TestFilter struct {
	Search     string
	GroupID    *uuid.UUID
	Unassigned bool
	Active     *bool
}
