package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment states, derived from paid against final amount.
const (
	PaymentPending       = "Pending"
	PaymentPartiallyPaid = "PartiallyPaid"
	PaymentPaid          = "Paid"
)

// Workflow states of a bill's samples and report.
const (
	StatusSampleCollected = "SampleCollected"
	StatusInProgress      = "InProgress"
	StatusCompleted       = "Completed"
	StatusDelivered       = "Delivered"
)

var validStatuses = map[string]bool{
	StatusSampleCollected: true,
	StatusInProgress:      true,
	StatusCompleted:       true,
	StatusDelivered:       true,
}

var validPaymentStatuses = map[string]bool{
	PaymentPending:       true,
	PaymentPartiallyPaid: true,
	PaymentPaid:          true,
}

type Patient struct {
	Name    string  `json:"name"`
	Age     *int    `json:"age,omitempty"`
	Gender  *string `json:"gender,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

// ReferredBy is the doctor snapshot kept on the bill. DoctorID points at the
// directory row the snapshot was taken from, when one could be resolved.
type ReferredBy struct {
	DoctorID      *uuid.UUID `json:"doctorId,omitempty"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone"`
	Qualification *string    `json:"qualification,omitempty"`
}

// BillTestGroup is the test group as priced on the bill.
type BillTestGroup struct {
	TestGroupID uuid.UUID `json:"testGroupId"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
}

type Payment struct {
	ID            uuid.UUID  `json:"id"`
	PaymentModeID *uuid.UUID `json:"paymentModeId,omitempty"`
	Mode          string     `json:"mode"`
	Amount        float64    `json:"amount"`
	Reference     *string    `json:"reference,omitempty"`
	PaidAt        time.Time  `json:"date"`
}

type Bill struct {
	ID                   uuid.UUID       `json:"id"`
	BillNumber           string          `json:"billNumber"`
	Patient              Patient         `json:"patient"`
	ReferredBy           *ReferredBy     `json:"referredBy,omitempty"`
	TestGroups           []BillTestGroup `json:"testGroups"`
	TotalAmount          float64         `json:"totalAmount"`
	TaxAmount            float64         `json:"taxAmount"`
	TotalWithTax         float64         `json:"totalWithTax"`
	ToBePaidAmount       *float64        `json:"toBePaidAmount"`
	Discount             float64         `json:"discount"`
	FinalAmount          float64         `json:"finalAmount"`
	PaidAmount           float64         `json:"paidAmount"`
	Dues                 float64         `json:"dues"`
	PaymentStatus        string          `json:"paymentStatus"`
	IsPaymentModeEnabled bool            `json:"isPaymentModeEnabled"`
	Payments             []Payment       `json:"payments"`
	BillDate             time.Time       `json:"billDate"`
	SampleCollectionDate *time.Time      `json:"sampleCollectionDate,omitempty"`
	SampleReceivedDate   *time.Time      `json:"sampleReceivedDate,omitempty"`
	ReportDate           *time.Time      `json:"reportDate,omitempty"`
	Status               string          `json:"status"`
	Notes                *string         `json:"notes,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// totals reads the stored monetary snapshot.
func (b *Bill) totals() Totals {
	return Totals{
		TotalAmount:   decimal.NewFromFloat(b.TotalAmount),
		TaxAmount:     decimal.NewFromFloat(b.TaxAmount),
		TotalWithTax:  decimal.NewFromFloat(b.TotalWithTax),
		Discount:      decimal.NewFromFloat(b.Discount),
		FinalAmount:   decimal.NewFromFloat(b.FinalAmount),
		PaidAmount:    decimal.NewFromFloat(b.PaidAmount),
		Dues:          decimal.NewFromFloat(b.Dues),
		PaymentStatus: b.PaymentStatus,
	}
}

func (b *Bill) setTotals(t Totals) {
	b.TotalAmount = t.TotalAmount.InexactFloat64()
	b.TaxAmount = t.TaxAmount.InexactFloat64()
	b.TotalWithTax = t.TotalWithTax.InexactFloat64()
	b.Discount = t.Discount.InexactFloat64()
	b.FinalAmount = t.FinalAmount.InexactFloat64()
	b.PaidAmount = t.PaidAmount.InexactFloat64()
	b.Dues = t.Dues.InexactFloat64()
	b.PaymentStatus = t.PaymentStatus
}

// PaymentInput is one payment entry as submitted. Amount accepts a JSON
// number or a numeric string; a missing amount counts as zero.
type PaymentInput struct {
	PaymentModeID *uuid.UUID       `json:"paymentModeId"`
	Mode          string           `json:"mode"`
	Amount        *decimal.Decimal `json:"amount"`
	Reference     *string          `json:"reference"`
	Date          *time.Time       `json:"date"`
}

type ReferredByInput struct {
	Name          string  `json:"name"`
	Phone         string  `json:"phone"`
	Qualification *string `json:"qualification"`
}

// BillInput carries create and update fields. On update nil fields are left
// unchanged; an empty Payments list clears the entries.
type BillInput struct {
	Patient              *Patient         `json:"patient"`
	ReferredBy           *ReferredByInput `json:"referredBy"`
	TestGroupIDs         []uuid.UUID      `json:"testGroups"`
	ToBePaidAmount       *decimal.Decimal `json:"toBePaidAmount"`
	IsPaymentModeEnabled *bool            `json:"isPaymentModeEnabled"`
	Payments             []PaymentInput   `json:"payments"`
	PaidAmount           *decimal.Decimal `json:"paidAmount"`
	BillDate             *time.Time       `json:"billDate"`
	SampleCollectionDate *time.Time       `json:"sampleCollectionDate"`
	SampleReceivedDate   *time.Time       `json:"sampleReceivedDate"`
	Status               *string          `json:"status"`
	Notes                *string          `json:"notes"`
}

// ListFilter selects bills for the list endpoint.
type ListFilter struct {
	Search        string
	SearchBy      string
	Status        string
	PaymentStatus string
	StartDate     *time.Time
	EndDate       *time.Time
	Amount        *float64
	AmountOp      string
	DoctorID      *uuid.UUID
	SortBy        string
	SortOrder     string
}

// Search scopes accepted by ListFilter.SearchBy.
const (
	SearchAll          = "all"
	SearchPatientName  = "patientName"
	SearchPatientPhone = "patientPhone"
	SearchDoctorName   = "doctorName"
	SearchTestGroup    = "testGroup"
	SearchAddress      = "address"
)

var validSearchScopes = map[string]bool{
	SearchAll:          true,
	SearchPatientName:  true,
	SearchPatientPhone: true,
	SearchDoctorName:   true,
	SearchTestGroup:    true,
	SearchAddress:      true,
}
