package stats

import (
	"time"

	"github.com/google/uuid"
)

// Date scopes accepted by the statistics endpoint.
const (
	ScopeToday   = "today"
	ScopeMonth   = "month"
	ScopeYTD     = "ytd"
	ScopeCustom  = "custom"
	ScopeOverall = "overall"
)

// TopN bounds the ranked lists.
const TopN = 5

// Query selects the bills a summary covers. StartDate and EndDate are
// YYYY-MM-DD and only apply to ScopeCustom.
type Query struct {
	Range     string
	StartDate string
	EndDate   string
}

type StatusBucket struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

type GroupUsage struct {
	TestGroupID uuid.UUID `json:"testGroupId"`
	Name        string    `json:"name"`
	Count       int       `json:"count"`
	Revenue     float64   `json:"revenue"`
}

type DoctorTotal struct {
	Name          string  `json:"name"`
	Phone         string  `json:"phone"`
	Qualification *string `json:"qualification,omitempty"`
	Count         int     `json:"count"`
	Amount        float64 `json:"amount"`
}

type PaymentMethod struct {
	Mode   string  `json:"mode"`
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

// MonthTrend is the Paid revenue of one month, labelled YYYY-MM.
type MonthTrend struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
	Count   int     `json:"count"`
}

type Summary struct {
	Range                string                  `json:"range"`
	From                 *time.Time              `json:"from,omitempty"`
	To                   *time.Time              `json:"to,omitempty"`
	TotalCases           int                     `json:"totalCases"`
	ByPaymentStatus      map[string]StatusBucket `json:"byPaymentStatus"`
	TotalRevenue         float64                 `json:"totalRevenue"`
	TotalReceived        float64                 `json:"totalReceived"`
	PendingAmount        float64                 `json:"pendingAmount"`
	AverageBillValue     float64                 `json:"averageBillValue"`
	CollectionEfficiency float64                 `json:"collectionEfficiency"`
	TopTestGroups        []GroupUsage            `json:"topTestGroups"`
	TopDoctors           []DoctorTotal           `json:"topDoctors"`
	PaymentMethods       []PaymentMethod         `json:"paymentMethods"`
	MonthlyTrend         []MonthTrend            `json:"monthlyTrend,omitempty"`
}
