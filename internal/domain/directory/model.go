package directory

import (
	"time"

	"github.com/google/uuid"
)

type ReferredDoctor struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Qualification *string   `json:"qualification,omitempty"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Snapshot returns the denormalised copy stored on bills.
func (d *ReferredDoctor) Snapshot() DoctorSnapshot {
	return DoctorSnapshot{
		DoctorID:      d.ID,
		Name:          d.Name,
		Phone:         d.Phone,
		Qualification: d.Qualification,
	}
}

// DoctorSnapshot is what a bill keeps of its referring doctor. DoctorID is
// the back-reference used for bulk rewrites.
type DoctorSnapshot struct {
	DoctorID      uuid.UUID
	Name          string
	Phone         string
	Qualification *string
}

type DoctorInput struct {
	Name          *string `json:"name"`
	Phone         *string `json:"phone"`
	Qualification *string `json:"qualification"`
	IsActive      *bool   `json:"isActive"`
}

type DoctorFilter struct {
	Search string
	Active *bool
}

type PaymentMode struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type PaymentModeInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}
