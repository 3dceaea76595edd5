package directory

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/db"
)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// ValidPhone reports whether phone is a 10 digit number.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

type Service struct {
	doctors DoctorRepository
	modes   PaymentModeRepository
	bills   SnapshotRewriter
	tx      db.Transactor
	logger  zerolog.Logger
}

func NewService(doctors DoctorRepository, modes PaymentModeRepository, bills SnapshotRewriter, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{
		doctors: doctors,
		modes:   modes,
		bills:   bills,
		tx:      tx,
		logger:  logger,
	}
}

// =========== Referred Doctor Operations ===========

func (s *Service) CreateDoctor(ctx context.Context, in *DoctorInput) (*ReferredDoctor, error) {
	d := &ReferredDoctor{IsActive: true}
	applyDoctorInput(d, in)
	if err := validateDoctor(d); err != nil {
		return nil, err
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*ReferredDoctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*ReferredDoctor, int, error) {
	return s.doctors.List(ctx, f, limit, offset)
}

// UpdateDoctor edits a doctor in place unless the phone changes. A new phone
// leaves the existing row untouched, creates a replacement and points every
// bill issued under the old phone at the replacement.
func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, in *DoctorInput) (*ReferredDoctor, error) {
	current, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *current
	applyDoctorInput(&next, in)
	if err := validateDoctor(&next); err != nil {
		return nil, err
	}

	if next.Phone == current.Phone {
		if err := s.doctors.Update(ctx, &next); err != nil {
			return nil, err
		}
		return &next, nil
	}

	var replacement *ReferredDoctor
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		replacement = &ReferredDoctor{
			Name:          next.Name,
			Phone:         next.Phone,
			Qualification: next.Qualification,
			IsActive:      true,
		}
		if err := s.doctors.Create(ctx, replacement); err != nil {
			return err
		}

		n, err := s.bills.RewriteDoctorSnapshot(ctx, current.Phone, replacement.Snapshot())
		if err != nil {
			return apperr.Internal("failed to update bills for doctor", err)
		}
		s.logger.Info().
			Str("old_doctor_id", current.ID.String()).
			Str("new_doctor_id", replacement.ID.String()).
			Int64("bills", n).
			Msg("doctor phone changed, bill snapshots rewritten")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replacement, nil
}

// DeleteDoctor deactivates the doctor. Bills keep their snapshot.
func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !d.IsActive {
		return nil
	}
	d.IsActive = false
	return s.doctors.Update(ctx, d)
}

// FindOrCreate matches an active doctor by phone, refreshing name and
// qualification when they differ, or registers a new one.
func (s *Service) FindOrCreate(ctx context.Context, name, phone string, qualification *string) (*ReferredDoctor, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" {
		return nil, apperr.Validation("doctor name is required")
	}
	if !ValidPhone(phone) {
		return nil, apperr.Validation("doctor phone must be 10 digits")
	}

	d, err := s.doctors.GetByPhone(ctx, phone)
	switch {
	case err == nil:
		if d.Name == name && sameString(d.Qualification, qualification) {
			return d, nil
		}
		d.Name = name
		if qualification != nil {
			d.Qualification = qualification
		}
		if err := s.doctors.Update(ctx, d); err != nil {
			return nil, err
		}
		return d, nil
	case apperr.IsNotFound(err):
	default:
		return nil, err
	}

	d = &ReferredDoctor{Name: name, Phone: phone, Qualification: qualification, IsActive: true}
	if err := s.doctors.Create(ctx, d); err != nil {
		if apperr.IsConflict(err) {
			// Lost a race with a concurrent create of the same phone.
			return s.doctors.GetByPhone(ctx, phone)
		}
		return nil, err
	}
	return d, nil
}

// =========== Payment Mode Operations ===========

func (s *Service) CreatePaymentMode(ctx context.Context, in *PaymentModeInput) (*PaymentMode, error) {
	m := &PaymentMode{IsActive: true}
	applyPaymentModeInput(m, in)
	if m.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := s.modes.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) GetPaymentMode(ctx context.Context, id uuid.UUID) (*PaymentMode, error) {
	return s.modes.GetByID(ctx, id)
}

func (s *Service) ListPaymentModes(ctx context.Context, active *bool, limit, offset int) ([]*PaymentMode, int, error) {
	return s.modes.List(ctx, active, limit, offset)
}

func (s *Service) UpdatePaymentMode(ctx context.Context, id uuid.UUID, in *PaymentModeInput) (*PaymentMode, error) {
	m, err := s.modes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applyPaymentModeInput(m, in)
	if m.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := s.modes.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// DeletePaymentMode is a soft delete; bills keep referencing the mode.
func (s *Service) DeletePaymentMode(ctx context.Context, id uuid.UUID) error {
	m, err := s.modes.GetByID(ctx, id)
	if err != nil {
		return err
	}
	m.IsActive = false
	return s.modes.Update(ctx, m)
}

func validateDoctor(d *ReferredDoctor) error {
	if d.Name == "" {
		return apperr.Validation("name is required")
	}
	if !ValidPhone(d.Phone) {
		return apperr.Validation("phone must be 10 digits")
	}
	return nil
}

func applyDoctorInput(d *ReferredDoctor, in *DoctorInput) {
	if in.Name != nil {
		d.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		d.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Qualification != nil {
		d.Qualification = in.Qualification
	}
	if in.IsActive != nil {
		d.IsActive = *in.IsActive
	}
}

func applyPaymentModeInput(m *PaymentMode, in *PaymentModeInput) {
	if in.Name != nil {
		m.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		m.Description = in.Description
	}
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
}

func sameString(a, b *string) bool {
	if b == nil {
		return true
	}
	return a != nil && *a == *b
}
