package eligibility

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ScreeningRepository interface {
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*DonorScreening, error)
	// Save inserts or updates the screening for its appointment. It returns
	// ErrScreeningLocked when the stored row is already accepted.
	Save(ctx context.Context, s *DonorScreening) error
	// Accept marks the screening accepted, provided the stored verdict is
	// eligible and any stored hemoglobin reading is safe at the time of the
	// write. It returns ErrScreeningLocked when it already was accepted and
	// ErrNotEligible when the stored verdict no longer allows it.
	Accept(ctx context.Context, appointmentID uuid.UUID, at time.Time) error
}
