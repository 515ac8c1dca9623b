package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ScheduleRepository interface {
	// Replace stores s and its tokens, discarding any previous schedule for
	// the same facility-day. It returns ErrScheduleHasBookings when the
	// previous schedule has a booked token.
	Replace(ctx context.Context, s *FacilitySchedule) error
	Get(ctx context.Context, facilityID uuid.UUID, date string) (*FacilitySchedule, error)
	// Book marks an available token as taken. It returns ErrTokenUnavailable
	// when the token was already booked.
	Book(ctx context.Context, facilityID uuid.UUID, date string, seq int, appointmentID uuid.UUID, at time.Time) (*SlotToken, error)
	// Release makes a booked token available again.
	Release(ctx context.Context, facilityID uuid.UUID, date string, seq int) (*SlotToken, error)
}
