package scheduling

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidScheduleParams = errors.New("invalid schedule parameters")
	ErrInvalidDate           = errors.New("invalid schedule date")
	ErrInvalidClock          = errors.New("invalid clock time")
	ErrScheduleNotFound      = errors.New("schedule not found")
	ErrScheduleHasBookings   = errors.New("schedule has booked tokens")
	ErrTokenNotFound         = errors.New("slot token not found")
	ErrTokenUnavailable      = errors.New("slot token already booked")
	ErrTokenNotBooked        = errors.New("slot token is not booked")
)

// DateLayout is the wire and storage form of a schedule day.
const DateLayout = "2006-01-02"

// ScheduleParams is one facility's operating window for a day.
type ScheduleParams struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
	RestMinutes     int       `json:"rest_minutes"`
}

// Validate rejects a non-positive duration or a negative rest.
func (p ScheduleParams) Validate() error {
	if p.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidScheduleParams, p.DurationMinutes)
	}
	if p.RestMinutes < 0 {
		return fmt.Errorf("%w: rest must not be negative, got %d", ErrInvalidScheduleParams, p.RestMinutes)
	}
	return nil
}

// SlotToken is one bookable donation interval.
type SlotToken struct {
	Sequence      int        `db:"sequence" json:"sequence"`
	Start         time.Time  `db:"start_at" json:"start"`
	End           time.Time  `db:"end_at" json:"end"`
	IsAvailable   bool       `db:"is_available" json:"is_available"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	BookedAt      *time.Time `db:"booked_at" json:"booked_at,omitempty"`
}

// FacilitySchedule maps to the facility_schedule table plus its slot_token
// rows.
type FacilitySchedule struct {
	FacilityID      uuid.UUID   `db:"facility_id" json:"facility_id"`
	Date            string      `db:"schedule_date" json:"date"`
	Start           time.Time   `db:"start_at" json:"start"`
	End             time.Time   `db:"end_at" json:"end"`
	DurationMinutes int         `db:"duration_minutes" json:"duration_minutes"`
	RestMinutes     int         `db:"rest_minutes" json:"rest_minutes"`
	Tokens          []SlotToken `db:"-" json:"tokens"`
	GeneratedAt     time.Time   `db:"generated_at" json:"generated_at"`
}

// Params returns the generator input the schedule was built from.
func (s *FacilitySchedule) Params() ScheduleParams {
	return ScheduleParams{Start: s.Start, End: s.End, DurationMinutes: s.DurationMinutes, RestMinutes: s.RestMinutes}
}

// Available returns the tokens that can still be booked.
func (s *FacilitySchedule) Available() []SlotToken {
	out := make([]SlotToken, 0, len(s.Tokens))
	for _, t := range s.Tokens {
		if t.IsAvailable {
			out = append(out, t)
		}
	}
	return out
}

// WindowRequest is the operator's request for a day: wall-clock bounds
// ("09:00", "17:00") and optional overrides of the default duration and rest.
type WindowRequest struct {
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
	RestMinutes     *int   `json:"rest_minutes,omitempty"`
}

// ParseDate parses a YYYY-MM-DD day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// AtClock returns day at the HH:MM wall-clock time.
func AtClock(day time.Time, clock string) (time.Time, error) {
	c, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), 0, 0, day.Location()), nil
}
