package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bloodbank/bloodbank/internal/platform/cache"
	"github.com/bloodbank/bloodbank/internal/platform/metrics"
)

// Cache is the byte cache used for read-through schedule lookups.
// *cache.Redis implements it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Transactor groups repository writes into one commit. db.TxRunner
// implements it.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type noTx struct{}

func (noTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// Defaults are applied when a window request omits duration or rest.
type Defaults struct {
	DurationMinutes int
	RestMinutes     int
	Location        *time.Location
	CacheTTL        time.Duration
}

type Service struct {
	repo     ScheduleRepository
	cache    Cache
	tx       Transactor
	defaults Defaults
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a scheduling service. cache may be nil.
func NewService(repo ScheduleRepository, c Cache, defaults Defaults, logger zerolog.Logger) *Service {
	if defaults.Location == nil {
		defaults.Location = time.UTC
	}
	if defaults.CacheTTL <= 0 {
		defaults.CacheTTL = 10 * time.Minute
	}
	return &Service{repo: repo, cache: c, tx: noTx{}, defaults: defaults, logger: logger, now: time.Now}
}

func (s *Service) SetTxRunner(tx Transactor) {
	if tx == nil {
		s.tx = noTx{}
		return
	}
	s.tx = tx
}

func cacheKey(facilityID uuid.UUID, date string) string {
	return "schedule:" + facilityID.String() + ":" + date
}

// Params resolves a window request for one day into generator input.
func (s *Service) Params(date string, req WindowRequest) (ScheduleParams, error) {
	day, err := ParseDate(date, s.defaults.Location)
	if err != nil {
		return ScheduleParams{}, err
	}
	start, err := AtClock(day, req.Start)
	if err != nil {
		return ScheduleParams{}, err
	}
	end, err := AtClock(day, req.End)
	if err != nil {
		return ScheduleParams{}, err
	}

	p := ScheduleParams{
		Start:           start,
		End:             end,
		DurationMinutes: s.defaults.DurationMinutes,
		RestMinutes:     s.defaults.RestMinutes,
	}
	if req.DurationMinutes != nil {
		p.DurationMinutes = *req.DurationMinutes
	}
	if req.RestMinutes != nil {
		p.RestMinutes = *req.RestMinutes
	}
	return p, p.Validate()
}

// Preview generates a schedule without storing it.
func (s *Service) Preview(date string, req WindowRequest) (*FacilitySchedule, error) {
	p, err := s.Params(date, req)
	if err != nil {
		return nil, err
	}
	tokens, err := GenerateTokens(p)
	if err != nil {
		return nil, err
	}
	return &FacilitySchedule{
		Date:            date,
		Start:           p.Start,
		End:             p.End,
		DurationMinutes: p.DurationMinutes,
		RestMinutes:     p.RestMinutes,
		Tokens:          tokens,
	}, nil
}

// GenerateSchedule builds and stores the token timetable for a facility-day,
// replacing any previous one that has no bookings.
func (s *Service) GenerateSchedule(ctx context.Context, facilityID uuid.UUID, date string, req WindowRequest) (*FacilitySchedule, error) {
	if facilityID == uuid.Nil {
		return nil, fmt.Errorf("%w: facility_id is required", ErrInvalidScheduleParams)
	}
	sched, err := s.Preview(date, req)
	if err != nil {
		return nil, err
	}
	if sched.DurationMinutes > math.MaxInt32 || sched.RestMinutes > math.MaxInt32 {
		return nil, fmt.Errorf("%w: duration and rest must fit in %d minutes", ErrInvalidScheduleParams, math.MaxInt32)
	}
	sched.FacilityID = facilityID

	if err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.Replace(ctx, sched)
	}); err != nil {
		if errors.Is(err, ErrScheduleHasBookings) {
			metrics.WriteConflicts.WithLabelValues("schedule_replace").Inc()
		}
		return nil, err
	}
	s.invalidate(ctx, facilityID, date)
	metrics.SlotTokensGenerated.Add(float64(len(sched.Tokens)))

	s.logger.Info().
		Str("facility_id", facilityID.String()).
		Str("date", date).
		Int("tokens", len(sched.Tokens)).
		Msg("schedule generated")
	return sched, nil
}

// GetSchedule returns the stored schedule, reading through the cache.
func (s *Service) GetSchedule(ctx context.Context, facilityID uuid.UUID, date string) (*FacilitySchedule, error) {
	if _, err := ParseDate(date, s.defaults.Location); err != nil {
		return nil, err
	}
	key := cacheKey(facilityID, date)

	if s.cache != nil {
		b, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			var sched FacilitySchedule
			if jerr := json.Unmarshal(b, &sched); jerr == nil {
				metrics.ScheduleCacheLookups.WithLabelValues("hit").Inc()
				return &sched, nil
			}
			metrics.ScheduleCacheLookups.WithLabelValues("corrupt").Inc()
		case errors.Is(err, cache.ErrMiss):
			metrics.ScheduleCacheLookups.WithLabelValues("miss").Inc()
		default:
			metrics.ScheduleCacheLookups.WithLabelValues("error").Inc()
			s.logger.Warn().Err(err).Str("key", key).Msg("schedule cache read failed")
		}
	}

	sched, err := s.repo.Get(ctx, facilityID, date)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if b, err := json.Marshal(sched); err == nil {
			if err := s.cache.Set(ctx, key, b, s.defaults.CacheTTL); err != nil {
				s.logger.Warn().Err(err).Str("key", key).Msg("schedule cache write failed")
			}
		}
	}
	return sched, nil
}

// ListAvailable returns the tokens of a facility-day that can still be booked.
func (s *Service) ListAvailable(ctx context.Context, facilityID uuid.UUID, date string) ([]SlotToken, error) {
	sched, err := s.GetSchedule(ctx, facilityID, date)
	if err != nil {
		return nil, err
	}
	return sched.Available(), nil
}

// BookToken consumes a token for an appointment. Of two racing bookings of
// the same token exactly one succeeds.
func (s *Service) BookToken(ctx context.Context, facilityID uuid.UUID, date string, seq int, appointmentID uuid.UUID) (*SlotToken, error) {
	if _, err := ParseDate(date, s.defaults.Location); err != nil {
		return nil, err
	}
	if appointmentID == uuid.Nil {
		return nil, fmt.Errorf("%w: appointment_id is required", ErrInvalidScheduleParams)
	}

	t, err := s.repo.Book(ctx, facilityID, date, seq, appointmentID, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrTokenUnavailable) {
			metrics.WriteConflicts.WithLabelValues("token_booking").Inc()
		}
		return nil, err
	}
	s.invalidate(ctx, facilityID, date)

	s.logger.Info().
		Str("facility_id", facilityID.String()).
		Str("date", date).
		Int("sequence", seq).
		Str("appointment_id", appointmentID.String()).
		Msg("slot token booked")
	return t, nil
}

// ReleaseToken returns a booked token to the pool.
func (s *Service) ReleaseToken(ctx context.Context, facilityID uuid.UUID, date string, seq int) (*SlotToken, error) {
	if _, err := ParseDate(date, s.defaults.Location); err != nil {
		return nil, err
	}
	t, err := s.repo.Release(ctx, facilityID, date, seq)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, facilityID, date)

	s.logger.Info().
		Str("facility_id", facilityID.String()).
		Str("date", date).
		Int("sequence", seq).
		Msg("slot token released")
	return t, nil
}

func (s *Service) invalidate(ctx context.Context, facilityID uuid.UUID, date string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(facilityID, date)); err != nil {
		s.logger.Warn().Err(err).Str("facility_id", facilityID.String()).Str("date", date).Msg("schedule cache invalidation failed")
	}
}
