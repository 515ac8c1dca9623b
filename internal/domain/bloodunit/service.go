package bloodunit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bloodbank/bloodbank/internal/domain/eligibility"
	"github.com/bloodbank/bloodbank/internal/domain/serology"
	"github.com/bloodbank/bloodbank/internal/platform/metrics"
)

// Transactor groups repository writes into one commit. db.TxRunner
// implements it.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type noTx struct{}

func (noTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type Service struct {
	repo     UnitRepository
	tx       Transactor
	locks    *unitLocks
	hbCutoff float64
	roster   []TestDefinition
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a blood unit service using DefaultRoster for new units.
// A non-positive cutoff falls back to eligibility.DefaultHbCutoff.
func NewService(repo UnitRepository, hbCutoffGL float64, logger zerolog.Logger) *Service {
	if hbCutoffGL <= 0 {
		hbCutoffGL = eligibility.DefaultHbCutoff
	}
	return &Service{
		repo:     repo,
		tx:       noTx{},
		locks:    newUnitLocks(),
		hbCutoff: hbCutoffGL,
		roster:   DefaultRoster(),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) SetTxRunner(tx Transactor) {
	if tx == nil {
		s.tx = noTx{}
		return
	}
	s.tx = tx
}

func (s *Service) decorate(u *BloodUnit) *BloodUnit {
	u.BloodTypeDisplay = ""
	if u.BloodType != nil {
		if display, err := serology.FromBackend(*u.BloodType); err == nil {
			u.BloodTypeDisplay = display
		}
	}
	return u
}

// CreateUnit registers a collected unit with a pending roster.
func (s *Service) CreateUnit(ctx context.Context, u *BloodUnit) error {
	t, err := NewTracker(s.roster)
	if err != nil {
		return err
	}
	u.Status = StatusPending
	u.BloodType = nil
	u.FinalizedAt = nil
	u.Tests = t.Entries()

	if err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, u)
	}); err != nil {
		return err
	}
	s.logger.Info().Str("unit_id", u.ID.String()).Msg("blood unit created")
	return nil
}

func (s *Service) GetUnit(ctx context.Context, id uuid.UUID) (*BloodUnit, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.decorate(u), nil
}

func (s *Service) ListUnits(ctx context.Context, status UnitStatus, limit, offset int) ([]*BloodUnit, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidFilter, status)
	}
	items, total, err := s.repo.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, u := range items {
		s.decorate(u)
	}
	return items, total, nil
}

// Readiness reports which finalizations the unit currently allows.
func (s *Service) Readiness(ctx context.Context, id uuid.UUID) (Readiness, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Readiness{}, err
	}
	t, err := RestoreTracker(u.Tests)
	if err != nil {
		return Readiness{}, err
	}
	return t.Readiness(), nil
}

// record runs the tracker transition for one test and persists it, with
// extra running in the same transaction.
func (s *Service) record(ctx context.Context, unitID uuid.UUID, testID string, status TestStatus, extra func(ctx context.Context) error) (*BloodUnit, error) {
	unlock := s.locks.lock(unitID)
	defer unlock()

	u, err := s.repo.GetByID(ctx, unitID)
	if err != nil {
		return nil, err
	}
	t, err := RestoreTracker(u.Tests)
	if err != nil {
		return nil, err
	}
	if err := t.RecordResult(testID, status); err != nil {
		if errors.Is(err, ErrResultConflict) {
			metrics.WriteConflicts.WithLabelValues("test_result").Inc()
		}
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SetTestStatus(ctx, unitID, testID, status, s.now().UTC()); err != nil {
			return err
		}
		if extra != nil {
			return extra(ctx)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrResultConflict) {
			metrics.WriteConflicts.WithLabelValues("test_result").Inc()
			s.logger.Warn().Str("unit_id", unitID.String()).Str("test_id", testID).Msg("test result lost a concurrent write")
		}
		return nil, err
	}
	metrics.TestResultsRecorded.WithLabelValues(testID, string(status)).Inc()

	s.logger.Info().
		Str("unit_id", unitID.String()).
		Str("test_id", testID).
		Str("status", string(status)).
		Msg("test result recorded")
	return s.GetUnit(ctx, unitID)
}

// RecordTestResult records a lab result for one test of a unit.
func (s *Service) RecordTestResult(ctx context.Context, unitID uuid.UUID, testID string, status TestStatus) (*BloodUnit, error) {
	return s.record(ctx, unitID, testID, status, nil)
}

// RecordBloodGroup interprets a reagent panel and records the blood-group
// test. A valid type passes the test and is stored on the unit; an invalid
// test fails it. An incomplete panel records nothing.
func (s *Service) RecordBloodGroup(ctx context.Context, unitID uuid.UUID, panel serology.ReagentPanel) (*BloodUnit, serology.BloodTypeResult, error) {
	res, err := serology.Interpret(panel)
	if err != nil {
		return nil, res, err
	}

	if res.IsInvalid() {
		u, err := s.record(ctx, unitID, TestBloodGroup, TestFail, nil)
		return u, res, err
	}

	code, err := res.BackendCode()
	if err != nil {
		return nil, res, err
	}
	u, err := s.record(ctx, unitID, TestBloodGroup, TestPass, func(ctx context.Context) error {
		return s.repo.SetBloodType(ctx, unitID, code)
	})
	return u, res, err
}

// RecordHemoglobin evaluates a reading against the configured cutoff and
// records the hemoglobin test.
func (s *Service) RecordHemoglobin(ctx context.Context, unitID uuid.UUID, valueGL float64) (*BloodUnit, eligibility.HemoglobinVerdict, error) {
	v, err := eligibility.EvaluateHemoglobin(valueGL, s.hbCutoff)
	if err != nil {
		return nil, v, err
	}
	status := TestFail
	if v.Safe {
		status = TestPass
	}
	u, err := s.record(ctx, unitID, TestHemoglobin, status, nil)
	return u, v, err
}

// Finalize commits the operator's pass or fail decision.
func (s *Service) Finalize(ctx context.Context, unitID uuid.UUID, d Decision) (*BloodUnit, error) {
	unlock := s.locks.lock(unitID)
	defer unlock()

	u, err := s.repo.GetByID(ctx, unitID)
	if err != nil {
		return nil, err
	}
	t, err := RestoreTracker(u.Tests)
	if err != nil {
		return nil, err
	}

	f := NewFinalizer(t, u.Status)
	status, err := f.Finalize(d)
	if err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			metrics.WriteConflicts.WithLabelValues("finalize").Inc()
		}
		s.logger.Warn().
			Str("unit_id", unitID.String()).
			Str("decision", string(d)).
			Err(err).
			Msg("finalization rejected")
		return nil, err
	}

	at := s.now().UTC()
	if err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.SetUnitStatus(ctx, unitID, status, at)
	}); err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			metrics.WriteConflicts.WithLabelValues("finalize").Inc()
		}
		return nil, err
	}
	metrics.UnitFinalizations.WithLabelValues(string(status)).Inc()

	s.logger.Info().
		Str("unit_id", unitID.String()).
		Str("status", string(status)).
		Msg("blood unit finalized")

	u.Status = status
	u.FinalizedAt = &at
	return s.decorate(u), nil
}
