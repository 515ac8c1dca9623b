package eligibility

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bloodbank/bloodbank/internal/platform/metrics"
)

type Service struct {
	repo   ScreeningRepository
	cutoff float64
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a screening service. A non-positive cutoff falls back
// to DefaultHbCutoff.
func NewService(repo ScreeningRepository, hbCutoffGL float64, logger zerolog.Logger) *Service {
	if hbCutoffGL <= 0 {
		hbCutoffGL = DefaultHbCutoff
	}
	return &Service{repo: repo, cutoff: hbCutoffGL, logger: logger, now: time.Now}
}

func (s *Service) HemoglobinCutoff() float64 { return s.cutoff }

// AssessVitals evaluates form input without persisting anything. Incomplete
// input yields an assessment with status "incomplete" and no error.
func (s *Service) AssessVitals(in VitalsInput) (VitalsAssessment, error) {
	a, _, err := AssessVitals(in)
	if err != nil && !errors.Is(err, ErrIncompleteVitals) {
		return a, err
	}
	if a.Verdict != nil {
		metrics.EligibilityVerdicts.WithLabelValues("vitals", a.Verdict.Reason).Inc()
	}
	return a, nil
}

// EvaluateHemoglobin applies the configured cutoff.
func (s *Service) EvaluateHemoglobin(valueGL float64) (HemoglobinVerdict, error) {
	v, err := EvaluateHemoglobin(valueGL, s.cutoff)
	if err != nil {
		return v, err
	}
	metrics.EligibilityVerdicts.WithLabelValues("hemoglobin", v.Status).Inc()
	return v, nil
}

func (s *Service) GetScreening(ctx context.Context, appointmentID uuid.UUID) (*DonorScreening, error) {
	return s.repo.GetByAppointment(ctx, appointmentID)
}

func (s *Service) loadOrNew(ctx context.Context, appointmentID uuid.UUID) (*DonorScreening, error) {
	sc, err := s.repo.GetByAppointment(ctx, appointmentID)
	if errors.Is(err, ErrScreeningNotFound) {
		return &DonorScreening{AppointmentID: appointmentID}, nil
	}
	if err != nil {
		return nil, err
	}
	if sc.Accepted {
		return nil, ErrScreeningLocked
	}
	return sc, nil
}

// RecordVitals stores the donor's vitals and verdict for an appointment.
// Incomplete input is returned as ErrIncompleteVitals together with the
// assessment so the caller can show which fields need attention.
func (s *Service) RecordVitals(ctx context.Context, appointmentID uuid.UUID, donorID *uuid.UUID, in VitalsInput) (*DonorScreening, VitalsAssessment, error) {
	if appointmentID == uuid.Nil {
		return nil, VitalsAssessment{}, ErrMissingAppointment
	}

	a, rec, err := AssessVitals(in)
	if err != nil {
		return nil, a, err
	}

	sc, err := s.loadOrNew(ctx, appointmentID)
	if err != nil {
		return nil, a, err
	}
	if donorID != nil {
		sc.DonorID = donorID
	}
	sc.ApplyVitals(rec, *a.Verdict)

	if err := s.repo.Save(ctx, sc); err != nil {
		return nil, a, err
	}
	metrics.EligibilityVerdicts.WithLabelValues("vitals", a.Verdict.Reason).Inc()

	s.logger.Info().
		Str("appointment_id", appointmentID.String()).
		Bool("eligible", a.Verdict.Eligible).
		Interface("failed", a.Verdict.Failed).
		Msg("vitals recorded")
	return sc, a, nil
}

// RecordHemoglobin stores a hemoglobin reading for an appointment.
func (s *Service) RecordHemoglobin(ctx context.Context, appointmentID uuid.UUID, valueGL float64) (*DonorScreening, HemoglobinVerdict, error) {
	if appointmentID == uuid.Nil {
		return nil, HemoglobinVerdict{}, ErrMissingAppointment
	}
	v, err := s.EvaluateHemoglobin(valueGL)
	if err != nil {
		return nil, v, err
	}

	sc, err := s.loadOrNew(ctx, appointmentID)
	if err != nil {
		return nil, v, err
	}
	sc.ApplyHemoglobin(v)

	if err := s.repo.Save(ctx, sc); err != nil {
		return nil, v, err
	}
	return sc, v, nil
}

// AcceptDonor locks the screening once the donor has passed the vitals
// checks and, when a hemoglobin reading exists, the hemoglobin cutoff.
func (s *Service) AcceptDonor(ctx context.Context, appointmentID uuid.UUID) (*DonorScreening, error) {
	sc, err := s.repo.GetByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if sc.Accepted {
		return nil, ErrScreeningLocked
	}
	if sc.Eligible == nil {
		return nil, ErrIncompleteVitals
	}
	if !*sc.Eligible {
		return nil, fmt.Errorf("%w: failed %v", ErrNotEligible, sc.FailedChecks)
	}
	if sc.HemoglobinSafe != nil && !*sc.HemoglobinSafe {
		return nil, fmt.Errorf("%w: hemoglobin below cutoff", ErrNotEligible)
	}

	at := s.now().UTC()
	// Accept re-checks the stored verdict in the same write.
	if err := s.repo.Accept(ctx, appointmentID, at); err != nil {
		if errors.Is(err, ErrScreeningLocked) || errors.Is(err, ErrNotEligible) {
			metrics.WriteConflicts.WithLabelValues("screening_accept").Inc()
		}
		return nil, err
	}
	sc, err = s.repo.GetByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("appointment_id", appointmentID.String()).Msg("donor accepted")
	return sc, nil
}
