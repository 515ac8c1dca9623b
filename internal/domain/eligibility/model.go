package eligibility

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrIncompleteVitals   = errors.New("vitals are incomplete")
	ErrInvalidInput       = errors.New("measurement out of physical bounds")
	ErrScreeningNotFound  = errors.New("donor screening not found")
	ErrScreeningLocked    = errors.New("donor already accepted; screening is immutable")
	ErrNotEligible        = errors.New("donor is not eligible")
	ErrMissingAppointment = errors.New("appointment_id is required")
)

// Safe ranges for whole-blood donation.
const (
	MinWeightKg     = 50.0
	MinSystolicBP   = 90
	MaxSystolicBP   = 180
	MinPulse        = 60
	MaxPulse        = 100
	DefaultHbCutoff = 120.0 // g/L
)

// Dimension names one of the vitals range checks.
type Dimension string

const (
	DimensionWeight        Dimension = "weight"
	DimensionBloodPressure Dimension = "blood_pressure"
	DimensionPulse         Dimension = "pulse"
)

// Measurement is a numeric reading that is either known or not yet entered.
// The zero value is unknown, so an absent reading is never confused with 0.
type Measurement struct {
	value float64
	known bool
}

// Known wraps a confirmed value.
func Known(v float64) Measurement { return Measurement{value: v, known: true} }

// Unknown is a reading that has not been entered.
func Unknown() Measurement { return Measurement{} }

// Value returns the reading and whether it is known.
func (m Measurement) Value() (float64, bool) { return m.value, m.known }

// IsKnown reports whether the reading has been entered.
func (m Measurement) IsKnown() bool { return m.known }

// VitalsRecord holds parsed donor measurements.
type VitalsRecord struct {
	WeightKg   float64 `json:"weight_kg"`
	SystolicBP int     `json:"systolic_bp"`
	Pulse      int     `json:"pulse"`
}

// VitalsInput is raw operator input as typed into the screening form.
type VitalsInput struct {
	Weight     string `json:"weight"`
	SystolicBP string `json:"systolic_bp"`
	Pulse      string `json:"pulse"`
}

// ParsedVitals is VitalsInput after parsing. Fields that were blank or did
// not parse are Unknown; the latter are also listed in InvalidFields.
type ParsedVitals struct {
	Weight        Measurement
	SystolicBP    Measurement
	Pulse         Measurement
	InvalidFields []Dimension
}

// Parse converts raw input into measurements.
func (in VitalsInput) Parse() ParsedVitals {
	var p ParsedVitals
	var bad bool

	p.Weight, bad = parseMeasurement(in.Weight, false)
	if bad {
		p.InvalidFields = append(p.InvalidFields, DimensionWeight)
	}
	p.SystolicBP, bad = parseMeasurement(in.SystolicBP, true)
	if bad {
		p.InvalidFields = append(p.InvalidFields, DimensionBloodPressure)
	}
	p.Pulse, bad = parseMeasurement(in.Pulse, true)
	if bad {
		p.InvalidFields = append(p.InvalidFields, DimensionPulse)
	}
	return p
}

func parseMeasurement(raw string, integer bool) (Measurement, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Unknown(), false
	}
	if integer {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Unknown(), true
		}
		return Known(float64(n)), false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return Unknown(), true
	}
	return Known(f), false
}

// Complete reports whether every measurement is known.
func (p ParsedVitals) Complete() bool {
	return p.Weight.IsKnown() && p.SystolicBP.IsKnown() && p.Pulse.IsKnown()
}

// Record returns the parsed vitals as a VitalsRecord. It fails with
// ErrIncompleteVitals while any reading is unknown and with ErrInvalidInput
// for a negative weight.
func (p ParsedVitals) Record() (VitalsRecord, error) {
	if !p.Complete() {
		return VitalsRecord{}, ErrIncompleteVitals
	}
	w, _ := p.Weight.Value()
	if w < 0 {
		return VitalsRecord{}, ErrInvalidInput
	}
	bp, _ := p.SystolicBP.Value()
	pulse, _ := p.Pulse.Value()
	return VitalsRecord{WeightKg: w, SystolicBP: int(bp), Pulse: int(pulse)}, nil
}

// EligibilityVerdict is the result of the three vitals range checks.
type EligibilityVerdict struct {
	Eligible        bool        `json:"eligible"`
	WeightOK        bool        `json:"weight_ok"`
	BloodPressureOK bool        `json:"blood_pressure_ok"`
	PulseOK         bool        `json:"pulse_ok"`
	Failed          []Dimension `json:"failed,omitempty"`
	Reason          string      `json:"reason"`
}

// HemoglobinVerdict is the result of a hemoglobin cutoff comparison.
type HemoglobinVerdict struct {
	Safe     bool    `json:"safe"`
	Status   string  `json:"status"`
	ValueGL  float64 `json:"value_gl"`
	CutoffGL float64 `json:"cutoff_gl"`
}

// Assessment statuses returned to the screening form.
const (
	AssessmentIncomplete = "incomplete"
	AssessmentEvaluated  = "evaluated"
)

// VitalsAssessment is what the form shows after an entry: either a verdict
// or an incomplete marker, plus any fields that failed to parse.
type VitalsAssessment struct {
	Status        string              `json:"status"`
	Verdict       *EligibilityVerdict `json:"verdict,omitempty"`
	InvalidFields []Dimension         `json:"invalid_fields,omitempty"`
}

// DonorScreening maps to the donor_screening table. One row per appointment.
type DonorScreening struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	AppointmentID  uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	DonorID        *uuid.UUID `db:"donor_id" json:"donor_id,omitempty"`
	WeightKg       *float64   `db:"weight_kg" json:"weight_kg,omitempty"`
	SystolicBP     *int       `db:"systolic_bp" json:"systolic_bp,omitempty"`
	Pulse          *int       `db:"pulse" json:"pulse,omitempty"`
	Eligible       *bool      `db:"eligible" json:"eligible,omitempty"`
	FailedChecks   []string   `db:"failed_checks" json:"failed_checks,omitempty"`
	HemoglobinGL   *float64   `db:"hemoglobin_gl" json:"hemoglobin_gl,omitempty"`
	HemoglobinSafe *bool      `db:"hemoglobin_safe" json:"hemoglobin_safe,omitempty"`
	Accepted       bool       `db:"accepted" json:"accepted"`
	AcceptedAt     *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// ApplyVitals copies a record and its verdict onto the screening.
func (s *DonorScreening) ApplyVitals(rec VitalsRecord, v EligibilityVerdict) {
	w, bp, pulse, ok := rec.WeightKg, rec.SystolicBP, rec.Pulse, v.Eligible
	s.WeightKg = &w
	s.SystolicBP = &bp
	s.Pulse = &pulse
	s.Eligible = &ok
	checks := make([]string, 0, len(v.Failed))
	for _, d := range v.Failed {
		checks = append(checks, string(d))
	}
	s.FailedChecks = checks
}

// ApplyHemoglobin copies a hemoglobin verdict onto the screening.
func (s *DonorScreening) ApplyHemoglobin(v HemoglobinVerdict) {
	value, safe := v.ValueGL, v.Safe
	s.HemoglobinGL = &value
	s.HemoglobinSafe = &safe
}
