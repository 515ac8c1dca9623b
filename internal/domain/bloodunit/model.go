package bloodunit

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownTest          = errors.New("unknown test id")
	ErrDuplicateTest        = errors.New("duplicate test id in roster")
	ErrInvalidStatus        = errors.New("result status must be pass or fail")
	ErrResultConflict       = errors.New("test result already recorded")
	ErrAlreadyFinalized     = errors.New("blood unit already finalized")
	ErrCompulsoryIncomplete = errors.New("compulsory tests incomplete")
	ErrCompulsoryFailure    = errors.New("compulsory failure present")
	ErrInvalidDecision      = errors.New("decision must be pass or fail")
	ErrUnitNotFound         = errors.New("blood unit not found")
	ErrInvalidFilter        = errors.New("invalid unit status filter")
)

// TestStatus is the state of one laboratory test on a unit.
type TestStatus string

const (
	TestPending TestStatus = "pending"
	TestPass    TestStatus = "pass"
	TestFail    TestStatus = "fail"
)

func (s TestStatus) Valid() bool {
	return s == TestPending || s == TestPass || s == TestFail
}

// UnitStatus is the release state of a blood unit. Passed and Failed are
// terminal.
type UnitStatus string

const (
	StatusPending UnitStatus = "pending"
	StatusPassed  UnitStatus = "passed"
	StatusFailed  UnitStatus = "failed"
)

func (s UnitStatus) Valid() bool {
	return s == StatusPending || s == StatusPassed || s == StatusFailed
}

// Decision is the operator's finalization request.
type Decision string

const (
	DecisionPass Decision = "pass"
	DecisionFail Decision = "fail"
)

// Test ids of the default roster.
const (
	TestBloodGroup = "blood-group"
	TestHIV        = "hiv"
	TestSyphilis   = "syphilis"
	TestHepatitisB = "hepatitis-b"
	TestHepatitisC = "hepatitis-c"
	TestMalaria    = "malaria"
	TestHemoglobin = "hemoglobin"
)

// TestDefinition describes one roster slot.
type TestDefinition struct {
	ID         string `json:"test_id"`
	Name       string `json:"name"`
	Compulsory bool   `json:"compulsory"`
}

// DefaultRoster is the test panel every new unit starts with.
func DefaultRoster() []TestDefinition {
	return []TestDefinition{
		{ID: TestBloodGroup, Name: "Blood Group", Compulsory: true},
		{ID: TestHIV, Name: "HIV", Compulsory: true},
		{ID: TestSyphilis, Name: "Syphilis", Compulsory: true},
		{ID: TestHepatitisB, Name: "Hepatitis B", Compulsory: true},
		{ID: TestHepatitisC, Name: "Hepatitis C", Compulsory: true},
		{ID: TestMalaria, Name: "Malaria", Compulsory: false},
		{ID: TestHemoglobin, Name: "Hemoglobin", Compulsory: false},
	}
}

// TestEntry is a roster slot together with its current status.
type TestEntry struct {
	TestDefinition
	Status     TestStatus `json:"status"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

// BloodUnit maps to the blood_unit table; Tests are the blood_unit_test rows.
type BloodUnit struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	DonorID          *uuid.UUID  `db:"donor_id" json:"donor_id,omitempty"`
	AppointmentID    *uuid.UUID  `db:"appointment_id" json:"appointment_id,omitempty"`
	Status           UnitStatus  `db:"status" json:"status"`
	BloodType        *string     `db:"blood_type" json:"blood_type,omitempty"`
	BloodTypeDisplay string      `db:"-" json:"blood_type_display,omitempty"`
	Tests            []TestEntry `db:"-" json:"tests"`
	FinalizedAt      *time.Time  `db:"finalized_at" json:"finalized_at,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// Readiness summarises what finalization the unit currently allows.
type Readiness struct {
	AllCompulsoryComplete   bool     `json:"all_compulsory_complete"`
	HasAnyCompulsoryFailure bool     `json:"has_any_compulsory_failure"`
	CanFinalizeAsPass       bool     `json:"can_finalize_as_pass"`
	CanFinalizeAsFail       bool     `json:"can_finalize_as_fail"`
	PendingCompulsory       []string `json:"pending_compulsory,omitempty"`
}
