package serology

import (
	"errors"
	"fmt"
)

var (
	ErrIncompletePanel = errors.New("reagent panel is incomplete")
	ErrInvalidReaction = errors.New("invalid reaction reading")
	ErrUnknownType     = errors.New("unknown blood type")
)

// Reaction is a single reagent reading. The zero value is Unset.
type Reaction string

const (
	Unset           Reaction = ""
	Agglutination   Reaction = "agglutination"
	NoAgglutination Reaction = "no-agglutination"
)

// Valid reports whether r is one of the three known readings.
func (r Reaction) Valid() bool {
	return r == Unset || r == Agglutination || r == NoAgglutination
}

// ABO is the ABO group of an interpreted panel.
type ABO string

const (
	GroupA       ABO = "A"
	GroupB       ABO = "B"
	GroupAB      ABO = "AB"
	GroupO       ABO = "O"
	GroupInvalid ABO = "Invalid"
)

// Rh is the rhesus factor of an interpreted panel.
type Rh string

const (
	RhPositive Rh = "Positive"
	RhNegative Rh = "Negative"
	RhInvalid  Rh = "Invalid"
)

// InvalidTestDisplay is shown when the saline control agglutinates.
const InvalidTestDisplay = "Invalid Test"

// ReagentPanel holds the four readings of a forward-typing card.
type ReagentPanel struct {
	AntiA        Reaction `json:"anti_a"`
	AntiB        Reaction `json:"anti_b"`
	AntiD        Reaction `json:"anti_d"`
	NormalSaline Reaction `json:"normal_saline"`
}

// Complete reports whether every reading has been set.
func (p ReagentPanel) Complete() bool {
	return p.AntiA != Unset && p.AntiB != Unset && p.AntiD != Unset && p.NormalSaline != Unset
}

// Validate rejects readings outside the known set.
func (p ReagentPanel) Validate() error {
	for _, r := range []Reaction{p.AntiA, p.AntiB, p.AntiD, p.NormalSaline} {
		if !r.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidReaction, r)
		}
	}
	return nil
}

// BloodTypeResult is the outcome of interpreting a complete panel.
type BloodTypeResult struct {
	ABO     ABO    `json:"abo"`
	Rh      Rh     `json:"rh"`
	Display string `json:"display"`
}

// IsInvalid reports whether the panel was non-diagnostic.
func (r BloodTypeResult) IsInvalid() bool {
	return r.ABO == GroupInvalid
}

// BackendCode returns the persistence encoding of the result, e.g. "A_POSITIVE".
func (r BloodTypeResult) BackendCode() (string, error) {
	if r.IsInvalid() {
		return "", ErrUnknownType
	}
	return ToBackend(r.Display)
}
