package serology

import "fmt"

// Interpret maps a complete reagent panel to an ABO/Rh blood type.
//
// Saline control agglutination makes the card non-diagnostic and takes
// precedence over every other reading. Panels with any Unset reading return
// ErrIncompletePanel; callers should check Complete first.
func Interpret(p ReagentPanel) (BloodTypeResult, error) {
	if err := p.Validate(); err != nil {
		return BloodTypeResult{}, err
	}
	if !p.Complete() {
		return BloodTypeResult{}, ErrIncompletePanel
	}

	if p.NormalSaline == Agglutination {
		return BloodTypeResult{ABO: GroupInvalid, Rh: RhInvalid, Display: InvalidTestDisplay}, nil
	}

	var abo ABO
	switch {
	case p.AntiA == Agglutination && p.AntiB == Agglutination:
		abo = GroupAB
	case p.AntiA == Agglutination:
		abo = GroupA
	case p.AntiB == Agglutination:
		abo = GroupB
	default:
		abo = GroupO
	}

	rh, symbol := RhNegative, "-"
	if p.AntiD == Agglutination {
		rh, symbol = RhPositive, "+"
	}

	return BloodTypeResult{ABO: abo, Rh: rh, Display: fmt.Sprintf("%s%s", abo, symbol)}, nil
}
