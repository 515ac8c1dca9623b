package serology

import (
	"errors"
	"testing"
)

var readings = []Reaction{Agglutination, NoAgglutination}

func TestInterpret_AllValidCombinations(t *testing.T) {
	tests := []struct {
		antiA, antiB, antiD Reaction
		want                string
	}{
		{Agglutination, NoAgglutination, Agglutination, "A+"},
		{Agglutination, NoAgglutination, NoAgglutination, "A-"},
		{NoAgglutination, Agglutination, Agglutination, "B+"},
		{NoAgglutination, Agglutination, NoAgglutination, "B-"},
		{Agglutination, Agglutination, Agglutination, "AB+"},
		{Agglutination, Agglutination, NoAgglutination, "AB-"},
		{NoAgglutination, NoAgglutination, Agglutination, "O+"},
		{NoAgglutination, NoAgglutination, NoAgglutination, "O-"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := Interpret(ReagentPanel{
				AntiA: tt.antiA, AntiB: tt.antiB, AntiD: tt.antiD, NormalSaline: NoAgglutination,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Display != tt.want {
				t.Errorf("Display = %q, want %q", got.Display, tt.want)
			}
			if got.IsInvalid() {
				t.Error("expected a valid result")
			}
		})
	}
}

func TestInterpret_RhField(t *testing.T) {
	got, _ := Interpret(ReagentPanel{AntiA: NoAgglutination, AntiB: Agglutination, AntiD: Agglutination, NormalSaline: NoAgglutination})
	if got.ABO != GroupB || got.Rh != RhPositive {
		t.Errorf("got %+v, want B Positive", got)
	}
	got, _ = Interpret(ReagentPanel{AntiA: NoAgglutination, AntiB: NoAgglutination, AntiD: NoAgglutination, NormalSaline: NoAgglutination})
	if got.ABO != GroupO || got.Rh != RhNegative {
		t.Errorf("got %+v, want O Negative", got)
	}
}

func TestInterpret_SalineAgglutinationAlwaysInvalid(t *testing.T) {
	for _, a := range readings {
		for _, b := range readings {
			for _, d := range readings {
				got, err := Interpret(ReagentPanel{AntiA: a, AntiB: b, AntiD: d, NormalSaline: Agglutination})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.Display != InvalidTestDisplay {
					t.Errorf("(%s,%s,%s) Display = %q, want %q", a, b, d, got.Display, InvalidTestDisplay)
				}
				if got.ABO != GroupInvalid || got.Rh != RhInvalid {
					t.Errorf("(%s,%s,%s) got %+v, want Invalid/Invalid", a, b, d, got)
				}
			}
		}
	}
}

func TestInterpret_ResultIsAlwaysOneOfEightTypes(t *testing.T) {
	valid := map[string]bool{}
	for _, d := range DisplayTypes() {
		valid[d] = true
	}
	seen := map[string]bool{}
	for _, a := range readings {
		for _, b := range readings {
			for _, d := range readings {
				got, err := Interpret(ReagentPanel{AntiA: a, AntiB: b, AntiD: d, NormalSaline: NoAgglutination})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !valid[got.Display] {
					t.Errorf("unexpected display %q", got.Display)
				}
				seen[got.Display] = true
			}
		}
	}
	if len(seen) != 8 {
		t.Errorf("expected all 8 types to be reachable, saw %d", len(seen))
	}
}

func TestInterpret_Incomplete(t *testing.T) {
	panels := []ReagentPanel{
		{},
		{AntiA: Agglutination, AntiB: Agglutination, AntiD: Agglutination},
		{AntiA: Agglutination, AntiB: Agglutination, NormalSaline: NoAgglutination},
		// Even a failed control is not interpreted while another reading is missing.
		{AntiB: Agglutination, AntiD: Agglutination, NormalSaline: Agglutination},
	}
	for i, p := range panels {
		if p.Complete() {
			t.Errorf("panel %d: expected Complete() to be false", i)
		}
		_, err := Interpret(p)
		if !errors.Is(err, ErrIncompletePanel) {
			t.Errorf("panel %d: expected ErrIncompletePanel, got %v", i, err)
		}
	}
}

func TestInterpret_UnknownReading(t *testing.T) {
	_, err := Interpret(ReagentPanel{AntiA: "weak", AntiB: NoAgglutination, AntiD: NoAgglutination, NormalSaline: NoAgglutination})
	if !errors.Is(err, ErrInvalidReaction) {
		t.Errorf("expected ErrInvalidReaction, got %v", err)
	}
}

func TestBloodTypeResult_BackendCode(t *testing.T) {
	got, _ := Interpret(ReagentPanel{AntiA: Agglutination, AntiB: NoAgglutination, AntiD: Agglutination, NormalSaline: NoAgglutination})
	code, err := got.BackendCode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "A_POSITIVE" {
		t.Errorf("BackendCode = %q, want A_POSITIVE", code)
	}

	invalid := BloodTypeResult{ABO: GroupInvalid, Rh: RhInvalid, Display: InvalidTestDisplay}
	if _, err := invalid.BackendCode(); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType for invalid result, got %v", err)
	}
}
