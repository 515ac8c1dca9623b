package serology

import (
	"errors"
	"testing"
)

func TestEncoding_RoundTrip(t *testing.T) {
	for _, display := range DisplayTypes() {
		code, err := ToBackend(display)
		if err != nil {
			t.Fatalf("ToBackend(%q) error: %v", display, err)
		}
		back, err := FromBackend(code)
		if err != nil {
			t.Fatalf("FromBackend(%q) error: %v", code, err)
		}
		if back != display {
			t.Errorf("round trip %q -> %q -> %q", display, code, back)
		}
	}
}

func TestEncoding_KnownValues(t *testing.T) {
	if code, _ := ToBackend("AB-"); code != "AB_NEGATIVE" {
		t.Errorf("ToBackend(AB-) = %q, want AB_NEGATIVE", code)
	}
	if display, _ := FromBackend("O_POSITIVE"); display != "O+" {
		t.Errorf("FromBackend(O_POSITIVE) = %q, want O+", display)
	}
}

func TestEncoding_Unknown(t *testing.T) {
	if _, err := ToBackend(InvalidTestDisplay); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
	if _, err := FromBackend("C_POSITIVE"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestEncoding_TablesAreBijective(t *testing.T) {
	if len(displayToBackend) != 8 || len(backendToDisplay) != 8 {
		t.Errorf("expected 8 entries each way, got %d and %d", len(displayToBackend), len(backendToDisplay))
	}
}
