package serology

import "fmt"

var displayToBackend = map[string]string{
	"A+":  "A_POSITIVE",
	"A-":  "A_NEGATIVE",
	"B+":  "B_POSITIVE",
	"B-":  "B_NEGATIVE",
	"AB+": "AB_POSITIVE",
	"AB-": "AB_NEGATIVE",
	"O+":  "O_POSITIVE",
	"O-":  "O_NEGATIVE",
}

var backendToDisplay = func() map[string]string {
	m := make(map[string]string, len(displayToBackend))
	for d, b := range displayToBackend {
		m[b] = d
	}
	return m
}()

// ToBackend converts a display type ("AB+") to its stored enumeration.
func ToBackend(display string) (string, error) {
	code, ok := displayToBackend[display]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, display)
	}
	return code, nil
}

// FromBackend converts a stored enumeration ("AB_POSITIVE") to its display form.
func FromBackend(code string) (string, error) {
	display, ok := backendToDisplay[code]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, code)
	}
	return display, nil
}

// DisplayTypes returns the eight valid display types.
func DisplayTypes() []string {
	return []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
}
