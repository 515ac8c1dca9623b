package eligibility

import "fmt"

// EvaluateVitals checks a vitals record against the donation safe ranges.
// It is total: out-of-range or negative values simply fail their check.
func EvaluateVitals(rec VitalsRecord) EligibilityVerdict {
	v := EligibilityVerdict{
		WeightOK:        rec.WeightKg >= MinWeightKg,
		BloodPressureOK: rec.SystolicBP >= MinSystolicBP && rec.SystolicBP <= MaxSystolicBP,
		PulseOK:         rec.Pulse >= MinPulse && rec.Pulse <= MaxPulse,
	}
	if !v.WeightOK {
		v.Failed = append(v.Failed, DimensionWeight)
	}
	if !v.BloodPressureOK {
		v.Failed = append(v.Failed, DimensionBloodPressure)
	}
	if !v.PulseOK {
		v.Failed = append(v.Failed, DimensionPulse)
	}

	v.Eligible = len(v.Failed) == 0
	if v.Eligible {
		v.Reason = "eligible"
	} else {
		v.Reason = "ineligible"
	}
	return v
}

// EvaluateHemoglobin compares a hemoglobin concentration (g/L) with a cutoff.
// The boundary is inclusive.
func EvaluateHemoglobin(valueGL, cutoffGL float64) (HemoglobinVerdict, error) {
	if valueGL < 0 {
		return HemoglobinVerdict{}, fmt.Errorf("%w: hemoglobin %.1f g/L", ErrInvalidInput, valueGL)
	}
	if cutoffGL <= 0 {
		return HemoglobinVerdict{}, fmt.Errorf("%w: hemoglobin cutoff %.1f g/L", ErrInvalidInput, cutoffGL)
	}

	v := HemoglobinVerdict{ValueGL: valueGL, CutoffGL: cutoffGL, Safe: valueGL >= cutoffGL}
	if v.Safe {
		v.Status = "safe"
	} else {
		v.Status = "unsafe"
	}
	return v, nil
}

// AssessVitals parses raw form input and evaluates it when complete.
func AssessVitals(in VitalsInput) (VitalsAssessment, VitalsRecord, error) {
	parsed := in.Parse()
	a := VitalsAssessment{Status: AssessmentIncomplete, InvalidFields: parsed.InvalidFields}

	rec, err := parsed.Record()
	if err != nil {
		return a, VitalsRecord{}, err
	}

	verdict := EvaluateVitals(rec)
	a.Status = AssessmentEvaluated
	a.Verdict = &verdict
	return a, rec, nil
}
