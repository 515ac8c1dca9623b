package scheduling

import "time"

// GenerateTokens partitions [Start, End] into donation slots of
// DurationMinutes separated by RestMinutes. Token k starts at
// Start + k*(D+R); no token ends after End. An empty or inverted window, or
// a donation longer than the window, yields no tokens.
func GenerateTokens(p ScheduleParams) ([]SlotToken, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !p.End.After(p.Start) {
		return []SlotToken{}, nil
	}

	count := tokenCount(int64(p.End.Sub(p.Start)/time.Minute), int64(p.DurationMinutes), int64(p.RestMinutes))

	d := time.Duration(p.DurationMinutes) * time.Minute
	step := time.Duration(p.DurationMinutes+p.RestMinutes) * time.Minute
	tokens := make([]SlotToken, count)
	for k := 0; k < count; k++ {
		start := p.Start.Add(time.Duration(k) * step)
		tokens[k] = SlotToken{
			Sequence:    k + 1,
			Start:       start,
			End:         start.Add(d),
			IsAvailable: true,
		}
	}
	return tokens, nil
}

// tokenCount is (span+R)/(D+R) clipped to >= 0, computed in minutes. Once
// D fits the window every operand is bounded by the span, so neither the
// sum nor the step offsets can overflow.
func tokenCount(spanMin, d, r int64) int {
	if d > spanMin {
		return 0
	}
	if r >= spanMin {
		// Only the first slot fits before the next one would start.
		return 1
	}
	count := (spanMin + r) / (d + r)
	if count < 0 {
		return 0
	}
	return int(count)
}
