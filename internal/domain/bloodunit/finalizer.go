package bloodunit

import (
	"fmt"
	"sync/atomic"
)

const (
	unitPending int32 = iota
	unitPassed
	unitFailed
)

func unitCode(s UnitStatus) int32 {
	switch s {
	case StatusPassed:
		return unitPassed
	case StatusFailed:
		return unitFailed
	default:
		return unitPending
	}
}

func codeUnit(c int32) UnitStatus {
	switch c {
	case unitPassed:
		return StatusPassed
	case unitFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// Finalizer commits the terminal status of one unit. Pending is the only
// state with outgoing transitions; the move out of it is a single
// compare-and-set, so of two racing calls exactly one wins.
type Finalizer struct {
	tracker *Tracker
	status  atomic.Int32
}

func NewFinalizer(t *Tracker, current UnitStatus) *Finalizer {
	f := &Finalizer{tracker: t}
	f.status.Store(unitCode(current))
	return f
}

func (f *Finalizer) Status() UnitStatus {
	return codeUnit(f.status.Load())
}

// Finalize applies the decision. Pass requires every compulsory test to have
// passed; fail requires every compulsory test to be complete. Rejections
// leave the status unchanged.
func (f *Finalizer) Finalize(d Decision) (UnitStatus, error) {
	if cur := f.status.Load(); cur != unitPending {
		return codeUnit(cur), fmt.Errorf("%w: %s", ErrAlreadyFinalized, codeUnit(cur))
	}

	var target int32
	switch d {
	case DecisionPass:
		target = unitPassed
	case DecisionFail:
		target = unitFailed
	default:
		return StatusPending, fmt.Errorf("%w: %q", ErrInvalidDecision, d)
	}

	if !f.tracker.AllCompulsoryComplete() {
		return StatusPending, ErrCompulsoryIncomplete
	}
	if d == DecisionPass && f.tracker.HasAnyCompulsoryFailure() {
		return StatusPending, ErrCompulsoryFailure
	}

	if !f.status.CompareAndSwap(unitPending, target) {
		cur := f.status.Load()
		return codeUnit(cur), fmt.Errorf("%w: %s", ErrAlreadyFinalized, codeUnit(cur))
	}
	return codeUnit(target), nil
}
