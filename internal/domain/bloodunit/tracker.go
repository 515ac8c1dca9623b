package bloodunit

import (
	"fmt"
	"sync/atomic"
)

const (
	pendingCode int32 = iota
	passCode
	failCode
)

func statusCode(s TestStatus) int32 {
	switch s {
	case TestPass:
		return passCode
	case TestFail:
		return failCode
	default:
		return pendingCode
	}
}

func codeStatus(c int32) TestStatus {
	switch c {
	case passCode:
		return TestPass
	case failCode:
		return TestFail
	default:
		return TestPending
	}
}

type trackedTest struct {
	def    TestDefinition
	status atomic.Int32
}

// Tracker holds the result roster of one blood unit. The set of tests is
// fixed at construction; only statuses change, each through its own
// compare-and-set, so writers to different tests never contend.
type Tracker struct {
	order   []string
	entries map[string]*trackedTest
}

// NewTracker builds a tracker with every test pending.
func NewTracker(roster []TestDefinition) (*Tracker, error) {
	entries := make([]TestEntry, len(roster))
	for i, def := range roster {
		entries[i] = TestEntry{TestDefinition: def, Status: TestPending}
	}
	return RestoreTracker(entries)
}

// RestoreTracker rebuilds a tracker from stored entries.
func RestoreTracker(entries []TestEntry) (*Tracker, error) {
	t := &Tracker{
		order:   make([]string, 0, len(entries)),
		entries: make(map[string]*trackedTest, len(entries)),
	}
	for _, e := range entries {
		if _, dup := t.entries[e.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTest, e.ID)
		}
		if !e.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, e.Status)
		}
		tt := &trackedTest{def: e.TestDefinition}
		tt.status.Store(statusCode(e.Status))
		t.entries[e.ID] = tt
		t.order = append(t.order, e.ID)
	}
	return t, nil
}

// RecordResult moves one test from pending to pass or fail. Results are
// write-once: a second write to the same test returns ErrResultConflict.
func (t *Tracker) RecordResult(testID string, status TestStatus) error {
	if status != TestPass && status != TestFail {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	tt, ok := t.entries[testID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTest, testID)
	}
	if !tt.status.CompareAndSwap(pendingCode, statusCode(status)) {
		return fmt.Errorf("%w: %s is %s", ErrResultConflict, testID, codeStatus(tt.status.Load()))
	}
	return nil
}

// Status returns the current status of one test.
func (t *Tracker) Status(testID string) (TestStatus, error) {
	tt, ok := t.entries[testID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTest, testID)
	}
	return codeStatus(tt.status.Load()), nil
}

// Entries returns a snapshot of the roster in its original order.
func (t *Tracker) Entries() []TestEntry {
	out := make([]TestEntry, 0, len(t.order))
	for _, id := range t.order {
		tt := t.entries[id]
		out = append(out, TestEntry{TestDefinition: tt.def, Status: codeStatus(tt.status.Load())})
	}
	return out
}

func (t *Tracker) AllCompulsoryComplete() bool {
	for _, tt := range t.entries {
		if tt.def.Compulsory && tt.status.Load() == pendingCode {
			return false
		}
	}
	return true
}

func (t *Tracker) HasAnyCompulsoryFailure() bool {
	for _, tt := range t.entries {
		if tt.def.Compulsory && tt.status.Load() == failCode {
			return true
		}
	}
	return false
}

func (t *Tracker) CanFinalizeAsPass() bool {
	return t.AllCompulsoryComplete() && !t.HasAnyCompulsoryFailure()
}

// CanFinalizeAsFail allows failing a unit once its gating tests are done,
// even if they all passed.
func (t *Tracker) CanFinalizeAsFail() bool {
	return t.AllCompulsoryComplete()
}

// Readiness reports the four predicates plus the compulsory tests still
// pending, in roster order.
func (t *Tracker) Readiness() Readiness {
	r := Readiness{
		AllCompulsoryComplete:   t.AllCompulsoryComplete(),
		HasAnyCompulsoryFailure: t.HasAnyCompulsoryFailure(),
		CanFinalizeAsPass:       t.CanFinalizeAsPass(),
		CanFinalizeAsFail:       t.CanFinalizeAsFail(),
	}
	for _, id := range t.order {
		tt := t.entries[id]
		if tt.def.Compulsory && tt.status.Load() == pendingCode {
			r.PendingCompulsory = append(r.PendingCompulsory, id)
		}
	}
	return r
}
