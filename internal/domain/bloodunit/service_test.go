package bloodunit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bloodbank/bloodbank/internal/domain/serology"
)

// -- Mock Repository --

type mockUnitRepo struct {
	mu    sync.Mutex
	units map[uuid.UUID]*BloodUnit
}

func newMockUnitRepo() *mockUnitRepo {
	return &mockUnitRepo{units: make(map[uuid.UUID]*BloodUnit)}
}

func cloneUnit(u *BloodUnit) *BloodUnit {
	cp := *u
	cp.Tests = append([]TestEntry(nil), u.Tests...)
	return &cp
}

func (m *mockUnitRepo) Create(_ context.Context, u *BloodUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.units[u.ID] = cloneUnit(u)
	return nil
}

func (m *mockUnitRepo) GetByID(_ context.Context, id uuid.UUID) (*BloodUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[id]
	if !ok {
		return nil, ErrUnitNotFound
	}
	return cloneUnit(u), nil
}

func (m *mockUnitRepo) List(_ context.Context, status UnitStatus, limit, offset int) ([]*BloodUnit, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*BloodUnit
	for _, u := range m.units {
		if status == "" || u.Status == status {
			result = append(result, cloneUnit(u))
		}
	}
	return result, len(result), nil
}

func (m *mockUnitRepo) SetTestStatus(_ context.Context, unitID uuid.UUID, testID string, status TestStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[unitID]
	if !ok {
		return ErrUnitNotFound
	}
	for i := range u.Tests {
		if u.Tests[i].ID != testID {
			continue
		}
		if u.Tests[i].Status != TestPending {
			return fmt.Errorf("%w: %s", ErrResultConflict, testID)
		}
		u.Tests[i].Status = status
		u.Tests[i].RecordedAt = &at
		return nil
	}
	return fmt.Errorf("%w: %s", ErrResultConflict, testID)
}

func (m *mockUnitRepo) SetBloodType(_ context.Context, unitID uuid.UUID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[unitID]
	if !ok {
		return ErrUnitNotFound
	}
	u.BloodType = &code
	return nil
}

func (m *mockUnitRepo) SetUnitStatus(_ context.Context, unitID uuid.UUID, status UnitStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[unitID]
	if !ok {
		return ErrUnitNotFound
	}
	if u.Status != StatusPending {
		return ErrAlreadyFinalized
	}
	u.Status = status
	u.FinalizedAt = &at
	return nil
}

type countingTx struct{ calls int }

func (c *countingTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	c.calls++
	return fn(ctx)
}

func newTestService() *Service {
	return NewService(newMockUnitRepo(), 0, zerolog.Nop())
}

func createUnit(t *testing.T, svc *Service) *BloodUnit {
	t.Helper()
	u := &BloodUnit{}
	if err := svc.CreateUnit(context.Background(), u); err != nil {
		t.Fatalf("CreateUnit: %v", err)
	}
	return u
}

func passCompulsory(t *testing.T, svc *Service, id uuid.UUID) {
	t.Helper()
	for _, tid := range compulsoryIDs() {
		if _, err := svc.RecordTestResult(context.Background(), id, tid, TestPass); err != nil {
			t.Fatalf("RecordTestResult(%s): %v", tid, err)
		}
	}
}

var validPanel = serology.ReagentPanel{
	AntiA:        serology.Agglutination,
	AntiB:        serology.NoAgglutination,
	AntiD:        serology.Agglutination,
	NormalSaline: serology.NoAgglutination,
}

func TestService_CreateUnit(t *testing.T) {
	svc := newTestService()
	u := createUnit(t, svc)
	if u.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if u.Status != StatusPending {
		t.Errorf("expected pending, got %s", u.Status)
	}
	if len(u.Tests) != len(DefaultRoster()) {
		t.Errorf("expected %d tests, got %d", len(DefaultRoster()), len(u.Tests))
	}
}

func TestService_GetUnit_NotFound(t *testing.T) {
	svc := newTestService()
	if _, err := svc.GetUnit(context.Background(), uuid.New()); !errors.Is(err, ErrUnitNotFound) {
		t.Errorf("expected ErrUnitNotFound, got %v", err)
	}
}

func TestService_ListUnits(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	a := createUnit(t, svc)
	createUnit(t, svc)
	passCompulsory(t, svc, a.ID)
	if _, err := svc.Finalize(ctx, a.ID, DecisionPass); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	all, total, err := svc.ListUnits(ctx, "", 20, 0)
	if err != nil || total != 2 || len(all) != 2 {
		t.Errorf("expected 2 units, got %d/%d (%v)", len(all), total, err)
	}
	pending, total, _ := svc.ListUnits(ctx, StatusPending, 20, 0)
	if total != 1 || len(pending) != 1 {
		t.Errorf("expected 1 pending unit, got %d", total)
	}
	if _, _, err := svc.ListUnits(ctx, "quarantined", 20, 0); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestService_RecordTestResult(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u := createUnit(t, svc)

	got, err := svc.RecordTestResult(ctx, u.ID, TestHIV, TestPass)
	if err != nil {
		t.Fatalf("RecordTestResult: %v", err)
	}
	for _, e := range got.Tests {
		if e.ID == TestHIV && (e.Status != TestPass || e.RecordedAt == nil) {
			t.Errorf("expected hiv pass with recorded_at, got %+v", e)
		}
	}

	if _, err := svc.RecordTestResult(ctx, u.ID, TestHIV, TestFail); !errors.Is(err, ErrResultConflict) {
		t.Errorf("expected ErrResultConflict, got %v", err)
	}
	if _, err := svc.RecordTestResult(ctx, u.ID, "unknown", TestPass); !errors.Is(err, ErrUnknownTest) {
		t.Errorf("expected ErrUnknownTest, got %v", err)
	}
	if _, err := svc.RecordTestResult(ctx, uuid.New(), TestHIV, TestPass); !errors.Is(err, ErrUnitNotFound) {
		t.Errorf("expected ErrUnitNotFound, got %v", err)
	}
}

func TestService_RecordTestResult_UsesTransactor(t *testing.T) {
	svc := newTestService()
	tx := &countingTx{}
	svc.SetTxRunner(tx)
	u := createUnit(t, svc)

	if _, err := svc.RecordTestResult(context.Background(), u.ID, TestHIV, TestPass); err != nil {
		t.Fatalf("RecordTestResult: %v", err)
	}
	if tx.calls != 2 {
		t.Errorf("expected create and record to each run in a transaction, got %d calls", tx.calls)
	}
}

func TestService_RecordBloodGroup(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u := createUnit(t, svc)

	got, res, err := svc.RecordBloodGroup(ctx, u.ID, validPanel)
	if err != nil {
		t.Fatalf("RecordBloodGroup: %v", err)
	}
	if res.Display != "A+" {
		t.Errorf("expected A+, got %s", res.Display)
	}
	if got.BloodType == nil || *got.BloodType != "A_POSITIVE" {
		t.Errorf("expected backend code A_POSITIVE, got %v", got.BloodType)
	}
	if got.BloodTypeDisplay != "A+" {
		t.Errorf("expected display A+, got %q", got.BloodTypeDisplay)
	}
}

func TestService_RecordBloodGroup_InvalidTestFails(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u := createUnit(t, svc)

	panel := validPanel
	panel.NormalSaline = serology.Agglutination
	got, res, err := svc.RecordBloodGroup(ctx, u.ID, panel)
	if err != nil {
		t.Fatalf("RecordBloodGroup: %v", err)
	}
	if !res.IsInvalid() {
		t.Errorf("expected invalid test, got %+v", res)
	}
	if got.BloodType != nil {
		t.Error("invalid test must not set a blood type")
	}
	for _, e := range got.Tests {
		if e.ID == TestBloodGroup && e.Status != TestFail {
			t.Errorf("expected blood-group fail, got %s", e.Status)
		}
	}
}

func TestService_RecordBloodGroup_IncompleteRecordsNothing(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u := createUnit(t, svc)

	panel := validPanel
	panel.AntiD = serology.Unset
	if _, _, err := svc.RecordBloodGroup(ctx, u.ID, panel); !errors.Is(err, serology.ErrIncompletePanel) {
		t.Fatalf("expected ErrIncompletePanel, got %v", err)
	}
	got, _ := svc.GetUnit(ctx, u.ID)
	for _, e := range got.Tests {
		if e.ID == TestBloodGroup && e.Status != TestPending {
			t.Errorf("expected blood-group pending, got %s", e.Status)
		}
	}
}

func TestService_RecordHemoglobin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u := createUnit(t, svc)

	got, v, err := svc.RecordHemoglobin(ctx, u.ID, 119)
	if err != nil {
		t.Fatalf("RecordHemoglobin: %v", err)
	}
	if v.Safe {
		t.Error("119 g/L should be unsafe")
	}
	for _, e := range got.Tests {
		if e.ID == TestHemoglobin && e.Status != TestFail {
			t.Errorf("expected hemoglobin fail, got %s", e.Status)
		}
	}

	u2 := createUnit(t, svc)
	got, v, _ = svc.RecordHemoglobin(ctx, u2.ID, 120)
	if !v.Safe {
		t.Error("120 g/L should be safe")
	}
	for _, e := range got.Tests {
		if e.ID == TestHemoglobin && e.Status != TestPass {
			t.Errorf("expected hemoglobin pass, got %s", e.Status)
		}
	}
}

func TestService_Finalize(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u := createUnit(t, svc)

	if _, err := svc.Finalize(ctx, u.ID, DecisionPass); !errors.Is(err, ErrCompulsoryIncomplete) {
		t.Fatalf("expected ErrCompulsoryIncomplete, got %v", err)
	}

	passCompulsory(t, svc, u.ID)
	got, err := svc.Finalize(ctx, u.ID, DecisionPass)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if got.Status != StatusPassed || got.FinalizedAt == nil {
		t.Errorf("expected passed with finalized_at, got %+v", got)
	}

	if _, err := svc.Finalize(ctx, u.ID, DecisionFail); !errors.Is(err, ErrAlreadyFinalized) {
		t.Errorf("expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestService_Finalize_CompulsoryFailure(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u := createUnit(t, svc)

	ids := compulsoryIDs()
	for _, id := range ids[1:] {
		svc.RecordTestResult(ctx, u.ID, id, TestPass)
	}
	svc.RecordTestResult(ctx, u.ID, ids[0], TestFail)

	if _, err := svc.Finalize(ctx, u.ID, DecisionPass); !errors.Is(err, ErrCompulsoryFailure) {
		t.Fatalf("expected ErrCompulsoryFailure, got %v", err)
	}
	stored, _ := svc.GetUnit(ctx, u.ID)
	if stored.Status != StatusPending {
		t.Fatalf("expected pending after rejected pass, got %s", stored.Status)
	}

	got, err := svc.Finalize(ctx, u.ID, DecisionFail)
	if err != nil || got.Status != StatusFailed {
		t.Errorf("expected failed, got %v (%v)", got, err)
	}
}

func TestService_OptionalResultAfterFinalize(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u := createUnit(t, svc)
	passCompulsory(t, svc, u.ID)
	svc.Finalize(ctx, u.ID, DecisionPass)

	if _, err := svc.RecordTestResult(ctx, u.ID, TestMalaria, TestPass); err != nil {
		t.Errorf("optional result after finalization should be accepted, got %v", err)
	}
}

func TestService_Readiness(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u := createUnit(t, svc)

	r, err := svc.Readiness(ctx, u.ID)
	if err != nil {
		t.Fatalf("Readiness: %v", err)
	}
	if r.CanFinalizeAsPass || len(r.PendingCompulsory) != len(compulsoryIDs()) {
		t.Errorf("unexpected readiness for fresh unit: %+v", r)
	}

	passCompulsory(t, svc, u.ID)
	r, _ = svc.Readiness(ctx, u.ID)
	if !r.CanFinalizeAsPass || !r.CanFinalizeAsFail || len(r.PendingCompulsory) != 0 {
		t.Errorf("unexpected readiness after passing: %+v", r)
	}
}

func TestService_ConcurrentResults(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u := createUnit(t, svc)

	var wg sync.WaitGroup
	for _, d := range DefaultRoster() {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := svc.RecordTestResult(ctx, u.ID, id, TestPass); err != nil {
				t.Errorf("RecordTestResult(%s): %v", id, err)
			}
		}(d.ID)
	}
	wg.Wait()

	got, _ := svc.GetUnit(ctx, u.ID)
	for _, e := range got.Tests {
		if e.Status != TestPass {
			t.Errorf("%s: expected pass, got %s", e.ID, e.Status)
		}
	}
	if n := svc.locks.size(); n != 0 {
		t.Errorf("expected unit locks to be released, %d remain", n)
	}
}

func TestService_ConcurrentFinalize(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u := createUnit(t, svc)
	passCompulsory(t, svc, u.ID)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Finalize(ctx, u.ID, DecisionPass)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrAlreadyFinalized) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one finalization, got %d", wins)
	}
}
