package bloodunit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type UnitRepository interface {
	// Create inserts the unit and its test roster.
	Create(ctx context.Context, u *BloodUnit) error
	GetByID(ctx context.Context, id uuid.UUID) (*BloodUnit, error)
	// List returns units filtered by status; an empty status matches all.
	List(ctx context.Context, status UnitStatus, limit, offset int) ([]*BloodUnit, int, error)
	// SetTestStatus moves a pending test to status. It returns
	// ErrResultConflict when the stored test is no longer pending.
	SetTestStatus(ctx context.Context, unitID uuid.UUID, testID string, status TestStatus, at time.Time) error
	SetBloodType(ctx context.Context, unitID uuid.UUID, code string) error
	// SetUnitStatus moves a pending unit to a terminal status. It returns
	// ErrAlreadyFinalized when the stored unit is no longer pending.
	SetUnitStatus(ctx context.Context, unitID uuid.UUID, status UnitStatus, at time.Time) error
}
