package bloodunit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloodbank/bloodbank/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type unitRepoPG struct{ pool *pgxpool.Pool }

func NewUnitRepoPG(pool *pgxpool.Pool) UnitRepository { return &unitRepoPG{pool: pool} }

func (r *unitRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const unitCols = `id, donor_id, appointment_id, status, blood_type, finalized_at, created_at, updated_at`

func (r *unitRepoPG) scanUnit(row pgx.Row) (*BloodUnit, error) {
	var u BloodUnit
	err := row.Scan(&u.ID, &u.DonorID, &u.AppointmentID, &u.Status, &u.BloodType,
		&u.FinalizedAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnitNotFound
	}
	return &u, err
}

func (r *unitRepoPG) Create(ctx context.Context, u *BloodUnit) error {
	u.ID = uuid.New()
	if u.Status == "" {
		u.Status = StatusPending
	}
	q := r.conn(ctx)
	err := q.QueryRow(ctx, `
		INSERT INTO blood_unit (id, donor_id, appointment_id, status, blood_type)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at`,
		u.ID, u.DonorID, u.AppointmentID, u.Status, u.BloodType,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert blood unit: %w", err)
	}

	for i, t := range u.Tests {
		if _, err := q.Exec(ctx, `
			INSERT INTO blood_unit_test (unit_id, test_id, name, compulsory, status, position)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			u.ID, t.ID, t.Name, t.Compulsory, t.Status, i,
		); err != nil {
			return fmt.Errorf("insert test %s: %w", t.ID, err)
		}
	}
	return nil
}

func (r *unitRepoPG) loadTests(ctx context.Context, u *BloodUnit) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT test_id, name, compulsory, status, recorded_at
		FROM blood_unit_test WHERE unit_id = $1 ORDER BY position`, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	u.Tests = u.Tests[:0]
	for rows.Next() {
		var t TestEntry
		if err := rows.Scan(&t.ID, &t.Name, &t.Compulsory, &t.Status, &t.RecordedAt); err != nil {
			return err
		}
		u.Tests = append(u.Tests, t)
	}
	return rows.Err()
}

func (r *unitRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*BloodUnit, error) {
	u, err := r.scanUnit(r.conn(ctx).QueryRow(ctx, `SELECT `+unitCols+` FROM blood_unit WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadTests(ctx, u); err != nil {
		return nil, fmt.Errorf("load tests: %w", err)
	}
	return u, nil
}

func (r *unitRepoPG) List(ctx context.Context, status UnitStatus, limit, offset int) ([]*BloodUnit, int, error) {
	query := `SELECT ` + unitCols + ` FROM blood_unit WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM blood_unit WHERE 1=1`
	var args []interface{}
	idx := 1

	if status != "" {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	var items []*BloodUnit
	for rows.Next() {
		u, err := r.scanUnit(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		items = append(items, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for _, u := range items {
		if err := r.loadTests(ctx, u); err != nil {
			return nil, 0, fmt.Errorf("load tests: %w", err)
		}
	}
	return items, total, nil
}

func (r *unitRepoPG) SetTestStatus(ctx context.Context, unitID uuid.UUID, testID string, status TestStatus, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE blood_unit_test SET status = $3, recorded_at = $4
		WHERE unit_id = $1 AND test_id = $2 AND status = 'pending'`,
		unitID, testID, status, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrResultConflict, testID)
	}
	_, err = r.conn(ctx).Exec(ctx, `UPDATE blood_unit SET updated_at = NOW() WHERE id = $1`, unitID)
	return err
}

func (r *unitRepoPG) SetBloodType(ctx context.Context, unitID uuid.UUID, code string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE blood_unit SET blood_type = $2, updated_at = NOW() WHERE id = $1`, unitID, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUnitNotFound
	}
	return nil
}

func (r *unitRepoPG) SetUnitStatus(ctx context.Context, unitID uuid.UUID, status UnitStatus, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE blood_unit SET status = $2, finalized_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		unitID, status, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyFinalized
	}
	return nil
}
