package scheduling

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

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

func (r *scheduleRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const tokenCols = `sequence, start_at, end_at, is_available, appointment_id, booked_at`

func scanToken(row pgx.Row) (*SlotToken, error) {
	var t SlotToken
	err := row.Scan(&t.Sequence, &t.Start, &t.End, &t.IsAvailable, &t.AppointmentID, &t.BookedAt)
	return &t, err
}

// Replace must run inside a transaction so the delete, booking check and
// insert are one commit; the service wraps it with db.TxRunner. Only
// available tokens are deleted, and the deleted rows stay locked until
// commit, so a racing Book either lands first and is counted below or finds
// its token gone.
func (r *scheduleRepoPG) Replace(ctx context.Context, s *FacilitySchedule) error {
	q := r.conn(ctx)

	if _, err := q.Exec(ctx, `
		DELETE FROM slot_token
		WHERE facility_id = $1 AND schedule_date = $2::date AND is_available = true`,
		s.FacilityID, s.Date); err != nil {
		return err
	}

	var booked int
	if err := q.QueryRow(ctx, `
		SELECT COUNT(*) FROM slot_token WHERE facility_id = $1 AND schedule_date = $2::date`,
		s.FacilityID, s.Date,
	).Scan(&booked); err != nil {
		return err
	}
	if booked > 0 {
		return fmt.Errorf("%w: %d booked", ErrScheduleHasBookings, booked)
	}

	if err := q.QueryRow(ctx, `
		INSERT INTO facility_schedule (facility_id, schedule_date, start_at, end_at, duration_minutes, rest_minutes)
		VALUES ($1, $2::date, $3, $4, $5, $6)
		ON CONFLICT (facility_id, schedule_date) DO UPDATE SET
			start_at = EXCLUDED.start_at, end_at = EXCLUDED.end_at,
			duration_minutes = EXCLUDED.duration_minutes, rest_minutes = EXCLUDED.rest_minutes,
			generated_at = NOW()
		RETURNING generated_at`,
		s.FacilityID, s.Date, s.Start, s.End, s.DurationMinutes, s.RestMinutes,
	).Scan(&s.GeneratedAt); err != nil {
		return err
	}

	if len(s.Tokens) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range s.Tokens {
		batch.Queue(`
			INSERT INTO slot_token (facility_id, schedule_date, sequence, start_at, end_at, is_available)
			VALUES ($1, $2::date, $3, $4, $5, $6)`,
			s.FacilityID, s.Date, t.Sequence, t.Start, t.End, t.IsAvailable)
	}
	return r.sendBatch(ctx, batch)
}

func (r *scheduleRepoPG) sendBatch(ctx context.Context, b *pgx.Batch) error {
	var br pgx.BatchResults
	if tx := db.TxFromContext(ctx); tx != nil {
		br = tx.SendBatch(ctx, b)
	} else {
		br = r.pool.SendBatch(ctx, b)
	}
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert slot token: %w", err)
		}
	}
	return br.Close()
}

func (r *scheduleRepoPG) Get(ctx context.Context, facilityID uuid.UUID, date string) (*FacilitySchedule, error) {
	s := &FacilitySchedule{FacilityID: facilityID}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT schedule_date::text, start_at, end_at, duration_minutes, rest_minutes, generated_at
		FROM facility_schedule WHERE facility_id = $1 AND schedule_date = $2::date`,
		facilityID, date,
	).Scan(&s.Date, &s.Start, &s.End, &s.DurationMinutes, &s.RestMinutes, &s.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+tokenCols+` FROM slot_token
		WHERE facility_id = $1 AND schedule_date = $2::date ORDER BY sequence`, facilityID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	s.Tokens = []SlotToken{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		s.Tokens = append(s.Tokens, *t)
	}
	return s, rows.Err()
}

func (r *scheduleRepoPG) tokenExists(ctx context.Context, facilityID uuid.UUID, date string, seq int) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM slot_token WHERE facility_id = $1 AND schedule_date = $2::date AND sequence = $3)`,
		facilityID, date, seq).Scan(&exists)
	return exists, err
}

func (r *scheduleRepoPG) Book(ctx context.Context, facilityID uuid.UUID, date string, seq int, appointmentID uuid.UUID, at time.Time) (*SlotToken, error) {
	t, err := scanToken(r.conn(ctx).QueryRow(ctx, `
		UPDATE slot_token SET is_available = false, appointment_id = $4, booked_at = $5
		WHERE facility_id = $1 AND schedule_date = $2::date AND sequence = $3 AND is_available = true
		RETURNING `+tokenCols,
		facilityID, date, seq, appointmentID, at))
	if errors.Is(err, pgx.ErrNoRows) {
		exists, xerr := r.tokenExists(ctx, facilityID, date, seq)
		if xerr != nil {
			return nil, xerr
		}
		if !exists {
			return nil, ErrTokenNotFound
		}
		return nil, ErrTokenUnavailable
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *scheduleRepoPG) Release(ctx context.Context, facilityID uuid.UUID, date string, seq int) (*SlotToken, error) {
	t, err := scanToken(r.conn(ctx).QueryRow(ctx, `
		UPDATE slot_token SET is_available = true, appointment_id = NULL, booked_at = NULL
		WHERE facility_id = $1 AND schedule_date = $2::date AND sequence = $3 AND is_available = false
		RETURNING `+tokenCols,
		facilityID, date, seq))
	if errors.Is(err, pgx.ErrNoRows) {
		exists, xerr := r.tokenExists(ctx, facilityID, date, seq)
		if xerr != nil {
			return nil, xerr
		}
		if !exists {
			return nil, ErrTokenNotFound
		}
		return nil, ErrTokenNotBooked
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
