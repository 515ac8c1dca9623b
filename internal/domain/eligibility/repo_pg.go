package eligibility

import (
	"context"
	"errors"
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

type screeningRepoPG struct{ pool *pgxpool.Pool }

func NewScreeningRepoPG(pool *pgxpool.Pool) ScreeningRepository {
	return &screeningRepoPG{pool: pool}
}

func (r *screeningRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const screeningCols = `id, appointment_id, donor_id, weight_kg, systolic_bp, pulse,
	eligible, failed_checks, hemoglobin_gl, hemoglobin_safe,
	accepted, accepted_at, created_at, updated_at`

func (r *screeningRepoPG) scanRow(row pgx.Row) (*DonorScreening, error) {
	var s DonorScreening
	err := row.Scan(&s.ID, &s.AppointmentID, &s.DonorID, &s.WeightKg, &s.SystolicBP, &s.Pulse,
		&s.Eligible, &s.FailedChecks, &s.HemoglobinGL, &s.HemoglobinSafe,
		&s.Accepted, &s.AcceptedAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScreeningNotFound
	}
	return &s, err
}

func (r *screeningRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*DonorScreening, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+screeningCols+` FROM donor_screening WHERE appointment_id = $1`, appointmentID))
}

func (r *screeningRepoPG) Save(ctx context.Context, s *DonorScreening) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	// The WHERE on the conflict branch leaves accepted rows untouched, in
	// which case RETURNING yields nothing.
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO donor_screening (id, appointment_id, donor_id, weight_kg, systolic_bp, pulse,
			eligible, failed_checks, hemoglobin_gl, hemoglobin_safe)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (appointment_id) DO UPDATE SET
			donor_id = COALESCE(EXCLUDED.donor_id, donor_screening.donor_id),
			weight_kg = EXCLUDED.weight_kg, systolic_bp = EXCLUDED.systolic_bp, pulse = EXCLUDED.pulse,
			eligible = EXCLUDED.eligible, failed_checks = EXCLUDED.failed_checks,
			hemoglobin_gl = EXCLUDED.hemoglobin_gl, hemoglobin_safe = EXCLUDED.hemoglobin_safe,
			updated_at = NOW()
		WHERE donor_screening.accepted = false
		RETURNING id, created_at, updated_at`,
		s.ID, s.AppointmentID, s.DonorID, s.WeightKg, s.SystolicBP, s.Pulse,
		s.Eligible, s.FailedChecks, s.HemoglobinGL, s.HemoglobinSafe,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrScreeningLocked
	}
	return err
}

func (r *screeningRepoPG) Accept(ctx context.Context, appointmentID uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE donor_screening SET accepted = true, accepted_at = $2, updated_at = NOW()
		WHERE appointment_id = $1 AND accepted = false
			AND eligible = true AND (hemoglobin_safe IS NULL OR hemoglobin_safe)`, appointmentID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing matched: report why from the row as it stands now.
	var accepted bool
	err = r.conn(ctx).QueryRow(ctx,
		`SELECT accepted FROM donor_screening WHERE appointment_id = $1`, appointmentID).Scan(&accepted)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrScreeningNotFound
	case err != nil:
		return err
	case accepted:
		return ErrScreeningLocked
	default:
		return ErrNotEligible
	}
}
