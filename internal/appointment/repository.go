package appointment

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Repository provides database operations for appointments
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new appointment repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create creates a new appointment
func (r *Repository) Create(ctx context.Context, a *Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_user_id, doctor_user_id, status,
			date, start_time, end_time, reason, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.PatientUserID, a.DoctorUserID, a.Status,
		a.Date, a.StartTime, a.EndTime, a.Reason, a.Notes,
	)

	if err != nil {
		return errors.Wrap(err, "failed to create appointment")
	}

	return nil
}

// Get retrieves an appointment by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Appointment, error) {
	query := appointmentSelect + ` WHERE id = $1`

	a := &Appointment{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.PatientUserID, &a.DoctorUserID, &a.Status,
		&a.Date, &a.StartTime, &a.EndTime, &a.Reason, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("appointment", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get appointment")
	}

	return a, nil
}

// Update persists the appointment's mutable fields
func (r *Repository) Update(ctx context.Context, a *Appointment) error {
	query := `
		UPDATE appointments SET
			status = $2, notes = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, a.ID, a.Status, a.Notes)
	if err != nil {
		return errors.Wrap(err, "failed to update appointment")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("appointment", a.ID.String())
	}

	return nil
}

// HasConflict checks whether the doctor already has an active appointment
// overlapping the requested slot
func (r *Repository) HasConflict(ctx context.Context, doctorUserID types.ID, date, startTime, endTime string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_user_id = $1 AND date = $2
			  AND status IN ('scheduled', 'in_progress')
			  AND start_time < $4 AND end_time > $3
		)`

	var conflict bool
	err := r.pool.QueryRow(ctx, query, doctorUserID, date, startTime, endTime).Scan(&conflict)
	if err != nil {
		return false, errors.Wrap(err, "failed to check appointment conflict")
	}

	return conflict, nil
}

// List lists appointments with optional filters
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Appointment, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.PatientUserID != nil {
		conditions = append(conditions, fmt.Sprintf("patient_user_id = $%d", argNum))
		args = append(args, *filter.PatientUserID)
		argNum++
	}

	if filter.DoctorUserID != nil {
		conditions = append(conditions, fmt.Sprintf("doctor_user_id = $%d", argNum))
		args = append(args, *filter.DoctorUserID)
		argNum++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}

	if filter.Date != "" {
		conditions = append(conditions, fmt.Sprintf("date = $%d", argNum))
		args = append(args, filter.Date)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM appointments %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count appointments")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`%s
		%s
		ORDER BY date DESC, start_time DESC
		LIMIT $%d OFFSET $%d`, appointmentSelect, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list appointments")
	}
	defer rows.Close()

	var appointments []Appointment
	for rows.Next() {
		var a Appointment
		err := rows.Scan(
			&a.ID, &a.PatientUserID, &a.DoctorUserID, &a.Status,
			&a.Date, &a.StartTime, &a.EndTime, &a.Reason, &a.Notes,
			&a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan appointment")
		}
		appointments = append(appointments, a)
	}

	return appointments, total, nil
}

const appointmentSelect = `
	SELECT id, patient_user_id, doctor_user_id, status,
		date, start_time, end_time, reason, notes,
		created_at, updated_at
	FROM appointments`
