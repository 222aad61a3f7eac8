package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Repository provides database operations for emergency transports
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new transport repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create creates a new transport request
func (r *Repository) Create(ctx context.Context, t *Transport) error {
	pickupJSON, err := json.Marshal(t.Pickup)
	if err != nil {
		return errors.Wrap(err, "failed to marshal pickup")
	}
	destinationJSON, err := json.Marshal(t.Destination)
	if err != nil {
		return errors.Wrap(err, "failed to marshal destination")
	}

	query := `
		INSERT INTO emergency_transports (
			id, patient_user_id, pickup, destination, urgency, status, assigned_to
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.pool.Exec(ctx, query,
		t.ID, t.PatientUserID, pickupJSON, destinationJSON, t.Urgency, t.Status, t.AssignedTo,
	)

	if err != nil {
		return errors.Wrap(err, "failed to create transport")
	}

	return nil
}

// Get retrieves a transport by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Transport, error) {
	t, err := scanTransport(r.pool.QueryRow(ctx, transportSelect+` WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("transport", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transport")
	}

	return t, nil
}

// Update persists the transport's mutable fields
func (r *Repository) Update(ctx context.Context, t *Transport) error {
	query := `
		UPDATE emergency_transports SET
			status = $2, assigned_to = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, t.ID, t.Status, t.AssignedTo)
	if err != nil {
		return errors.Wrap(err, "failed to update transport")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("transport", t.ID.String())
	}

	return nil
}

// List lists transports with optional filters
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Transport, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.PatientUserID != nil {
		conditions = append(conditions, fmt.Sprintf("patient_user_id = $%d", argNum))
		args = append(args, *filter.PatientUserID)
		argNum++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}

	if filter.ActiveOnly {
		conditions = append(conditions, "status NOT IN ('completed', 'cancelled')")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM emergency_transports %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count transports")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`%s
		%s
		ORDER BY requested_at DESC
		LIMIT $%d OFFSET $%d`, transportSelect, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list transports")
	}
	defer rows.Close()

	var transports []Transport
	for rows.Next() {
		t, err := scanTransport(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan transport")
		}
		transports = append(transports, *t)
	}

	return transports, total, nil
}

const transportSelect = `
	SELECT id, patient_user_id, pickup, destination, urgency, status, assigned_to,
		requested_at, updated_at
	FROM emergency_transports`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransport(row rowScanner) (*Transport, error) {
	t := &Transport{}
	var pickupJSON, destinationJSON []byte

	err := row.Scan(
		&t.ID, &t.PatientUserID, &pickupJSON, &destinationJSON,
		&t.Urgency, &t.Status, &t.AssignedTo,
		&t.RequestedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(pickupJSON) > 0 {
		json.Unmarshal(pickupJSON, &t.Pickup)
	}
	if len(destinationJSON) > 0 {
		json.Unmarshal(destinationJSON, &t.Destination)
	}

	return t, nil
}
