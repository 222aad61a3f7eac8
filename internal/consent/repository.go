package consent

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Repository provides database operations for consents
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new consent repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Grant creates or reactivates the consent for a (patient, doctor) pair
func (r *Repository) Grant(ctx context.Context, c *Consent) error {
	query := `
		INSERT INTO patient_consents (id, patient_user_id, doctor_user_id, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (patient_user_id, doctor_user_id)
		DO UPDATE SET is_active = TRUE, granted_at = NOW(), revoked_at = NULL
		RETURNING id, granted_at`

	err := r.pool.QueryRow(ctx, query, c.ID, c.PatientUserID, c.DoctorUserID).
		Scan(&c.ID, &c.GrantedAt)
	if err != nil {
		return errors.Wrap(err, "failed to grant consent")
	}

	c.IsActive = true
	c.RevokedAt = nil
	return nil
}

// Revoke deactivates a consent. Only the granting patient may revoke.
func (r *Repository) Revoke(ctx context.Context, id, patientUserID types.ID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE patient_consents
		SET is_active = FALSE, revoked_at = NOW()
		WHERE id = $1 AND patient_user_id = $2 AND is_active = TRUE`,
		id, patientUserID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to revoke consent")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("active consent", id.String())
	}

	return nil
}

// Get retrieves a consent by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Consent, error) {
	query := consentSelect + ` WHERE id = $1`

	c := &Consent{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.PatientUserID, &c.DoctorUserID, &c.IsActive, &c.GrantedAt, &c.RevokedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("consent", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get consent")
	}

	return c, nil
}

// List lists consents with optional filters
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Consent, int, error) {
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

	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM patient_consents %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count consents")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`%s
		%s
		ORDER BY granted_at DESC
		LIMIT $%d OFFSET $%d`, consentSelect, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list consents")
	}
	defer rows.Close()

	var consents []Consent
	for rows.Next() {
		var c Consent
		err := rows.Scan(&c.ID, &c.PatientUserID, &c.DoctorUserID, &c.IsActive, &c.GrantedAt, &c.RevokedAt)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan consent")
		}
		consents = append(consents, c)
	}

	return consents, total, nil
}

const consentSelect = `
	SELECT id, patient_user_id, doctor_user_id, is_active, granted_at, revoked_at
	FROM patient_consents`
