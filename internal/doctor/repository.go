package doctor

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

// Repository provides database operations for the doctor directory
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new doctor repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create creates a new directory entry
func (r *Repository) Create(ctx context.Context, p *Profile) error {
	locationJSON, err := json.Marshal(p.Location)
	if err != nil {
		return errors.Wrap(err, "failed to marshal location")
	}
	contactJSON, err := json.Marshal(p.Contact)
	if err != nil {
		return errors.Wrap(err, "failed to marshal contact")
	}

	query := `
		INSERT INTO doctors (
			id, user_id, full_name, specialty, bio, location, contact, accepting
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.pool.Exec(ctx, query,
		p.ID, p.UserID, p.FullName, p.Specialty, p.Bio, locationJSON, contactJSON, p.Accepting,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("profile already exists for this account")
		}
		return errors.Wrap(err, "failed to create profile")
	}

	return nil
}

// Get retrieves a directory entry by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Profile, error) {
	query := profileSelect + ` WHERE id = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("doctor profile", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get profile")
	}

	return p, nil
}

// GetByUserID retrieves a directory entry by account ID
func (r *Repository) GetByUserID(ctx context.Context, userID types.ID) (*Profile, error) {
	query := profileSelect + ` WHERE user_id = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, userID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("doctor profile", userID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get profile by account")
	}

	return p, nil
}

// Update updates a directory entry
func (r *Repository) Update(ctx context.Context, p *Profile) error {
	locationJSON, err := json.Marshal(p.Location)
	if err != nil {
		return errors.Wrap(err, "failed to marshal location")
	}
	contactJSON, err := json.Marshal(p.Contact)
	if err != nil {
		return errors.Wrap(err, "failed to marshal contact")
	}

	query := `
		UPDATE doctors SET
			full_name = $2, specialty = $3, bio = $4,
			location = $5, contact = $6, accepting = $7,
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		p.ID, p.FullName, p.Specialty, p.Bio, locationJSON, contactJSON, p.Accepting,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update profile")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("doctor profile", p.ID.String())
	}

	return nil
}

// List lists directory entries with optional filters
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Profile, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.Specialty != "" {
		conditions = append(conditions, fmt.Sprintf("specialty = $%d", argNum))
		args = append(args, filter.Specialty)
		argNum++
	}

	if filter.Accepting != nil {
		conditions = append(conditions, fmt.Sprintf("accepting = $%d", argNum))
		args = append(args, *filter.Accepting)
		argNum++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(full_name ILIKE $%d OR specialty ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM doctors %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count profiles")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`%s
		%s
		ORDER BY full_name
		LIMIT $%d OFFSET $%d`, profileSelect, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list profiles")
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan profile")
		}
		profiles = append(profiles, *p)
	}

	return profiles, total, nil
}

const profileSelect = `
	SELECT id, user_id, full_name, specialty, bio, location, contact, accepting,
		created_at, updated_at
	FROM doctors`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	p := &Profile{}
	var locationJSON, contactJSON []byte

	err := row.Scan(
		&p.ID, &p.UserID, &p.FullName, &p.Specialty, &p.Bio,
		&locationJSON, &contactJSON, &p.Accepting,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(locationJSON) > 0 {
		json.Unmarshal(locationJSON, &p.Location)
	}
	if len(contactJSON) > 0 {
		json.Unmarshal(contactJSON, &p.Contact)
	}

	return p, nil
}
