package principal

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Repository provides database operations for user accounts
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new principal repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create creates a new account
func (r *Repository) Create(ctx context.Context, p *Principal) error {
	query := `
		INSERT INTO users (id, email, password_hash, role, display_name)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Email, p.PasswordHash, p.Role, p.DisplayName,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("account with this email already exists")
		}
		return errors.Wrap(err, "failed to create account")
	}

	return nil
}

// Get retrieves an account by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Principal, error) {
	query := `
		SELECT id, email, password_hash, role, display_name, created_at, updated_at
		FROM users
		WHERE id = $1`

	p := &Principal{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.Role, &p.DisplayName,
		&p.CreatedAt, &p.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("account", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account")
	}

	return p, nil
}

// GetByEmail retrieves an account by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Principal, error) {
	query := `
		SELECT id, email, password_hash, role, display_name, created_at, updated_at
		FROM users
		WHERE email = $1`

	p := &Principal{}
	err := r.pool.QueryRow(ctx, query, strings.ToLower(email)).Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.Role, &p.DisplayName,
		&p.CreatedAt, &p.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("account", email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account by email")
	}

	return p, nil
}

// UpdateDisplayName updates the account's display name
func (r *Repository) UpdateDisplayName(ctx context.Context, id types.ID, displayName string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET display_name = $2, updated_at = NOW() WHERE id = $1`,
		id, displayName,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update account")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("account", id.String())
	}

	return nil
}
