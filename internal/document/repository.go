package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Repository provides database operations for document metadata
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new document repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create stores document metadata
func (r *Repository) Create(ctx context.Context, d *Document) error {
	query := `
		INSERT INTO documents (
			id, patient_user_id, uploaded_by, title, file_name,
			mime_type, file_size, file_hash, storage_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		d.ID, d.PatientUserID, d.UploadedBy, d.Title, d.FileName,
		d.MimeType, d.FileSize, d.FileHash, d.StorageKey,
	)

	if err != nil {
		return errors.Wrap(err, "failed to create document")
	}

	return nil
}

// Get retrieves a document by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Document, error) {
	d, err := scanDocument(r.pool.QueryRow(ctx, documentSelect+` WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("document", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get document")
	}

	return d, nil
}

// List lists document metadata with optional filters
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.PatientUserID != nil {
		conditions = append(conditions, fmt.Sprintf("patient_user_id = $%d", argNum))
		args = append(args, *filter.PatientUserID)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM documents %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count documents")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`%s
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, documentSelect, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list documents")
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan document")
		}
		docs = append(docs, *d)
	}

	return docs, total, nil
}

// Delete removes document metadata
func (r *Repository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete document")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("document", id.String())
	}

	return nil
}

const documentSelect = `
	SELECT id, patient_user_id, uploaded_by, title, file_name,
		mime_type, file_size, file_hash, storage_key, created_at
	FROM documents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	d := &Document{}

	err := row.Scan(
		&d.ID, &d.PatientUserID, &d.UploadedBy, &d.Title, &d.FileName,
		&d.MimeType, &d.FileSize, &d.FileHash, &d.StorageKey, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return d, nil
}
