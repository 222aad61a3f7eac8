package patient

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// Repository provides database operations for patient records
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new patient repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create creates a new medical record
func (r *Repository) Create(ctx context.Context, rec *Record) error {
	allergiesJSON, historyJSON, contactJSON, addressJSON, err := marshalRecordJSON(rec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO patients (
			id, user_id, mrn, full_name, date_of_birth, gender, blood_type,
			allergies, medical_history, contact, address
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.pool.Exec(ctx, query,
		rec.ID, rec.UserID, rec.MRN, rec.FullName, rec.DateOfBirth, rec.Gender, rec.BloodType,
		allergiesJSON, historyJSON, contactJSON, addressJSON,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("record already exists for this account or MRN")
		}
		return errors.Wrap(err, "failed to create record")
	}

	return nil
}

// Get retrieves a medical record by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, recordSelect+` WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("patient record", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get record")
	}

	return rec, nil
}

// GetByUserID retrieves a medical record by owning account
func (r *Repository) GetByUserID(ctx context.Context, userID types.ID) (*Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, recordSelect+` WHERE user_id = $1`, userID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("patient record", userID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get record by account")
	}

	return rec, nil
}

// GetByMRN retrieves a medical record by medical record number
func (r *Repository) GetByMRN(ctx context.Context, mrn types.MRN) (*Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, recordSelect+` WHERE mrn = $1`, mrn))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("patient record", mrn.Masked())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get record by MRN")
	}

	return rec, nil
}

// Update updates a medical record
func (r *Repository) Update(ctx context.Context, rec *Record) error {
	allergiesJSON, historyJSON, contactJSON, addressJSON, err := marshalRecordJSON(rec)
	if err != nil {
		return err
	}

	query := `
		UPDATE patients SET
			full_name = $2, date_of_birth = $3, gender = $4, blood_type = $5,
			allergies = $6, medical_history = $7, contact = $8, address = $9,
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		rec.ID, rec.FullName, rec.DateOfBirth, rec.Gender, rec.BloodType,
		allergiesJSON, historyJSON, contactJSON, addressJSON,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update record")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("patient record", rec.ID.String())
	}

	return nil
}

// NextSequence returns the next MRN sequential number. The number comes
// from a database sequence so concurrent registrations never observe the
// same value.
func (r *Repository) NextSequence(ctx context.Context) (int, error) {
	var seq int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('mrn_seq')`).Scan(&seq); err != nil {
		return 0, errors.Wrap(err, "failed to advance MRN sequence")
	}
	return int(seq), nil
}

const recordSelect = `
	SELECT id, user_id, mrn, full_name, date_of_birth, gender, blood_type,
		allergies, medical_history, contact, address,
		created_at, updated_at
	FROM patients`

func marshalRecordJSON(rec *Record) (allergies, history, contact, address []byte, err error) {
	if rec.Allergies == nil {
		rec.Allergies = []string{}
	}
	if rec.MedicalHistory == nil {
		rec.MedicalHistory = []HistoryItem{}
	}

	if allergies, err = json.Marshal(rec.Allergies); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "failed to marshal allergies")
	}
	if history, err = json.Marshal(rec.MedicalHistory); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "failed to marshal medical history")
	}
	if contact, err = json.Marshal(rec.Contact); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "failed to marshal contact")
	}
	if address, err = json.Marshal(rec.Address); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "failed to marshal address")
	}
	return allergies, history, contact, address, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	rec := &Record{}
	var allergiesJSON, historyJSON, contactJSON, addressJSON []byte

	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.MRN, &rec.FullName, &rec.DateOfBirth, &rec.Gender, &rec.BloodType,
		&allergiesJSON, &historyJSON, &contactJSON, &addressJSON,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(allergiesJSON) > 0 {
		json.Unmarshal(allergiesJSON, &rec.Allergies)
	}
	if len(historyJSON) > 0 {
		json.Unmarshal(historyJSON, &rec.MedicalHistory)
	}
	if len(contactJSON) > 0 {
		json.Unmarshal(contactJSON, &rec.Contact)
	}
	if len(addressJSON) > 0 {
		json.Unmarshal(addressJSON, &rec.Address)
	}

	return rec, nil
}
