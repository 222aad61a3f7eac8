package authz

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// PostgresRelationSource loads relation snapshots from the database.
type PostgresRelationSource struct {
	pool *pgxpool.Pool
}

// NewPostgresRelationSource creates a database-backed relation source.
func NewPostgresRelationSource(pool *pgxpool.Pool) *PostgresRelationSource {
	return &PostgresRelationSource{pool: pool}
}

// Snapshot reads the appointment, consent, and transport relations in one
// statement so the whole decision sees a single consistent view.
func (s *PostgresRelationSource) Snapshot(ctx context.Context, principalID, patientID types.ID) (Snapshot, error) {
	query := `
		SELECT
			EXISTS (
				SELECT 1 FROM appointments
				WHERE doctor_user_id = $1 AND patient_user_id = $2
				  AND status IN ('scheduled', 'in_progress')
			),
			EXISTS (
				SELECT 1 FROM patient_consents
				WHERE doctor_user_id = $1 AND patient_user_id = $2
				  AND is_active = TRUE
			),
			EXISTS (
				SELECT 1 FROM emergency_transports
				WHERE patient_user_id = $2
				  AND status NOT IN ('completed', 'cancelled')
			)`

	var snap Snapshot
	err := s.pool.QueryRow(ctx, query, principalID, patientID).Scan(
		&snap.ActiveAppointment, &snap.ActiveConsent, &snap.ActiveTransport,
	)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to load relation snapshot")
	}

	return snap, nil
}

// relationKey identifies a (doctor, patient) pair.
type relationKey struct {
	doctorID  types.ID
	patientID types.ID
}

// MemoryRelationSource is an in-memory relation source for tests and the
// static demo surface. Snapshots reflect the latest recorded state: a
// revoked consent flips the next decision immediately.
type MemoryRelationSource struct {
	mu           sync.RWMutex
	appointments map[relationKey]bool
	consents     map[relationKey]bool
	transports   map[types.ID]bool
}

// NewMemoryRelationSource creates an empty in-memory relation source.
func NewMemoryRelationSource() *MemoryRelationSource {
	return &MemoryRelationSource{
		appointments: make(map[relationKey]bool),
		consents:     make(map[relationKey]bool),
		transports:   make(map[types.ID]bool),
	}
}

// SetAppointment records whether an active appointment links the pair.
func (s *MemoryRelationSource) SetAppointment(doctorID, patientID types.ID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[relationKey{doctorID, patientID}] = active
}

// SetConsent records whether an active consent links the pair.
func (s *MemoryRelationSource) SetConsent(doctorID, patientID types.ID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents[relationKey{doctorID, patientID}] = active
}

// SetTransport records whether the patient has an active transport.
func (s *MemoryRelationSource) SetTransport(patientID types.ID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transports[patientID] = active
}

// Snapshot returns the current relation state for the pair.
func (s *MemoryRelationSource) Snapshot(ctx context.Context, principalID, patientID types.ID) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := relationKey{principalID, patientID}
	return Snapshot{
		ActiveAppointment: s.appointments[key],
		ActiveConsent:     s.consents[key],
		ActiveTransport:   s.transports[patientID],
	}, nil
}
