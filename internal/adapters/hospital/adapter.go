// Package hospital exposes a read-only directory of hospitals pulled
// from a legacy hospital information system running on SQL Server.
package hospital

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver

	"github.com/caremesh/telehealth/internal/shared/config"
)

// Hospital is one directory entry
type Hospital struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	City      string  `json:"city"`
	Phone     string  `json:"phone,omitempty"`
	Emergency bool    `json:"emergency"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// Source provides the raw hospital list
type Source interface {
	FetchHospitals(ctx context.Context) ([]Hospital, error)
}

// MSSQLSource reads the directory from the HIS database
type MSSQLSource struct {
	db    *sql.DB
	table string
}

// NewMSSQLSource connects to the HIS and verifies the connection
func NewMSSQLSource(ctx context.Context, cfg config.RegistryConfig) (*MSSQLSource, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping registry database: %w", err)
	}

	return &MSSQLSource{db: db, table: "dbo.Hospitals"}, nil
}

// FetchHospitals reads the full directory
func (s *MSSQLSource) FetchHospitals(ctx context.Context) ([]Hospital, error) {
	query := fmt.Sprintf(`
		SELECT
			HospitalID,
			Name,
			Address,
			City,
			Phone,
			HasEmergency,
			Latitude,
			Longitude
		FROM %s
		WHERE IsActive = 1
		ORDER BY Name ASC
	`, s.table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query hospitals: %w", err)
	}
	defer rows.Close()

	var hospitals []Hospital
	for rows.Next() {
		var h Hospital
		var phone sql.NullString
		var emergency sql.NullBool
		var lat, lon sql.NullFloat64

		err := rows.Scan(
			&h.ID,
			&h.Name,
			&h.Address,
			&h.City,
			&phone,
			&emergency,
			&lat,
			&lon,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hospital: %w", err)
		}

		if phone.Valid {
			h.Phone = phone.String
		}
		if emergency.Valid {
			h.Emergency = emergency.Bool
		}
		if lat.Valid {
			h.Latitude = lat.Float64
		}
		if lon.Valid {
			h.Longitude = lon.Float64
		}

		hospitals = append(hospitals, h)
	}

	return hospitals, rows.Err()
}

// Health checks HIS connectivity
func (s *MSSQLSource) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *MSSQLSource) Close() error {
	return s.db.Close()
}

// StaticSource serves a fixed list; used in tests and when no HIS is
// configured
type StaticSource struct {
	Entries []Hospital
}

// FetchHospitals returns the fixed list
func (s *StaticSource) FetchHospitals(ctx context.Context) ([]Hospital, error) {
	return s.Entries, nil
}

var (
	_ Source = (*MSSQLSource)(nil)
	_ Source = (*StaticSource)(nil)
)
