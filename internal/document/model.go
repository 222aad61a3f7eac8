// Package document manages medical documents attached to patient records.
// File bodies live in object storage; metadata and an integrity hash live
// in the database. Access follows the owning patient record's rules.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"time"

	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// maxFileSize is the largest accepted upload (20 MB)
const maxFileSize = 20 << 20

// allowedMimeTypes lists the accepted upload content types
var allowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/dicom":     true,
	"text/plain":      true,
}

// Document represents a stored medical document
type Document struct {
	ID            types.ID `json:"id"`
	PatientUserID types.ID `json:"patient_user_id"`
	UploadedBy    types.ID `json:"uploaded_by"`

	Title    string `json:"title"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`

	// FileHash is the SHA-256 of the stored bytes
	FileHash   string `json:"file_hash"`
	StorageKey string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// ValidateUpload checks upload metadata before the body is stored
func ValidateUpload(title, fileName, mimeType string, size int64) error {
	if strings.TrimSpace(title) == "" {
		return errors.Validation("title is required")
	}
	if strings.TrimSpace(fileName) == "" {
		return errors.Validation("file name is required")
	}
	if !allowedMimeTypes[mimeType] {
		return errors.Validation("unsupported file type")
	}
	if size <= 0 || size > maxFileSize {
		return errors.Validation("file size must be between 1 byte and 20 MB")
	}
	return nil
}

// HashReader computes the SHA-256 of a stream while buffering it
func HashReader(r io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFileSize+1))
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to read upload")
	}
	if len(data) > maxFileSize {
		return nil, "", errors.Validation("file exceeds the 20 MB limit")
	}

	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

// ListFilter defines filters for listing documents
type ListFilter struct {
	PatientUserID *types.ID `json:"patient_user_id,omitempty"`
	Limit         int       `json:"limit,omitempty"`
	Offset        int       `json:"offset,omitempty"`
}
