package document

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

// TestValidateUpload tests upload metadata validation
func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		fileName string
		mimeType string
		size     int64
		wantErr  bool
	}{
		{"Valid PDF", "Lab results", "labs.pdf", "application/pdf", 1024, false},
		{"Valid image", "X-ray", "xray.png", "image/png", 2 << 20, false},
		{"Missing title", "", "labs.pdf", "application/pdf", 1024, true},
		{"Missing file name", "Lab results", "  ", "application/pdf", 1024, true},
		{"Executable rejected", "Lab results", "labs.exe", "application/octet-stream", 1024, true},
		{"Zero size", "Lab results", "labs.pdf", "application/pdf", 0, true},
		{"Over limit", "Lab results", "labs.pdf", "application/pdf", maxFileSize + 1, true},
		{"At limit", "Lab results", "labs.pdf", "application/pdf", maxFileSize, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.title, tt.fileName, tt.mimeType, tt.size)
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

// TestHashReader tests that the upload hash matches the stored bytes
func TestHashReader(t *testing.T) {
	body := []byte("synthetic discharge summary")

	data, hash, err := HashReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !bytes.Equal(data, body) {
		t.Error("Expected buffered data to match the input")
	}

	sum := sha256.Sum256(body)
	if hash != hex.EncodeToString(sum[:]) {
		t.Errorf("Expected hash %s, got %s", hex.EncodeToString(sum[:]), hash)
	}
}

// TestHashReaderRejectsOversized tests the streaming size limit
func TestHashReaderRejectsOversized(t *testing.T) {
	r := strings.NewReader(strings.Repeat("a", maxFileSize+1))

	if _, _, err := HashReader(r); err == nil {
		t.Error("Expected oversized upload to be rejected")
	}
}

// TestMemoryStoreRoundTrip tests the in-memory object store
func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Put(ctx, "documents/x/y", []byte("body"), "text/plain"); err != nil {
		t.Fatalf("Expected put to succeed, got: %v", err)
	}

	data, err := store.Get(ctx, "documents/x/y")
	if err != nil {
		t.Fatalf("Expected get to succeed, got: %v", err)
	}
	if string(data) != "body" {
		t.Errorf("Expected body, got %q", data)
	}

	if err := store.Delete(ctx, "documents/x/y"); err != nil {
		t.Fatalf("Expected delete to succeed, got: %v", err)
	}
	if _, err := store.Get(ctx, "documents/x/y"); err == nil {
		t.Error("Expected get after delete to fail")
	}
}

// TestMemoryStoreCopiesData tests that a caller mutating its buffer does
// not corrupt the stored object
func TestMemoryStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	buf := []byte("original")
	store.Put(ctx, "k", buf, "text/plain")
	buf[0] = 'X'

	data, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Expected get to succeed, got: %v", err)
	}
	if string(data) != "original" {
		t.Errorf("Expected stored object to be unchanged, got %q", data)
	}
}
