package report

import (
	"strings"
	"testing"
	"time"

	"github.com/caremesh/telehealth/internal/shared/types"
)

func sampleSummary() VisitSummary {
	return VisitSummary{
		AppointmentID: types.NewID(),
		Date:          "2026-08-20",
		StartTime:     "09:00",
		EndTime:       "09:30",
		Reason:        "Annual checkup",
		Notes:         "Blood pressure normal. Follow up in one year.",
		PatientName:   "Maria Lopez",
		PatientMRN:    "******7890",
		DoctorName:    "Dr. Jane Smith",
		Specialty:     "General Medicine",
		GeneratedAt:   time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC),
	}
}

// TestSummaryTitle tests the document title a summary is filed under
func TestSummaryTitle(t *testing.T) {
	if got := sampleSummary().Title(); got != "Visit summary 2026-08-20" {
		t.Errorf("Expected 'Visit summary 2026-08-20', got %q", got)
	}
}

// TestBuildLinesContent tests that the rendered content carries the visit
// fields
func TestBuildLinesContent(t *testing.T) {
	lines := buildLines(sampleSummary())

	var all strings.Builder
	for _, l := range lines {
		all.WriteString(l.text)
		all.WriteString("\n")
	}
	text := all.String()

	for _, want := range []string{
		"Maria Lopez",
		"Dr. Jane Smith",
		"General Medicine",
		"2026-08-20, 09:00-09:30",
		"Annual checkup",
		"Blood pressure normal",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected rendered summary to contain %q", want)
		}
	}
}

// TestBuildLinesMasksMRN tests that only the masked MRN appears
func TestBuildLinesMasksMRN(t *testing.T) {
	lines := buildLines(sampleSummary())

	found := false
	for _, l := range lines {
		if strings.Contains(l.text, "******7890") {
			found = true
		}
		if strings.Contains(l.text, "1234567890") {
			t.Error("Expected the full MRN to never appear in a report")
		}
	}
	if !found {
		t.Error("Expected the masked MRN to appear in the report")
	}
}

// TestBuildLinesOmitsEmptySections tests that blank notes and specialty
// produce no headings
func TestBuildLinesOmitsEmptySections(t *testing.T) {
	s := sampleSummary()
	s.Notes = ""
	s.Specialty = ""

	for _, l := range buildLines(s) {
		if l.heading && l.text == "Notes" {
			t.Error("Expected no Notes section for an appointment without notes")
		}
		if strings.HasPrefix(l.text, "Specialty:") {
			t.Error("Expected no specialty line when the doctor has none")
		}
	}
}
