// Package report builds visit-summary PDFs for completed appointments and
// attaches them to the patient's document list.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/signintech/gopdf"

	"github.com/caremesh/telehealth/internal/shared/errors"
	"github.com/caremesh/telehealth/internal/shared/types"
)

// fontPaths lists where DejaVuSans is commonly installed
var fontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

// VisitSummary holds the data rendered into a visit-summary PDF
type VisitSummary struct {
	AppointmentID types.ID
	Date          string
	StartTime     string
	EndTime       string
	Reason        string
	Notes         string

	PatientName string
	// PatientMRN is the masked form; the full MRN never appears in reports
	PatientMRN string

	DoctorName string
	Specialty  string

	GeneratedAt time.Time
}

// Title is the document title the summary is filed under
func (s VisitSummary) Title() string {
	return fmt.Sprintf("Visit summary %s", s.Date)
}

// line is one rendered row: a size-14 heading or a size-11 body line
type line struct {
	text    string
	heading bool
}

// buildLines lays the summary out as a flat list of rows. Kept separate
// from the PDF rendering so the content is testable without fonts.
func buildLines(s VisitSummary) []line {
	lines := []line{
		{text: fmt.Sprintf("Generated: %s", s.GeneratedAt.Format("2006-01-02 15:04 MST"))},
		{text: ""},
		{text: "Patient", heading: true},
		{text: fmt.Sprintf("Name: %s", s.PatientName)},
		{text: fmt.Sprintf("MRN: %s", s.PatientMRN)},
		{text: ""},
		{text: "Visit", heading: true},
		{text: fmt.Sprintf("Date: %s, %s-%s", s.Date, s.StartTime, s.EndTime)},
		{text: fmt.Sprintf("Doctor: %s", s.DoctorName)},
	}

	if s.Specialty != "" {
		lines = append(lines, line{text: fmt.Sprintf("Specialty: %s", s.Specialty)})
	}
	if s.Reason != "" {
		lines = append(lines, line{text: fmt.Sprintf("Reason: %s", s.Reason)})
	}

	if s.Notes != "" {
		lines = append(lines,
			line{text: ""},
			line{text: "Notes", heading: true},
			line{text: s.Notes},
		)
	}

	return lines
}

// Generator renders visit summaries as PDF
type Generator struct{}

// Generate renders the summary. It needs a DejaVuSans TTF on disk; the
// built-in gopdf fonts cannot render non-ASCII patient names.
func (g *Generator) Generate(s VisitSummary) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	loaded := false
	for _, path := range fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			loaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !loaded {
		return nil, errors.Wrap(fontErr, "failed to load report font")
	}

	if err := pdf.SetFont("DejaVu", "", 20); err != nil {
		return nil, errors.Wrap(err, "failed to set font")
	}
	pdf.Cell(nil, "Visit Summary")
	pdf.Br(30)

	for _, l := range buildLines(s) {
		if l.text == "" {
			pdf.Br(10)
			continue
		}

		size := 11.0
		if l.heading {
			size = 14.0
		}
		if err := pdf.SetFont("DejaVu", "", size); err != nil {
			return nil, errors.Wrap(err, "failed to set font")
		}

		wrapped, _ := pdf.SplitText(l.text, 500)
		for _, w := range wrapped {
			pdf.Cell(nil, w)
			pdf.Br(14)
		}
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "failed to write PDF")
	}

	return buf.Bytes(), nil
}
