// Package export renders a completed run's verdict as a downloadable PDF.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

const Title = "OFFICIAL VERDICT"

var ErrEmptyVerdict = errors.New("verdict text is empty")

// VerdictDoc is the content of an exported verdict.
type VerdictDoc struct {
	CaseID string
	Title  string
	Text   string
	At     time.Time
}

// FileName is the download name of a verdict document.
func FileName(caseID string) string {
	return fmt.Sprintf("Verdict_%s.pdf", caseID)
}

// Verdict renders v as an A4 PDF using the core Arial font. All text is passed
// through Sanitize first, so content characters never cause a failure.
func Verdict(v VerdictDoc) ([]byte, error) {
	if v.Text == "" {
		return nil, ErrEmptyVerdict
	}
	title := v.Title
	if title == "" {
		title = Title
	}
	at := v.At
	if at.IsZero() {
		at = time.Now()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(Sanitize(title), false)
	pdf.SetCreationDate(at)
	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 10, Sanitize(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 10, "Case ID: "+Sanitize(v.CaseID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 10, "Timestamp: "+at.UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(5)
	pdf.MultiCell(0, 7, Sanitize(v.Text), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render verdict %s: %w", v.CaseID, err)
	}
	return buf.Bytes(), nil
}
