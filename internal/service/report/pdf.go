// Package report renders consultation summaries as PDF documents for doctors.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/jwalitptl/medicure-api/internal/model"
)

// field labels in print order; summary_text is printed separately
var sections = []struct {
	key   string
	label string
}{
	{"name", "Name"},
	{"age", "Age"},
	{"symptoms", "Symptoms"},
	{"duration", "Duration"},
	{"medical_history", "Medical history"},
	{"allergies", "Allergies"},
	{"medications", "Medications"},
	{"family_history", "Family history"},
	{"lifestyle", "Lifestyle"},
}

// Filename is the attachment name used for a summary report.
func Filename(s *model.Summary) string {
	return fmt.Sprintf("summary_%s.pdf", s.AppointmentID)
}

// Render builds the PDF for a summary view. The patient may be nil.
func Render(view *model.SummaryView) ([]byte, error) {
	if view == nil || view.Summary == nil {
		return nil, fmt.Errorf("no summary to render")
	}
	s := view.Summary

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle("Pre-consultation summary", true)
	pdf.AddPage()
	// core fonts are cp1252
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(0, 70, 140)
	pdf.CellFormat(0, 10, "MediCure - Pre-consultation Summary", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 6, "Generated "+s.CreatedAt.UTC().Format(time.RFC1123), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetTextColor(0, 0, 0)
	if view.Patient != nil {
		heading(pdf, "Patient")
		addDetail(pdf, tr, "Name", view.Patient.Name)
		addDetail(pdf, tr, "Email", view.Patient.Email)
		addDetail(pdf, tr, "Region", view.Patient.Region)
		pdf.Ln(4)
	}

	heading(pdf, "Summary")
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, tr(s.SummaryText), "", "L", false)
	pdf.Ln(4)

	heading(pdf, "Details")
	for _, sec := range sections {
		if v := s.StringField(sec.key); v != "" {
			addDetail(pdf, tr, sec.label, v)
		}
	}

	if s.ParseStatus == model.ParseStatusDegraded {
		pdf.Ln(3)
		pdf.SetFont("Arial", "I", 9)
		pdf.SetTextColor(160, 60, 0)
		pdf.MultiCell(0, 5, "The assistant's output could not be structured; the summary above is its raw text.", "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}

	if len(s.Images) > 0 {
		pdf.Ln(4)
		heading(pdf, "Images")
		pdf.SetFont("Arial", "", 9)
		for _, url := range s.Images {
			pdf.CellFormat(0, 6, tr(url), "", 1, "L", false, 0, "")
		}
	}

	pdf.SetY(pdf.GetY() + 10)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 6, "Generated by an AI assistant from the patient's own account. Not a diagnosis.", "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func heading(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 12)
	pdf.SetFillColor(230, 238, 248)
	pdf.CellFormat(0, 8, title, "1", 1, "L", true, 0, "")
}

// addDetail writes a label/value row; long values wrap.
func addDetail(pdf *gofpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 7, label, "1", 0, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 7, tr(strings.TrimSpace(value)), "1", "L", false)
}
