package reporting

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Table specs for the three report categories, in fixed render order.
var (
	glucoseTable = TableSpec{
		Title:   "Blood Glucose Readings",
		Headers: []string{"Glucose Level", "Date & Time", "Reading Context"},
		ColumnX: []float64{15, 75, 135},
		ColumnW: []float64{55, 55, 60},
	}
	calorieTable = TableSpec{
		Title:   "Calorie Intake",
		Headers: []string{"Calories", "Date & Time", "Food Item"},
		ColumnX: []float64{15, 75, 135},
		ColumnW: []float64{55, 55, 60},
	}
	sugarTable = TableSpec{
		Title:   "Sugar Intake",
		Headers: []string{"Sugar", "Date & Time", "Food Item"},
		ColumnX: []float64{15, 75, 135},
		ColumnW: []float64{55, 55, 60},
	}
)

// Generator renders health reports as PDF documents.
type Generator struct{}

// NewGenerator creates a new PDF report generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate composes the full report: patient header block, one table per
// non-empty category in fixed order, then a second pass over every page
// stamping the report-type title and "Page i of N" footer. The footer pass
// runs only after all content is emitted, when the true page count is known.
func (g *Generator) Generate(data *ReportData) (*Artifact, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(leftMargin, contentTop, leftMargin)
	// Page breaks belong to the layout engine, not fpdf.
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	state := RenderState{Y: contentTop, Page: 1}
	state = g.writePatientHeader(pdf, data, state)

	if len(data.Glucose) > 0 {
		state = renderTable(pdf, state, glucoseTable, data.Glucose, data.Thresholds)
	}
	if len(data.Calorie) > 0 {
		state = renderTable(pdf, state, calorieTable, data.Calorie, nil)
	}
	if len(data.Sugar) > 0 {
		state = renderTable(pdf, state, sugarTable, data.Sugar, nil)
	}

	g.stampPages(pdf, data.TypeLabel)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output error: %w", err)
	}

	name := data.Patient.DisplayName()
	return &Artifact{
		Bytes:       buf.Bytes(),
		Filename:    reportFilename(name, data),
		PatientName: name,
		TypeLabel:   data.TypeLabel,
	}, nil
}

// writePatientHeader emits the patient name, reporting period and the
// "Patient Information" block at the top of the first page.
func (g *Generator) writePatientHeader(pdf *fpdf.Fpdf, data *ReportData, state RenderState) RenderState {
	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.SetXY(leftMargin, state.Y)
	pdf.CellFormat(0, 10, data.Patient.DisplayName(), "", 1, "L", false, 0, "")
	state.Y += 11

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	periodStr := fmt.Sprintf("%s  -  %s",
		data.Start.Format("January 2, 2006"),
		data.End.Format("January 2, 2006"))
	pdf.SetXY(leftMargin, state.Y)
	pdf.CellFormat(0, 6, periodStr, "", 1, "L", false, 0, "")
	state.Y += 10

	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.SetXY(leftMargin, state.Y)
	pdf.CellFormat(0, 8, "Patient Information", "", 1, "L", false, 0, "")
	state.Y += 9

	writeField := func(label, value string) {
		pdf.SetXY(leftMargin, state.Y)
		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
		pdf.CellFormat(30, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 9)
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
		state.Y += 6.5
	}

	writeField("Weight:", optionalMeasure(data.Patient.WeightKg, "kg"))
	writeField("Height:", optionalMeasure(data.Patient.HeightCm, "cm"))
	gender := data.Patient.Gender
	if gender == "" {
		gender = "N/A"
	}
	writeField("Gender:", gender)
	writeField("Diabetes Type:", diabetesTypeLabel(data.Patient.DiabetesType))
	writeField("Insulin Use:", yesNo(data.Patient.UsesInsulin))

	pdf.SetDrawColor(colorRule[0], colorRule[1], colorRule[2])
	pdf.SetLineWidth(0.3)
	pdf.Line(leftMargin, state.Y+2, 195, state.Y+2)
	state.Y += 8

	return state
}

// stampPages is the post-processing pass: with the final page count known, it
// revisits every produced page to add the centered report-type title near the
// top and a centered page footer near the bottom.
func (g *Generator) stampPages(pdf *fpdf.Fpdf, typeLabel string) {
	totalPages := pdf.PageCount()
	pageWidth, pageHeight := pdf.GetPageSize()

	for i := 1; i <= totalPages; i++ {
		pdf.SetPage(i)

		pdf.SetY(10)
		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(colorTableHeader[0], colorTableHeader[1], colorTableHeader[2])
		pdf.CellFormat(0, 6, typeLabel, "", 1, "C", false, 0, "")

		pdf.SetDrawColor(colorRule[0], colorRule[1], colorRule[2])
		pdf.SetLineWidth(0.3)
		pdf.Line(leftMargin, pageHeight-18, pageWidth-leftMargin, pageHeight-18)

		pdf.SetY(pageHeight - 15)
		pdf.SetFont("Arial", "", 8)
		pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d of %d", i, totalPages), "", 0, "C", false, 0, "")
	}
}

// reportFilename derives a deterministic filename from the patient name
// (whitespace replaced) and the report start date.
func reportFilename(name string, data *ReportData) string {
	safe := strings.Join(strings.Fields(name), "_")
	if safe == "" {
		safe = "patient"
	}
	return fmt.Sprintf("%s_%s.pdf", safe, data.Start.Format("2006-01-02"))
}

func optionalMeasure(v *float64, unit string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f %s", *v, unit)
}

func diabetesTypeLabel(t int) string {
	switch t {
	case 1:
		return "Type 1"
	case 2:
		return "Type 2"
	default:
		return "N/A"
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
