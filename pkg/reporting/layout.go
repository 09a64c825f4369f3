package reporting

import (
	"github.com/go-pdf/fpdf"

	"github.com/glucolog/glucolog/internal/models"
)

// Layout geometry in millimetres, A4 portrait.
const (
	leftMargin      = 15.0
	contentTop      = 30.0  // leaves room for the stamped report title band
	bottomMargin    = 272.0 // content must not cross this before the footer band
	titleHeight     = 9.0
	headerRowHeight = 8.0
	cellLineHeight  = 5.0
	rowSpacing      = 1.5
	tableGap        = 10.0
)

var (
	colorTextDark    = [3]int{44, 62, 80}
	colorTextMuted   = [3]int{127, 140, 141}
	colorAlert       = [3]int{231, 76, 60}
	colorTableHeader = [3]int{30, 58, 95}
	colorRule        = [3]int{220, 220, 220}
)

// TableSpec configures a titled table: column headers plus the X position and
// width of each column. Constant per report.
type TableSpec struct {
	Title   string
	Headers []string
	ColumnX []float64
	ColumnW []float64
}

// RenderState tracks layout progress: the running vertical cursor and the
// current page index. Each render owns exactly one RenderState; it is threaded
// through the layout calls explicitly and never shared.
type RenderState struct {
	Y    float64
	Page int
}

// renderTable draws a titled table for the given rows, breaking pages as
// needed. On every page after the first the title is redrawn with a
// "(continued)" marker and the column headers are repeated. Rows are never
// split across pages.
func renderTable(pdf *fpdf.Fpdf, state RenderState, spec TableSpec, rows []Row, thresholds *models.ThresholdProfile) RenderState {
	if state.Y+titleHeight+headerRowHeight > bottomMargin {
		state = pageBreak(pdf, state)
	}
	state = drawTableTitle(pdf, state, spec.Title)
	state = drawTableHeaders(pdf, state, spec)

	for _, row := range rows {
		rowH := measureRowHeight(pdf, spec, row)
		if state.Y+rowH > bottomMargin {
			state = pageBreak(pdf, state)
			state = drawTableTitle(pdf, state, spec.Title+" (continued)")
			state = drawTableHeaders(pdf, state, spec)
		}

		if severityAlert(row, thresholds) {
			pdf.SetTextColor(colorAlert[0], colorAlert[1], colorAlert[2])
		} else {
			pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		}
		pdf.SetFont("Arial", "", 9)

		// Every column starts at the same baseline; text wraps within its
		// column width, never across columns.
		for i, cell := range row.Cells {
			pdf.SetXY(spec.ColumnX[i], state.Y)
			pdf.MultiCell(spec.ColumnW[i], cellLineHeight, cell, "", "L", false)
		}
		state.Y += rowH + rowSpacing
	}

	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	state.Y += tableGap
	return state
}

// measureRowHeight returns the rendered height of a row: each cell wrapped to
// its column width, row height = tallest cell.
func measureRowHeight(pdf *fpdf.Fpdf, spec TableSpec, row Row) float64 {
	pdf.SetFont("Arial", "", 9)
	maxLines := 1
	for i, cell := range row.Cells {
		if lines := len(pdf.SplitText(cell, spec.ColumnW[i])); lines > maxLines {
			maxLines = lines
		}
	}
	return float64(maxLines) * cellLineHeight
}

func pageBreak(pdf *fpdf.Fpdf, state RenderState) RenderState {
	pdf.AddPage()
	return RenderState{Y: contentTop, Page: state.Page + 1}
}

func drawTableTitle(pdf *fpdf.Fpdf, state RenderState, title string) RenderState {
	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.SetXY(leftMargin, state.Y)
	pdf.CellFormat(0, titleHeight, title, "", 1, "L", false, 0, "")
	state.Y += titleHeight
	return state
}

func drawTableHeaders(pdf *fpdf.Fpdf, state RenderState, spec TableSpec) RenderState {
	pdf.SetFillColor(colorTableHeader[0], colorTableHeader[1], colorTableHeader[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 9)
	for i, header := range spec.Headers {
		pdf.SetXY(spec.ColumnX[i], state.Y)
		pdf.CellFormat(spec.ColumnW[i], headerRowHeight-1.5, " "+header, "", 0, "L", true, 0, "")
	}
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	state.Y += headerRowHeight
	return state
}

// severityAlert decides whether a row renders in the alert color. The four
// boundary checks run in this exact order, first match wins. Tags outside the
// fasting set never reach the high-fasting branch, so unknown tags stay
// neutral unless the value is below Low or at/above VeryHigh.
func severityAlert(row Row, t *models.ThresholdProfile) bool {
	if !row.HasSeverity || t == nil {
		return false
	}
	switch {
	case row.Severity < t.Low:
		return true
	case row.Severity >= t.VeryHigh:
		return true
	case row.SeverityTag == "Post-Meal" && row.Severity >= t.HighPostMeal:
		return true
	case isFastingTag(row.SeverityTag) && row.Severity >= t.HighFasting:
		return true
	}
	return false
}

func isFastingTag(tag string) bool {
	switch tag {
	case "Fasting", "Pre-Meal", "N/A":
		return true
	}
	return false
}
