// Package reporting renders paginated health reports as PDF or CSV.
//
// The PDF path is a cursor-driven layout engine: log records are classified
// into display rows, laid out as titled tables with per-row page-break
// detection, then a second pass stamps the report title and page footers once
// the true page count is known.
package reporting

import (
	"time"

	"github.com/glucolog/glucolog/internal/models"
)

// ReportFormat represents the output format of a report.
type ReportFormat string

const (
	FormatPDF ReportFormat = "pdf"
	FormatCSV ReportFormat = "csv"
)

// ReportData is everything a single render needs. It is assembled fresh per
// invocation and never mutated by the generator.
type ReportData struct {
	Patient    models.Patient
	Thresholds *models.ThresholdProfile // nil disables glucose highlighting
	Glucose    []Row
	Calorie    []Row
	Sugar      []Row
	Start      time.Time
	End        time.Time
	TypeLabel  string // e.g. "Weekly Health Report"
}

// Artifact is a finished, immutable rendered report plus its metadata.
type Artifact struct {
	Bytes       []byte
	Filename    string
	PatientName string
	TypeLabel   string
}

// Engine defines the interface for report generation.
type Engine interface {
	Generate(data *ReportData) (*Artifact, error)
}
