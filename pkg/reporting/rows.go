package reporting

import (
	"fmt"
	"time"

	"github.com/glucolog/glucolog/internal/models"
)

// Row is a single formatted table row ready for layout. Cells are already
// display strings, one per column. Severity is only meaningful for glucose
// rows; HasSeverity gates the threshold comparison in the layout engine.
type Row struct {
	Cells       []string
	Severity    float64
	SeverityTag string
	HasSeverity bool
}

const rowTimeFormat = "Jan 2, 2006 3:04 PM"

// BuildRows partitions raw log records into per-category display rows,
// preserving input order within each category. Missing optional fields
// degrade to defaults; there are no error paths.
func BuildRows(records []models.LogRecord) (glucose, calorie, sugar []Row) {
	for _, rec := range records {
		switch rec.Category {
		case models.CategoryGlucose:
			glucose = append(glucose, glucoseRow(rec))
		case models.CategoryCalorie:
			calorie = append(calorie, calorieRow(rec))
		case models.CategorySugar:
			sugar = append(sugar, sugarRow(rec))
		}
	}
	return glucose, calorie, sugar
}

func glucoseRow(rec models.LogRecord) Row {
	tag := rec.Tag
	if tag == "" {
		tag = "N/A"
	}
	return Row{
		Cells: []string{
			fmt.Sprintf("%.1f mg/dL", rec.Amount),
			formatTimestamp(rec.Timestamp),
			tag,
		},
		Severity:    rec.Amount,
		SeverityTag: tag,
		HasSeverity: true,
	}
}

func calorieRow(rec models.LogRecord) Row {
	return Row{
		Cells: []string{
			fmt.Sprintf("%.0f kcal", rec.Amount),
			formatTimestamp(rec.Timestamp),
			labelOrUnknown(rec.Label),
		},
	}
}

func sugarRow(rec models.LogRecord) Row {
	return Row{
		Cells: []string{
			fmt.Sprintf("%.1f g", rec.Amount),
			formatTimestamp(rec.Timestamp),
			labelOrUnknown(rec.Label),
		},
	}
}

func labelOrUnknown(label string) string {
	if label == "" {
		return "Unknown"
	}
	return label
}

func formatTimestamp(t time.Time) string {
	return t.Local().Format(rowTimeFormat)
}
