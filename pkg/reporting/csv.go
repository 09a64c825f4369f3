package reporting

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// CSVGenerator handles CSV report generation for the same categorized rows.
type CSVGenerator struct{}

// NewCSVGenerator creates a new CSV generator.
func NewCSVGenerator() *CSVGenerator {
	return &CSVGenerator{}
}

// Generate creates a CSV report from the provided data. Categories render in
// the same fixed order as the PDF, and empty categories are skipped.
func (g *CSVGenerator) Generate(data *ReportData) (*Artifact, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := g.writeHeader(w, data); err != nil {
		return nil, fmt.Errorf("write CSV header section: %w", err)
	}

	sections := []struct {
		spec TableSpec
		rows []Row
	}{
		{glucoseTable, data.Glucose},
		{calorieTable, data.Calorie},
		{sugarTable, data.Sugar},
	}
	for _, section := range sections {
		if len(section.rows) == 0 {
			continue
		}
		if err := g.writeSection(w, section.spec, section.rows); err != nil {
			return nil, fmt.Errorf("write CSV section %q: %w", section.spec.Title, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("CSV write error: %w", err)
	}

	name := data.Patient.DisplayName()
	return &Artifact{
		Bytes:       buf.Bytes(),
		Filename:    strings.TrimSuffix(reportFilename(name, data), ".pdf") + ".csv",
		PatientName: name,
		TypeLabel:   data.TypeLabel,
	}, nil
}

func (g *CSVGenerator) writeHeader(w *csv.Writer, data *ReportData) error {
	rows := [][]string{
		{"# " + data.TypeLabel},
		{"# Patient:", data.Patient.DisplayName()},
		{"# Period:", fmt.Sprintf("%s to %s", data.Start.Format("2006-01-02"), data.End.Format("2006-01-02"))},
		{""},
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (g *CSVGenerator) writeSection(w *csv.Writer, spec TableSpec, rows []Row) error {
	if err := w.Write([]string{"# " + strings.ToUpper(spec.Title)}); err != nil {
		return err
	}
	if err := w.Write(spec.Headers); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row.Cells); err != nil {
			return err
		}
	}
	return w.Write([]string{""})
}
