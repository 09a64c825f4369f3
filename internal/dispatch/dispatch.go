// Package dispatch orchestrates a single report run: load the patient and
// their logs, render the document, and either return it for download or mail
// it to the care provider. Every run leaves an audit record.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/glucolog/glucolog/internal/models"
	"github.com/glucolog/glucolog/internal/store"
	"github.com/glucolog/glucolog/pkg/audit"
	"github.com/glucolog/glucolog/pkg/reporting"
)

// ErrValidation marks request errors the API layer maps to 400.
var ErrValidation = errors.New("invalid report request")

// Delivery modes.
const (
	ModeExport = "export"
	ModeEmail  = "email"
)

// Request describes one report invocation.
type Request struct {
	UserID        string
	Mode          string
	Format        reporting.ReportFormat
	Sections      []models.Category
	Start         time.Time
	End           time.Time
	ProviderEmail string
	ProviderName  string
	TypeLabel     string
}

// Mailer is the outbound email dependency. Satisfied by mailer.Mailer.
type Mailer interface {
	Send(to, subject, body string, attachment []byte, filename string) error
}

// Dispatcher runs report requests end to end.
type Dispatcher struct {
	store  *store.Store
	engine reporting.Engine
	csv    reporting.Engine
	mailer Mailer
}

// New creates a dispatcher. mailer may be nil when email delivery is disabled;
// email requests then fail with a validation error.
func New(st *store.Store, engine, csv reporting.Engine, mailer Mailer) *Dispatcher {
	return &Dispatcher{store: st, engine: engine, csv: csv, mailer: mailer}
}

// Run executes one report request. For export mode the rendered artifact is
// returned to the caller; for email mode it is sent to the provider and the
// returned artifact carries the same bytes for inspection.
func (d *Dispatcher) Run(ctx context.Context, req Request) (*reporting.Artifact, error) {
	if err := d.validate(req); err != nil {
		d.record(req, false, err.Error())
		return nil, err
	}

	patient, err := d.store.GetPatient(ctx, req.UserID)
	if err != nil {
		d.record(req, false, err.Error())
		return nil, err
	}
	thresholds, err := d.store.GetThresholds(ctx, req.UserID)
	if err != nil {
		d.record(req, false, err.Error())
		return nil, fmt.Errorf("load thresholds for %s: %w", req.UserID, err)
	}
	records, err := d.store.ListLogs(ctx, req.UserID, req.Sections, req.Start, req.End)
	if err != nil {
		d.record(req, false, err.Error())
		return nil, fmt.Errorf("load health logs for %s: %w", req.UserID, err)
	}

	glucose, calorie, sugar := reporting.BuildRows(records)
	data := &reporting.ReportData{
		Patient:    patient,
		Thresholds: thresholds,
		Glucose:    glucose,
		Calorie:    calorie,
		Sugar:      sugar,
		Start:      req.Start,
		End:        req.End,
		TypeLabel:  req.TypeLabel,
	}

	engine := d.engine
	if req.Format == reporting.FormatCSV {
		engine = d.csv
	}
	artifact, err := engine.Generate(data)
	if err != nil {
		d.record(req, false, err.Error())
		return nil, fmt.Errorf("generate report for %s: %w", req.UserID, err)
	}

	if req.Mode == ModeEmail {
		subject := fmt.Sprintf("%s for %s", req.TypeLabel, patient.DisplayName())
		body := emailBody(patient, req)
		if err := d.mailer.Send(req.ProviderEmail, subject, body, artifact.Bytes, artifact.Filename); err != nil {
			d.record(req, false, err.Error())
			return nil, err
		}
		log.Info().
			Str("userID", req.UserID).
			Str("provider", req.ProviderEmail).
			Str("report", artifact.Filename).
			Msg("Report emailed to provider")
	}

	d.record(req, true, artifact.Filename)
	return artifact, nil
}

func (d *Dispatcher) validate(req Request) error {
	if req.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	switch req.Mode {
	case ModeExport, ModeEmail:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrValidation, req.Mode)
	}
	if len(req.Sections) == 0 {
		return fmt.Errorf("%w: at least one section is required", ErrValidation)
	}
	if req.Start.IsZero() || req.End.IsZero() || req.End.Before(req.Start) {
		return fmt.Errorf("%w: invalid report period", ErrValidation)
	}
	if req.Mode == ModeEmail {
		if d.mailer == nil {
			return fmt.Errorf("%w: email delivery is not configured", ErrValidation)
		}
		if !strings.Contains(req.ProviderEmail, "@") {
			return fmt.Errorf("%w: provider email is required for email delivery", ErrValidation)
		}
	}
	return nil
}

func (d *Dispatcher) record(req Request, success bool, details string) {
	sections := make([]string, len(req.Sections))
	for i, s := range req.Sections {
		sections[i] = string(s)
	}
	audit.Record(audit.Event{
		UserID:      req.UserID,
		Action:      actionFor(req.Mode),
		Recipient:   req.ProviderEmail,
		PeriodStart: req.Start,
		PeriodEnd:   req.End,
		Sections:    strings.Join(sections, ","),
		Success:     success,
		Details:     details,
	})
}

func actionFor(mode string) string {
	if mode == ModeEmail {
		return audit.ActionEmail
	}
	return audit.ActionExport
}

func emailBody(patient models.Patient, req Request) string {
	name := req.ProviderName
	if name == "" {
		name = "Care Provider"
	}
	return fmt.Sprintf("Dear %s,\n\nPlease find attached the %s for %s covering %s through %s.\n\nThis message was generated automatically; replies are not monitored.\n",
		name,
		strings.ToLower(req.TypeLabel),
		patient.DisplayName(),
		req.Start.Format("January 2, 2006"),
		req.End.Format("January 2, 2006"))
}
