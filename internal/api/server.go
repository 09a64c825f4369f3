// Package api exposes the HTTP surface: report generation on demand plus a
// health probe. Routing stays on net/http; handlers answer JSON except for
// report downloads, which stream the rendered document as an attachment.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/glucolog/glucolog/internal/dispatch"
	"github.com/glucolog/glucolog/internal/models"
	"github.com/glucolog/glucolog/internal/store"
	"github.com/glucolog/glucolog/pkg/reporting"
)

const requestDateLayout = "2006-01-02"

// Server handles the report HTTP endpoints.
type Server struct {
	dispatcher *dispatch.Dispatcher
}

// NewServer creates the API server around a dispatcher.
func NewServer(d *dispatch.Dispatcher) *Server {
	return &Server{dispatcher: d}
}

// Routes builds the HTTP handler with logging middleware applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/reports", s.handleReports)
	mux.HandleFunc("/healthz", s.handleHealth)
	return requestLogger(mux)
}

// reportRequest is the JSON body of POST /api/reports.
type reportRequest struct {
	UserID        string   `json:"userId"`
	Mode          string   `json:"mode"`     // "export" or "email"
	Format        string   `json:"format"`   // "pdf" (default) or "csv"
	Sections      []string `json:"sections"` // empty means all
	StartDate     string   `json:"startDate"`
	EndDate       string   `json:"endDate"`
	ProviderEmail string   `json:"providerEmail,omitempty"`
	ProviderName  string   `json:"providerName,omitempty"`
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
		return
	}

	var body reportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid_json", "Invalid request body", nil)
		return
	}

	req, err := buildDispatchRequest(body)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	artifact, err := s.dispatcher.Run(r.Context(), req)
	if err != nil {
		s.writeDispatchError(w, req, err)
		return
	}

	if req.Mode == dispatch.ModeEmail {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "sent",
			"recipient": req.ProviderEmail,
			"report":    artifact.Filename,
		})
		return
	}

	contentType := "application/pdf"
	if req.Format == reporting.FormatCSV {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"%s\"", sanitizeFilename(artifact.Filename)))
	if _, err := w.Write(artifact.Bytes); err != nil {
		log.Error().Err(err).Str("report", artifact.Filename).Msg("Failed to stream report")
	}
}

func (s *Server) writeDispatchError(w http.ResponseWriter, req dispatch.Request, err error) {
	switch {
	case errors.Is(err, dispatch.ErrValidation):
		writeErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		writeErrorResponse(w, http.StatusNotFound, "not_found",
			fmt.Sprintf("User %s not found", req.UserID), nil)
	default:
		log.Error().Err(err).Str("userID", req.UserID).Str("mode", req.Mode).Msg("Report request failed")
		writeErrorResponse(w, http.StatusInternalServerError, "report_failed",
			"Failed to generate report", nil)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// buildDispatchRequest translates the wire request into a dispatch request,
// resolving dates, sections and format. Semantic validation beyond parsing is
// the dispatcher's job.
func buildDispatchRequest(body reportRequest) (dispatch.Request, error) {
	var req dispatch.Request

	start, err := time.Parse(requestDateLayout, body.StartDate)
	if err != nil {
		return req, fmt.Errorf("invalid startDate %q, expected YYYY-MM-DD", body.StartDate)
	}
	end, err := time.Parse(requestDateLayout, body.EndDate)
	if err != nil {
		return req, fmt.Errorf("invalid endDate %q, expected YYYY-MM-DD", body.EndDate)
	}
	// the end date is inclusive
	end = end.Add(24*time.Hour - time.Second)

	sections := models.AllCategories
	if len(body.Sections) > 0 {
		sections = make([]models.Category, 0, len(body.Sections))
		for _, raw := range body.Sections {
			cat, ok := models.ParseCategory(raw)
			if !ok {
				return req, fmt.Errorf("unknown section %q", raw)
			}
			sections = append(sections, cat)
		}
	}

	format := reporting.FormatPDF
	switch strings.ToLower(body.Format) {
	case "", "pdf":
	case "csv":
		format = reporting.FormatCSV
	default:
		return req, fmt.Errorf("unknown format %q", body.Format)
	}

	mode := body.Mode
	if mode == "" {
		mode = dispatch.ModeExport
	}

	return dispatch.Request{
		UserID:        body.UserID,
		Mode:          mode,
		Format:        format,
		Sections:      sections,
		Start:         start,
		End:           end,
		ProviderEmail: body.ProviderEmail,
		ProviderName:  body.ProviderName,
		TypeLabel:     typeLabelFor(start, end),
	}, nil
}

// typeLabelFor picks the report title from the window length.
func typeLabelFor(start, end time.Time) string {
	if end.Sub(start) > 8*24*time.Hour {
		return "Monthly Health Report"
	}
	return "Weekly Health Report"
}
