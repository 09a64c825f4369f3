package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glucolog/glucolog/internal/dispatch"
	"github.com/glucolog/glucolog/internal/models"
	"github.com/glucolog/glucolog/internal/store"
	"github.com/glucolog/glucolog/pkg/reporting"
)

type stubMailer struct {
	sent int
	last string
}

func (s *stubMailer) Send(to, subject, body string, attachment []byte, filename string) error {
	s.sent++
	s.last = to
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Store, *stubMailer) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	m := &stubMailer{}
	d := dispatch.New(st, reporting.NewGenerator(), reporting.NewCSVGenerator(), m)
	srv := httptest.NewServer(NewServer(d).Routes())
	t.Cleanup(srv.Close)
	return srv, st, m
}

func seedAPIPatient(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()
	if err := st.UpsertPatient(ctx, models.Patient{
		ID: "user-1", FirstName: "Mika", LastName: "Tanaka", DiabetesType: 2,
	}); err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	if err := st.AddLog(ctx, "user-1", models.LogRecord{
		Category:  models.CategoryGlucose,
		Amount:    121,
		Timestamp: time.Date(2026, 3, 4, 7, 30, 0, 0, time.UTC),
		Tag:       "Fasting",
	}); err != nil {
		t.Fatalf("seed log: %v", err)
	}
}

func postReport(t *testing.T, srv *httptest.Server, body map[string]interface{}) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(body)
	resp, err := http.Post(srv.URL+"/api/reports", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST /api/reports: %v", err)
	}
	return resp
}

func TestReportExportDownload(t *testing.T) {
	srv, st, _ := newTestServer(t)
	seedAPIPatient(t, st)

	resp := postReport(t, srv, map[string]interface{}{
		"userId":    "user-1",
		"mode":      "export",
		"startDate": "2026-03-02",
		"endDate":   "2026-03-08",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "Mika_Tanaka_2026-03-02.pdf") {
		t.Errorf("Content-Disposition = %q", got)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(resp.Body, buf); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(buf) != "%PDF" {
		t.Errorf("body starts with %q, want PDF magic", buf)
	}
}

func TestReportCSVDownload(t *testing.T) {
	srv, st, _ := newTestServer(t)
	seedAPIPatient(t, st)

	resp := postReport(t, srv, map[string]interface{}{
		"userId":    "user-1",
		"format":    "csv",
		"startDate": "2026-03-02",
		"endDate":   "2026-03-08",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/csv" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestReportEmailDelivery(t *testing.T) {
	srv, st, m := newTestServer(t)
	seedAPIPatient(t, st)

	resp := postReport(t, srv, map[string]interface{}{
		"userId":        "user-1",
		"mode":          "email",
		"startDate":     "2026-03-02",
		"endDate":       "2026-03-08",
		"providerEmail": "dr.lee@clinic.test",
		"providerName":  "Dr. Lee",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["status"] != "sent" || out["recipient"] != "dr.lee@clinic.test" {
		t.Errorf("response = %v", out)
	}
	if m.sent != 1 || m.last != "dr.lee@clinic.test" {
		t.Errorf("mailer sent=%d last=%q", m.sent, m.last)
	}
}

func TestReportValidationErrors(t *testing.T) {
	srv, st, _ := newTestServer(t)
	seedAPIPatient(t, st)

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"bad date", map[string]interface{}{
			"userId": "user-1", "startDate": "03/02/2026", "endDate": "2026-03-08",
		}},
		{"unknown section", map[string]interface{}{
			"userId": "user-1", "startDate": "2026-03-02", "endDate": "2026-03-08",
			"sections": []string{"cholesterol"},
		}},
		{"unknown format", map[string]interface{}{
			"userId": "user-1", "startDate": "2026-03-02", "endDate": "2026-03-08",
			"format": "docx",
		}},
		{"email without provider", map[string]interface{}{
			"userId": "user-1", "mode": "email",
			"startDate": "2026-03-02", "endDate": "2026-03-08",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postReport(t, srv, tc.body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			var apiErr APIError
			if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if apiErr.ErrorMessage == "" {
				t.Error("error message missing")
			}
		})
	}
}

func TestReportUnknownUser(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postReport(t, srv, map[string]interface{}{
		"userId":    "nobody",
		"startDate": "2026-03-02",
		"endDate":   "2026-03-08",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestReportMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/reports")
	if err != nil {
		t.Fatalf("GET /api/reports: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if out["status"] != "healthy" {
		t.Errorf("status field = %v", out["status"])
	}
}

func TestSanitizeFilename(t *testing.T) {
	got := sanitizeFilename("Bobby\"; rm -rf /tmp\r\n.pdf")
	if strings.ContainsAny(got, "\"\\\r\n/") {
		t.Errorf("sanitized filename still contains unsafe characters: %q", got)
	}
}
