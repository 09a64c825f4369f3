package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestLogger(t *testing.T) *SQLiteLogger {
	t.Helper()

	logger, err := NewSQLiteLogger(SQLiteLoggerConfig{
		DataDir:       t.TempDir(),
		RetentionDays: 30,
	})
	if err != nil {
		t.Fatalf("NewSQLiteLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func testEvent(userID, action string, success bool) Event {
	now := time.Now()
	return Event{
		ID:          uuid.NewString(),
		Timestamp:   now,
		UserID:      userID,
		Action:      action,
		Recipient:   "dr.smith@clinic.example",
		PeriodStart: now.AddDate(0, 0, -7),
		PeriodEnd:   now,
		Sections:    "glucose,calorie,sugar",
		Success:     success,
	}
}

func TestSQLiteLogger_LogAndQuery(t *testing.T) {
	logger := newTestLogger(t)

	if err := logger.Log(testEvent("user-1", ActionEmail, true)); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := logger.Log(testEvent("user-2", ActionExport, true)); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := logger.Query(QueryFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event for user-1, got %d", len(events))
	}

	got := events[0]
	if got.Action != ActionEmail {
		t.Errorf("action = %q, want %q", got.Action, ActionEmail)
	}
	if got.Recipient != "dr.smith@clinic.example" {
		t.Errorf("recipient = %q", got.Recipient)
	}
	if got.Sections != "glucose,calorie,sugar" {
		t.Errorf("sections = %q", got.Sections)
	}
	if !got.Success {
		t.Error("success flag lost in round trip")
	}
}

func TestSQLiteLogger_CountWithFilters(t *testing.T) {
	logger := newTestLogger(t)

	for i := 0; i < 3; i++ {
		if err := logger.Log(testEvent("user-1", ActionEmail, true)); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}
	if err := logger.Log(testEvent("user-1", ActionExport, false)); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	count, err := logger.Count(QueryFilter{UserID: "user-1", Action: ActionEmail})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("email count = %d, want 3", count)
	}

	failed := false
	count, err = logger.Count(QueryFilter{Success: &failed})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("failed count = %d, want 1", count)
	}
}

func TestSQLiteLogger_QueryLimit(t *testing.T) {
	logger := newTestLogger(t)

	for i := 0; i < 5; i++ {
		if err := logger.Log(testEvent("user-1", ActionEmail, true)); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	events, err := logger.Query(QueryFilter{Limit: 2})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("limited query returned %d events, want 2", len(events))
	}
}

func TestRecord_StampsIDAndTimestamp(t *testing.T) {
	logger := newTestLogger(t)
	SetLogger(logger)
	defer SetLogger(NewConsoleLogger())

	Record(Event{
		UserID:      "user-9",
		Action:      ActionExport,
		PeriodStart: time.Now().AddDate(0, 0, -7),
		PeriodEnd:   time.Now(),
		Sections:    "glucose",
		Success:     true,
	})

	events, err := logger.Query(QueryFilter{UserID: "user-9"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected the recorded event, got %d", len(events))
	}
	if events[0].ID == "" {
		t.Error("Record must assign an event ID")
	}
}
