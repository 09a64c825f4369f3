// Package audit records the delivery trail of generated health reports.
//
// Every report invocation, whether interactive or scheduled, produces one
// Event. The default backend writes to zerolog; the SQLite backend adds
// persistent, queryable storage with retention.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Action values for report delivery events.
const (
	ActionEmail  = "email"
	ActionExport = "export"
)

// Event represents a single report-delivery audit entry.
type Event struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	UserID      string    `json:"userId"`
	Action      string    `json:"action"` // "email" or "export"
	Recipient   string    `json:"recipient,omitempty"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
	Sections    string    `json:"sections"` // comma-joined category names
	Success     bool      `json:"success"`
	Details     string    `json:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	UserID    string
	Action    string
	StartTime *time.Time
	EndTime   *time.Time
	Success   *bool
	Limit     int
	Offset    int
}

// Logger defines the interface for audit logging backends.
type Logger interface {
	// Log records an audit event.
	Log(event Event) error

	// Query retrieves audit events matching the filter (may return empty
	// for the console logger).
	Query(filter QueryFilter) ([]Event, error)

	// Count returns the number of audit events matching the filter.
	Count(filter QueryFilter) (int, error)

	// Close releases any resources held by the logger.
	Close() error
}

var (
	globalLogger Logger
	loggerMu     sync.RWMutex
	loggerOnce   sync.Once
)

// SetLogger sets the global audit logger. Called during initialization;
// subsequent calls replace the previous logger.
func SetLogger(l Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	globalLogger = l
}

// GetLogger returns the current global audit logger, defaulting to a
// ConsoleLogger on first access.
func GetLogger() Logger {
	loggerMu.RLock()
	l := globalLogger
	loggerMu.RUnlock()

	if l != nil {
		return l
	}

	loggerOnce.Do(func() {
		loggerMu.Lock()
		defer loggerMu.Unlock()
		if globalLogger == nil {
			globalLogger = NewConsoleLogger()
		}
	})

	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return globalLogger
}

// Close closes the global audit logger.
func Close() error {
	loggerMu.RLock()
	l := globalLogger
	loggerMu.RUnlock()
	if l == nil {
		return nil
	}
	return l.Close()
}

// Record is a convenience function that stamps ID and timestamp and logs the
// event with the global logger.
func Record(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := GetLogger().Log(event); err != nil {
		log.Error().Err(err).Str("user", event.UserID).Str("action", event.Action).Msg("Failed to log audit event")
	}
}

// ConsoleLogger implements Logger by writing to zerolog.
type ConsoleLogger struct{}

// NewConsoleLogger creates a new console-based audit logger.
func NewConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{}
}

// Log writes an audit event to zerolog.
func (c *ConsoleLogger) Log(event Event) error {
	logEvent := log.With().
		Str("audit_id", event.ID).
		Str("user", event.UserID).
		Str("action", event.Action).
		Str("recipient", event.Recipient).
		Str("sections", event.Sections).
		Time("periodStart", event.PeriodStart).
		Time("periodEnd", event.PeriodEnd).
		Logger()

	if event.Success {
		logEvent.Info().Msg("Report delivery")
	} else {
		logEvent.Warn().Str("details", event.Details).Msg("Report delivery - FAILED")
	}
	return nil
}

// Query returns an empty slice; console logs are not queryable.
func (c *ConsoleLogger) Query(filter QueryFilter) ([]Event, error) {
	return []Event{}, nil
}

// Count returns zero for the console logger.
func (c *ConsoleLogger) Count(filter QueryFilter) (int, error) {
	return 0, nil
}

// Close is a no-op for the console logger.
func (c *ConsoleLogger) Close() error {
	return nil
}
