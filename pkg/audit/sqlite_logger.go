package audit

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteLoggerConfig configures the SQLite audit logger.
type SQLiteLoggerConfig struct {
	DataDir       string // directory for audit.db
	RetentionDays int    // days to keep events (default: 90, 0 = forever)
}

// SQLiteLogger implements Logger with persistent SQLite storage.
type SQLiteLogger struct {
	mu            sync.RWMutex
	db            *sql.DB
	dbPath        string
	retentionDays int
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

// NewSQLiteLogger creates a new SQLite-backed audit logger.
func NewSQLiteLogger(cfg SQLiteLoggerConfig) (*SQLiteLogger, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}

	auditDir := filepath.Join(cfg.DataDir, "audit")
	if err := os.MkdirAll(auditDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	dbPath := filepath.Join(auditDir, "audit.db")

	// Pragmas in the DSN so every pool connection is configured.
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	// SQLite works best with a single writer connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	retentionDays := cfg.RetentionDays
	if retentionDays == 0 {
		retentionDays = 90
	}

	l := &SQLiteLogger{
		db:            db,
		dbPath:        dbPath,
		retentionDays: retentionDays,
		stopChan:      make(chan struct{}),
	}

	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if retentionDays > 0 {
		l.wg.Add(1)
		go l.retentionWorker()
	}

	log.Info().
		Str("dbPath", dbPath).
		Int("retentionDays", retentionDays).
		Msg("SQLite audit logger initialized")

	return l, nil
}

func (l *SQLiteLogger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS report_audit (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		recipient TEXT,
		period_start INTEGER NOT NULL,
		period_end INTEGER NOT NULL,
		sections TEXT NOT NULL,
		success INTEGER NOT NULL,
		details TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_report_audit_timestamp ON report_audit(timestamp);
	CREATE INDEX IF NOT EXISTS idx_report_audit_user ON report_audit(user_id);
	CREATE INDEX IF NOT EXISTS idx_report_audit_action ON report_audit(action);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Log inserts an audit event.
func (l *SQLiteLogger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(`
		INSERT INTO report_audit (id, timestamp, user_id, action, recipient, period_start, period_end, sections, success, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.Unix(),
		event.UserID,
		event.Action,
		event.Recipient,
		event.PeriodStart.Unix(),
		event.PeriodEnd.Unix(),
		event.Sections,
		boolToInt(event.Success),
		event.Details,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Query retrieves audit events matching the filter, newest first.
func (l *SQLiteLogger) Query(filter QueryFilter) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	where, args := buildWhere(filter)
	query := "SELECT id, timestamp, user_id, action, recipient, period_start, period_end, sections, success, details FROM report_audit" +
		where + " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts, pStart, pEnd int64
		var success int
		var recipient, details sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.UserID, &e.Action, &recipient, &pStart, &pEnd, &e.Sections, &success, &details); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		e.PeriodStart = time.Unix(pStart, 0)
		e.PeriodEnd = time.Unix(pEnd, 0)
		e.Success = success != 0
		e.Recipient = recipient.String
		e.Details = details.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the number of audit events matching the filter.
func (l *SQLiteLogger) Count(filter QueryFilter) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	where, args := buildWhere(filter)
	var count int
	if err := l.db.QueryRow("SELECT COUNT(*) FROM report_audit"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return count, nil
}

func buildWhere(filter QueryFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.StartTime != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, filter.StartTime.Unix())
	}
	if filter.EndTime != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, filter.EndTime.Unix())
	}
	if filter.Success != nil {
		conds = append(conds, "success = ?")
		args = append(args, boolToInt(*filter.Success))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// retentionWorker periodically prunes events older than the retention window.
func (l *SQLiteLogger) retentionWorker() {
	defer l.wg.Done()

	ticker := time.NewTicker(12 * time.Hour)
	defer ticker.Stop()

	l.pruneExpired()
	for {
		select {
		case <-ticker.C:
			l.pruneExpired()
		case <-l.stopChan:
			return
		}
	}
}

func (l *SQLiteLogger) pruneExpired() {
	cutoff := time.Now().AddDate(0, 0, -l.retentionDays).Unix()

	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.Exec("DELETE FROM report_audit WHERE timestamp < ?", cutoff)
	if err != nil {
		log.Error().Err(err).Msg("Failed to prune expired audit events")
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Info().Int64("pruned", n).Msg("Pruned expired audit events")
	}
}

// Close stops the retention worker and closes the database.
func (l *SQLiteLogger) Close() error {
	close(l.stopChan)
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
