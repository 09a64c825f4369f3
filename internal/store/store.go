// Package store provides SQLite-backed persistence for patients, clinical
// thresholds, health log records, and scheduled-report preferences.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/glucolog/glucolog/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the service database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the service database under dataDir.
func Open(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "glucolog.db")

	// Pragmas in the DSN so every pool connection is configured.
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
			"foreign_keys(ON)",
		},
	}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("dbPath", dbPath).Msg("Store opened")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS patients (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		weight_kg REAL,
		height_cm REAL,
		gender TEXT,
		diabetes_type INTEGER NOT NULL DEFAULT 2,
		uses_insulin INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS thresholds (
		user_id TEXT PRIMARY KEY REFERENCES patients(id),
		low REAL NOT NULL,
		high_fasting REAL NOT NULL,
		high_post_meal REAL NOT NULL,
		very_high REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS health_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL REFERENCES patients(id),
		category TEXT NOT NULL,
		amount REAL NOT NULL,
		timestamp INTEGER NOT NULL,
		tag TEXT,
		label TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_health_logs_user_time ON health_logs(user_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_health_logs_category ON health_logs(category);

	CREATE TABLE IF NOT EXISTS report_preferences (
		user_id TEXT PRIMARY KEY REFERENCES patients(id),
		frequency TEXT NOT NULL DEFAULT '',
		provider_email TEXT NOT NULL DEFAULT '',
		provider_name TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetPatient loads a patient's demographics record.
func (s *Store) GetPatient(ctx context.Context, userID string) (models.Patient, error) {
	var p models.Patient
	var weight, height sql.NullFloat64
	var gender sql.NullString
	var usesInsulin int

	err := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, weight_kg, height_cm, gender, diabetes_type, uses_insulin
		FROM patients WHERE id = ?`, userID).
		Scan(&p.ID, &p.FirstName, &p.LastName, &weight, &height, &gender, &p.DiabetesType, &usesInsulin)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Patient{}, fmt.Errorf("patient %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return models.Patient{}, fmt.Errorf("load patient %s: %w", userID, err)
	}

	if weight.Valid {
		p.WeightKg = &weight.Float64
	}
	if height.Valid {
		p.HeightCm = &height.Float64
	}
	p.Gender = gender.String
	p.UsesInsulin = usesInsulin != 0
	return p, nil
}

// UpsertPatient inserts or replaces a patient record.
func (s *Store) UpsertPatient(ctx context.Context, p models.Patient) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patients (id, first_name, last_name, weight_kg, height_cm, gender, diabetes_type, uses_insulin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			weight_kg = excluded.weight_kg,
			height_cm = excluded.height_cm,
			gender = excluded.gender,
			diabetes_type = excluded.diabetes_type,
			uses_insulin = excluded.uses_insulin`,
		p.ID, p.FirstName, p.LastName, nullFloat(p.WeightKg), nullFloat(p.HeightCm),
		p.Gender, p.DiabetesType, boolToInt(p.UsesInsulin))
	if err != nil {
		return fmt.Errorf("upsert patient %s: %w", p.ID, err)
	}
	return nil
}

// GetThresholds loads a patient's clinical threshold profile. A missing
// profile is not an error: it returns (nil, nil) and disables highlighting.
func (s *Store) GetThresholds(ctx context.Context, userID string) (*models.ThresholdProfile, error) {
	var t models.ThresholdProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT low, high_fasting, high_post_meal, very_high
		FROM thresholds WHERE user_id = ?`, userID).
		Scan(&t.Low, &t.HighFasting, &t.HighPostMeal, &t.VeryHigh)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load thresholds for %s: %w", userID, err)
	}
	return &t, nil
}

// SaveThresholds inserts or replaces a patient's threshold profile.
func (s *Store) SaveThresholds(ctx context.Context, userID string, t models.ThresholdProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thresholds (user_id, low, high_fasting, high_post_meal, very_high)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			low = excluded.low,
			high_fasting = excluded.high_fasting,
			high_post_meal = excluded.high_post_meal,
			very_high = excluded.very_high`,
		userID, t.Low, t.HighFasting, t.HighPostMeal, t.VeryHigh)
	if err != nil {
		return fmt.Errorf("save thresholds for %s: %w", userID, err)
	}
	return nil
}

// AddLog appends a health log record.
func (s *Store) AddLog(ctx context.Context, userID string, rec models.LogRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO health_logs (user_id, category, amount, timestamp, tag, label)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, string(rec.Category), rec.Amount, rec.Timestamp.Unix(), rec.Tag, rec.Label)
	if err != nil {
		return fmt.Errorf("add log for %s: %w", userID, err)
	}
	return nil
}

// ListLogs returns a user's log records for the given categories and window,
// ordered descending by timestamp as the report renderer expects.
func (s *Store) ListLogs(ctx context.Context, userID string, categories []models.Category, start, end time.Time) ([]models.LogRecord, error) {
	if len(categories) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(categories)), ",")
	args := []any{userID}
	for _, c := range categories {
		args = append(args, string(c))
	}
	args = append(args, start.Unix(), end.Unix())

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, amount, timestamp, tag, label
		FROM health_logs
		WHERE user_id = ? AND category IN (`+placeholders+`) AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list logs for %s: %w", userID, err)
	}
	defer rows.Close()

	var records []models.LogRecord
	for rows.Next() {
		var rec models.LogRecord
		var category string
		var ts int64
		var tag, label sql.NullString
		if err := rows.Scan(&category, &rec.Amount, &ts, &tag, &label); err != nil {
			return nil, fmt.Errorf("scan log record: %w", err)
		}
		rec.Category = models.Category(category)
		rec.Timestamp = time.Unix(ts, 0)
		rec.Tag = tag.String
		rec.Label = label.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SetPreference inserts or replaces a user's scheduled-report preference.
func (s *Store) SetPreference(ctx context.Context, pref models.ReportPreference) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_preferences (user_id, frequency, provider_email, provider_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			frequency = excluded.frequency,
			provider_email = excluded.provider_email,
			provider_name = excluded.provider_name`,
		pref.UserID, pref.Frequency, pref.ProviderEmail, pref.ProviderName)
	if err != nil {
		return fmt.Errorf("set preference for %s: %w", pref.UserID, err)
	}
	return nil
}

// ListEligibleUsers returns scheduled-report preferences matching the given
// frequency where a provider email is configured.
func (s *Store) ListEligibleUsers(ctx context.Context, frequency string) ([]models.ReportPreference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, frequency, provider_email, provider_name
		FROM report_preferences
		WHERE frequency = ? AND provider_email != ''
		ORDER BY user_id`, frequency)
	if err != nil {
		return nil, fmt.Errorf("list eligible users: %w", err)
	}
	defer rows.Close()

	var prefs []models.ReportPreference
	for rows.Next() {
		var pref models.ReportPreference
		if err := rows.Scan(&pref.UserID, &pref.Frequency, &pref.ProviderEmail, &pref.ProviderName); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		prefs = append(prefs, pref)
	}
	return prefs, rows.Err()
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
