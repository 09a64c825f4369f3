package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7655", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, 90, cfg.AuditRetentionDays)
	assert.Equal(t, "0 8 * * 1", cfg.Schedule.WeeklySpec)
	assert.Equal(t, "0 8 1 * *", cfg.Schedule.MonthlySpec)
	assert.False(t, cfg.EmailEnabled())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("GLUCOLOG_LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("GLUCOLOG_DATA_DIR", "/tmp/glucolog-test")
	t.Setenv("GLUCOLOG_SMTP_HOST", "smtp.clinic.test")
	t.Setenv("GLUCOLOG_SMTP_PORT", "2525")
	t.Setenv("GLUCOLOG_SMTP_FROM", "reports@clinic.test")
	t.Setenv("GLUCOLOG_WEEKLY_CRON", "0 6 * * 0")
	t.Setenv("GLUCOLOG_AUDIT_RETENTION_DAYS", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, "/tmp/glucolog-test", cfg.DataDir)
	assert.Equal(t, "smtp.clinic.test", cfg.SMTP.Host)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, "0 6 * * 0", cfg.Schedule.WeeklySpec)
	assert.Equal(t, 30, cfg.AuditRetentionDays)
	assert.True(t, cfg.EmailEnabled())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("GLUCOLOG_SMTP_PORT", "not-a-port")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadLogFormat(t *testing.T) {
	t.Setenv("GLUCOLOG_LOG_FORMAT", "xml")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadRetention(t *testing.T) {
	t.Setenv("GLUCOLOG_AUDIT_RETENTION_DAYS", "0")
	_, err := Load()
	assert.Error(t, err)
}
