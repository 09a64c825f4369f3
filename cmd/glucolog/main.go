// Command glucolog runs the health report backend: the HTTP API for
// on-demand report generation plus the weekly and monthly delivery scheduler.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/glucolog/glucolog/internal/api"
	"github.com/glucolog/glucolog/internal/config"
	"github.com/glucolog/glucolog/internal/dispatch"
	"github.com/glucolog/glucolog/internal/logging"
	"github.com/glucolog/glucolog/internal/mailer"
	"github.com/glucolog/glucolog/internal/scheduler"
	"github.com/glucolog/glucolog/internal/store"
	"github.com/glucolog/glucolog/pkg/audit"
	"github.com/glucolog/glucolog/pkg/reporting"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Component: "glucolog",
	})

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to create data directory")
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer st.Close()

	auditLogger, err := audit.NewSQLiteLogger(audit.SQLiteLoggerConfig{
		DataDir:       cfg.DataDir,
		RetentionDays: cfg.AuditRetentionDays,
	})
	if err != nil {
		log.Warn().Err(err).Msg("SQLite audit logger unavailable, falling back to console")
	} else {
		audit.SetLogger(auditLogger)
	}
	defer audit.Close()

	var m dispatch.Mailer
	if cfg.EmailEnabled() {
		m = mailer.New(cfg.SMTP)
	} else {
		log.Warn().Msg("SMTP not configured, email delivery disabled")
	}

	dispatcher := dispatch.New(st, reporting.NewGenerator(), reporting.NewCSVGenerator(), m)

	sched := scheduler.New(st, dispatcher)
	if err := sched.Start(cfg.Schedule); err != nil {
		log.Fatal().Err(err).Msg("Failed to start report scheduler")
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.NewServer(dispatcher).Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}
