// Package scheduler drives periodic report delivery. Users opt in through a
// report preference (weekly or monthly plus a provider address); on each tick
// the scheduler walks the eligible users sequentially and emails each one's
// report, logging and skipping failures so one bad user never blocks the rest.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/glucolog/glucolog/internal/dispatch"
	"github.com/glucolog/glucolog/internal/models"
	"github.com/glucolog/glucolog/internal/store"
	"github.com/glucolog/glucolog/pkg/reporting"
)

// Config holds the cron expressions for the two delivery cadences.
type Config struct {
	WeeklySpec  string // default: Monday 08:00
	MonthlySpec string // default: 1st of the month 08:00
}

// DefaultConfig returns the standard delivery schedule.
func DefaultConfig() Config {
	return Config{
		WeeklySpec:  "0 8 * * 1",
		MonthlySpec: "0 8 1 * *",
	}
}

// Scheduler runs weekly and monthly report deliveries on a cron.
type Scheduler struct {
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	cron       *cron.Cron
	nowFn      func() time.Time
}

// New creates a scheduler. Start must be called to begin delivery.
func New(st *store.Store, d *dispatch.Dispatcher) *Scheduler {
	return &Scheduler{
		store:      st,
		dispatcher: d,
		cron:       cron.New(),
		nowFn:      time.Now,
	}
}

// Start registers the cron entries and begins running them.
func (s *Scheduler) Start(cfg Config) error {
	if _, err := s.cron.AddFunc(cfg.WeeklySpec, s.runWeekly); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(cfg.MonthlySpec, s.runMonthly); err != nil {
		return err
	}
	s.cron.Start()
	log.Info().
		Str("weekly", cfg.WeeklySpec).
		Str("monthly", cfg.MonthlySpec).
		Msg("Report scheduler started")
	return nil
}

// Stop halts the cron and waits for any in-flight run to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Report scheduler stopped")
}

func (s *Scheduler) runWeekly() {
	start, end := weeklyWindow(s.nowFn())
	s.deliver(models.FrequencyWeekly, "Weekly Health Report", start, end)
}

func (s *Scheduler) runMonthly() {
	start, end := monthlyWindow(s.nowFn())
	s.deliver(models.FrequencyMonthly, "Monthly Health Report", start, end)
}

// deliver processes eligible users one at a time. A failed user is logged and
// skipped; the run continues with the next user.
func (s *Scheduler) deliver(frequency, typeLabel string, start, end time.Time) {
	ctx := context.Background()
	prefs, err := s.store.ListEligibleUsers(ctx, frequency)
	if err != nil {
		log.Error().Err(err).Str("frequency", frequency).Msg("Failed to list users for scheduled reports")
		return
	}
	log.Info().
		Str("frequency", frequency).
		Int("users", len(prefs)).
		Time("periodStart", start).
		Time("periodEnd", end).
		Msg("Scheduled report run starting")

	sent := 0
	for _, pref := range prefs {
		req := dispatch.Request{
			UserID:        pref.UserID,
			Mode:          dispatch.ModeEmail,
			Format:        reporting.FormatPDF,
			Sections:      models.AllCategories,
			Start:         start,
			End:           end,
			ProviderEmail: pref.ProviderEmail,
			ProviderName:  pref.ProviderName,
			TypeLabel:     typeLabel,
		}
		if _, err := s.dispatcher.Run(ctx, req); err != nil {
			log.Error().Err(err).
				Str("userID", pref.UserID).
				Str("frequency", frequency).
				Msg("Scheduled report failed, skipping user")
			continue
		}
		sent++
	}
	log.Info().
		Str("frequency", frequency).
		Int("sent", sent).
		Int("failed", len(prefs)-sent).
		Msg("Scheduled report run finished")
}

// weeklyWindow covers the trailing seven days up to now.
func weeklyWindow(now time.Time) (time.Time, time.Time) {
	return now.AddDate(0, 0, -7), now
}

// monthlyWindow covers the full previous calendar month, regardless of which
// day the run fires on.
func monthlyWindow(now time.Time) (time.Time, time.Time) {
	firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	start := firstOfThis.AddDate(0, -1, 0)
	end := firstOfThis.Add(-time.Second)
	return start, end
}
