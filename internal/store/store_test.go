package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glucolog/glucolog/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedPatient(t *testing.T, s *Store, id string) {
	t.Helper()

	weight := 80.0
	if err := s.UpsertPatient(context.Background(), models.Patient{
		ID:           id,
		FirstName:    "Sam",
		LastName:     "Okafor",
		WeightKg:     &weight,
		Gender:       "male",
		DiabetesType: 1,
		UsesInsulin:  true,
	}); err != nil {
		t.Fatalf("UpsertPatient failed: %v", err)
	}
}

func TestStore_PatientRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedPatient(t, s, "user-1")

	p, err := s.GetPatient(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetPatient failed: %v", err)
	}
	if p.DisplayName() != "Sam Okafor" {
		t.Errorf("display name = %q", p.DisplayName())
	}
	if p.WeightKg == nil || *p.WeightKg != 80.0 {
		t.Errorf("weight not round-tripped: %v", p.WeightKg)
	}
	if p.HeightCm != nil {
		t.Errorf("absent height should stay nil, got %v", p.HeightCm)
	}
	if !p.UsesInsulin || p.DiabetesType != 1 {
		t.Errorf("flags lost: %+v", p)
	}
}

func TestStore_GetPatientNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetPatient(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ThresholdsOptional(t *testing.T) {
	s := newTestStore(t)
	seedPatient(t, s, "user-1")

	// Absent profile is nil, not an error.
	got, err := s.GetThresholds(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetThresholds failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil profile, got %+v", got)
	}

	want := models.ThresholdProfile{Low: 70, HighFasting: 130, HighPostMeal: 180, VeryHigh: 250}
	if err := s.SaveThresholds(context.Background(), "user-1", want); err != nil {
		t.Fatalf("SaveThresholds failed: %v", err)
	}
	got, err = s.GetThresholds(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetThresholds failed: %v", err)
	}
	if got == nil || *got != want {
		t.Errorf("thresholds = %+v, want %+v", got, want)
	}
}

func TestStore_ListLogsOrderAndFilter(t *testing.T) {
	s := newTestStore(t)
	seedPatient(t, s, "user-1")
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	entries := []models.LogRecord{
		{Category: models.CategoryGlucose, Amount: 110, Timestamp: base, Tag: "Fasting"},
		{Category: models.CategoryGlucose, Amount: 150, Timestamp: base.Add(48 * time.Hour), Tag: "Post-Meal"},
		{Category: models.CategoryCalorie, Amount: 600, Timestamp: base.Add(24 * time.Hour), Label: "Lunch"},
		{Category: models.CategorySugar, Amount: 20, Timestamp: base.Add(12 * time.Hour)},
	}
	for _, e := range entries {
		if err := s.AddLog(ctx, "user-1", e); err != nil {
			t.Fatalf("AddLog failed: %v", err)
		}
	}
	// Outside the window.
	if err := s.AddLog(ctx, "user-1", models.LogRecord{
		Category: models.CategoryGlucose, Amount: 99, Timestamp: base.AddDate(0, 0, -30),
	}); err != nil {
		t.Fatalf("AddLog failed: %v", err)
	}

	logs, err := s.ListLogs(ctx, "user-1", models.AllCategories, base.AddDate(0, 0, -7), base.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("ListLogs failed: %v", err)
	}
	if len(logs) != 4 {
		t.Fatalf("expected 4 in-window logs, got %d", len(logs))
	}
	for i := 1; i < len(logs); i++ {
		if logs[i].Timestamp.After(logs[i-1].Timestamp) {
			t.Fatalf("logs not in descending timestamp order at %d", i)
		}
	}

	// Category filter.
	logs, err = s.ListLogs(ctx, "user-1", []models.Category{models.CategoryCalorie}, base.AddDate(0, 0, -7), base.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("ListLogs failed: %v", err)
	}
	if len(logs) != 1 || logs[0].Label != "Lunch" {
		t.Errorf("calorie filter returned %+v", logs)
	}
}

func TestStore_ListEligibleUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		seedPatient(t, s, id)
	}

	prefs := []models.ReportPreference{
		{UserID: "a", Frequency: models.FrequencyWeekly, ProviderEmail: "doc-a@clinic.example", ProviderName: "Dr. A"},
		{UserID: "b", Frequency: models.FrequencyMonthly, ProviderEmail: "doc-b@clinic.example"},
		{UserID: "c", Frequency: models.FrequencyWeekly, ProviderEmail: ""}, // no provider email
		{UserID: "d", Frequency: "", ProviderEmail: "doc-d@clinic.example"}, // reports disabled
	}
	for _, p := range prefs {
		if err := s.SetPreference(ctx, p); err != nil {
			t.Fatalf("SetPreference failed: %v", err)
		}
	}

	weekly, err := s.ListEligibleUsers(ctx, models.FrequencyWeekly)
	if err != nil {
		t.Fatalf("ListEligibleUsers failed: %v", err)
	}
	if len(weekly) != 1 || weekly[0].UserID != "a" {
		t.Errorf("weekly eligible = %+v, want only user a", weekly)
	}

	monthly, err := s.ListEligibleUsers(ctx, models.FrequencyMonthly)
	if err != nil {
		t.Fatalf("ListEligibleUsers failed: %v", err)
	}
	if len(monthly) != 1 || monthly[0].UserID != "b" {
		t.Errorf("monthly eligible = %+v, want only user b", monthly)
	}
}
