// Package models defines the domain records shared across the service.
package models

import "time"

// Category partitions health log records by measurement type.
type Category string

const (
	CategoryGlucose Category = "glucose"
	CategoryCalorie Category = "calorie"
	CategorySugar   Category = "sugar"
)

// AllCategories lists every category in report order.
var AllCategories = []Category{CategoryGlucose, CategoryCalorie, CategorySugar}

// ParseCategory returns the matching category for a request string.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryGlucose, CategoryCalorie, CategorySugar:
		return Category(s), true
	}
	return "", false
}

// LogRecord is a single health measurement as stored, immutable once read.
type LogRecord struct {
	Category  Category  `json:"category"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	Tag       string    `json:"tag,omitempty"`   // glucose reading context (Fasting, Post-Meal, ...)
	Label     string    `json:"label,omitempty"` // food item for calorie/sugar entries
}

// ThresholdProfile holds per-patient clinical boundaries used for glucose
// highlighting. A nil profile disables highlighting entirely.
type ThresholdProfile struct {
	Low          float64 `json:"low"`
	HighFasting  float64 `json:"highFasting"`
	HighPostMeal float64 `json:"highPostMeal"`
	VeryHigh     float64 `json:"veryHigh"`
}

// Patient carries the demographics rendered in the report header.
type Patient struct {
	ID           string   `json:"id"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	WeightKg     *float64 `json:"weightKg,omitempty"`
	HeightCm     *float64 `json:"heightCm,omitempty"`
	Gender       string   `json:"gender,omitempty"`
	DiabetesType int      `json:"diabetesType"` // 1 or 2
	UsesInsulin  bool     `json:"usesInsulin"`
}

// DisplayName returns the patient's full name for headers and filenames.
func (p Patient) DisplayName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Report frequencies accepted by the preferences store.
const (
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// ReportPreference records a user's scheduled-report settings.
type ReportPreference struct {
	UserID        string `json:"userId"`
	Frequency     string `json:"frequency"` // weekly, monthly, or empty for none
	ProviderEmail string `json:"providerEmail,omitempty"`
	ProviderName  string `json:"providerName,omitempty"`
}
