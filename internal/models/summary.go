package models

import "time"

// NormalizedSummary is the export representation of one processed activity.
// Field names are consumed by downstream tools and must not change.
type NormalizedSummary struct {
	ActivityType string          `json:"activity_type"`
	ActivityName string          `json:"activity_name"`
	Date         string          `json:"date"`
	Summary      ActivitySummary `json:"summary"`
	Splits       []SplitSummary  `json:"splits"`
}

// ActivitySummary holds the whole-activity figures.
type ActivitySummary struct {
	DistanceKm       float64 `json:"distance_km"`
	MovingTime       string  `json:"moving_time"`
	AveragePacePerKm string  `json:"average_pace_per_km"`
	Calories         int     `json:"calories"`
}

// SplitSummary holds the figures for one split.
type SplitSummary struct {
	SplitIndex     int     `json:"split_index"`
	PacePerKm      string  `json:"pace_per_km"`
	DistanceKm     float64 `json:"distance_km"`
	Time           string  `json:"time"`
	AvgHR          *int    `json:"avg_hr"`
	ElevationDiffM float64 `json:"elevation_diff_m"`
}

// ExportPayload is the document written once per run.
type ExportPayload struct {
	PeriodLabel     string              `json:"period_label"`
	GeneratedAt     time.Time           `json:"generated_at"`
	TotalActivities int                 `json:"total_activities"`
	Activities      []NormalizedSummary `json:"activities"`
}
