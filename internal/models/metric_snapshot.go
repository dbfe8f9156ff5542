package models

import (
	"encoding/json"
	"time"
)

// Snapshot metric types
const (
	MetricTypePatientLoad     = "patient_load"
	MetricTypeHistoricalStats = "historical_stats"
)

// MetricSnapshot immutable point-in-time metrics row (metric_snapshots).
// Rows are only ever inserted.
type MetricSnapshot struct {
	ID         int64     `json:"id"`
	FacilityID int64     `json:"facility_id"`
	MetricType string    `json:"metric_type"`
	Timestamp  time.Time `json:"timestamp"`

	// Patient load
	ActivePatients      int     `json:"active_patients"`
	DischargedPatients  int     `json:"discharged_patients"`
	InactivePatients    int     `json:"inactive_patients"`
	CapacityUtilization float64 `json:"capacity_utilization"`

	// Same-day assessment window
	TotalAssessments     int     `json:"total_assessments"`
	CompletedAssessments int     `json:"completed_assessments"`
	CompletionRate       float64 `json:"completion_rate"`

	// Trailing 90-day assessment window
	NinetyDayTotalAssessments     int     `json:"ninety_day_total_assessments"`
	NinetyDayCompletedAssessments int     `json:"ninety_day_completed_assessments"`
	NinetyDayCompletionRate       float64 `json:"ninety_day_completion_rate"`

	// Only set for historical_stats rows
	HistoricalData json.RawMessage `json:"historical_data,omitempty"`
}

// PeriodStats statistics of one scheduled_date window
type PeriodStats struct {
	Total               int     `json:"total"`
	Completed           int     `json:"completed"`
	Missed              int     `json:"missed"`
	Scheduled           int     `json:"scheduled"`
	CompletionRate      float64 `json:"completion_rate"`
	AvgScore            float64 `json:"avg_score"`
	CapacityUtilization float64 `json:"capacity_utilization"`
}

// HistoricalPeriod one entry of the historical series, labelled YYYY-MM by its start
type HistoricalPeriod struct {
	Period string      `json:"period"`
	Stats  PeriodStats `json:"stats"`
}

// HistoricalData payload of historical_stats snapshots
type HistoricalData struct {
	AllTime PeriodStats        `json:"all_time"`
	Monthly []HistoricalPeriod `json:"monthly"`
}
