package models

// Status shared by audits and assessments
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusMissed    = "missed"
)

// WindowCounts assessment counts over a scheduled_date window
type WindowCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Missed    int `json:"missed"`
	Scheduled int `json:"scheduled"`
	// mean score of completed assessments, 0 when none
	AvgCompletedScore float64 `json:"avg_score"`
}

// ScoreSummary count and mean of a score column
type ScoreSummary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}
