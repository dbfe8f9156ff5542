package models

import "time"

// Job run statuses
const (
	JobRunRunning   = "running"
	JobRunCompleted = "completed"
	JobRunFailed    = "failed"
)

// JobRun ledger row of one batch execution (metric_job_runs)
type JobRun struct {
	RunID        string     `json:"run_id"`
	JobName      string     `json:"job_name"`
	Trigger      string     `json:"trigger"`
	Status       string     `json:"status"`
	Processed    int        `json:"processed"`
	Errors       int        `json:"errors"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}
