package jobs

import (
	"errors"
	"fmt"
)

// Job names shared by the scheduler, the trigger stream and the CLI
const (
	CheckMissed       = "check_missed"
	UpdateMetrics     = "update_metrics"
	CalculateRankings = "calculate_rankings"
	HistoricalStats   = "historical_stats"
	Compare           = "compare"
	Coverage          = "coverage"
)

// Trigger sources recorded in the run ledger
const (
	TriggerCron    = "cron"
	TriggerStartup = "startup"
	TriggerEvent   = "event"
	TriggerCLI     = "cli"
)

// ErrUnknownJob job name is not one of the known jobs
var ErrUnknownJob = errors.New("unknown job")

var known = map[string]bool{
	CheckMissed:       true,
	UpdateMetrics:     true,
	CalculateRankings: true,
	HistoricalStats:   true,
	Compare:           true,
	Coverage:          true,
}

// Request one job invocation; facility ids are only used by compare
type Request struct {
	Job       string `json:"job"`
	FacilityA int64  `json:"facility_a,omitempty"`
	FacilityB int64  `json:"facility_b,omitempty"`
}

// Validate checks the job name
func (r Request) Validate() error {
	if !known[r.Job] {
		return fmt.Errorf("%w: %q", ErrUnknownJob, r.Job)
	}
	return nil
}

// Scheduled jobs in the order the batch runner executes them
func Scheduled() []string {
	return []string{CheckMissed, UpdateMetrics, CalculateRankings, HistoricalStats}
}
