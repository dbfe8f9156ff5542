package service

import (
	"context"
	"fmt"
	"time"

	"github.com/guy-corneille/mentalhealthinsight/internal/jobs"
	"github.com/guy-corneille/mentalhealthinsight/internal/metrics"
	"github.com/guy-corneille/mentalhealthinsight/internal/models"
	"github.com/guy-corneille/mentalhealthinsight/internal/notifier"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sweeper marks overdue items missed
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (metrics.SweepResult, error)
}

// BatchJob per-facility batch (snapshots, rankings, historical stats)
type BatchJob interface {
	Run(ctx context.Context, now time.Time) (metrics.BatchResult, error)
}

// Benchmarker pairwise comparison and audit coverage
type Benchmarker interface {
	Compare(ctx context.Context, facilityA, facilityB int64, at time.Time) (*models.BenchmarkComparison, error)
	AuditCoverage(ctx context.Context, now time.Time) (models.AuditCoverage, error)
}

// RunLedger records job runs
type RunLedger interface {
	StartRun(ctx context.Context, run *models.JobRun) error
	FinishRun(ctx context.Context, runID, status string, processed, errorCount int, finishedAt time.Time, errorMessage *string) error
}

// Components the runner dispatches to
type Components struct {
	Sweeper    Sweeper
	Snapshots  BatchJob
	Rankings   BatchJob
	Historical BatchJob
	Benchmarks Benchmarker
	Ledger     RunLedger
	Notifier   notifier.Notifier
}

// RunOutcome result of one job run
type RunOutcome struct {
	RunID     string      `json:"run_id"`
	Job       string      `json:"job"`
	Processed int         `json:"processed"`
	Errors    int         `json:"errors"`
	Result    interface{} `json:"result"`
}

// JobRunner executes named jobs, recording each run in the ledger and notifying its outcome
type JobRunner struct {
	c      Components
	now    func() time.Time
	logger *zap.Logger
}

// NewJobRunner creates a job runner; a nil Notifier disables notifications
func NewJobRunner(c Components, logger *zap.Logger) *JobRunner {
	if c.Notifier == nil {
		c.Notifier = notifier.NoopNotifier{}
	}
	return &JobRunner{
		c:      c,
		now:    time.Now,
		logger: logger,
	}
}

// RunJob implements consumer.JobRunner
func (r *JobRunner) RunJob(ctx context.Context, req jobs.Request, trigger string) error {
	_, err := r.Execute(ctx, req, trigger)
	return err
}

// Execute runs one job. Ledger and notification failures are logged, never returned.
func (r *JobRunner) Execute(ctx context.Context, req jobs.Request, trigger string) (*RunOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	run := &models.JobRun{
		RunID:     uuid.NewString(),
		JobName:   req.Job,
		Trigger:   trigger,
		Status:    models.JobRunRunning,
		StartedAt: r.now(),
	}
	log := r.logger.With(
		zap.String("run_id", run.RunID),
		zap.String("job", req.Job),
		zap.String("trigger", trigger),
	)

	if err := r.c.Ledger.StartRun(ctx, run); err != nil {
		log.Warn("Failed to record job run start", zap.Error(err))
	}

	log.Info("Job run started")

	outcome := &RunOutcome{RunID: run.RunID, Job: req.Job}
	err := r.dispatch(ctx, req, run.StartedAt, outcome)

	finished := r.now()
	status := models.JobRunCompleted
	var errMsg *string
	if err != nil {
		status = models.JobRunFailed
		msg := err.Error()
		errMsg = &msg
	}

	if lerr := r.c.Ledger.FinishRun(ctx, run.RunID, status, outcome.Processed, outcome.Errors, finished, errMsg); lerr != nil {
		log.Warn("Failed to record job run finish", zap.Error(lerr))
	}

	summary := notifier.RunSummary{
		RunID:      run.RunID,
		Job:        req.Job,
		Trigger:    trigger,
		Status:     status,
		Processed:  outcome.Processed,
		Errors:     outcome.Errors,
		StartedAt:  run.StartedAt,
		FinishedAt: finished,
		Result:     outcome.Result,
	}
	if errMsg != nil {
		summary.Error = *errMsg
	}
	if nerr := r.c.Notifier.Notify(ctx, summary); nerr != nil {
		log.Warn("Failed to publish run summary", zap.Error(nerr))
	}

	if err != nil {
		log.Error("Job run failed",
			zap.Duration("duration", finished.Sub(run.StartedAt)),
			zap.Error(err),
		)
		return outcome, err
	}

	log.Info("Job run completed",
		zap.Int("processed", outcome.Processed),
		zap.Int("errors", outcome.Errors),
		zap.Duration("duration", finished.Sub(run.StartedAt)),
	)
	return outcome, nil
}

func (r *JobRunner) dispatch(ctx context.Context, req jobs.Request, now time.Time, out *RunOutcome) error {
	switch req.Job {
	case jobs.CheckMissed:
		res, err := r.c.Sweeper.Sweep(ctx, now)
		if err != nil {
			return err
		}
		out.Processed = int(res.AuditsMissed + res.AssessmentsMissed)
		out.Result = res

	case jobs.UpdateMetrics:
		return r.batch(ctx, r.c.Snapshots, now, out)

	case jobs.CalculateRankings:
		return r.batch(ctx, r.c.Rankings, now, out)

	case jobs.HistoricalStats:
		return r.batch(ctx, r.c.Historical, now, out)

	case jobs.Compare:
		c, err := r.c.Benchmarks.Compare(ctx, req.FacilityA, req.FacilityB, now)
		if err != nil {
			return err
		}
		out.Processed = 1
		out.Result = c

	case jobs.Coverage:
		c, err := r.c.Benchmarks.AuditCoverage(ctx, now)
		if err != nil {
			return err
		}
		out.Processed = c.ActiveFacilities
		out.Result = c

	default:
		return fmt.Errorf("%w: %q", jobs.ErrUnknownJob, req.Job)
	}

	return nil
}

func (r *JobRunner) batch(ctx context.Context, job BatchJob, now time.Time, out *RunOutcome) error {
	res, err := job.Run(ctx, now)
	out.Processed = res.Success
	out.Errors = res.Errors
	out.Result = res
	return err
}
