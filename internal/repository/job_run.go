package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/guy-corneille/mentalhealthinsight/internal/models"

	"go.uber.org/zap"
)

// JobRunRepository metric_job_runs ledger
type JobRunRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewJobRunRepository creates a new job run repository
func NewJobRunRepository(db *sql.DB, logger *zap.Logger) *JobRunRepository {
	return &JobRunRepository{
		db:     db,
		logger: logger,
	}
}

// StartRun records a run in status running
func (r *JobRunRepository) StartRun(ctx context.Context, run *models.JobRun) error {
	query := `
		INSERT INTO metric_job_runs (
			run_id,
			job_name,
			trigger,
			status,
			processed,
			errors,
			started_at
		) VALUES ($1, $2, $3, $4, 0, 0, $5)
	`

	_, err := r.db.ExecContext(ctx, query, run.RunID, run.JobName, run.Trigger, models.JobRunRunning, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to record job run start: %w", err)
	}

	return nil
}

// FinishRun stores the final status and counters
func (r *JobRunRepository) FinishRun(ctx context.Context, runID, status string, processed, errorCount int, finishedAt time.Time, errorMessage *string) error {
	query := `
		UPDATE metric_job_runs
		SET status = $2,
		    processed = $3,
		    errors = $4,
		    finished_at = $5,
		    error_message = $6
		WHERE run_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, runID, status, processed, errorCount, finishedAt, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to record job run finish: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job run not found: %s", runID)
	}

	return nil
}
