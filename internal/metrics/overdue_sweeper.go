package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/guy-corneille/mentalhealthinsight/internal/config"

	"go.uber.org/zap"
)

// SweepResult rows moved from scheduled to missed
type SweepResult struct {
	AuditsMissed      int64 `json:"audits_missed"`
	AssessmentsMissed int64 `json:"assessments_missed"`
}

// OverdueSweeper marks scheduled audits and assessments whose date has passed as missed
type OverdueSweeper struct {
	repo   EvaluationRepositoryInterface
	reason string
	logger *zap.Logger
}

// NewOverdueSweeper creates an overdue sweeper
func NewOverdueSweeper(cfg *config.Config, repo EvaluationRepositoryInterface, logger *zap.Logger) *OverdueSweeper {
	reason := cfg.Metrics.MissedReason
	if reason == "" {
		reason = config.DefaultMissedReason
	}
	return &OverdueSweeper{
		repo:   repo,
		reason: reason,
		logger: logger,
	}
}

// Sweep audits first, then assessments. Items due exactly at now are left alone.
// Re-running with the same now changes nothing.
func (s *OverdueSweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	audits, err := s.repo.MarkOverdueAuditsMissed(ctx, now, s.reason)
	if err != nil {
		return result, fmt.Errorf("failed to sweep audits: %w", err)
	}
	result.AuditsMissed = audits

	assessments, err := s.repo.MarkOverdueAssessmentsMissed(ctx, now, s.reason)
	if err != nil {
		return result, fmt.Errorf("failed to sweep assessments: %w", err)
	}
	result.AssessmentsMissed = assessments

	s.logger.Info("Marked overdue items as missed",
		zap.Int64("audits_missed", result.AuditsMissed),
		zap.Int64("assessments_missed", result.AssessmentsMissed),
	)

	return result, nil
}
