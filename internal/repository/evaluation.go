package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/guy-corneille/mentalhealthinsight/internal/models"

	"go.uber.org/zap"
)

// TimeWindow range over a timestamp column.
// From nil means unbounded; IncludeTo selects <= instead of < for the upper bound.
type TimeWindow struct {
	From      *time.Time
	To        time.Time
	IncludeTo bool
}

// ClosedWindow [from, to]
func ClosedWindow(from, to time.Time) TimeWindow {
	return TimeWindow{From: &from, To: to, IncludeTo: true}
}

// HalfOpenWindow [from, to)
func HalfOpenWindow(from, to time.Time) TimeWindow {
	return TimeWindow{From: &from, To: to}
}

// Before (-inf, to)
func Before(to time.Time) TimeWindow {
	return TimeWindow{To: to}
}

// conditions renders the window for column, numbering placeholders from next
func (w TimeWindow) conditions(column string, next int) ([]string, []interface{}) {
	var conds []string
	var args []interface{}
	if w.From != nil {
		conds = append(conds, fmt.Sprintf("%s >= $%d", column, next))
		args = append(args, *w.From)
		next++
	}
	op := "<"
	if w.IncludeTo {
		op = "<="
	}
	conds = append(conds, fmt.Sprintf("%s %s $%d", column, op, next))
	args = append(args, w.To)
	return conds, args
}

// EvaluationRepository audits and assessments
type EvaluationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEvaluationRepository creates a new audit/assessment repository
func NewEvaluationRepository(db *sql.DB, logger *zap.Logger) *EvaluationRepository {
	return &EvaluationRepository{
		db:     db,
		logger: logger,
	}
}

// MarkOverdueAuditsMissed flips scheduled audits with scheduled_date < now to missed.
// Returns the number of rows changed; rows already missed never match.
func (r *EvaluationRepository) MarkOverdueAuditsMissed(ctx context.Context, now time.Time, reason string) (int64, error) {
	query := `
		UPDATE audits
		SET status = $1,
		    missed_reason = $2,
		    updated_at = $3
		WHERE status = $4
		  AND scheduled_date < $3
	`
	return r.markMissed(ctx, "audits", query, now, reason)
}

// MarkOverdueAssessmentsMissed flips scheduled assessments with scheduled_date < now to missed
func (r *EvaluationRepository) MarkOverdueAssessmentsMissed(ctx context.Context, now time.Time, reason string) (int64, error) {
	query := `
		UPDATE assessments
		SET status = $1,
		    missed_reason = $2,
		    updated_at = $3
		WHERE status = $4
		  AND scheduled_date < $3
	`
	return r.markMissed(ctx, "assessments", query, now, reason)
}

func (r *EvaluationRepository) markMissed(ctx context.Context, table, query string, now time.Time, reason string) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, models.StatusMissed, reason, now, models.StatusScheduled)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue %s missed: %w", table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected %s: %w", table, err)
	}

	return affected, nil
}

// CountAssessments status counts of a facility's assessments whose scheduled_date falls in w
func (r *EvaluationRepository) CountAssessments(ctx context.Context, facilityID int64, w TimeWindow) (models.WindowCounts, error) {
	conds, windowArgs := w.conditions("scheduled_date", 6)
	query := `
		SELECT
			COUNT(*)::int,
			COUNT(*) FILTER (WHERE status = $2)::int,
			COUNT(*) FILTER (WHERE status = $3)::int,
			COUNT(*) FILTER (WHERE status = $4)::int,
			COALESCE(AVG(score) FILTER (WHERE status = $5), 0)::float8
		FROM assessments
		WHERE facility_id = $1
		  AND ` + strings.Join(conds, " AND ")

	args := append([]interface{}{
		facilityID,
		models.StatusCompleted,
		models.StatusMissed,
		models.StatusScheduled,
		models.StatusCompleted,
	}, windowArgs...)

	var c models.WindowCounts
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&c.Total,
		&c.Completed,
		&c.Missed,
		&c.Scheduled,
		&c.AvgCompletedScore,
	)
	if err != nil {
		return c, fmt.Errorf("failed to count assessments: %w", err)
	}

	return c, nil
}

// CountAssessmentsByFacility total/completed assessments per facility for w, keyed by facility id.
// Facilities without assessments in w are absent.
func (r *EvaluationRepository) CountAssessmentsByFacility(ctx context.Context, w TimeWindow) (map[int64]models.WindowCounts, error) {
	conds, windowArgs := w.conditions("scheduled_date", 2)
	query := `
		SELECT
			facility_id,
			COUNT(*)::int,
			COUNT(*) FILTER (WHERE status = $1)::int
		FROM assessments
		WHERE ` + strings.Join(conds, " AND ") + `
		GROUP BY facility_id
	`

	args := append([]interface{}{models.StatusCompleted}, windowArgs...)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count assessments by facility: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]models.WindowCounts)
	for rows.Next() {
		var facilityID int64
		var c models.WindowCounts
		if err := rows.Scan(&facilityID, &c.Total, &c.Completed); err != nil {
			return nil, fmt.Errorf("failed to scan assessment counts: %w", err)
		}
		counts[facilityID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assessment counts: %w", err)
	}

	return counts, nil
}

// GetAuditScoreSummary completed audits of a facility with audit_date >= since
func (r *EvaluationRepository) GetAuditScoreSummary(ctx context.Context, facilityID int64, since time.Time) (models.ScoreSummary, error) {
	query := `
		SELECT COUNT(*)::int, COALESCE(AVG(overall_score), 0)::float8
		FROM audits
		WHERE facility_id = $1
		  AND status = $2
		  AND audit_date >= $3
	`

	var s models.ScoreSummary
	if err := r.db.QueryRowContext(ctx, query, facilityID, models.StatusCompleted, since).Scan(&s.Count, &s.Average); err != nil {
		return s, fmt.Errorf("failed to query audit scores: %w", err)
	}

	return s, nil
}

// ListAuditScoresSince completed audit summaries with audit_date >= since, keyed by facility id.
// Facilities without completed audits are absent.
func (r *EvaluationRepository) ListAuditScoresSince(ctx context.Context, since time.Time) (map[int64]models.ScoreSummary, error) {
	query := `
		SELECT facility_id, COUNT(*)::int, AVG(overall_score)::float8
		FROM audits
		WHERE status = $1
		  AND audit_date >= $2
		GROUP BY facility_id
	`

	rows, err := r.db.QueryContext(ctx, query, models.StatusCompleted, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[int64]models.ScoreSummary)
	for rows.Next() {
		var facilityID int64
		var s models.ScoreSummary
		var avg sql.NullFloat64
		if err := rows.Scan(&facilityID, &s.Count, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan audit score: %w", err)
		}
		if avg.Valid {
			s.Average = avg.Float64
		}
		scores[facilityID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit scores: %w", err)
	}

	return scores, nil
}

// GetRecentAssessmentSummary completed assessments of a facility with assessment_date >= since
func (r *EvaluationRepository) GetRecentAssessmentSummary(ctx context.Context, facilityID int64, since time.Time) (models.ScoreSummary, error) {
	query := `
		SELECT COUNT(*)::int, COALESCE(AVG(score), 0)::float8
		FROM assessments
		WHERE facility_id = $1
		  AND status = $2
		  AND assessment_date >= $3
	`

	var s models.ScoreSummary
	if err := r.db.QueryRowContext(ctx, query, facilityID, models.StatusCompleted, since).Scan(&s.Count, &s.Average); err != nil {
		return s, fmt.Errorf("failed to query recent assessments: %w", err)
	}

	return s, nil
}
