package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTimeWindow_Conditions(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	conds, args := ClosedWindow(from, to).conditions("scheduled_date", 3)
	assert.Equal(t, []string{"scheduled_date >= $3", "scheduled_date <= $4"}, conds)
	assert.Equal(t, []interface{}{from, to}, args)

	conds, args = HalfOpenWindow(from, to).conditions("scheduled_date", 2)
	assert.Equal(t, []string{"scheduled_date >= $2", "scheduled_date < $3"}, conds)
	assert.Len(t, args, 2)

	conds, args = Before(to).conditions("scheduled_date", 6)
	assert.Equal(t, []string{"scheduled_date < $6"}, conds)
	assert.Equal(t, []interface{}{to}, args)
}

func TestMarkOverdueAuditsMissed_ReturnsAffected(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewEvaluationRepository(db, zap.NewNop())

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	reason := "Automatically marked as missed - scheduled date passed"

	mock.ExpectExec(`UPDATE audits\s+SET status = \$1.*WHERE status = \$4\s+AND scheduled_date < \$3\s*$`).
		WithArgs("missed", reason, now, "scheduled").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.MarkOverdueAuditsMissed(context.Background(), now, reason)

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOverdueAssessmentsMissed_Error(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewEvaluationRepository(db, zap.NewNop())

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE assessments\s+SET status = \$1.*WHERE status = \$4\s+AND scheduled_date < \$3\s*$`).
		WithArgs("missed", "r", now, "scheduled").
		WillReturnError(errors.New("deadlock detected"))

	n, err := repo.MarkOverdueAssessmentsMissed(context.Background(), now, "r")

	require.Error(t, err)
	assert.Equal(t, int64(0), n)
	assert.Contains(t, err.Error(), "failed to mark overdue assessments missed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOverdueAssessmentsMissed_ReturnsAffected(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewEvaluationRepository(db, zap.NewNop())

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE assessments\s+SET status = \$1.*WHERE status = \$4\s+AND scheduled_date < \$3\s*$`).
		WithArgs("missed", "r", now, "scheduled").
		WillReturnResult(sqlmock.NewResult(0, 4))
	// second sweep at the same instant: already-missed rows no longer match
	mock.ExpectExec(`UPDATE assessments\s+SET status = \$1.*WHERE status = \$4\s+AND scheduled_date < \$3\s*$`).
		WithArgs("missed", "r", now, "scheduled").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.MarkOverdueAssessmentsMissed(context.Background(), now, "r")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = repo.MarkOverdueAssessmentsMissed(context.Background(), now, "r")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountAssessments_ClosedWindow(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewEvaluationRepository(db, zap.NewNop())

	from := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	rows := sqlmock.NewRows([]string{"total", "completed", "missed", "scheduled", "avg"}).
		AddRow(5, 3, 1, 1, 72.5)

	mock.ExpectQuery(`FROM assessments\s+WHERE facility_id = \$1\s+AND scheduled_date >= \$6 AND scheduled_date <= \$7`).
		WithArgs(int64(1), "completed", "missed", "scheduled", "completed", from, to).
		WillReturnRows(rows)

	c, err := repo.CountAssessments(context.Background(), 1, ClosedWindow(from, to))

	require.NoError(t, err)
	assert.Equal(t, 5, c.Total)
	assert.Equal(t, 3, c.Completed)
	assert.Equal(t, 1, c.Missed)
	assert.Equal(t, 1, c.Scheduled)
	assert.Equal(t, 72.5, c.AvgCompletedScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountAssessmentsByFacility_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewEvaluationRepository(db, zap.NewNop())

	from := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"facility_id", "total", "completed"}).
		AddRow(int64(1), 10, 8).
		AddRow(int64(2), 4, 0)

	mock.ExpectQuery(`GROUP BY facility_id`).
		WithArgs("completed", from, to).
		WillReturnRows(rows)

	counts, err := repo.CountAssessmentsByFacility(context.Background(), ClosedWindow(from, to))

	require.NoError(t, err)
	assert.Len(t, counts, 2)
	assert.Equal(t, 8, counts[1].Completed)
	assert.Equal(t, 4, counts[2].Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAuditScoresSince_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewEvaluationRepository(db, zap.NewNop())

	since := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"facility_id", "count", "avg"}).
		AddRow(int64(1), 2, 85.0).
		AddRow(int64(3), 1, nil)

	mock.ExpectQuery(`FROM audits\s+WHERE status = \$1\s+AND audit_date >= \$2`).
		WithArgs("completed", since).
		WillReturnRows(rows)

	scores, err := repo.ListAuditScoresSince(context.Background(), since)

	require.NoError(t, err)
	assert.Equal(t, 85.0, scores[1].Average)
	assert.Equal(t, 2, scores[1].Count)
	assert.Equal(t, 0.0, scores[3].Average)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAuditScoreSummary_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewEvaluationRepository(db, zap.NewNop())

	since := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM audits`).
		WithArgs(int64(7), "completed", since).
		WillReturnRows(sqlmock.NewRows([]string{"count", "avg"}).AddRow(4, 66.25))

	s, err := repo.GetAuditScoreSummary(context.Background(), 7, since)

	require.NoError(t, err)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 66.25, s.Average)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentAssessmentSummary_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewEvaluationRepository(db, zap.NewNop())

	since := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`AND assessment_date >= \$3`).
		WithArgs(int64(7), "completed", since).
		WillReturnRows(sqlmock.NewRows([]string{"count", "avg"}).AddRow(0, 0.0))

	s, err := repo.GetRecentAssessmentSummary(context.Background(), 7, since)

	require.NoError(t, err)
	assert.Equal(t, 0, s.Count)
	assert.Equal(t, 0.0, s.Average)
	assert.NoError(t, mock.ExpectationsWereMet())
}
