package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/guy-corneille/mentalhealthinsight/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetPreviousRank_Found(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewRankingRepository(db, zap.NewNop())

	now := time.Date(2024, 5, 10, 2, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`AND ranking_date < \$2\s+ORDER BY ranking_date DESC\s+LIMIT 1`).
		WithArgs(int64(4), now).
		WillReturnRows(sqlmock.NewRows([]string{"overall_rank"}).AddRow(3))

	rank, err := repo.GetPreviousRank(context.Background(), 4, now)

	require.NoError(t, err)
	require.NotNil(t, rank)
	assert.Equal(t, 3, *rank)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPreviousRank_NeverRanked(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewRankingRepository(db, zap.NewNop())

	now := time.Date(2024, 5, 10, 2, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM facility_rankings`).
		WithArgs(int64(4), now).
		WillReturnRows(sqlmock.NewRows([]string{"overall_rank"}))

	rank, err := repo.GetPreviousRank(context.Background(), 4, now)

	require.NoError(t, err)
	assert.Nil(t, rank)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRanking_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewRankingRepository(db, zap.NewNop())

	now := time.Date(2024, 5, 10, 2, 30, 0, 0, time.UTC)
	prev := 2
	r := &models.FacilityRanking{
		FacilityID:      4,
		RankingDate:     now,
		OverallRank:     1,
		TotalFacilities: 3,
		AuditScore:      91.5,
		PreviousRank:    &prev,
	}

	mock.ExpectQuery(`INSERT INTO facility_rankings`).
		WithArgs(int64(4), now, 1, 3, 91.5, 2, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(55)))

	id, err := repo.CreateRanking(context.Background(), r)

	require.NoError(t, err)
	assert.Equal(t, int64(55), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRanking_NoPreviousRank(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewRankingRepository(db, zap.NewNop())

	now := time.Date(2024, 5, 10, 2, 30, 0, 0, time.UTC)
	r := &models.FacilityRanking{
		FacilityID:      4,
		RankingDate:     now,
		OverallRank:     2,
		TotalFacilities: 2,
	}

	mock.ExpectQuery(`INSERT INTO facility_rankings`).
		WithArgs(int64(4), now, 2, 2, 0.0, nil, now).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))

	_, err := repo.CreateRanking(context.Background(), r)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create facility ranking")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCurrentRankings_LatestDate(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewRankingRepository(db, zap.NewNop())

	date := time.Date(2024, 5, 10, 2, 30, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "facility_id", "name", "ranking_date", "overall_rank", "total_facilities", "audit_score", "previous_rank"}).
		AddRow(int64(1), int64(2), "Butaro", date, 1, 2, 90.0, 2).
		AddRow(int64(2), int64(1), "Ndera", date, 2, 2, 70.0, nil)

	mock.ExpectQuery(`SELECT MAX\(ranking_date\) FROM facility_rankings`).
		WillReturnRows(rows)

	rankings, err := repo.GetCurrentRankings(context.Background())

	require.NoError(t, err)
	require.Len(t, rankings, 2)
	assert.Equal(t, "Butaro", rankings[0].FacilityName)
	require.NotNil(t, rankings[0].PreviousRank)
	assert.Equal(t, 2, *rankings[0].PreviousRank)
	assert.Nil(t, rankings[1].PreviousRank)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveCriteria_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewBenchmarkRepository(db, zap.NewNop())

	rows := sqlmock.NewRows([]string{"id", "name", "category", "weight", "is_active"}).
		AddRow(int64(1), "Audit quality", "audit", 0.7, true).
		AddRow(int64(2), "Assessment follow-up", "assessment", 0.3, true)

	mock.ExpectQuery(`FROM benchmark_criteria\s+WHERE is_active = TRUE`).
		WillReturnRows(rows)

	criteria, err := repo.ListActiveCriteria(context.Background())

	require.NoError(t, err)
	require.Len(t, criteria, 2)
	assert.Equal(t, models.CriteriaCategoryAudit, criteria[0].Category)
	assert.Equal(t, 0.3, criteria[1].Weight)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateComparison_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewBenchmarkRepository(db, zap.NewNop())

	at := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	details := json.RawMessage(`{"facility_a":{}}`)
	c := &models.BenchmarkComparison{
		ID:              "6f1c1a0e-7d8b-4c84-9f1e-2a7a0a1b2c3d",
		FacilityAID:     1,
		FacilityBID:     2,
		ComparisonDate:  at,
		OverallScoreA:   80,
		OverallScoreB:   65.5,
		DetailedResults: details,
	}

	mock.ExpectExec(`INSERT INTO benchmark_comparisons`).
		WithArgs(c.ID, int64(1), int64(2), at, 80.0, 65.5, []byte(details)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateComparison(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRun_StartAndFinish(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewJobRunRepository(db, zap.NewNop())

	started := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	finished := started.Add(2 * time.Second)
	run := &models.JobRun{
		RunID:     "run-1",
		JobName:   "update_metrics",
		Trigger:   "cron",
		StartedAt: started,
	}

	mock.ExpectExec(`INSERT INTO metric_job_runs`).
		WithArgs("run-1", "update_metrics", "cron", "running", started).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE metric_job_runs`).
		WithArgs("run-1", "completed", 5, 1, finished, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.StartRun(context.Background(), run))
	require.NoError(t, repo.FinishRun(context.Background(), "run-1", models.JobRunCompleted, 5, 1, finished, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRun_FinishUnknownRun(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewJobRunRepository(db, zap.NewNop())

	finished := time.Date(2024, 5, 10, 9, 0, 2, 0, time.UTC)
	msg := "boom"

	mock.ExpectExec(`UPDATE metric_job_runs`).
		WithArgs("missing", "failed", 0, 0, finished, msg).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.FinishRun(context.Background(), "missing", models.JobRunFailed, 0, 0, finished, &msg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "job run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
