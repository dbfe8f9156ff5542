package metrics

import (
	"context"
	"time"

	"github.com/guy-corneille/mentalhealthinsight/internal/models"
	"github.com/guy-corneille/mentalhealthinsight/internal/repository"
)

// FacilityRepositoryInterface defines facility repository interface (for test mocking)
type FacilityRepositoryInterface interface {
	ListActiveFacilities(ctx context.Context) ([]models.Facility, error)
	ListFacilities(ctx context.Context) ([]models.Facility, error)
	GetFacility(ctx context.Context, facilityID int64) (*models.Facility, error)
	GetFacilitiesByIDs(ctx context.Context, ids []int64) (map[int64]models.Facility, error)
	CountPatientsByStatus(ctx context.Context, facilityID int64) (models.PatientCounts, error)
	CountPatientCoverage(ctx context.Context, facilityID int64) (int, int, error)
	GetAuditCoverage(ctx context.Context, since time.Time) (models.AuditCoverage, error)
}

// EvaluationRepositoryInterface defines audit/assessment repository interface (for test mocking)
type EvaluationRepositoryInterface interface {
	MarkOverdueAuditsMissed(ctx context.Context, now time.Time, reason string) (int64, error)
	MarkOverdueAssessmentsMissed(ctx context.Context, now time.Time, reason string) (int64, error)
	CountAssessments(ctx context.Context, facilityID int64, w repository.TimeWindow) (models.WindowCounts, error)
	CountAssessmentsByFacility(ctx context.Context, w repository.TimeWindow) (map[int64]models.WindowCounts, error)
	GetAuditScoreSummary(ctx context.Context, facilityID int64, since time.Time) (models.ScoreSummary, error)
	ListAuditScoresSince(ctx context.Context, since time.Time) (map[int64]models.ScoreSummary, error)
	GetRecentAssessmentSummary(ctx context.Context, facilityID int64, since time.Time) (models.ScoreSummary, error)
}

// SnapshotRepositoryInterface defines snapshot repository interface (for test mocking)
type SnapshotRepositoryInterface interface {
	CreateSnapshot(ctx context.Context, s *models.MetricSnapshot) (int64, error)
	GetLatestSnapshot(ctx context.Context, facilityID int64, metricType string) (*models.MetricSnapshot, error)
	ListLatestSnapshots(ctx context.Context, metricType string) ([]models.MetricSnapshot, error)
	ListSnapshots(ctx context.Context, facilityID int64, from, to *time.Time) ([]models.MetricSnapshot, error)
}

// RankingRepositoryInterface defines ranking repository interface (for test mocking)
type RankingRepositoryInterface interface {
	GetPreviousRank(ctx context.Context, facilityID int64, before time.Time) (*int, error)
	CreateRanking(ctx context.Context, r *models.FacilityRanking) (int64, error)
	GetCurrentRankings(ctx context.Context) ([]models.FacilityRanking, error)
}

// BenchmarkRepositoryInterface defines benchmark repository interface (for test mocking)
type BenchmarkRepositoryInterface interface {
	ListActiveCriteria(ctx context.Context) ([]models.BenchmarkCriteria, error)
	CreateComparison(ctx context.Context, c *models.BenchmarkComparison) error
}
