package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/guy-corneille/mentalhealthinsight/internal/config"
	"github.com/guy-corneille/mentalhealthinsight/internal/models"
	"github.com/guy-corneille/mentalhealthinsight/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrFacilityNotFound a compared facility does not exist
	ErrFacilityNotFound = repository.ErrFacilityNotFound
	// ErrInvalidComparison comparison needs two distinct facility ids
	ErrInvalidComparison = errors.New("invalid comparison: two distinct facility ids are required")
)

// ComparisonSide one facility of a comparison
type ComparisonSide struct {
	ID      int64                  `json:"id"`
	Name    string                 `json:"name"`
	Metrics models.FacilityMetrics `json:"metrics"`
}

// ComparisonDetails detailed_results payload
type ComparisonDetails struct {
	FacilityA ComparisonSide `json:"facility_a"`
	FacilityB ComparisonSide `json:"facility_b"`
}

// BenchmarkCalculator per-facility benchmark metrics and pairwise comparisons
type BenchmarkCalculator struct {
	facilities  FacilityRepositoryInterface
	evaluations EvaluationRepositoryInterface
	benchmarks  BenchmarkRepositoryInterface
	auditDays   int
	recentDays  int
	newID       func() string
	logger      *zap.Logger
}

// NewBenchmarkCalculator creates a benchmark calculator
func NewBenchmarkCalculator(
	cfg *config.Config,
	facilities FacilityRepositoryInterface,
	evaluations EvaluationRepositoryInterface,
	benchmarks BenchmarkRepositoryInterface,
	logger *zap.Logger,
) *BenchmarkCalculator {
	return &BenchmarkCalculator{
		facilities:  facilities,
		evaluations: evaluations,
		benchmarks:  benchmarks,
		auditDays:   cfg.Metrics.AuditWindowDays,
		recentDays:  cfg.Metrics.RecentWindowDays,
		newID:       uuid.NewString,
		logger:      logger,
	}
}

// FacilityMetrics audit, patient coverage and recent assessment figures of one facility at `at`
func (b *BenchmarkCalculator) FacilityMetrics(ctx context.Context, facilityID int64, at time.Time) (*models.FacilityMetrics, error) {
	audits, err := b.evaluations.GetAuditScoreSummary(ctx, facilityID, at.Add(-days(b.auditDays)))
	if err != nil {
		return nil, fmt.Errorf("failed to get audit scores: %w", err)
	}

	total, assessed, err := b.facilities.CountPatientCoverage(ctx, facilityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient coverage: %w", err)
	}

	recent, err := b.evaluations.GetRecentAssessmentSummary(ctx, facilityID, at.Add(-days(b.recentDays)))
	if err != nil {
		return nil, fmt.Errorf("failed to get recent assessments: %w", err)
	}

	var coverage float64
	if total > 0 {
		coverage = round(float64(assessed)/float64(total)*100, 1)
	}

	return &models.FacilityMetrics{
		AuditScores: models.AuditScores{
			Average: audits.Average,
			Count:   audits.Count,
			Period:  fmt.Sprintf("%d days", b.auditDays),
		},
		PatientCoverage: models.PatientCoverage{
			TotalPatients:      total,
			AssessedPatients:   assessed,
			CoveragePercentage: coverage,
		},
		RecentAssessments: models.RecentAssessments{
			Count:        recent.Count,
			AverageScore: recent.Average,
			Period:       fmt.Sprintf("%d days", b.recentDays),
		},
	}, nil
}

// Compare computes both facilities' metrics and stores the comparison.
// Overall scores are the 90-day audit averages.
func (b *BenchmarkCalculator) Compare(ctx context.Context, facilityA, facilityB int64, at time.Time) (*models.BenchmarkComparison, error) {
	if facilityA <= 0 || facilityB <= 0 || facilityA == facilityB {
		return nil, ErrInvalidComparison
	}

	found, err := b.facilities.GetFacilitiesByIDs(ctx, []int64{facilityA, facilityB})
	if err != nil {
		return nil, fmt.Errorf("failed to load facilities: %w", err)
	}

	details := ComparisonDetails{}
	for _, side := range []struct {
		id  int64
		out *ComparisonSide
	}{
		{facilityA, &details.FacilityA},
		{facilityB, &details.FacilityB},
	} {
		f, ok := found[side.id]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrFacilityNotFound, side.id)
		}
		m, err := b.FacilityMetrics(ctx, side.id, at)
		if err != nil {
			return nil, fmt.Errorf("facility %d: %w", side.id, err)
		}
		*side.out = ComparisonSide{ID: f.ID, Name: f.Name, Metrics: *m}
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal comparison details: %w", err)
	}

	comparison := &models.BenchmarkComparison{
		ID:              b.newID(),
		FacilityAID:     facilityA,
		FacilityBID:     facilityB,
		ComparisonDate:  at,
		OverallScoreA:   details.FacilityA.Metrics.AuditScores.Average,
		OverallScoreB:   details.FacilityB.Metrics.AuditScores.Average,
		DetailedResults: detailsJSON,
	}

	if err := b.benchmarks.CreateComparison(ctx, comparison); err != nil {
		return nil, fmt.Errorf("failed to store comparison: %w", err)
	}

	b.logger.Info("Stored benchmark comparison",
		zap.String("comparison_id", comparison.ID),
		zap.Int64("facility_a", facilityA),
		zap.Int64("facility_b", facilityB),
		zap.Float64("overall_score_a", comparison.OverallScoreA),
		zap.Float64("overall_score_b", comparison.OverallScoreB),
	)

	return comparison, nil
}

// AuditCoverage recent audit activity across active facilities
func (b *BenchmarkCalculator) AuditCoverage(ctx context.Context, now time.Time) (models.AuditCoverage, error) {
	c, err := b.facilities.GetAuditCoverage(ctx, now.Add(-days(b.auditDays)))
	if err != nil {
		return c, fmt.Errorf("failed to get audit coverage: %w", err)
	}

	if c.FacilitiesWithAudits < c.ActiveFacilities {
		b.logger.Warn("Active facilities without recent audits",
			zap.Int("active_facilities", c.ActiveFacilities),
			zap.Int("facilities_with_audits", c.FacilitiesWithAudits),
		)
	}

	return c, nil
}
