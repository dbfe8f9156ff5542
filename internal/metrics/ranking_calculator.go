package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/guy-corneille/mentalhealthinsight/internal/config"
	"github.com/guy-corneille/mentalhealthinsight/internal/models"
	"github.com/guy-corneille/mentalhealthinsight/internal/repository"

	"go.uber.org/zap"
)

// RankingCalculator ranks every facility by its recent audit score
type RankingCalculator struct {
	facilities  FacilityRepositoryInterface
	evaluations EvaluationRepositoryInterface
	rankings    RankingRepositoryInterface
	benchmarks  BenchmarkRepositoryInterface
	cache       *CacheManager // nil disables caching
	mode        string
	auditWindow time.Duration
	rateWindow  time.Duration
	logger      *zap.Logger
}

// NewRankingCalculator creates a ranking calculator; cache may be nil
func NewRankingCalculator(
	cfg *config.Config,
	facilities FacilityRepositoryInterface,
	evaluations EvaluationRepositoryInterface,
	rankings RankingRepositoryInterface,
	benchmarks BenchmarkRepositoryInterface,
	cache *CacheManager,
	logger *zap.Logger,
) *RankingCalculator {
	return &RankingCalculator{
		facilities:  facilities,
		evaluations: evaluations,
		rankings:    rankings,
		benchmarks:  benchmarks,
		cache:       cache,
		mode:        cfg.Metrics.RankingScoreMode,
		auditWindow: days(cfg.Metrics.AuditWindowDays),
		rateWindow:  days(cfg.Metrics.CompletionWindowDays),
		logger:      logger,
	}
}

// Trend of current relative to previous; a lower rank number is better
func Trend(previous *int, current int) string {
	switch {
	case previous == nil:
		return models.TrendNew
	case current < *previous:
		return models.TrendUp
	case current > *previous:
		return models.TrendDown
	default:
		return models.TrendSame
	}
}

// Calculate scores and orders all facilities without persisting anything.
// Ranks are 1..N; equal scores keep ascending facility id order.
func (c *RankingCalculator) Calculate(ctx context.Context, now time.Time) ([]models.FacilityRanking, error) {
	facilities, err := c.facilities.ListFacilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}

	scores, err := c.scores(ctx, now)
	if err != nil {
		return nil, err
	}

	rankings := make([]models.FacilityRanking, 0, len(facilities))
	for _, f := range facilities {
		rankings = append(rankings, models.FacilityRanking{
			FacilityID:   f.ID,
			FacilityName: f.Name,
			RankingDate:  now,
			AuditScore:   scores(f.ID),
		})
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		if rankings[i].AuditScore != rankings[j].AuditScore {
			return rankings[i].AuditScore > rankings[j].AuditScore
		}
		return rankings[i].FacilityID < rankings[j].FacilityID
	})

	for i := range rankings {
		rankings[i].OverallRank = i + 1
		rankings[i].TotalFacilities = len(rankings)
	}

	return rankings, nil
}

// scores returns the score lookup for the configured mode; facilities without data score 0
func (c *RankingCalculator) scores(ctx context.Context, now time.Time) (func(int64) float64, error) {
	audits, err := c.evaluations.ListAuditScoresSince(ctx, now.Add(-c.auditWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to list audit scores: %w", err)
	}
	auditScore := func(id int64) float64 {
		s, ok := audits[id]
		if !ok || s.Count == 0 {
			return 0
		}
		return s.Average
	}

	if c.mode != config.RankingModeWeighted {
		return auditScore, nil
	}

	criteria, err := c.benchmarks.ListActiveCriteria(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list benchmark criteria: %w", err)
	}

	var auditWeight, assessmentWeight float64
	for _, cr := range criteria {
		if cr.Weight <= 0 {
			continue
		}
		switch cr.Category {
		case models.CriteriaCategoryAudit:
			auditWeight += cr.Weight
		case models.CriteriaCategoryAssessment:
			assessmentWeight += cr.Weight
		}
	}
	if auditWeight+assessmentWeight <= 0 {
		c.logger.Warn("No weighted benchmark criteria, ranking by audit score only")
		return auditScore, nil
	}

	counts, err := c.evaluations.CountAssessmentsByFacility(ctx, repository.ClosedWindow(now.Add(-c.rateWindow), now))
	if err != nil {
		return nil, fmt.Errorf("failed to count assessments: %w", err)
	}

	total := auditWeight + assessmentWeight
	return func(id int64) float64 {
		wc := counts[id]
		rate := completionRate(wc.Completed, wc.Total)
		return round((auditScore(id)*auditWeight+rate*assessmentWeight)/total, 2)
	}, nil
}

// Run calculates and appends one ranking row per facility at now.
// previous_rank is looked up before each insert; insert failures are logged and counted.
func (c *RankingCalculator) Run(ctx context.Context, now time.Time) (BatchResult, error) {
	var result BatchResult

	rankings, err := c.Calculate(ctx, now)
	if err != nil {
		return result, err
	}
	result.Total = len(rankings)

	stored := make([]models.FacilityRanking, 0, len(rankings))
	for i := range rankings {
		r := &rankings[i]

		previous, err := c.rankings.GetPreviousRank(ctx, r.FacilityID, now)
		if err != nil {
			c.logger.Error("Failed to look up previous rank",
				zap.Int64("facility_id", r.FacilityID),
				zap.String("facility_name", r.FacilityName),
				zap.Error(err),
			)
			result.Errors++
			continue
		}
		r.PreviousRank = previous
		r.Trend = Trend(previous, r.OverallRank)

		id, err := c.rankings.CreateRanking(ctx, r)
		if err != nil {
			c.logger.Error("Failed to store ranking",
				zap.Int64("facility_id", r.FacilityID),
				zap.String("facility_name", r.FacilityName),
				zap.Error(err),
			)
			result.Errors++
			continue
		}
		r.ID = id
		stored = append(stored, *r)
		result.Success++
	}

	// a partial list must not shadow the database
	if c.cache != nil {
		switch {
		case result.Errors > 0:
			if err := c.cache.InvalidateRankings(ctx); err != nil {
				c.logger.Warn("Failed to invalidate rankings cache", zap.Error(err))
			}
		case len(stored) > 0:
			if err := c.cache.UpdateRankingsCache(ctx, stored); err != nil {
				c.logger.Warn("Failed to update rankings cache", zap.Error(err))
			}
		}
	}

	c.logger.Info("Completed calculating facility rankings",
		zap.String("score_mode", c.mode),
		zap.Int("success_count", result.Success),
		zap.Int("error_count", result.Errors),
		zap.Int("total_count", result.Total),
	)

	return result, nil
}

// CurrentRankings rankings of the latest ranking date in rank order, from cache when possible
func (c *RankingCalculator) CurrentRankings(ctx context.Context) ([]models.FacilityRanking, error) {
	if c.cache != nil {
		rankings, err := c.cache.GetRankings(ctx)
		if err == nil {
			return rankings, nil
		}
		if err != ErrCacheMiss {
			c.logger.Warn("Rankings cache read failed, falling back to database", zap.Error(err))
		}
	}

	rankings, err := c.rankings.GetCurrentRankings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current rankings: %w", err)
	}
	for i := range rankings {
		rankings[i].Trend = Trend(rankings[i].PreviousRank, rankings[i].OverallRank)
	}

	if c.cache != nil && len(rankings) > 0 {
		if err := c.cache.UpdateRankingsCache(ctx, rankings); err != nil {
			c.logger.Warn("Failed to repopulate rankings cache", zap.Error(err))
		}
	}

	return rankings, nil
}
