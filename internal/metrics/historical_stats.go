package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/guy-corneille/mentalhealthinsight/internal/config"
	"github.com/guy-corneille/mentalhealthinsight/internal/models"
	"github.com/guy-corneille/mentalhealthinsight/internal/repository"

	"go.uber.org/zap"
)

// HistoricalStatsBuilder stores an all-time plus rolling-period assessment series per active facility
type HistoricalStatsBuilder struct {
	facilities  FacilityRepositoryInterface
	evaluations EvaluationRepositoryInterface
	snapshots   SnapshotRepositoryInterface
	periods     int
	periodLen   time.Duration
	logger      *zap.Logger
}

// NewHistoricalStatsBuilder creates a historical stats builder
func NewHistoricalStatsBuilder(
	cfg *config.Config,
	facilities FacilityRepositoryInterface,
	evaluations EvaluationRepositoryInterface,
	snapshots SnapshotRepositoryInterface,
	logger *zap.Logger,
) *HistoricalStatsBuilder {
	return &HistoricalStatsBuilder{
		facilities:  facilities,
		evaluations: evaluations,
		snapshots:   snapshots,
		periods:     cfg.Metrics.HistoricalPeriods,
		periodLen:   days(cfg.Metrics.HistoricalPeriodDays),
		logger:      logger,
	}
}

// BuildFacility computes the series ending at now.
// Period i covers [now-(i+1)*len, now-i*len), newest first.
func (h *HistoricalStatsBuilder) BuildFacility(ctx context.Context, facility models.Facility, now time.Time) (*models.MetricSnapshot, error) {
	patients, err := h.facilities.CountPatientsByStatus(ctx, facility.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count patients: %w", err)
	}
	utilization := capacityUtilization(patients.Active, facility.Capacity)

	allTime, err := h.periodStats(ctx, facility.ID, repository.Before(now), utilization)
	if err != nil {
		return nil, err
	}

	data := models.HistoricalData{
		AllTime: allTime,
		Monthly: make([]models.HistoricalPeriod, 0, h.periods),
	}
	for i := 0; i < h.periods; i++ {
		end := now.Add(-time.Duration(i) * h.periodLen)
		start := end.Add(-h.periodLen)

		stats, err := h.periodStats(ctx, facility.ID, repository.HalfOpenWindow(start, end), utilization)
		if err != nil {
			return nil, err
		}
		data.Monthly = append(data.Monthly, models.HistoricalPeriod{
			Period: start.Format("2006-01"),
			Stats:  stats,
		})
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal historical data: %w", err)
	}

	return &models.MetricSnapshot{
		FacilityID:           facility.ID,
		MetricType:           models.MetricTypeHistoricalStats,
		Timestamp:            now,
		ActivePatients:       patients.Active,
		DischargedPatients:   patients.Discharged,
		InactivePatients:     patients.Inactive,
		CapacityUtilization:  utilization,
		TotalAssessments:     allTime.Total,
		CompletedAssessments: allTime.Completed,
		CompletionRate:       allTime.CompletionRate,
		HistoricalData:       payload,
	}, nil
}

func (h *HistoricalStatsBuilder) periodStats(ctx context.Context, facilityID int64, w repository.TimeWindow, utilization float64) (models.PeriodStats, error) {
	c, err := h.evaluations.CountAssessments(ctx, facilityID, w)
	if err != nil {
		return models.PeriodStats{}, fmt.Errorf("failed to count assessments: %w", err)
	}

	return models.PeriodStats{
		Total:               c.Total,
		Completed:           c.Completed,
		Missed:              c.Missed,
		Scheduled:           c.Scheduled,
		CompletionRate:      completionRate(c.Completed, c.Total),
		AvgScore:            round(c.AvgCompletedScore, 2),
		CapacityUtilization: utilization,
	}, nil
}

// Run stores one historical_stats snapshot per active facility; per-facility failures are counted
func (h *HistoricalStatsBuilder) Run(ctx context.Context, now time.Time) (BatchResult, error) {
	var result BatchResult

	facilities, err := h.facilities.ListActiveFacilities(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list active facilities: %w", err)
	}
	result.Total = len(facilities)

	for _, facility := range facilities {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		s, err := h.BuildFacility(ctx, facility, now)
		if err == nil {
			_, err = h.snapshots.CreateSnapshot(ctx, s)
		}
		if err != nil {
			h.logger.Error("Failed to store historical stats for facility",
				zap.Int64("facility_id", facility.ID),
				zap.String("facility_name", facility.Name),
				zap.Error(err),
			)
			result.Errors++
			continue
		}
		result.Success++
	}

	h.logger.Info("Completed storing historical stats",
		zap.Int("periods", h.periods),
		zap.Int("success_count", result.Success),
		zap.Int("error_count", result.Errors),
		zap.Int("total_count", result.Total),
	)

	return result, nil
}
