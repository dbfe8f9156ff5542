package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/guy-corneille/mentalhealthinsight/internal/config"
	"github.com/guy-corneille/mentalhealthinsight/internal/models"
	"github.com/guy-corneille/mentalhealthinsight/internal/repository"

	"go.uber.org/zap"
)

// SnapshotBuilder computes and appends patient_load snapshots for active facilities
type SnapshotBuilder struct {
	facilities  FacilityRepositoryInterface
	evaluations EvaluationRepositoryInterface
	snapshots   SnapshotRepositoryInterface
	cache       *CacheManager // nil disables caching
	loc         *time.Location
	window      time.Duration
	logger      *zap.Logger
}

// NewSnapshotBuilder creates a snapshot builder; cache may be nil
func NewSnapshotBuilder(
	cfg *config.Config,
	facilities FacilityRepositoryInterface,
	evaluations EvaluationRepositoryInterface,
	snapshots SnapshotRepositoryInterface,
	cache *CacheManager,
	logger *zap.Logger,
) *SnapshotBuilder {
	loc, err := cfg.Metrics.Location()
	if err != nil {
		loc = time.UTC
	}
	return &SnapshotBuilder{
		facilities:  facilities,
		evaluations: evaluations,
		snapshots:   snapshots,
		cache:       cache,
		loc:         loc,
		window:      days(cfg.Metrics.CompletionWindowDays),
		logger:      logger,
	}
}

// BuildFacility computes the snapshot of one facility at now without persisting it
func (b *SnapshotBuilder) BuildFacility(ctx context.Context, facility models.Facility, now time.Time) (*models.MetricSnapshot, error) {
	patients, err := b.facilities.CountPatientsByStatus(ctx, facility.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count patients: %w", err)
	}

	dayStart := startOfDay(now, b.loc)
	daily, err := b.evaluations.CountAssessments(ctx, facility.ID, repository.ClosedWindow(dayStart, dayStart.Add(day)))
	if err != nil {
		return nil, fmt.Errorf("failed to count daily assessments: %w", err)
	}

	trailing, err := b.evaluations.CountAssessments(ctx, facility.ID, repository.ClosedWindow(now.Add(-b.window), now))
	if err != nil {
		return nil, fmt.Errorf("failed to count trailing assessments: %w", err)
	}

	return &models.MetricSnapshot{
		FacilityID:                    facility.ID,
		MetricType:                    models.MetricTypePatientLoad,
		Timestamp:                     now,
		ActivePatients:                patients.Active,
		DischargedPatients:            patients.Discharged,
		InactivePatients:              patients.Inactive,
		CapacityUtilization:           capacityUtilization(patients.Active, facility.Capacity),
		TotalAssessments:              daily.Total,
		CompletedAssessments:          daily.Completed,
		CompletionRate:                completionRate(daily.Completed, daily.Total),
		NinetyDayTotalAssessments:     trailing.Total,
		NinetyDayCompletedAssessments: trailing.Completed,
		NinetyDayCompletionRate:       completionRate(trailing.Completed, trailing.Total),
	}, nil
}

// UpdateFacility builds, inserts and caches one facility's snapshot
func (b *SnapshotBuilder) UpdateFacility(ctx context.Context, facility models.Facility, now time.Time) (*models.MetricSnapshot, error) {
	s, err := b.BuildFacility(ctx, facility, now)
	if err != nil {
		return nil, err
	}

	id, err := b.snapshots.CreateSnapshot(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}
	s.ID = id

	if b.cache != nil {
		if err := b.cache.UpdateSnapshotCache(ctx, s); err != nil {
			b.logger.Warn("Failed to update snapshot cache",
				zap.Int64("facility_id", facility.ID),
				zap.Error(err),
			)
		}
	}

	return s, nil
}

// Run appends one snapshot per active facility.
// Per-facility failures are logged and counted; only listing facilities fails the batch.
func (b *SnapshotBuilder) Run(ctx context.Context, now time.Time) (BatchResult, error) {
	var result BatchResult

	facilities, err := b.facilities.ListActiveFacilities(ctx)
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

		s, err := b.UpdateFacility(ctx, facility, now)
		if err != nil {
			b.logger.Error("Failed to update metrics for facility",
				zap.Int64("facility_id", facility.ID),
				zap.String("facility_name", facility.Name),
				zap.Error(err),
			)
			result.Errors++
			continue
		}

		b.logger.Debug("Stored facility metrics",
			zap.Int64("facility_id", facility.ID),
			zap.Int("active_patients", s.ActivePatients),
			zap.Float64("capacity_utilization", s.CapacityUtilization),
			zap.Float64("ninety_day_completion_rate", s.NinetyDayCompletionRate),
		)
		result.Success++
	}

	b.logger.Info("Completed updating facility metrics",
		zap.Int("success_count", result.Success),
		zap.Int("error_count", result.Errors),
		zap.Int("total_count", result.Total),
	)

	return result, nil
}

// LatestSnapshot newest patient_load snapshot, from cache when possible.
// Returns nil when the facility has none.
func (b *SnapshotBuilder) LatestSnapshot(ctx context.Context, facilityID int64) (*models.MetricSnapshot, error) {
	if b.cache != nil {
		s, err := b.cache.GetSnapshot(ctx, facilityID)
		if err == nil {
			return s, nil
		}
		if err != ErrCacheMiss {
			b.logger.Warn("Snapshot cache read failed, falling back to database",
				zap.Int64("facility_id", facilityID),
				zap.Error(err),
			)
		}
	}

	s, err := b.snapshots.GetLatestSnapshot(ctx, facilityID, models.MetricTypePatientLoad)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	if s == nil {
		return nil, nil
	}

	if b.cache != nil {
		if err := b.cache.UpdateSnapshotCache(ctx, s); err != nil {
			b.logger.Warn("Failed to repopulate snapshot cache",
				zap.Int64("facility_id", facilityID),
				zap.Error(err),
			)
		}
	}

	return s, nil
}

// History stored snapshots of one facility, newest first, optionally bounded by from/to (inclusive)
func (b *SnapshotBuilder) History(ctx context.Context, facilityID int64, from, to *time.Time) ([]models.MetricSnapshot, error) {
	if _, err := b.facilities.GetFacility(ctx, facilityID); err != nil {
		return nil, err
	}

	snapshots, err := b.snapshots.ListSnapshots(ctx, facilityID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snapshots, nil
}

// WarmCache loads the newest snapshot of every active facility into the cache
func (b *SnapshotBuilder) WarmCache(ctx context.Context) (BatchResult, error) {
	var result BatchResult
	if b.cache == nil {
		return result, nil
	}

	snapshots, err := b.snapshots.ListLatestSnapshots(ctx, models.MetricTypePatientLoad)
	if err != nil {
		return result, fmt.Errorf("failed to list latest snapshots: %w", err)
	}
	result.Total = len(snapshots)

	for i := range snapshots {
		if err := b.cache.UpdateSnapshotCache(ctx, &snapshots[i]); err != nil {
			b.logger.Warn("Failed to warm snapshot cache",
				zap.Int64("facility_id", snapshots[i].FacilityID),
				zap.Error(err),
			)
			result.Errors++
			continue
		}
		result.Success++
	}

	b.logger.Info("Warmed snapshot cache",
		zap.Int("success_count", result.Success),
		zap.Int("error_count", result.Errors),
		zap.Int("total_count", result.Total),
	)

	return result, nil
}
