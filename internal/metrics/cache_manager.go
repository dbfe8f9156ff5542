package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/guy-corneille/mentalhealthinsight/internal/config"
	"github.com/guy-corneille/mentalhealthinsight/internal/models"

	"go.uber.org/zap"
)

// RankingsCacheKey current rankings list
const RankingsCacheKey = "mhiq:rankings:current"

// SnapshotCacheKey latest patient_load snapshot of a facility
func SnapshotCacheKey(facilityID int64) string {
	return fmt.Sprintf("mhiq:metrics:facility:%d:latest", facilityID)
}

// CacheManager Redis read-through cache for snapshots and rankings.
// The database stays authoritative; callers treat write failures as non-fatal.
type CacheManager struct {
	kv     KVStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewCacheManager creates a cache manager
func NewCacheManager(cfg *config.Config, kv KVStore, logger *zap.Logger) *CacheManager {
	return &CacheManager{
		kv:     kv,
		ttl:    cfg.Metrics.CacheTTL(),
		logger: logger,
	}
}

// UpdateSnapshotCache stores s under its facility key
func (c *CacheManager) UpdateSnapshotCache(ctx context.Context, s *models.MetricSnapshot) error {
	key := SnapshotCacheKey(s.FacilityID)
	if err := c.setJSON(ctx, key, s); err != nil {
		return err
	}

	c.logger.Debug("Updated snapshot cache",
		zap.Int64("facility_id", s.FacilityID),
		zap.String("key", key),
	)
	return nil
}

// GetSnapshot returns ErrCacheMiss when the key is absent or unreadable
func (c *CacheManager) GetSnapshot(ctx context.Context, facilityID int64) (*models.MetricSnapshot, error) {
	var s models.MetricSnapshot
	if err := c.getJSON(ctx, SnapshotCacheKey(facilityID), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateRankingsCache stores the current ranking list
func (c *CacheManager) UpdateRankingsCache(ctx context.Context, rankings []models.FacilityRanking) error {
	if err := c.setJSON(ctx, RankingsCacheKey, rankings); err != nil {
		return err
	}

	c.logger.Debug("Updated rankings cache", zap.Int("count", len(rankings)))
	return nil
}

// InvalidateRankings drops the cached list so readers go back to the database
func (c *CacheManager) InvalidateRankings(ctx context.Context) error {
	if err := c.kv.Del(ctx, RankingsCacheKey); err != nil {
		return fmt.Errorf("failed to invalidate rankings cache: %w", err)
	}

	c.logger.Debug("Invalidated rankings cache")
	return nil
}

// GetRankings returns ErrCacheMiss when the key is absent or unreadable
func (c *CacheManager) GetRankings(ctx context.Context) ([]models.FacilityRanking, error) {
	var rankings []models.FacilityRanking
	if err := c.getJSON(ctx, RankingsCacheKey, &rankings); err != nil {
		return nil, err
	}
	return rankings, nil
}

func (c *CacheManager) setJSON(ctx context.Context, key string, v interface{}) error {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	if err := c.kv.Set(ctx, key, string(jsonData), c.ttl); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (c *CacheManager) getJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		if err == ErrCacheMiss {
			c.logger.Debug("Cache miss", zap.String("key", key))
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get cache: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		c.logger.Warn("Discarding unreadable cache entry",
			zap.String("key", key),
			zap.Error(err),
		)
		return ErrCacheMiss
	}
	return nil
}
