package metrics_test

import (
	"context"
	"sync"
	"time"

	"github.com/guy-corneille/mentalhealthinsight/internal/config"
	"github.com/guy-corneille/mentalhealthinsight/internal/metrics"
	"github.com/guy-corneille/mentalhealthinsight/internal/models"
	"github.com/guy-corneille/mentalhealthinsight/internal/repository"

	"github.com/stretchr/testify/mock"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Metrics.Timezone = "UTC"
	cfg.Metrics.CompletionWindowDays = 90
	cfg.Metrics.AuditWindowDays = 90
	cfg.Metrics.RecentWindowDays = 30
	cfg.Metrics.HistoricalPeriods = 12
	cfg.Metrics.HistoricalPeriodDays = 30
	cfg.Metrics.RankingScoreMode = config.RankingModeAudit
	cfg.Metrics.MissedReason = config.DefaultMissedReason
	cfg.Metrics.CacheTTLSeconds = 1800
	return cfg
}

// fakeKVStore in-memory KV with TTL, unit tests only
type fakeKVStore struct {
	mu   sync.Mutex
	data map[string]fakeKVItem
	err  error // returned by Set when non-nil
}

type fakeKVItem struct {
	value   string
	expires time.Time // zero = no ttl
}

func newFakeKVStore() *fakeKVStore {
	return &fakeKVStore{
		data: make(map[string]fakeKVItem),
	}
}

func (f *fakeKVStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.data[key]
	if !ok {
		return "", metrics.ErrCacheMiss
	}
	if !item.expires.IsZero() && time.Now().After(item.expires) {
		delete(f.data, key)
		return "", metrics.ErrCacheMiss
	}
	return item.value, nil
}

func (f *fakeKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	f.data[key] = fakeKVItem{value: value, expires: exp}
	return nil
}

func (f *fakeKVStore) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

// MockFacilityRepository mock of FacilityRepositoryInterface
type MockFacilityRepository struct {
	mock.Mock
}

func (m *MockFacilityRepository) ListActiveFacilities(ctx context.Context) ([]models.Facility, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Facility), args.Error(1)
}

func (m *MockFacilityRepository) ListFacilities(ctx context.Context) ([]models.Facility, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Facility), args.Error(1)
}

func (m *MockFacilityRepository) GetFacility(ctx context.Context, facilityID int64) (*models.Facility, error) {
	args := m.Called(ctx, facilityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Facility), args.Error(1)
}

func (m *MockFacilityRepository) GetFacilitiesByIDs(ctx context.Context, ids []int64) (map[int64]models.Facility, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]models.Facility), args.Error(1)
}

func (m *MockFacilityRepository) CountPatientsByStatus(ctx context.Context, facilityID int64) (models.PatientCounts, error) {
	args := m.Called(ctx, facilityID)
	return args.Get(0).(models.PatientCounts), args.Error(1)
}

func (m *MockFacilityRepository) CountPatientCoverage(ctx context.Context, facilityID int64) (int, int, error) {
	args := m.Called(ctx, facilityID)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *MockFacilityRepository) GetAuditCoverage(ctx context.Context, since time.Time) (models.AuditCoverage, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(models.AuditCoverage), args.Error(1)
}

// MockEvaluationRepository mock of EvaluationRepositoryInterface
type MockEvaluationRepository struct {
	mock.Mock
}

func (m *MockEvaluationRepository) MarkOverdueAuditsMissed(ctx context.Context, now time.Time, reason string) (int64, error) {
	args := m.Called(ctx, now, reason)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEvaluationRepository) MarkOverdueAssessmentsMissed(ctx context.Context, now time.Time, reason string) (int64, error) {
	args := m.Called(ctx, now, reason)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEvaluationRepository) CountAssessments(ctx context.Context, facilityID int64, w repository.TimeWindow) (models.WindowCounts, error) {
	args := m.Called(ctx, facilityID, w)
	return args.Get(0).(models.WindowCounts), args.Error(1)
}

func (m *MockEvaluationRepository) CountAssessmentsByFacility(ctx context.Context, w repository.TimeWindow) (map[int64]models.WindowCounts, error) {
	args := m.Called(ctx, w)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]models.WindowCounts), args.Error(1)
}

func (m *MockEvaluationRepository) GetAuditScoreSummary(ctx context.Context, facilityID int64, since time.Time) (models.ScoreSummary, error) {
	args := m.Called(ctx, facilityID, since)
	return args.Get(0).(models.ScoreSummary), args.Error(1)
}

func (m *MockEvaluationRepository) ListAuditScoresSince(ctx context.Context, since time.Time) (map[int64]models.ScoreSummary, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]models.ScoreSummary), args.Error(1)
}

func (m *MockEvaluationRepository) GetRecentAssessmentSummary(ctx context.Context, facilityID int64, since time.Time) (models.ScoreSummary, error) {
	args := m.Called(ctx, facilityID, since)
	return args.Get(0).(models.ScoreSummary), args.Error(1)
}

// MockSnapshotRepository mock of SnapshotRepositoryInterface
type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) CreateSnapshot(ctx context.Context, s *models.MetricSnapshot) (int64, error) {
	args := m.Called(ctx, s)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSnapshotRepository) GetLatestSnapshot(ctx context.Context, facilityID int64, metricType string) (*models.MetricSnapshot, error) {
	args := m.Called(ctx, facilityID, metricType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MetricSnapshot), args.Error(1)
}

func (m *MockSnapshotRepository) ListLatestSnapshots(ctx context.Context, metricType string) ([]models.MetricSnapshot, error) {
	args := m.Called(ctx, metricType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MetricSnapshot), args.Error(1)
}

func (m *MockSnapshotRepository) ListSnapshots(ctx context.Context, facilityID int64, from, to *time.Time) ([]models.MetricSnapshot, error) {
	args := m.Called(ctx, facilityID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MetricSnapshot), args.Error(1)
}

// MockRankingRepository mock of RankingRepositoryInterface
type MockRankingRepository struct {
	mock.Mock
}

func (m *MockRankingRepository) GetPreviousRank(ctx context.Context, facilityID int64, before time.Time) (*int, error) {
	args := m.Called(ctx, facilityID, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*int), args.Error(1)
}

func (m *MockRankingRepository) CreateRanking(ctx context.Context, r *models.FacilityRanking) (int64, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRankingRepository) GetCurrentRankings(ctx context.Context) ([]models.FacilityRanking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FacilityRanking), args.Error(1)
}

// MockBenchmarkRepository mock of BenchmarkRepositoryInterface
type MockBenchmarkRepository struct {
	mock.Mock
}

func (m *MockBenchmarkRepository) ListActiveCriteria(ctx context.Context) ([]models.BenchmarkCriteria, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BenchmarkCriteria), args.Error(1)
}

func (m *MockBenchmarkRepository) CreateComparison(ctx context.Context, c *models.BenchmarkComparison) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func windowFrom(from, to time.Time, includeTo bool) interface{} {
	return mock.MatchedBy(func(w repository.TimeWindow) bool {
		return w.From != nil && w.From.Equal(from) && w.To.Equal(to) && w.IncludeTo == includeTo
	})
}

func windowBefore(to time.Time) interface{} {
	return mock.MatchedBy(func(w repository.TimeWindow) bool {
		return w.From == nil && w.To.Equal(to) && !w.IncludeTo
	})
}
