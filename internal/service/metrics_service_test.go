package service

import (
	"context"
	"testing"

	"github.com/guy-corneille/mentalhealthinsight/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newScheduleTestService(cfg *config.Config) *MetricsService {
	return &MetricsService{
		config: cfg,
		logger: zap.NewNop(),
		runner: newRunnerFixture().runner,
	}
}

func TestScheduleJobs_RegistersEnabledJobs(t *testing.T) {
	cfg := &config.Config{}
	cfg.Metrics.Timezone = "Africa/Kigali"
	cfg.Metrics.Schedules.CheckMissed = "0 * * * *"
	cfg.Metrics.Schedules.UpdateMetrics = "*/15 * * * *"
	cfg.Metrics.Schedules.CalculateRankings = "30 2 * * *"
	cfg.Metrics.Schedules.HistoricalStats = ""

	s := newScheduleTestService(cfg)
	c, err := s.scheduleJobs(context.Background())

	require.NoError(t, err)
	assert.Len(t, c.Entries(), 3)
	assert.Equal(t, "Africa/Kigali", c.Location().String())
}

func TestScheduleJobs_InvalidSchedule(t *testing.T) {
	cfg := &config.Config{}
	cfg.Metrics.Schedules.CheckMissed = "every hour"

	s := newScheduleTestService(cfg)
	_, err := s.scheduleJobs(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "check_missed")
}

func TestStop_WithoutStart(t *testing.T) {
	s := newScheduleTestService(&config.Config{})
	assert.NoError(t, s.Stop(context.Background()))
}
