package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/guy-corneille/mentalhealthinsight/common/database"
	mqttcommon "github.com/guy-corneille/mentalhealthinsight/common/mqtt"
	rediscommon "github.com/guy-corneille/mentalhealthinsight/common/redis"
	"github.com/guy-corneille/mentalhealthinsight/internal/config"
	"github.com/guy-corneille/mentalhealthinsight/internal/consumer"
	"github.com/guy-corneille/mentalhealthinsight/internal/jobs"
	"github.com/guy-corneille/mentalhealthinsight/internal/metrics"
	"github.com/guy-corneille/mentalhealthinsight/internal/notifier"
	"github.com/guy-corneille/mentalhealthinsight/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MetricsService schedules and runs the metrics jobs
type MetricsService struct {
	config          *config.Config
	logger          *zap.Logger
	db              *sql.DB
	redisClient     *redis.Client
	mqttClient      *mqttcommon.Client
	runner          *JobRunner
	snapshotBuilder *metrics.SnapshotBuilder
	rankingCalc     *metrics.RankingCalculator
	triggerConsumer *consumer.TriggerConsumer
	cron            *cron.Cron
}

// NewMetricsService connects to PostgreSQL, Redis and (optionally) MQTT and wires the jobs.
// Redis is optional unless the event trigger mode is enabled.
func NewMetricsService(cfg *config.Config, logger *zap.Logger) (*MetricsService, error) {
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		if cfg.Trigger.Mode == config.TriggerModeEvents {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Warn("Redis unavailable, running without cache", zap.Error(err))
		_ = rediscommon.Close(redisClient)
		redisClient = nil
	}

	var mqttClient *mqttcommon.Client
	var notify notifier.Notifier = notifier.NoopNotifier{}
	if cfg.MQTT.Enabled() {
		mqttClient, err = mqttcommon.NewClient(&cfg.MQTT)
		if err != nil {
			logger.Warn("MQTT unavailable, run summaries will not be published", zap.Error(err))
			mqttClient = nil
		} else {
			notify = notifier.NewMQTTNotifier(
				mqttClient,
				cfg.Notifier.TopicPrefix,
				cfg.MQTT.QoS,
				time.Duration(cfg.Notifier.PublishTimeoutSeconds)*time.Second,
				logger,
			)
		}
	}

	facilityRepo := repository.NewFacilityRepository(db, logger)
	evaluationRepo := repository.NewEvaluationRepository(db, logger)
	snapshotRepo := repository.NewSnapshotRepository(db, logger)
	rankingRepo := repository.NewRankingRepository(db, logger)
	benchmarkRepo := repository.NewBenchmarkRepository(db, logger)
	jobRunRepo := repository.NewJobRunRepository(db, logger)

	var cache *metrics.CacheManager
	if redisClient != nil {
		cache = metrics.NewCacheManager(cfg, metrics.NewRedisKVStore(redisClient), logger)
	}

	snapshotBuilder := metrics.NewSnapshotBuilder(cfg, facilityRepo, evaluationRepo, snapshotRepo, cache, logger)
	rankingCalc := metrics.NewRankingCalculator(cfg, facilityRepo, evaluationRepo, rankingRepo, benchmarkRepo, cache, logger)

	runner := NewJobRunner(Components{
		Sweeper:    metrics.NewOverdueSweeper(cfg, evaluationRepo, logger),
		Snapshots:  snapshotBuilder,
		Rankings:   rankingCalc,
		Historical: metrics.NewHistoricalStatsBuilder(cfg, facilityRepo, evaluationRepo, snapshotRepo, logger),
		Benchmarks: metrics.NewBenchmarkCalculator(cfg, facilityRepo, evaluationRepo, benchmarkRepo, logger),
		Ledger:     jobRunRepo,
		Notifier:   notify,
	}, logger)

	var triggerConsumer *consumer.TriggerConsumer
	if cfg.Trigger.Mode == config.TriggerModeEvents {
		triggerConsumer = consumer.NewTriggerConsumer(
			redisClient,
			runner,
			logger,
			cfg.Trigger.Stream,
			cfg.Trigger.ConsumerGroup,
			cfg.Trigger.ConsumerName,
			int64(cfg.Trigger.BatchSize),
		)
	}

	return &MetricsService{
		config:          cfg,
		logger:          logger,
		db:              db,
		redisClient:     redisClient,
		mqttClient:      mqttClient,
		runner:          runner,
		snapshotBuilder: snapshotBuilder,
		rankingCalc:     rankingCalc,
		triggerConsumer: triggerConsumer,
	}, nil
}

// Runner job runner for one-shot execution
func (s *MetricsService) Runner() *JobRunner {
	return s.runner
}

// SnapshotBuilder exposes cached snapshot reads
func (s *MetricsService) SnapshotBuilder() *metrics.SnapshotBuilder {
	return s.snapshotBuilder
}

// RankingCalculator exposes cached ranking reads
func (s *MetricsService) RankingCalculator() *metrics.RankingCalculator {
	return s.rankingCalc
}

// Start runs startup jobs, then the scheduler and the optional trigger consumer until ctx is cancelled
func (s *MetricsService) Start(ctx context.Context) error {
	s.logger.Info("Starting metrics service",
		zap.String("trigger_mode", s.config.Trigger.Mode),
		zap.String("ranking_score_mode", s.config.Metrics.RankingScoreMode),
		zap.Bool("cache_enabled", s.redisClient != nil),
	)

	if s.redisClient != nil {
		if _, err := s.snapshotBuilder.WarmCache(ctx); err != nil {
			s.logger.Warn("Failed to warm snapshot cache", zap.Error(err))
		}
	}

	if s.config.Metrics.RunOnStartup {
		s.runStartupJobs(ctx)
	}

	c, err := s.scheduleJobs(ctx)
	if err != nil {
		return err
	}
	s.cron = c
	s.cron.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if s.triggerConsumer != nil {
		g.Go(func() error {
			return s.triggerConsumer.Start(gctx)
		})
	}

	return g.Wait()
}

func (s *MetricsService) runStartupJobs(ctx context.Context) {
	for _, job := range []string{jobs.CheckMissed, jobs.UpdateMetrics} {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := s.runner.RunJob(ctx, jobs.Request{Job: job}, jobs.TriggerStartup); err != nil {
			s.logger.Error("Startup job failed", zap.String("job", job), zap.Error(err))
		}
	}
}

// scheduleJobs registers every job with a non-empty schedule; a job never overlaps itself
func (s *MetricsService) scheduleJobs(ctx context.Context) (*cron.Cron, error) {
	loc, err := s.config.Metrics.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	cl := newCronLogger(s.logger)
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	sched := s.config.Metrics.Schedules
	specs := map[string]string{
		jobs.CheckMissed:       sched.CheckMissed,
		jobs.UpdateMetrics:     sched.UpdateMetrics,
		jobs.CalculateRankings: sched.CalculateRankings,
		jobs.HistoricalStats:   sched.HistoricalStats,
	}

	for _, job := range jobs.Scheduled() {
		spec := specs[job]
		if spec == "" {
			s.logger.Info("Job disabled", zap.String("job", job))
			continue
		}

		job := job
		if _, err := c.AddFunc(spec, func() {
			if err := s.runner.RunJob(ctx, jobs.Request{Job: job}, jobs.TriggerCron); err != nil {
				s.logger.Error("Scheduled job failed", zap.String("job", job), zap.Error(err))
			}
		}); err != nil {
			return nil, fmt.Errorf("failed to schedule %s %q: %w", job, spec, err)
		}

		s.logger.Info("Job scheduled",
			zap.String("job", job),
			zap.String("schedule", spec),
			zap.String("timezone", loc.String()),
		)
	}

	return c, nil
}

// Stop waits for running jobs (bounded by ctx) and releases connections
func (s *MetricsService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping metrics service")

	if s.cron != nil {
		done := s.cron.Stop()
		select {
		case <-done.Done():
		case <-ctx.Done():
			s.logger.Warn("Timed out waiting for running jobs")
		}
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if err := rediscommon.Close(s.redisClient); err != nil {
		s.logger.Error("Error closing redis connection", zap.Error(err))
	}

	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("Error closing database connection", zap.Error(err))
		}
	}

	s.logger.Info("Metrics service stopped")
	return nil
}
