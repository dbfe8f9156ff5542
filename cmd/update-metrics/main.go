// update-metrics runs metrics jobs once, or enqueues them for a running service.
//
//	update-metrics -job all
//	update-metrics -job compare -a 3 -b 7
//	update-metrics -job calculate_rankings -enqueue
//	update-metrics -show history -a 3 -from 2024-01-01
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	logpkg "github.com/guy-corneille/mentalhealthinsight/common/logger"
	rediscommon "github.com/guy-corneille/mentalhealthinsight/common/redis"
	"github.com/guy-corneille/mentalhealthinsight/internal/config"
	"github.com/guy-corneille/mentalhealthinsight/internal/jobs"
	"github.com/guy-corneille/mentalhealthinsight/internal/service"

	"go.uber.org/zap"
)

const jobAll = "all"

const (
	showLatest   = "latest"
	showRankings = "rankings"
	showHistory  = "history"
)

func main() {
	job := flag.String("job", jobAll, "check_missed|update_metrics|calculate_rankings|historical_stats|compare|coverage|all")
	facilityA := flag.Int64("a", 0, "first facility id (compare)")
	facilityB := flag.Int64("b", 0, "second facility id (compare)")
	enqueue := flag.Bool("enqueue", false, "publish the request to the trigger stream instead of running it")
	show := flag.String("show", "", "print stored results instead of running jobs: latest|rankings|history")
	from := flag.String("from", "", "history lower bound, YYYY-MM-DD")
	to := flag.String("to", "", "history upper bound, YYYY-MM-DD (whole day included)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "update-metrics")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *show != "" {
		if err := showResults(ctx, cfg, log, enc, *show, *facilityA, *from, *to); err != nil {
			log.Error("Failed to show results", zap.String("show", *show), zap.Error(err))
			os.Exit(1)
		}
		return
	}

	requests, err := buildRequests(*job, *facilityA, *facilityB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	if *enqueue {
		if err := enqueueRequests(ctx, cfg, log, requests); err != nil {
			log.Error("Failed to enqueue jobs", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	svc, err := service.NewMetricsService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create metrics service", zap.Error(err))
	}

	failed := false
	for _, req := range requests {
		out, err := svc.Runner().Execute(ctx, req, jobs.TriggerCLI)
		if err != nil {
			failed = true
			log.Error("Job failed", zap.String("job", req.Job), zap.Error(err))
			continue
		}
		if err := enc.Encode(out); err != nil {
			log.Warn("Failed to print job outcome", zap.Error(err))
		}
	}

	if err := svc.Stop(ctx); err != nil {
		log.Error("Error stopping service", zap.Error(err))
	}

	if failed {
		os.Exit(1)
	}
}

func buildRequests(job string, facilityA, facilityB int64) ([]jobs.Request, error) {
	if job == jobAll {
		names := jobs.Scheduled()
		requests := make([]jobs.Request, 0, len(names))
		for _, name := range names {
			requests = append(requests, jobs.Request{Job: name})
		}
		return requests, nil
	}

	req := jobs.Request{Job: job, FacilityA: facilityA, FacilityB: facilityB}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return []jobs.Request{req}, nil
}

func enqueueRequests(ctx context.Context, cfg *config.Config, log *zap.Logger, requests []jobs.Request) error {
	client := rediscommon.NewRedisClient(&cfg.Redis)
	defer rediscommon.Close(client)

	if err := rediscommon.Ping(ctx, client); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	for _, req := range requests {
		id, err := rediscommon.PublishJSONToStream(ctx, client, cfg.Trigger.Stream, req)
		if err != nil {
			return fmt.Errorf("failed to enqueue %s: %w", req.Job, err)
		}
		log.Info("Job enqueued",
			zap.String("job", req.Job),
			zap.String("stream", cfg.Trigger.Stream),
			zap.String("message_id", id),
		)
	}
	return nil
}

func showResults(ctx context.Context, cfg *config.Config, log *zap.Logger, enc *json.Encoder, show string, facilityID int64, from, to string) error {
	fromDate, err := parseDate(from)
	if err != nil {
		return fmt.Errorf("invalid -from: %w", err)
	}
	toDate, err := parseEndDate(to)
	if err != nil {
		return fmt.Errorf("invalid -to: %w", err)
	}

	svc, err := service.NewMetricsService(cfg, log)
	if err != nil {
		return err
	}
	defer svc.Stop(ctx)

	var out interface{}
	switch show {
	case showLatest:
		out, err = svc.SnapshotBuilder().LatestSnapshot(ctx, facilityID)
	case showRankings:
		out, err = svc.RankingCalculator().CurrentRankings(ctx)
	case showHistory:
		out, err = svc.SnapshotBuilder().History(ctx, facilityID, fromDate, toDate)
	default:
		return fmt.Errorf("unknown -show %q", show)
	}
	if err != nil {
		return err
	}

	return enc.Encode(out)
}

// parseDate reads YYYY-MM-DD; an empty string means unbounded
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseEndDate reads YYYY-MM-DD as the last microsecond of that day,
// so an inclusive upper bound covers the whole day at PostgreSQL precision
func parseEndDate(s string) (*time.Time, error) {
	t, err := parseDate(s)
	if err != nil || t == nil {
		return t, err
	}
	end := t.AddDate(0, 0, 1).Add(-time.Microsecond)
	return &end, nil
}
