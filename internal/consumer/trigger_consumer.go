package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	rediscommon "github.com/guy-corneille/mentalhealthinsight/common/redis"
	"github.com/guy-corneille/mentalhealthinsight/internal/jobs"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// JobRunner executes a requested job
type JobRunner interface {
	RunJob(ctx context.Context, req jobs.Request, trigger string) error
}

// TriggerConsumer runs jobs requested on a Redis stream
type TriggerConsumer struct {
	redisClient  *redis.Client
	runner       JobRunner
	logger       *zap.Logger
	stream       string
	groupName    string
	consumerName string
	batchSize    int64
	block        time.Duration
}

// NewTriggerConsumer creates a trigger consumer
func NewTriggerConsumer(
	redisClient *redis.Client,
	runner JobRunner,
	logger *zap.Logger,
	stream string,
	groupName string,
	consumerName string,
	batchSize int64,
) *TriggerConsumer {
	return &TriggerConsumer{
		redisClient:  redisClient,
		runner:       runner,
		logger:       logger,
		stream:       stream,
		groupName:    groupName,
		consumerName: consumerName,
		batchSize:    batchSize,
		block:        5 * time.Second,
	}
}

// Start consumes until ctx is cancelled, backing off exponentially on read errors
func (c *TriggerConsumer) Start(ctx context.Context) error {
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, c.stream, c.groupName); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	if err := c.retryPending(ctx); err != nil {
		c.logger.Warn("Failed to retry pending triggers", zap.Error(err))
	}

	c.logger.Info("Trigger consumer started",
		zap.String("stream", c.stream),
		zap.String("consumer_group", c.groupName),
		zap.String("consumer_name", c.consumerName),
	)

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := c.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to consume triggers",
				zap.Error(err),
				zap.Duration("backoff", backoffDuration),
			)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoffDuration):
				backoffDuration *= 2
				if backoffDuration > maxBackoff {
					backoffDuration = maxBackoff
				}
			}
			continue
		}
		backoffDuration = time.Second
	}
}

func (c *TriggerConsumer) consume(ctx context.Context) error {
	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		c.stream,
		c.groupName,
		c.consumerName,
		c.batchSize,
		c.block,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	c.process(ctx, messages)
	return nil
}

// retryPending runs once more every trigger this consumer read but never acked,
// e.g. runs that failed before a restart. Entries that fail again stay pending.
func (c *TriggerConsumer) retryPending(ctx context.Context) error {
	after := "0"
	retried := 0
	for {
		messages, err := rediscommon.ReadPendingFromStream(
			ctx,
			c.redisClient,
			c.stream,
			c.groupName,
			c.consumerName,
			after,
			c.batchSize,
		)
		if err != nil {
			return fmt.Errorf("failed to read pending triggers: %w", err)
		}
		if len(messages) == 0 {
			break
		}

		c.process(ctx, messages)
		retried += len(messages)
		after = messages[len(messages)-1].ID
	}

	if retried > 0 {
		c.logger.Info("Retried pending triggers", zap.Int("count", retried))
	}
	return nil
}

func (c *TriggerConsumer) process(ctx context.Context, messages []rediscommon.StreamMessage) {
	for _, msg := range messages {
		if !c.handle(ctx, msg) {
			continue
		}
		if err := rediscommon.Ack(ctx, c.redisClient, c.stream, c.groupName, msg.ID); err != nil {
			c.logger.Warn("Failed to ack trigger",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}
}

// handle runs one trigger and reports whether it should be acked.
// Malformed and unknown triggers are acked; failed runs stay pending until the next start.
func (c *TriggerConsumer) handle(ctx context.Context, msg rediscommon.StreamMessage) bool {
	req, err := parseEvent(msg)
	if err != nil {
		c.logger.Warn("Dropping malformed trigger",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return true
	}

	if err := req.Validate(); err != nil {
		c.logger.Warn("Ignoring unknown job trigger",
			zap.String("message_id", msg.ID),
			zap.String("job", req.Job),
		)
		return true
	}

	c.logger.Info("Processing job trigger",
		zap.String("message_id", msg.ID),
		zap.String("job", req.Job),
	)

	if err := c.runner.RunJob(ctx, req, jobs.TriggerEvent); err != nil {
		if errors.Is(err, jobs.ErrUnknownJob) {
			return true
		}
		c.logger.Error("Triggered job failed",
			zap.String("message_id", msg.ID),
			zap.String("job", req.Job),
			zap.Error(err),
		)
		return false
	}

	return true
}

// parseEvent reads the JSON "data" field, falling back to flat stream fields
func parseEvent(msg rediscommon.StreamMessage) (jobs.Request, error) {
	if dataStr, ok := msg.Values["data"].(string); ok {
		var req jobs.Request
		if err := json.Unmarshal([]byte(dataStr), &req); err != nil {
			return req, fmt.Errorf("invalid data field: %w", err)
		}
		if req.Job == "" {
			return req, fmt.Errorf("invalid trigger: missing job")
		}
		return req, nil
	}

	var req jobs.Request
	if job, ok := msg.Values["job"].(string); ok {
		req.Job = job
	}
	if req.Job == "" {
		return req, fmt.Errorf("invalid trigger: missing job")
	}

	var err error
	if req.FacilityA, err = parseID(msg.Values["facility_a"]); err != nil {
		return req, fmt.Errorf("invalid facility_a: %w", err)
	}
	if req.FacilityB, err = parseID(msg.Values["facility_b"]); err != nil {
		return req, fmt.Errorf("invalid facility_b: %w", err)
	}

	return req, nil
}

func parseID(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
