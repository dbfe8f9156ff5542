package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RunSummary outcome of one job run, published as JSON
type RunSummary struct {
	RunID      string      `json:"run_id"`
	Job        string      `json:"job"`
	Trigger    string      `json:"trigger"`
	Status     string      `json:"status"`
	Processed  int         `json:"processed"`
	Errors     int         `json:"errors"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Notifier receives run summaries
type Notifier interface {
	Notify(ctx context.Context, summary RunSummary) error
}

// DefaultPublishTimeout bounds one summary publish when no timeout is configured
const DefaultPublishTimeout = 5 * time.Second

// Publisher is satisfied by common/mqtt.Client
type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error
}

// MQTTNotifier publishes summaries to <prefix>/<job>
type MQTTNotifier struct {
	publisher Publisher
	prefix    string
	qos       byte
	timeout   time.Duration
	logger    *zap.Logger
}

// NewMQTTNotifier creates an MQTT notifier; timeout <= 0 uses DefaultPublishTimeout
func NewMQTTNotifier(publisher Publisher, prefix string, qos byte, timeout time.Duration, logger *zap.Logger) *MQTTNotifier {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &MQTTNotifier{
		publisher: publisher,
		prefix:    strings.TrimSuffix(prefix, "/"),
		qos:       qos,
		timeout:   timeout,
		logger:    logger,
	}
}

// Topic for a job name
func (n *MQTTNotifier) Topic(job string) string {
	return n.prefix + "/" + job
}

// Notify publishes one summary, giving up after the publish timeout
func (n *MQTTNotifier) Notify(ctx context.Context, summary RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	topic := n.Topic(summary.Job)
	if err := n.publisher.Publish(ctx, topic, n.qos, false, payload); err != nil {
		return err
	}

	n.logger.Debug("Published run summary",
		zap.String("topic", topic),
		zap.String("run_id", summary.RunID),
	)
	return nil
}

// NoopNotifier used when no broker is configured
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, summary RunSummary) error {
	return nil
}
