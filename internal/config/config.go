package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/guy-corneille/mentalhealthinsight/common/config"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	TriggerModeCron   = "cron"
	TriggerModeEvents = "events"

	RankingModeAudit    = "audit"
	RankingModeWeighted = "weighted"
)

// DefaultMissedReason is written to missed_reason by the overdue sweep
const DefaultMissedReason = "Automatically marked as missed - scheduled date passed"

// Config metrics service configuration
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	Metrics MetricsConfig

	// On-demand job triggers over Redis Streams
	Trigger struct {
		Mode          string // "cron" or "events"
		Stream        string
		ConsumerGroup string
		ConsumerName  string
		BatchSize     int
	}

	Notifier struct {
		TopicPrefix           string
		PublishTimeoutSeconds int
	}

	Log struct {
		Level  string
		Format string
	}
}

// MetricsConfig job windows and schedules. Overridable from the YAML file.
type MetricsConfig struct {
	Timezone string `yaml:"timezone"`

	// Windows in days
	CompletionWindowDays int `yaml:"completion_window_days"`
	AuditWindowDays      int `yaml:"audit_window_days"`
	RecentWindowDays     int `yaml:"recent_window_days"`

	// Historical series: HistoricalPeriods windows of HistoricalPeriodDays each
	HistoricalPeriods    int `yaml:"historical_periods"`
	HistoricalPeriodDays int `yaml:"historical_period_days"`

	RankingScoreMode string `yaml:"ranking_score_mode"`
	MissedReason     string `yaml:"missed_reason"`
	CacheTTLSeconds  int    `yaml:"cache_ttl_seconds"`
	RunOnStartup     bool   `yaml:"run_on_startup"`

	// Standard 5-field cron expressions; empty disables the job
	Schedules struct {
		CheckMissed       string `yaml:"check_missed"`
		UpdateMetrics     string `yaml:"update_metrics"`
		CalculateRankings string `yaml:"calculate_rankings"`
		HistoricalStats   string `yaml:"historical_stats"`
	} `yaml:"schedules"`
}

// Location resolves Timezone
func (m MetricsConfig) Location() (*time.Location, error) {
	if m.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(m.Timezone)
}

// CacheTTL cache entry lifetime
func (m MetricsConfig) CacheTTL() time.Duration {
	return time.Duration(m.CacheTTLSeconds) * time.Second
}

// Load reads .env (if present), the environment and the optional YAML file, then validates.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "mentalhealthiq"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.ClientID = "mhiq-metrics"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Metrics.Timezone = getEnv("METRICS_TIMEZONE", "UTC")
	cfg.Metrics.CompletionWindowDays = 90
	cfg.Metrics.AuditWindowDays = 90
	cfg.Metrics.RecentWindowDays = 30
	cfg.Metrics.HistoricalPeriods = 12
	cfg.Metrics.HistoricalPeriodDays = 30
	cfg.Metrics.RankingScoreMode = getEnv("RANKING_SCORE_MODE", RankingModeAudit)
	cfg.Metrics.MissedReason = getEnv("MISSED_REASON", DefaultMissedReason)
	cfg.Metrics.CacheTTLSeconds = getEnvInt("CACHE_TTL_SECONDS", 1800)
	cfg.Metrics.RunOnStartup = getEnvBool("RUN_ON_STARTUP", true)

	cfg.Metrics.Schedules.CheckMissed = getEnvAllowEmpty("SCHEDULE_CHECK_MISSED", "0 * * * *")
	cfg.Metrics.Schedules.UpdateMetrics = getEnvAllowEmpty("SCHEDULE_UPDATE_METRICS", "*/15 * * * *")
	cfg.Metrics.Schedules.CalculateRankings = getEnvAllowEmpty("SCHEDULE_CALCULATE_RANKINGS", "30 2 * * *")
	cfg.Metrics.Schedules.HistoricalStats = getEnvAllowEmpty("SCHEDULE_HISTORICAL_STATS", "")

	cfg.Trigger.Mode = getEnv("TRIGGER_MODE", TriggerModeCron)
	cfg.Trigger.Stream = getEnv("METRICS_TRIGGER_STREAM", "metrics:triggers")
	cfg.Trigger.ConsumerGroup = getEnv("METRICS_CONSUMER_GROUP", "mhiq-metrics-group")
	cfg.Trigger.ConsumerName = getEnv("METRICS_CONSUMER_NAME", "mhiq-metrics-1")
	cfg.Trigger.BatchSize = getEnvInt("METRICS_TRIGGER_BATCH_SIZE", 10)

	cfg.Notifier.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "mentalhealthiq/metrics")
	cfg.Notifier.PublishTimeoutSeconds = getEnvInt("MQTT_PUBLISH_TIMEOUT_SECONDS", 5)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile overlays the "metrics" section of a YAML file; absent keys keep their values
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	file := struct {
		Metrics MetricsConfig `yaml:"metrics"`
	}{Metrics: c.Metrics}

	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.Metrics = file.Metrics
	return nil
}

// Validate checks schedules, timezone and modes
func (c *Config) Validate() error {
	if _, err := c.Metrics.Location(); err != nil {
		return fmt.Errorf("invalid METRICS_TIMEZONE %q: %w", c.Metrics.Timezone, err)
	}

	schedules := map[string]string{
		"check_missed":       c.Metrics.Schedules.CheckMissed,
		"update_metrics":     c.Metrics.Schedules.UpdateMetrics,
		"calculate_rankings": c.Metrics.Schedules.CalculateRankings,
		"historical_stats":   c.Metrics.Schedules.HistoricalStats,
	}
	for name, spec := range schedules {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid schedule for %s %q: %w", name, spec, err)
		}
	}

	switch c.Trigger.Mode {
	case TriggerModeCron, TriggerModeEvents:
	default:
		return fmt.Errorf("unsupported trigger mode: %s", c.Trigger.Mode)
	}

	switch c.Metrics.RankingScoreMode {
	case RankingModeAudit, RankingModeWeighted:
	default:
		return fmt.Errorf("unsupported ranking score mode: %s", c.Metrics.RankingScoreMode)
	}

	if c.Metrics.CompletionWindowDays <= 0 || c.Metrics.AuditWindowDays <= 0 || c.Metrics.RecentWindowDays <= 0 {
		return fmt.Errorf("metric windows must be positive")
	}
	if c.Metrics.HistoricalPeriods <= 0 || c.Metrics.HistoricalPeriodDays <= 0 {
		return fmt.Errorf("historical periods must be positive")
	}
	if c.Trigger.BatchSize <= 0 {
		c.Trigger.BatchSize = 10
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes "unset" from "set to empty" so a schedule can be disabled
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultValue
	}
	return i
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	default:
		return false
	}
}
