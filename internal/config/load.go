package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envBindings maps config keys to the flat environment variable names
// the deployment surface uses.
var envBindings = map[string]string{
	"server.log_level":               "LOG_LEVEL",
	"redis.host":                     "REDIS_HOST",
	"redis.port":                     "REDIS_PORT",
	"redis.db":                       "REDIS_DB",
	"queue.key":                      "QUEUE_KEY",
	"state.sharded":                  "STATE_SHARDED",
	"state.shard_count":              "STATE_SHARD_COUNT",
	"state.ttl_hours":                "STATE_TTL_HOURS",
	"worker.count":                   "WORKER_COUNT",
	"worker.pop_timeout_seconds":     "POP_TIMEOUT_SECONDS",
	"pipeline.url":                   "PIPELINE_URL",
	"pipeline.timeout_seconds":       "PIPELINE_TIMEOUT_SECONDS",
	"monitor.interval_seconds":       "JOB_INTERVAL_SECONDS",
	"monitor.queue_alert_threshold":  "QUEUE_ALERT_THRESHOLD",
	"monitor.failure_rate_threshold": "FAILURE_RATE_THRESHOLD",
	"alert.provider":                 "ALERT_PROVIDER",
	"alert.smtp_server":              "SMTP_SERVER",
	"alert.smtp_port":                "SMTP_PORT",
	"alert.smtp_user":                "SMTP_USER",
	"alert.smtp_password":            "SMTP_PASSWORD",
	"alert.email_list":               "ALERT_EMAIL_LIST",
	"alert.chat_webhook":             "CHAT_WEBHOOK",
	"alert.chat_secret":              "CHAT_SECRET",
	"alert.cloud_webhook":            "CLOUD_WEBHOOK",
	"metrics.enabled":                "PROMETHEUS_METRICS_ENABLED",
	"metrics.port":                   "METRICS_PORT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("queue.key", "queue:session_tasks")
	v.SetDefault("state.sharded", true)
	v.SetDefault("state.shard_count", 16)
	v.SetDefault("state.ttl_hours", 24)
	v.SetDefault("worker.count", 1)
	v.SetDefault("worker.pop_timeout_seconds", 10)
	v.SetDefault("pipeline.url", "http://127.0.0.1:8000/api/pipeline/run")
	v.SetDefault("pipeline.timeout_seconds", 3600)
	v.SetDefault("monitor.interval_seconds", 60)
	v.SetDefault("monitor.queue_alert_threshold", 1000)
	v.SetDefault("monitor.failure_rate_threshold", 0.1)
	v.SetDefault("alert.provider", "local")
	v.SetDefault("alert.smtp_port", 587)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
}

// Load reads configuration from the environment, applying defaults and
// validating the result. Environment variables take precedence over an
// optional .env file in the working directory.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// .env is a development convenience; production deployments set
	// the environment directly.
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The recipient list arrives as one comma-separated variable.
	if raw := v.GetString("alert.email_list"); raw != "" {
		cfg.Alert.EmailList = splitAndTrim(raw)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
