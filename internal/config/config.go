// Package config handles configuration loading and validation for the
// session job core. Settings come from environment variables (with an
// optional .env-style file for development) and are grouped into
// type-safe structs so components receive only the settings they need.
package config

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"`
	State    StateConfig    `mapstructure:"state"`
	Worker   WorkerConfig   `mapstructure:"worker" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
	Monitor  MonitorConfig  `mapstructure:"monitor" validate:"required"`
	Alert    AlertConfig    `mapstructure:"alert" validate:"required"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// RedisConfig locates the Redis instance backing the queue and the
// state cache.
type RedisConfig struct {
	Host string `mapstructure:"host" validate:"required"`
	Port int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	DB   int    `mapstructure:"db" validate:"gte=0"`
}

// QueueConfig names the task queue.
type QueueConfig struct {
	// Key is the Redis list holding pending session tasks.
	Key string `mapstructure:"key"`
}

// StateConfig selects the session-state storage layout. The sharding
// decision is made once here; no component threads it through calls.
type StateConfig struct {
	Sharded    bool `mapstructure:"sharded"`
	ShardCount int  `mapstructure:"shard_count" validate:"gte=0"`
	TTLHours   int  `mapstructure:"ttl_hours" validate:"gte=0"`
}

// WorkerConfig tunes the session worker pool.
type WorkerConfig struct {
	Count             int `mapstructure:"count" validate:"required,gt=0"`
	PopTimeoutSeconds int `mapstructure:"pop_timeout_seconds" validate:"required,gt=0"`
}

// PipelineConfig locates the research-pipeline service the worker
// invokes for each session.
type PipelineConfig struct {
	URL            string `mapstructure:"url" validate:"required,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
}

// MonitorConfig holds the monitoring thresholds and cadence.
type MonitorConfig struct {
	IntervalSeconds      int     `mapstructure:"interval_seconds" validate:"required,gt=0"`
	QueueAlertThreshold  int64   `mapstructure:"queue_alert_threshold" validate:"gte=0"`
	FailureRateThreshold float64 `mapstructure:"failure_rate_threshold" validate:"gte=0,lte=1"`
}

// AlertConfig selects and parameterizes the alert channel.
type AlertConfig struct {
	Provider     string   `mapstructure:"provider" validate:"required,oneof=local email chat cloud"`
	SMTPServer   string   `mapstructure:"smtp_server"`
	SMTPPort     int      `mapstructure:"smtp_port" validate:"gte=0,lt=65536"`
	SMTPUser     string   `mapstructure:"smtp_user"`
	SMTPPassword string   `mapstructure:"smtp_password"`
	EmailList    []string `mapstructure:"email_list"`
	ChatWebhook  string   `mapstructure:"chat_webhook" validate:"omitempty,url"`
	ChatSecret   string   `mapstructure:"chat_secret"`
	CloudWebhook string   `mapstructure:"cloud_webhook" validate:"omitempty,url"`
}

// MetricsConfig controls the optional Prometheus exporter.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"gte=0,lt=65536"`
}
