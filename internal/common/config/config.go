// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Dedup         DedupConfig        `mapstructure:"dedup"`
	Dispatch      DispatchConfig     `mapstructure:"dispatch"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Audit         AuditConfig        `mapstructure:"audit"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	ListenAddr  string `mapstructure:"listen_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// DedupConfig controls the duplicate-suppression window.
type DedupConfig struct {
	WindowMinutes     int `mapstructure:"window_minutes"`      // sliding expiry window
	TimeBucketMinutes int `mapstructure:"time_bucket_minutes"` // reported_at bucketing for the dedup key
}

// DispatchConfig holds the delivery state machine settings. Each channel gets
// its own worker pool and rate ceiling.
type DispatchConfig struct {
	MaxRetries      int                      `mapstructure:"max_retries"`
	BackoffBaseMs   int                      `mapstructure:"backoff_base_ms"`
	BackoffCapMs    int                      `mapstructure:"backoff_cap_ms"`
	SchedulerTickMs int                      `mapstructure:"scheduler_tick_ms"`
	QueueSize       int                      `mapstructure:"queue_size"`
	Channels        map[string]ChannelConfig `mapstructure:"channels"`
}

// ChannelConfig holds per-channel worker and throttle settings.
type ChannelConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	Workers       int     `mapstructure:"workers"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
	TimeoutMs     int     `mapstructure:"timeout_ms"`
}

// NotificationConfig holds outbound provider settings.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// AuditConfig holds the delivery audit trail settings.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
