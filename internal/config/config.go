// Package config loads and validates harpoon configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Cycle     CycleConfig     `mapstructure:"cycle"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// RateLimitConfig bounds per-client request rates on the /v1 API. A zero
// RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// EngineConfig sizes the scheduler. NumThreads 0 selects the platform default.
type EngineConfig struct {
	MaxBatch   int    `mapstructure:"max_batch"`
	NumThreads int    `mapstructure:"num_threads"`
	Scheduler  string `mapstructure:"scheduler"`
}

// CycleConfig holds request defaults for cycles submitted over HTTP or CLI.
type CycleConfig struct {
	DefaultThreshold     float64 `mapstructure:"default_threshold"`
	DefaultMaxIterations int     `mapstructure:"default_max_iterations"`
}

// JobsConfig sizes the background job pool. Zero Workers disables
// /v1/jobs.
type JobsConfig struct {
	Workers     int `mapstructure:"workers"`
	QueueSize   int `mapstructure:"queue_size"`
	HistorySize int `mapstructure:"history_size"`
}

// StorageConfig picks where cycle records live.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	CacheSize int    `mapstructure:"cache_size"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// ArchiveConfig selects the blob archive for full cycle results.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for cycle summary notifications. An empty
// TopicName disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	BufferSize     int `mapstructure:"buffer_size"`
	MaxBatchEvents int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int `mapstructure:"max_batch_wait_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. Environment variables use the
// HARPOON_ prefix with dots replaced by underscores.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARPOON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("rate_limit.requests_per_second", 0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("engine.max_batch", 64)
	v.SetDefault("engine.num_threads", 0)
	v.SetDefault("engine.scheduler", "auto")
	v.SetDefault("cycle.default_threshold", 0.7)
	v.SetDefault("cycle.default_max_iterations", 100000)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.queue_size", 256)
	v.SetDefault("jobs.history_size", 1024)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.cache_size", 1024)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "harpoon_cycles")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.base_dir", "./data/cycles")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.prefix", "cycles")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.max_batch_events", 500)
	v.SetDefault("progress.max_batch_wait_ms", 250)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be >= 0")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.burst must be > 0 when rate limiting is enabled")
	}
	if c.Engine.MaxBatch < 0 {
		return fmt.Errorf("engine.max_batch must be >= 0")
	}
	if c.Engine.NumThreads < 0 {
		return fmt.Errorf("engine.num_threads must be >= 0")
	}
	switch c.Engine.Scheduler {
	case "auto", "pool", "sequential":
	default:
		return fmt.Errorf("engine.scheduler must be auto, pool or sequential, got %q", c.Engine.Scheduler)
	}
	if c.Cycle.DefaultMaxIterations <= 0 {
		return fmt.Errorf("cycle.default_max_iterations must be > 0")
	}
	if c.Jobs.Workers < 0 {
		return fmt.Errorf("jobs.workers must be >= 0")
	}
	if c.Jobs.Workers > 0 && (c.Jobs.QueueSize <= 0 || c.Jobs.HistorySize <= 0) {
		return fmt.Errorf("jobs.queue_size and jobs.history_size must be > 0 when jobs are enabled")
	}
	switch c.Storage.Provider {
	case "memory":
		if c.Storage.CacheSize <= 0 {
			return fmt.Errorf("storage.cache_size must be > 0")
		}
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when storage.provider is postgres")
		}
	default:
		return fmt.Errorf("storage.provider must be memory or postgres, got %q", c.Storage.Provider)
	}
	switch c.Archive.Provider {
	case "none", "memory":
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set when archive.provider is local")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set when archive.provider is gcs")
		}
	default:
		return fmt.Errorf("archive.provider must be none, memory, local or gcs, got %q", c.Archive.Provider)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// Threads maps the file form of num_threads to the engine form: 0 becomes
// nil, meaning "platform default".
func (c EngineConfig) Threads() *int {
	if c.NumThreads == 0 {
		return nil
	}
	n := c.NumThreads
	return &n
}

// Batch returns max_batch as the engine's optional form.
func (c EngineConfig) Batch() *int {
	if c.MaxBatch == 0 {
		return nil
	}
	n := c.MaxBatch
	return &n
}

// MaxBatchWait converts the millisecond knob to a duration.
func (c ProgressConfig) MaxBatchWait() time.Duration {
	return time.Duration(c.MaxBatchWaitMs) * time.Millisecond
}

// RequestTimeout converts the request timeout to a duration.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
