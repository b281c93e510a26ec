// Package queue runs background ingestion: workers claim pending source
// materials, run the matching processor, and record the outcome.
package queue

import (
	"errors"
	"time"

	"dario.cat/mergo"
)

// Config tunes the ingestion worker pool.
type Config struct {
	WorkerCount        int           `yaml:"worker_count"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`
	ProcessTimeout     time.Duration `yaml:"process_timeout"`
	ShutdownTimeout    time.Duration `yaml:"graceful_shutdown_timeout"`
}

// DefaultConfig returns production-ready pool settings.
func DefaultConfig() *Config {
	return &Config{
		WorkerCount:        2,
		PollInterval:       2 * time.Second,
		PollIntervalJitter: 500 * time.Millisecond,
		ProcessTimeout:     15 * time.Minute,
		ShutdownTimeout:    30 * time.Second,
	}
}

// Resolve merges user overrides onto the defaults; zero values keep the
// default.
func Resolve(user *Config) (*Config, error) {
	cfg := DefaultConfig()
	if user != nil {
		if err := mergo.Merge(cfg, user, mergo.WithOverride); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks pool settings.
func (c *Config) Validate() error {
	if c.WorkerCount < 1 || c.WorkerCount > 50 {
		return errors.New("worker_count must be between 1 and 50")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if c.PollIntervalJitter < 0 || c.PollIntervalJitter >= c.PollInterval {
		return errors.New("poll_interval_jitter must be non-negative and less than poll_interval")
	}
	if c.ProcessTimeout <= 0 {
		return errors.New("process_timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("graceful_shutdown_timeout must be positive")
	}
	return nil
}

// ErrNoMaterialsAvailable signals an empty queue poll.
var ErrNoMaterialsAvailable = errors.New("no pending materials")

// WorkerHealth is one worker's health snapshot.
type WorkerHealth struct {
	ID                 string    `json:"id"`
	Status             string    `json:"status"`
	CurrentMaterialID  string    `json:"current_material_id,omitempty"`
	MaterialsProcessed int       `json:"materials_processed"`
	LastActivity       time.Time `json:"last_activity"`
}

// PoolHealth is the pool's health snapshot for the health endpoint.
type PoolHealth struct {
	QueueDepth    int64          `json:"queue_depth"`
	TotalWorkers  int            `json:"total_workers"`
	ActiveWorkers int            `json:"active_workers"`
	Workers       []WorkerHealth `json:"workers"`
}
