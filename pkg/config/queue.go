package config

import (
	"fmt"
	"time"
)

// WorkerConfig contains worker-pool scheduling configuration (spec §4.7, §5).
//
// Field shape mirrors the teacher's QueueConfig (pkg/queue config in the
// source repo) but the knobs are the ones spec §6 actually names; values not
// named by spec.md (health log interval, YAML-overridable) get conservative
// defaults instead of an environment variable, matching the teacher's mix of
// env-driven and YAML-driven settings.
type WorkerConfig struct {
	// MaxConcurrentJobs is the per-worker-process concurrency bound (§6 MAX_CONCURRENT_JOBS).
	MaxConcurrentJobs int

	// PollInterval is the base FileStore poll period (§6 POLL_INTERVAL_SECONDS).
	PollInterval time.Duration

	// PollIntervalJitter desynchronizes multiple worker pods (SPEC_FULL §4 supplemented feature).
	PollIntervalJitter time.Duration

	// HealthLogInterval is how often the pool logs active-job counts (§4.7 step 5, default 30s).
	HealthLogInterval time.Duration

	// HeartbeatInterval is how often a worker touches a running job's
	// updated_at so long computations don't look orphaned mid-flight.
	HeartbeatInterval time.Duration

	// OrphanDetectionInterval is how often the orphan sweep runs.
	OrphanDetectionInterval time.Duration

	// OrphanMultiplier defines the orphan threshold as OrphanMultiplier * XTBConfig.Timeout
	// (spec §4.7 fault tolerance, policy (b): "updated_at older than 2 x timeout").
	OrphanMultiplier int

	// GracefulShutdownTimeout bounds how long Stop() waits for in-flight jobs.
	GracefulShutdownTimeout time.Duration
}

// DefaultWorkerConfig returns built-in defaults for values spec.md leaves to
// the implementer (health/orphan cadence), analogous to the teacher's
// DefaultQueueConfig.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MaxConcurrentJobs:       3,
		PollInterval:            5 * time.Second,
		PollIntervalJitter:      1 * time.Second,
		HealthLogInterval:       30 * time.Second,
		HeartbeatInterval:       30 * time.Second,
		OrphanDetectionInterval: 1 * time.Minute,
		OrphanMultiplier:        2,
		GracefulShutdownTimeout: 15 * time.Minute,
	}
}

// LoadWorkerConfigFromEnv loads WorkerConfig, overriding the built-in
// defaults with MAX_CONCURRENT_JOBS and POLL_INTERVAL_SECONDS from spec §6.
func LoadWorkerConfigFromEnv() (WorkerConfig, error) {
	cfg := DefaultWorkerConfig()

	maxConcurrent, err := getEnvIntOrDefault("MAX_CONCURRENT_JOBS", cfg.MaxConcurrentJobs)
	if err != nil {
		return WorkerConfig{}, err
	}
	cfg.MaxConcurrentJobs = maxConcurrent

	pollInterval, err := getEnvDurationSecondsOrDefault("POLL_INTERVAL_SECONDS", int(cfg.PollInterval/time.Second))
	if err != nil {
		return WorkerConfig{}, err
	}
	cfg.PollInterval = pollInterval

	if err := cfg.Validate(); err != nil {
		return WorkerConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration is internally consistent.
func (c WorkerConfig) Validate() error {
	if c.MaxConcurrentJobs < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	if c.OrphanMultiplier < 1 {
		return fmt.Errorf("orphan multiplier must be at least 1")
	}
	return nil
}
