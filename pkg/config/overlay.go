package config

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Overlay holds file-based defaults for knobs spec.md's environment variable
// list does not cover (health/orphan cadence, poll jitter). It is optional:
// a missing or empty file yields zero-value overlay. ApplyWorkerOverlay
// applies it to a WorkerConfig already loaded from the environment, and the
// overlay has no field the environment also sets, so env always wins (spec
// SPEC_FULL.md §1.1), matching the built-in/user-defaults merge precedence
// used throughout the teacher's config package.
type Overlay struct {
	Worker *WorkerOverlay `yaml:"worker,omitempty"`
}

// WorkerOverlay is the subset of WorkerConfig that may be set from YAML.
type WorkerOverlay struct {
	PollIntervalJitterSeconds *int `yaml:"poll_interval_jitter_seconds,omitempty"`
	HealthLogIntervalSeconds  *int `yaml:"health_log_interval_seconds,omitempty"`
	OrphanDetectionIntervalS  *int `yaml:"orphan_detection_interval_seconds,omitempty"`
	OrphanMultiplier          *int `yaml:"orphan_multiplier,omitempty"`
}

// LoadOverlay reads and env-expands a YAML defaults file at path. A
// nonexistent path is not an error — it yields an empty Overlay so the
// caller falls back entirely to built-in defaults.
func LoadOverlay(path string) (Overlay, error) {
	if path == "" {
		return Overlay{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Overlay{}, nil
		}
		return Overlay{}, fmt.Errorf("reading overlay %s: %w", path, err)
	}

	expanded := ExpandEnv(raw)

	var overlay Overlay
	if err := yaml.Unmarshal(expanded, &overlay); err != nil {
		return Overlay{}, fmt.Errorf("parsing overlay %s: %w", path, err)
	}
	return overlay, nil
}

// ApplyWorkerOverlay merges file-based defaults into cfg: every field the
// overlay names with a non-zero value replaces cfg's built-in default
// (mergo.WithOverride). None of these fields is read from the environment by
// LoadWorkerConfigFromEnv, so env-derived values in cfg are never changed.
func ApplyWorkerOverlay(cfg *WorkerConfig, overlay Overlay) error {
	if overlay.Worker == nil {
		return nil
	}

	patched := *cfg
	w := overlay.Worker

	if w.PollIntervalJitterSeconds != nil {
		patched.PollIntervalJitter = secondsToDuration(*w.PollIntervalJitterSeconds)
	}
	if w.HealthLogIntervalSeconds != nil {
		patched.HealthLogInterval = secondsToDuration(*w.HealthLogIntervalSeconds)
	}
	if w.OrphanDetectionIntervalS != nil {
		patched.OrphanDetectionInterval = secondsToDuration(*w.OrphanDetectionIntervalS)
	}
	if w.OrphanMultiplier != nil {
		patched.OrphanMultiplier = *w.OrphanMultiplier
	}

	if err := mergo.Merge(cfg, patched, mergo.WithOverride); err != nil {
		return fmt.Errorf("merging worker overlay: %w", err)
	}
	return nil
}
