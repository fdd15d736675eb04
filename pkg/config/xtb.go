package config

import (
	"fmt"
	"os/exec"
	"time"
)

// XTBConfig configures the xTB subprocess executor (spec §4.5, §6).
type XTBConfig struct {
	// BinaryPath is the resolved xTB executable. If XTB_PATH is unset, it is
	// resolved from PATH at load time, matching spec §6's "resolved via PATH
	// if unset" contract.
	BinaryPath string

	// WorkDir is the scratch root under which one subdirectory per job is
	// created for the subprocess's cwd (§6 WORKDIR).
	WorkDir string

	// Timeout is the hard wall-clock limit per job (§6 XTB_TIMEOUT).
	Timeout time.Duration

	// TerminationGrace is how long to wait after SIGTERM before SIGKILL
	// (§4.5 Cancellation, §5: "~5 s").
	TerminationGrace time.Duration
}

// LoadXTBConfigFromEnv loads XTBConfig from XTB_PATH, WORKDIR, XTB_TIMEOUT.
func LoadXTBConfigFromEnv() (XTBConfig, error) {
	binPath := getEnvOrDefault("XTB_PATH", "")
	if binPath == "" {
		resolved, err := exec.LookPath("xtb")
		if err != nil {
			return XTBConfig{}, fmt.Errorf("XTB_PATH not set and xtb not found on PATH: %w", err)
		}
		binPath = resolved
	}

	timeout, err := getEnvDurationSecondsOrDefault("XTB_TIMEOUT", 3600)
	if err != nil {
		return XTBConfig{}, err
	}

	cfg := XTBConfig{
		BinaryPath:       binPath,
		WorkDir:          getEnvOrDefault("WORKDIR", "./runs"),
		Timeout:          timeout,
		TerminationGrace: 5 * time.Second,
	}
	if err := cfg.Validate(); err != nil {
		return XTBConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable.
func (c XTBConfig) Validate() error {
	if c.BinaryPath == "" {
		return fmt.Errorf("xtb binary path must not be empty")
	}
	if c.WorkDir == "" {
		return fmt.Errorf("WORKDIR must not be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("XTB_TIMEOUT must be positive")
	}
	return nil
}
