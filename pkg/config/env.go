// Package config loads the orchestration core's configuration from
// environment variables (spec §6), with an optional YAML overlay for
// defaults that are inconvenient to set per-pod (spec SPEC_FULL.md §1.1).
//
// Every LoadXxxFromEnv function follows the pattern established by the
// teacher repo's database config loader: read with a default, parse, then
// validate and return a wrapped error rather than panicking or silently
// falling back.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvDurationSecondsOrDefault(key string, defaultSeconds int) (time.Duration, error) {
	secs, err := getEnvIntOrDefault(key, defaultSeconds)
	if err != nil {
		return 0, err
	}
	if secs <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, secs)
	}
	return secondsToDuration(secs), nil
}

func secondsToDuration(secs int) time.Duration {
	return time.Duration(secs) * time.Second
}
