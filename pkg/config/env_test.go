package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadXTBConfigFromEnv(t *testing.T) {
	t.Setenv("XTB_PATH", "/usr/local/bin/xtb")
	t.Setenv("WORKDIR", "/tmp/runs")
	t.Setenv("XTB_TIMEOUT", "120")

	cfg, err := LoadXTBConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/xtb", cfg.BinaryPath)
	assert.Equal(t, "/tmp/runs", cfg.WorkDir)
	assert.Equal(t, secondsToDuration(120), cfg.Timeout)
}

func TestLoadXTBConfigFromEnv_InvalidTimeout(t *testing.T) {
	t.Setenv("XTB_PATH", "/usr/local/bin/xtb")
	t.Setenv("XTB_TIMEOUT", "not-a-number")

	_, err := LoadXTBConfigFromEnv()
	assert.Error(t, err)
}

func TestLoadWorkerConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadWorkerConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxConcurrentJobs)
	assert.Equal(t, secondsToDuration(5), cfg.PollInterval)
}

func TestLoadWorkerConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_JOBS", "10")
	t.Setenv("POLL_INTERVAL_SECONDS", "2")

	cfg, err := LoadWorkerConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxConcurrentJobs)
	assert.Equal(t, secondsToDuration(2), cfg.PollInterval)
}

func TestLoadDataStoreConfigFromEnv_Disabled(t *testing.T) {
	cfg, err := LoadDataStoreConfigFromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
}

func TestLoadDataStoreConfigFromEnv_PartialIsError(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	_, err := LoadDataStoreConfigFromEnv()
	assert.Error(t, err)
}

func TestApplyWorkerOverlay(t *testing.T) {
	cfg := DefaultWorkerConfig()
	jitter := 7
	overlay := Overlay{Worker: &WorkerOverlay{PollIntervalJitterSeconds: &jitter}}

	require.NoError(t, ApplyWorkerOverlay(&cfg, overlay))
	assert.Equal(t, secondsToDuration(7), cfg.PollIntervalJitter)
}
