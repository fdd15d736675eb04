package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverlayMissingFileYieldsEmptyOverlay(t *testing.T) {
	overlay, err := LoadOverlay(filepath.Join(t.TempDir(), "defaults.yaml"))
	require.NoError(t, err)
	assert.Nil(t, overlay.Worker)
}

func TestLoadOverlayEmptyPathYieldsEmptyOverlay(t *testing.T) {
	overlay, err := LoadOverlay("")
	require.NoError(t, err)
	assert.Nil(t, overlay.Worker)
}

func TestLoadOverlayParsesWorkerFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	writeFile(t, path, `
worker:
  poll_interval_jitter_seconds: 2
  health_log_interval_seconds: 45
  orphan_detection_interval_seconds: 90
  orphan_multiplier: 3
`)

	overlay, err := LoadOverlay(path)
	require.NoError(t, err)
	require.NotNil(t, overlay.Worker)
	assert.Equal(t, 2, *overlay.Worker.PollIntervalJitterSeconds)
	assert.Equal(t, 45, *overlay.Worker.HealthLogIntervalSeconds)
	assert.Equal(t, 90, *overlay.Worker.OrphanDetectionIntervalS)
	assert.Equal(t, 3, *overlay.Worker.OrphanMultiplier)
}

func TestLoadOverlayExpandsEnvBeforeParsing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	writeFile(t, path, "worker:\n  orphan_multiplier: {{.ORPHAN_MULTIPLIER}}\n")
	t.Setenv("ORPHAN_MULTIPLIER", "4")

	overlay, err := LoadOverlay(path)
	require.NoError(t, err)
	require.NotNil(t, overlay.Worker)
	assert.Equal(t, 4, *overlay.Worker.OrphanMultiplier)
}

func TestLoadOverlayRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	writeFile(t, path, "worker:\n  orphan_multiplier: [unclosed\n")

	_, err := LoadOverlay(path)
	assert.Error(t, err)
}

func TestApplyWorkerOverlayNilWorkerIsNoop(t *testing.T) {
	cfg := DefaultWorkerConfig()
	original := cfg

	require.NoError(t, ApplyWorkerOverlay(&cfg, Overlay{}))
	assert.Equal(t, original, cfg)
}

func TestApplyWorkerOverlayFillsUnsetFields(t *testing.T) {
	cfg := DefaultWorkerConfig()
	jitter := 5
	multiplier := 4

	require.NoError(t, ApplyWorkerOverlay(&cfg, Overlay{Worker: &WorkerOverlay{
		PollIntervalJitterSeconds: &jitter,
		OrphanMultiplier:          &multiplier,
	}}))

	assert.Equal(t, 5*time.Second, cfg.PollIntervalJitter)
	assert.Equal(t, 4, cfg.OrphanMultiplier)
	// Fields the overlay didn't name keep their built-in defaults.
	assert.Equal(t, DefaultWorkerConfig().HealthLogInterval, cfg.HealthLogInterval)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
