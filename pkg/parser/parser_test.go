package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCascadePrefersStdoutJSON(t *testing.T) {
	cascade := NewCascade()
	stdout := []byte(`{"energy": -76.26, "homo_lumo_gap": 8.1}`)

	result := cascade.Parse(stdout, t.TempDir())
	require.False(t, result.Unparseable())
	assert.Equal(t, "stdout_json", result.StrategyUsed)
	assert.Equal(t, -76.26, *result.Energy)
}

func TestCascadeFallsBackToXtboutFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xtbout.json"), []byte(`{"energy": -40.1, "gap": 5.0}`), 0o644))

	cascade := NewCascade()
	result := cascade.Parse([]byte("not json at all, just logs"), dir)

	require.False(t, result.Unparseable())
	assert.Equal(t, "xtbout_json_file", result.StrategyUsed)
	assert.Equal(t, -40.1, *result.Energy)
}

func TestCascadeFallsBackToJSONFragment(t *testing.T) {
	cascade := NewCascade()
	stdout := []byte("normal termination of xtb\nsome log noise\n{\"energy\": -12.5}\nmore log noise\n")

	result := cascade.Parse(stdout, t.TempDir())
	require.False(t, result.Unparseable())
	assert.Equal(t, "json_fragment", result.StrategyUsed)
	assert.Equal(t, -12.5, *result.Energy)
}

func TestCascadeFallsBackToRegex(t *testing.T) {
	cascade := NewCascade()
	stdout := []byte("some preamble\n  | TOTAL ENERGY   -41.234567 Eh   |\n  | HOMO-LUMO GAP    6.789012 eV   |\n")

	result := cascade.Parse(stdout, t.TempDir())
	require.False(t, result.Unparseable())
	assert.Equal(t, "regex_fallback", result.StrategyUsed)
	assert.InDelta(t, -41.234567, *result.Energy, 1e-9)
	assert.InDelta(t, 6.789012, *result.HomoLumoGap, 1e-9)
}

func TestCascadeUnparseableWhenNothingMatches(t *testing.T) {
	cascade := NewCascade()
	result := cascade.Parse([]byte("xtb crashed with no useful output"), t.TempDir())

	assert.True(t, result.Unparseable())
	assert.Equal(t, "unparseable", result.ConvergenceStatus)
}

func TestHomoLumoEstimationFromGapOnly(t *testing.T) {
	cascade := NewCascade()
	stdout := []byte(`{"energy": -10.0, "gap": 4.0}`)

	result := cascade.Parse(stdout, t.TempDir())
	require.False(t, result.Unparseable())
	require.NotNil(t, result.Homo)
	require.NotNil(t, result.Lumo)
	assert.Equal(t, -7.5, *result.Homo)
	assert.Equal(t, -3.5, *result.Lumo)
	assert.True(t, result.HomoEstimated)
}

func TestHomoLumoNotEstimatedWhenHomoReported(t *testing.T) {
	cascade := NewCascade()
	stdout := []byte(`{"energy": -10.0, "gap": 4.0, "homo": -8.9, "lumo": -4.9}`)

	result := cascade.Parse(stdout, t.TempDir())
	require.False(t, result.Unparseable())
	assert.Equal(t, -8.9, *result.Homo)
	assert.False(t, result.HomoEstimated)
}
