package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantum-forge/orchestrator-core/pkg/config"
	"github.com/quantum-forge/orchestrator-core/pkg/filestore"
	"github.com/quantum-forge/orchestrator-core/pkg/models"
	"github.com/quantum-forge/orchestrator-core/pkg/qerrors"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := filestore.New(config.FileStoreConfig{RootDir: t.TempDir()})
	require.NoError(t, err)
	return New(store)
}

func validXYZ() string {
	return "3\nwater\nO 0.000 0.000 0.119\nH 0.000 0.763 -0.477\nH 0.000 -0.763 -0.477\n"
}

func TestSubmitValidJobSucceeds(t *testing.T) {
	m := newTestManager(t)
	jobID, err := m.Submit(context.Background(), SubmissionRequest{
		MoleculeName:      "Water",
		XYZContent:        validXYZ(),
		OptimizationLevel: models.OptimizationNormal,
	})
	require.NoError(t, err)
	assert.True(t, filestore.ValidJobID(jobID))

	got, err := m.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, got.Status)
	assert.Equal(t, 1, got.Multiplicity)
}

func TestSubmitRejectsEmptyMoleculeName(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Submit(context.Background(), SubmissionRequest{
		MoleculeName:      "",
		XYZContent:        validXYZ(),
		OptimizationLevel: models.OptimizationNormal,
	})
	assert.True(t, qerrors.IsValidationError(err))
}

func TestSubmitRejectsInvalidOptimizationLevel(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Submit(context.Background(), SubmissionRequest{
		MoleculeName:      "water",
		XYZContent:        validXYZ(),
		OptimizationLevel: "ultra",
	})
	assert.True(t, qerrors.IsValidationError(err))
}

func TestSubmitRejectsZeroAtomCount(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Submit(context.Background(), SubmissionRequest{
		MoleculeName:      "water",
		XYZContent:        "0\nempty\n",
		OptimizationLevel: models.OptimizationNormal,
	})
	assert.True(t, qerrors.IsValidationError(err))
}

func TestSubmitRejectsAtomCountMismatch(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Submit(context.Background(), SubmissionRequest{
		MoleculeName:      "water",
		XYZContent:        "3\nwater\nO 0 0 0\nH 0 0 1\n",
		OptimizationLevel: models.OptimizationNormal,
	})
	assert.True(t, qerrors.IsValidationError(err))
}

func TestSubmitTwiceYieldsDistinctJobIDs(t *testing.T) {
	m := newTestManager(t)
	req := SubmissionRequest{MoleculeName: "water", XYZContent: validXYZ(), OptimizationLevel: models.OptimizationNormal}

	id1, err := m.Submit(context.Background(), req)
	require.NoError(t, err)
	id2, err := m.Submit(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
}

func TestCancelQueuedJobFailsImmediately(t *testing.T) {
	m := newTestManager(t)
	jobID, err := m.Submit(context.Background(), SubmissionRequest{
		MoleculeName: "water", XYZContent: validXYZ(), OptimizationLevel: models.OptimizationNormal,
	})
	require.NoError(t, err)

	require.NoError(t, m.Cancel(context.Background(), jobID))

	got, err := m.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "cancelled", got.ErrorMessage)
}

func TestCancelRunningJobSetsFlag(t *testing.T) {
	m := newTestManager(t)
	jobID, err := m.Submit(context.Background(), SubmissionRequest{
		MoleculeName: "water", XYZContent: validXYZ(), OptimizationLevel: models.OptimizationNormal,
	})
	require.NoError(t, err)

	_, err = m.store.Mutate(context.Background(), jobID, func(j *models.Job) (*models.Job, error) {
		j.Status = models.StatusRunning
		return j, nil
	})
	require.NoError(t, err)

	require.NoError(t, m.Cancel(context.Background(), jobID))

	got, err := m.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, got.Status)
	assert.True(t, got.CancelRequested)
}

func TestDeleteRunningJobRejected(t *testing.T) {
	m := newTestManager(t)
	jobID, err := m.Submit(context.Background(), SubmissionRequest{
		MoleculeName: "water", XYZContent: validXYZ(), OptimizationLevel: models.OptimizationNormal,
	})
	require.NoError(t, err)

	_, err = m.store.Mutate(context.Background(), jobID, func(j *models.Job) (*models.Job, error) {
		j.Status = models.StatusRunning
		return j, nil
	})
	require.NoError(t, err)

	err = m.Delete(context.Background(), jobID)
	assert.ErrorIs(t, err, qerrors.ErrConflict)
}
