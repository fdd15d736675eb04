package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantum-forge/orchestrator-core/pkg/config"
	"github.com/quantum-forge/orchestrator-core/pkg/models"
	"github.com/quantum-forge/orchestrator-core/pkg/qerrors"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	fs, err := New(config.FileStoreConfig{RootDir: dir})
	require.NoError(t, err)
	return fs
}

func newTestJob(id string) *models.Job {
	return &models.Job{
		JobID:             id,
		MoleculeName:      "water",
		XYZContent:        "3\nwater\nO 0 0 0\nH 0 0 1\nH 0 1 0\n",
		OptimizationLevel: models.OptimizationNormal,
		Charge:            0,
		Multiplicity:      1,
		Status:            models.StatusQueued,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
}

func TestValidJobID(t *testing.T) {
	assert.True(t, ValidJobID("water_20260101_120000_deadbeef"))
	assert.False(t, ValidJobID("../../etc/passwd"))
	assert.False(t, ValidJobID("water"))
	assert.False(t, ValidJobID(""))
}

func TestCreateAndReadMetadata(t *testing.T) {
	fs := newTestStore(t)
	job := newTestJob("water_20260101_120000_deadbeef")

	require.NoError(t, fs.Create(context.Background(), job, "water.xyz"))

	got, err := fs.ReadMetadata(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.MoleculeName, got.MoleculeName)
	assert.Equal(t, models.StatusQueued, got.Status)
	assert.Nil(t, got.Results)

	xyz, err := os.ReadFile(fs.XYZPath(job.JobID, "water.xyz"))
	require.NoError(t, err)
	assert.Equal(t, job.XYZContent, string(xyz))
}

func TestCreateRejectsInvalidJobID(t *testing.T) {
	fs := newTestStore(t)
	job := newTestJob("../escape")
	err := fs.Create(context.Background(), job, "water.xyz")
	assert.True(t, qerrors.IsValidationError(err))
}

func TestCreateTwiceFails(t *testing.T) {
	fs := newTestStore(t)
	job := newTestJob("water_20260101_120000_deadbeef")
	require.NoError(t, fs.Create(context.Background(), job, "water.xyz"))

	err := fs.Create(context.Background(), job, "water.xyz")
	assert.ErrorIs(t, err, qerrors.ErrAlreadyExists)
}

func TestReadMetadataNotFound(t *testing.T) {
	fs := newTestStore(t)
	_, err := fs.ReadMetadata(context.Background(), "nonexistent_20260101_120000_deadbeef")
	assert.ErrorIs(t, err, qerrors.ErrNotFound)
}

func TestMetadataNeverObservedTorn(t *testing.T) {
	// Invariant: readers never observe a syntactically invalid JSON
	// document, because writes go through a temp file + rename.
	fs := newTestStore(t)
	job := newTestJob("water_20260101_120000_deadbeef")
	require.NoError(t, fs.Create(context.Background(), job, "water.xyz"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := fs.Mutate(context.Background(), job.JobID, func(j *models.Job) (*models.Job, error) {
				j.WorkerID = "worker-x"
				return j, nil
			})
			assert.NoError(t, err)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			data, err := os.ReadFile(fs.metadataPath(job.JobID))
			if err != nil {
				continue
			}
			var v map[string]interface{}
			assert.NoError(t, json.Unmarshal(data, &v))
		}
	}()

	wg.Wait()
	close(done)

	final, err := fs.ReadMetadata(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, "worker-x", final.WorkerID)
}

func TestMutateSerializesConcurrentWriters(t *testing.T) {
	fs := newTestStore(t)
	job := newTestJob("water_20260101_120000_deadbeef")
	require.NoError(t, fs.Create(context.Background(), job, "water.xyz"))

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fs.Mutate(context.Background(), job.JobID, func(j *models.Job) (*models.Job, error) {
				j.Charge = j.Charge + 1
				return j, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := fs.ReadMetadata(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, n, final.Charge)
}

func TestSaveResultsMakesResultsVisible(t *testing.T) {
	fs := newTestStore(t)
	job := newTestJob("water_20260101_120000_deadbeef")
	require.NoError(t, fs.Create(context.Background(), job, "water.xyz"))

	energy := -76.2
	require.NoError(t, fs.SaveResults(context.Background(), job.JobID, &models.Results{Energy: &energy}))

	_, err := fs.Mutate(context.Background(), job.JobID, func(j *models.Job) (*models.Job, error) {
		j.Status = models.StatusCompleted
		return j, nil
	})
	require.NoError(t, err)

	got, err := fs.ReadMetadata(context.Background(), job.JobID)
	require.NoError(t, err)
	require.NotNil(t, got.Results)
	assert.Equal(t, energy, *got.Results.Energy)
}

func TestListFiltersByStatusAndTag(t *testing.T) {
	fs := newTestStore(t)

	queued := newTestJob("water_20260101_120000_deadbeef")
	queued.Tags = []string{"batch1"}
	require.NoError(t, fs.Create(context.Background(), queued, "water.xyz"))

	running := newTestJob("methane_20260101_120100_cafebabe")
	running.Status = models.StatusRunning
	running.Tags = []string{"batch2"}
	require.NoError(t, fs.Create(context.Background(), running, "methane.xyz"))

	all, err := fs.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyQueued, err := fs.List(context.Background(), ListFilter{Status: models.StatusQueued})
	require.NoError(t, err)
	require.Len(t, onlyQueued, 1)
	assert.Equal(t, queued.JobID, onlyQueued[0].JobID)

	onlyBatch2, err := fs.List(context.Background(), ListFilter{Tag: "batch2"})
	require.NoError(t, err)
	require.Len(t, onlyBatch2, 1)
	assert.Equal(t, running.JobID, onlyBatch2[0].JobID)
}

func TestDeleteRemovesSubtree(t *testing.T) {
	fs := newTestStore(t)
	job := newTestJob("water_20260101_120000_deadbeef")
	require.NoError(t, fs.Create(context.Background(), job, "water.xyz"))

	require.NoError(t, fs.Delete(context.Background(), job.JobID))

	_, err := os.Stat(filepath.Join(fs.JobDir(job.JobID)))
	assert.True(t, os.IsNotExist(err))
}
