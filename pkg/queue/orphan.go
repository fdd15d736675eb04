package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quantum-forge/orchestrator-core/pkg/filestore"
	"github.com/quantum-forge/orchestrator-core/pkg/models"
)

// orphanState tracks orphan detection metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanDetection periodically scans for RUNNING jobs whose updated_at is
// stale, per the chosen fault-tolerance policy (spec §4.7: policy (b),
// auto-fail after 2 x timeout — see DESIGN.md). All pods run this
// independently; the operation is idempotent since recoverOrphanedJob leaves
// a job's status and error message unchanged once it has already left
// RUNNING (Mutate still rewrites its metadata with a fresh updated_at).
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.workerCfg.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("orphan detection failed", "error", err)
			}
		}
	}
}

func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	threshold := time.Duration(p.workerCfg.OrphanMultiplier) * p.xtbCfg.Timeout
	cutoff := time.Now().Add(-threshold)

	running, err := p.store.List(ctx, filestore.ListFilter{Status: models.StatusRunning})
	if err != nil {
		return err
	}

	var orphans []*models.Job
	for _, job := range running {
		if job.UpdatedAt.Before(cutoff) {
			orphans = append(orphans, job)
		}
	}

	if len(orphans) == 0 {
		p.orphans.mu.Lock()
		p.orphans.lastOrphanScan = time.Now()
		p.orphans.mu.Unlock()
		return nil
	}

	slog.Warn("detected orphaned jobs", "count", len(orphans))

	recovered := 0
	for _, job := range orphans {
		if err := p.recoverOrphanedJob(ctx, job); err != nil {
			slog.Error("failed to recover orphaned job", "job_id", job.JobID, "error", err)
			continue
		}
		recovered++
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += recovered
	p.orphans.mu.Unlock()

	return nil
}

func (p *WorkerPool) recoverOrphanedJob(ctx context.Context, job *models.Job) error {
	_, err := p.store.Mutate(ctx, job.JobID, func(j *models.Job) (*models.Job, error) {
		if j.Status != models.StatusRunning {
			return j, nil // already finalized by its own worker; nothing to do
		}
		j.Status = models.StatusFailed
		j.ErrorMessage = "orphaned"
		return j, nil
	})
	if err != nil {
		return err
	}
	slog.Warn("orphaned job marked as failed", "job_id", job.JobID, "pod_id", job.PodID)
	return nil
}

// CleanupStartupOrphans marks jobs this pod was running when it previously
// crashed as FAILED, so a restart doesn't wait a full orphan-sweep interval
// before reclaiming them.
func CleanupStartupOrphans(ctx context.Context, store *filestore.FileStore, podID string) error {
	running, err := store.List(ctx, filestore.ListFilter{Status: models.StatusRunning})
	if err != nil {
		return err
	}

	for _, job := range running {
		if job.PodID != podID {
			continue
		}
		_, err := store.Mutate(ctx, job.JobID, func(j *models.Job) (*models.Job, error) {
			if j.Status != models.StatusRunning {
				return j, nil
			}
			j.Status = models.StatusFailed
			j.ErrorMessage = "orphaned"
			return j, nil
		})
		if err != nil {
			slog.Error("failed to mark startup orphan", "job_id", job.JobID, "error", err)
			continue
		}
		slog.Info("startup orphan recovered", "job_id", job.JobID)
	}
	return nil
}
