package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quantum-forge/orchestrator-core/pkg/config"
	"github.com/quantum-forge/orchestrator-core/pkg/filestore"
	"github.com/quantum-forge/orchestrator-core/pkg/models"
)

// WorkerPool manages a fixed set of Workers plus the background orphan
// sweep, all coordinating through the shared FileStore rather than any
// in-process state (spec §4.7: "multiple worker processes may coexist and
// coordinate only via the shared FileStore").
type WorkerPool struct {
	podID     string
	store     *filestore.FileStore
	executor  JobExecutor
	workerCfg config.WorkerConfig
	xtbCfg    config.XTBConfig
	workers   []*Worker
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	started   bool

	orphans orphanState
}

// NewWorkerPool creates a pool of workerCfg.MaxConcurrentJobs workers, one
// concurrency slot each (spec §4.7: "default 3 concurrent jobs per worker
// process").
func NewWorkerPool(podID string, store *filestore.FileStore, executor JobExecutor, workerCfg config.WorkerConfig, xtbCfg config.XTBConfig) *WorkerPool {
	return &WorkerPool{
		podID:     podID,
		store:     store,
		executor:  executor,
		workerCfg: workerCfg,
		xtbCfg:    xtbCfg,
		workers:   make([]*Worker, 0, workerCfg.MaxConcurrentJobs),
		stopCh:    make(chan struct{}),
	}
}

// Start spawns the worker goroutines and the orphan detection background
// task. Safe to call once; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true

	slog.Info("starting worker pool", "pod_id", p.podID, "worker_count", p.workerCfg.MaxConcurrentJobs)

	for i := 0; i < p.workerCfg.MaxConcurrentJobs; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := NewWorker(workerID, p.podID, p.store, p.executor, p.workerCfg, p.xtbCfg)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runHealthLog(ctx)
	}()

	slog.Info("worker pool started")
	return nil
}

// Stop signals all workers and the background tasks to stop, waiting for
// in-flight jobs to finish for at most workerCfg.GracefulShutdownTimeout
// (spec §4.7's cooperative cancellation model means Stop does not abort a
// running computation — it lets workers drain).
func (p *WorkerPool) Stop() {
	slog.Info("stopping worker pool gracefully")

	done := make(chan struct{})
	go func() {
		for _, worker := range p.workers {
			worker.Stop()
		}
		p.stopOnce.Do(func() { close(p.stopCh) })
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("worker pool stopped gracefully")
	case <-time.After(p.workerCfg.GracefulShutdownTimeout):
		slog.Warn("graceful shutdown timeout exceeded, in-flight jobs still running", "pod_id", p.podID)
	}
}

// Health reports the current pool status (spec §4.7 step 5).
func (p *WorkerPool) Health() *PoolHealth {
	ctx := context.Background()

	queueDepth, err := p.store.List(ctx, filestore.ListFilter{Status: models.StatusQueued})
	if err != nil {
		slog.Error("failed to query queue depth for health check", "pod_id", p.podID, "error", err)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	p.orphans.mu.Lock()
	lastOrphanScan := p.orphans.lastOrphanScan
	orphansRecovered := p.orphans.orphansRecovered
	p.orphans.mu.Unlock()

	return &PoolHealth{
		IsHealthy:        len(p.workers) > 0,
		PodID:            p.podID,
		ActiveWorkers:    activeWorkers,
		TotalWorkers:     len(p.workers),
		QueueDepth:       len(queueDepth),
		WorkerStats:      workerStats,
		LastOrphanScan:   lastOrphanScan,
		OrphansRecovered: orphansRecovered,
	}
}

// runHealthLog periodically logs active-job counts (spec §4.7 step 5).
func (p *WorkerPool) runHealthLog(ctx context.Context) {
	ticker := time.NewTicker(p.workerCfg.HealthLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			h := p.Health()
			slog.Info("worker pool health",
				"pod_id", p.podID,
				"active_workers", h.ActiveWorkers,
				"total_workers", h.TotalWorkers,
				"queue_depth", h.QueueDepth)
		}
	}
}
