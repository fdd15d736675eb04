package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quantum-forge/orchestrator-core/pkg/config"
	"github.com/quantum-forge/orchestrator-core/pkg/filestore"
	"github.com/quantum-forge/orchestrator-core/pkg/models"
	"github.com/quantum-forge/orchestrator-core/pkg/qerrors"
	"github.com/quantum-forge/orchestrator-core/pkg/xtbexec"
)

// WorkerStatus is the current state of a worker.
type WorkerStatus string

// Worker status values.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is one concurrency slot: it polls FileStore, admits at most one job
// at a time, runs it, and finalizes terminal state (spec §4.7 steps 1-4).
type Worker struct {
	id        string
	podID     string
	store     *filestore.FileStore
	executor  JobExecutor
	workerCfg config.WorkerConfig
	xtbCfg    config.XTBConfig
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu            sync.RWMutex
	status        WorkerStatus
	currentJobID  string
	jobsProcessed int
	lastActivity  time.Time
}

// NewWorker builds a Worker.
func NewWorker(id, podID string, store *filestore.FileStore, executor JobExecutor, workerCfg config.WorkerConfig, xtbCfg config.XTBConfig) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		store:        store,
		executor:     executor,
		workerCfg:    workerCfg,
		xtbCfg:       xtbCfg,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker's poll loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop after its current job finishes.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health reports the worker's current status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        string(w.status),
		CurrentJobID:  w.currentJobID,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoJobsAvailable) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing job", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess claims the next QUEUED job (if any) and runs it to
// completion (spec §4.7 steps 1-4).
func (w *Worker) pollAndProcess(ctx context.Context) error {
	job, err := w.claimNextJob(ctx)
	if err != nil {
		return err
	}

	log := slog.With("job_id", job.JobID, "worker_id", w.id)
	log.Info("job claimed")

	w.setStatus(WorkerStatusWorking, job.JobID)
	defer w.setStatus(WorkerStatusIdle, "")

	w.runJob(ctx, job)

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()

	log.Info("job processing complete")
	return nil
}

// claimNextJob lists QUEUED jobs FIFO by created_at and attempts to admit
// the first one still QUEUED once the per-job lock is held, so a losing
// worker simply moves on to the next candidate (spec §4.7 step 2).
func (w *Worker) claimNextJob(ctx context.Context) (*models.Job, error) {
	candidates, err := w.store.List(ctx, filestore.ListFilter{Status: models.StatusQueued})
	if err != nil {
		return nil, fmt.Errorf("listing queued jobs: %w", err)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	for _, candidate := range candidates {
		admitted, err := w.store.Mutate(ctx, candidate.JobID, func(job *models.Job) (*models.Job, error) {
			if job.Status != models.StatusQueued {
				return nil, qerrors.ErrConflict
			}
			job.Status = models.StatusRunning
			job.PodID = w.podID
			job.WorkerID = w.id
			return job, nil
		})
		if err != nil {
			continue // another worker won the race; try the next candidate
		}
		return admitted, nil
	}
	return nil, ErrNoJobsAvailable
}

// runJob drives execution for an admitted job: it starts a heartbeat that
// both keeps updated_at fresh (so the orphan sweep doesn't mistake a long
// computation for a crash) and watches for a cancellation request, then
// invokes the executor and writes the finalized terminal state
// (spec §4.7 step 4, §4.5 Cancellation).
func (w *Worker) runJob(ctx context.Context, job *models.Job) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var cancelled atomic.Bool
	heartbeatDone := make(chan struct{})
	go w.runHeartbeat(job.JobID, cancel, &cancelled, heartbeatDone)

	result := w.executor.Run(jobCtx, job, w.xtbCfg.Timeout, cancelled.Load)
	close(heartbeatDone)

	if err := w.finalize(job.JobID, result); err != nil {
		slog.Error("failed to finalize job", "job_id", job.JobID, "error", err)
	}
}

func (w *Worker) runHeartbeat(jobID string, cancel context.CancelFunc, cancelled *atomic.Bool, done chan struct{}) {
	ticker := time.NewTicker(w.workerCfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			updated, err := w.store.Mutate(context.Background(), jobID, func(job *models.Job) (*models.Job, error) {
				return job, nil // touch only: Mutate bumps updated_at unconditionally
			})
			if err != nil {
				slog.Warn("heartbeat touch failed", "job_id", jobID, "error", err)
				continue
			}
			if updated.CancelRequested {
				cancelled.Store(true)
				cancel()
				return
			}
		}
	}
}

// finalize writes results.json (on success) and the terminal metadata
// transition (spec §4.1, §4.7 step 4, §8 invariant 2).
func (w *Worker) finalize(jobID string, result *xtbexec.Result) error {
	if result.Success {
		if err := w.store.SaveResults(context.Background(), jobID, result.Results); err != nil {
			return fmt.Errorf("saving results: %w", err)
		}
	}

	_, err := w.store.Mutate(context.Background(), jobID, func(job *models.Job) (*models.Job, error) {
		if result.Success {
			job.Status = models.StatusCompleted
			job.Results = result.Results
		} else {
			job.Status = models.StatusFailed
			job.ErrorMessage = result.ErrorMessage
		}
		return job, nil
	})
	return err
}

func (w *Worker) pollInterval() time.Duration {
	base := w.workerCfg.PollInterval
	jitter := w.workerCfg.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status WorkerStatus, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}
