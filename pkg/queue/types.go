// Package queue is the Worker Pool (spec §4.7): it polls FileStore for
// queued jobs, admits them under a bounded concurrency limit, drives the
// XTB Executor, finalizes terminal state, and recovers orphaned jobs left
// behind by a crashed worker. The poll/admit/execute/finalize/health-log
// worker loop, including FIFO claiming and poll jitter, is grounded on
// pkg/queue/worker.go and pkg/queue/pool.go; admission itself rides on
// FileStore's per-job lock (pkg/filestore) standing in for the teacher's
// SELECT ... FOR UPDATE SKIP LOCKED transaction.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/quantum-forge/orchestrator-core/pkg/models"
	"github.com/quantum-forge/orchestrator-core/pkg/xtbexec"
)

// ErrNoJobsAvailable indicates no QUEUED jobs are in FileStore.
var ErrNoJobsAvailable = errors.New("no jobs available")

// JobExecutor runs one job start to finish. pkg/xtbexec.Executor satisfies
// this directly — the worker owns only scheduling, not execution.
type JobExecutor interface {
	Run(ctx context.Context, job *models.Job, timeout time.Duration, cancelRequested func() bool) *xtbexec.Result
}

// PoolHealth reports the health of the entire worker pool (spec §4.7 step 5).
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	PodID            string         `json:"pod_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}

// WorkerHealth reports the health of a single worker.
type WorkerHealth struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	CurrentJobID  string    `json:"current_job_id,omitempty"`
	JobsProcessed int       `json:"jobs_processed"`
	LastActivity  time.Time `json:"last_activity"`
}
