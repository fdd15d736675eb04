// Package models defines the data model shared by the FileStore, DataStore
// client, Job Manager, Worker Pool, and Logging Emitter: Job, Molecule,
// Calculation, QualityMetrics, and Lineage records (spec §3).
package models

import "time"

// Status is the lifecycle state of a Job.
type Status string

// Job lifecycle states.
const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// allowedTransitions encodes the graph in spec §8 invariant 1:
// QUEUED -> RUNNING -> {COMPLETED, FAILED}, and QUEUED -> FAILED
// (cancellation before admission).
var allowedTransitions = map[Status]map[Status]bool{
	StatusQueued: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// CanTransitionTo reports whether moving from s to next is a legal transition.
func (s Status) CanTransitionTo(next Status) bool {
	return allowedTransitions[s][next]
}

// IsTerminal reports whether the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// OptimizationLevel is the xTB geometry optimization aggressiveness.
type OptimizationLevel string

// Allowed optimization levels (spec §3).
const (
	OptimizationCrude  OptimizationLevel = "crude"
	OptimizationNormal OptimizationLevel = "normal"
	OptimizationTight  OptimizationLevel = "tight"
)

// IsValid reports whether the level is one of the allowed values.
func (l OptimizationLevel) IsValid() bool {
	switch l {
	case OptimizationCrude, OptimizationNormal, OptimizationTight:
		return true
	default:
		return false
	}
}

// Job represents one computation request (spec §3, "Job").
//
// It is the authoritative on-disk record: FileStore owns metadata.json for a
// Job, and every field here round-trips through that JSON document.
type Job struct {
	JobID             string            `json:"job_id"`
	MoleculeName      string            `json:"molecule_name"`
	XYZContent        string            `json:"xyz_content"`
	OptimizationLevel OptimizationLevel `json:"optimization_level"`
	Email             string            `json:"email,omitempty"`
	Tags              []string          `json:"tags,omitempty"`
	Charge            int               `json:"charge"`
	Multiplicity      int               `json:"multiplicity"`

	Status       Status `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// PodID/WorkerID identify the worker that admitted the job, used by
	// orphan detection (spec §4.7).
	PodID    string `json:"pod_id,omitempty"`
	WorkerID string `json:"worker_id,omitempty"`

	// CancelRequested is set by Job Manager.Cancel and observed by the
	// worker that owns the job (spec §4.6, §4.7).
	CancelRequested bool `json:"cancel_requested,omitempty"`

	// Results is present iff Status == COMPLETED. It is never populated from
	// a stale in-memory copy — callers must scrub it when results.json is
	// absent on disk (spec §6, Status interface).
	Results *Results `json:"results,omitempty"`
}

// Results is the canonical parsed-and-scored result set for a completed job,
// serialized to results.json (spec §4.3 canonical key set + §4.4 scoring).
type Results struct {
	Energy             *float64           `json:"energy,omitempty"`
	HomoLumoGap        *float64           `json:"homo_lumo_gap,omitempty"`
	Gap                *float64           `json:"gap,omitempty"`
	Homo               *float64           `json:"homo,omitempty"`
	Lumo               *float64           `json:"lumo,omitempty"`
	Dipole             *float64           `json:"dipole,omitempty"`
	Charges            []float64          `json:"charges,omitempty"`
	Forces             []float64          `json:"forces,omitempty"`
	OptimizedGeometry  string             `json:"optimized_geometry,omitempty"`
	ConvergenceStatus  string             `json:"convergence_status,omitempty"`
	AtomCount          int                `json:"atom_count,omitempty"`
	GradientNorm       *float64           `json:"gradient_norm,omitempty"`
	HomoEstimated      bool               `json:"homo_estimated,omitempty"`
	ExecutionTime      float64            `json:"execution_time_seconds,omitempty"`
	XTBVersion         string             `json:"xtb_version,omitempty"`
	Method             string             `json:"method,omitempty"`
	QualityScore       float64            `json:"quality_score,omitempty"`
	IsMLReady          bool               `json:"is_ml_ready,omitempty"`
	QualityDimensions  QualityDimensions  `json:"quality_dimensions,omitempty"`
}

// QualityDimensions breaks out the four weighted scoring dimensions of spec §4.4.
type QualityDimensions struct {
	Completeness float64 `json:"completeness"`
	Validity     float64 `json:"validity"`
	Consistency  float64 `json:"consistency"`
	Uniqueness   float64 `json:"uniqueness"`
}
