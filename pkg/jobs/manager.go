// Package jobs is the Job Manager (spec §4.6): validates submissions,
// generates job identifiers, and otherwise delegates to FileStore. The
// thin-service, validate-then-delegate shape is grounded on
// pkg/services/session_service.go.
package jobs

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quantum-forge/orchestrator-core/pkg/filestore"
	"github.com/quantum-forge/orchestrator-core/pkg/models"
	"github.com/quantum-forge/orchestrator-core/pkg/qerrors"
)

// SubmissionRequest is the inbound shape of a job submission (spec §6
// Submission interface).
type SubmissionRequest struct {
	MoleculeName      string
	XYZContent        string
	OptimizationLevel models.OptimizationLevel
	Email             string
	Tags              []string
	Charge            int
	Multiplicity      int
}

// Manager owns job lifecycle operations on top of a FileStore.
type Manager struct {
	store *filestore.FileStore
}

// New builds a Manager over store.
func New(store *filestore.FileStore) *Manager {
	return &Manager{store: store}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Submit validates req and, on success, creates the job's FileStore record,
// returning its generated job_id (spec §4.6).
func (m *Manager) Submit(ctx context.Context, req SubmissionRequest) (string, error) {
	if err := validateSubmission(req); err != nil {
		return "", err
	}

	if req.Multiplicity == 0 {
		req.Multiplicity = 1
	}

	jobID := generateJobID(req.MoleculeName, time.Now().UTC())

	job := &models.Job{
		JobID:             jobID,
		MoleculeName:      req.MoleculeName,
		XYZContent:        req.XYZContent,
		OptimizationLevel: req.OptimizationLevel,
		Email:             req.Email,
		Tags:              req.Tags,
		Charge:            req.Charge,
		Multiplicity:      req.Multiplicity,
		Status:            models.StatusQueued,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}

	if err := m.store.Create(ctx, job, req.MoleculeName+".xyz"); err != nil {
		return "", err
	}
	return jobID, nil
}

// Get is a read-through to FileStore.
func (m *Manager) Get(ctx context.Context, jobID string) (*models.Job, error) {
	return m.store.ReadMetadata(ctx, jobID)
}

// List is a read-through to FileStore.
func (m *Manager) List(ctx context.Context, filter filestore.ListFilter) ([]*models.Job, error) {
	return m.store.List(ctx, filter)
}

// Cancel marks job_id's metadata with a cancellation request, observed by
// the Worker Pool (spec §4.6). Cancelling a QUEUED job fails it directly,
// since no worker will ever observe the running flag for a job that never
// started.
func (m *Manager) Cancel(ctx context.Context, jobID string) error {
	_, err := m.store.Mutate(ctx, jobID, func(job *models.Job) (*models.Job, error) {
		if job.Status.IsTerminal() {
			return nil, fmt.Errorf("job %s: %w: already in terminal state %s", jobID, qerrors.ErrConflict, job.Status)
		}
		if job.Status == models.StatusQueued {
			job.Status = models.StatusFailed
			job.ErrorMessage = "cancelled"
			return job, nil
		}
		job.CancelRequested = true
		return job, nil
	})
	return err
}

// Delete forwards to FileStore, rejecting deletion of a RUNNING job (spec §4.6).
func (m *Manager) Delete(ctx context.Context, jobID string) error {
	job, err := m.store.ReadMetadata(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == models.StatusRunning {
		return fmt.Errorf("job %s: %w: cannot delete a running job", jobID, qerrors.ErrConflict)
	}
	return m.store.Delete(ctx, jobID)
}

func validateSubmission(req SubmissionRequest) error {
	if strings.TrimSpace(req.MoleculeName) == "" {
		return qerrors.NewValidationError("molecule_name", "must not be empty")
	}
	if !req.OptimizationLevel.IsValid() {
		return qerrors.NewValidationError("optimization_level", fmt.Sprintf("invalid value %q", req.OptimizationLevel))
	}
	return validateXYZ(req.XYZContent)
}

// validateXYZ enforces spec §4.6/§8: first line is a positive integer atom
// count N, followed by a comment line, followed by exactly N non-empty atom
// lines (the atom lines' contents are not checked).
func validateXYZ(content string) error {
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if len(lines) < 2 {
		return qerrors.NewValidationError("xyz_content", "must contain an atom count, a comment line, and atom lines")
	}

	n, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return qerrors.NewValidationError("xyz_content", "first line must be an integer atom count")
	}
	if n <= 0 {
		return qerrors.NewValidationError("xyz_content", "atom count must be positive")
	}

	atomLines := lines[2:]
	nonEmpty := 0
	for _, l := range atomLines {
		if strings.TrimSpace(l) != "" {
			nonEmpty++
		}
	}
	if nonEmpty != n {
		return qerrors.NewValidationError("xyz_content", fmt.Sprintf("declared atom count %d does not match %d atom lines", n, nonEmpty))
	}

	return nil
}

// generateJobID builds <slug(molecule_name)>_<UTC YYYYMMDD>_<HHMMSS>_<hex8>
// (spec §4.6), drawing the hex8 suffix from a UUID's random bytes purely for
// entropy — not as a v4 string — so no shell-unsafe characters ever reach a
// path component.
func generateJobID(moleculeName string, now time.Time) string {
	slug := slugify(moleculeName)
	id := uuid.New()
	hexSuffix := fmt.Sprintf("%x", id[:4])
	return fmt.Sprintf("%s_%s_%s", slug, now.Format("20060102_150405"), hexSuffix)
}

func slugify(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	slug := slugPattern.ReplaceAllString(lower, "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "molecule"
	}
	return slug
}
