// Package filestore implements the on-disk job directory described in
// spec §4.1: one subdirectory per job_id holding the input XYZ, the
// authoritative metadata.json, results.json (once completed), and any
// scratch files the xTB executor produced.
//
// Atomic-write and per-job-lock discipline is grounded on the "write to
// temp, fsync, rename" convention the teacher repo applies to its embedded
// migrations (pkg/database/client.go) and generalized here to every
// metadata update, per spec §9 "Atomic metadata updates".
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/danjacques/gofslock/fslock"

	"github.com/quantum-forge/orchestrator-core/pkg/config"
	"github.com/quantum-forge/orchestrator-core/pkg/models"
	"github.com/quantum-forge/orchestrator-core/pkg/qerrors"
)

const (
	metadataFileName = "metadata.json"
	resultsFileName  = "results.json"
	lockFileName     = ".lock"

	// lockTimeout bounds how long a writer waits to acquire the per-job
	// advisory lock before giving up, so a crashed holder cannot wedge the
	// store forever.
	lockTimeout = 30 * time.Second
)

// jobIDPattern matches <name>_<YYYYMMDD>_<HHMMSS>_<hex8> (spec §3, "Job").
// Job IDs are used verbatim as a path component, so this also guards against
// directory traversal.
var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*_\d{8}_\d{6}_[0-9a-f]{8}$`)

// ValidJobID reports whether id is a well-formed job identifier.
func ValidJobID(id string) bool {
	return jobIDPattern.MatchString(id)
}

// FileStore owns the on-disk job directory tree. It is safe for concurrent
// use by multiple goroutines and multiple processes (workers coordinate
// through the per-job lock file, not in-process state).
type FileStore struct {
	rootDir string
}

// New creates a FileStore rooted at cfg.RootDir, creating the directory if
// it does not already exist.
func New(cfg config.FileStoreConfig) (*FileStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.RootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating jobs root %s: %w", cfg.RootDir, err)
	}
	return &FileStore{rootDir: cfg.RootDir}, nil
}

func (fs *FileStore) jobDir(jobID string) string {
	return filepath.Join(fs.rootDir, jobID)
}

func (fs *FileStore) metadataPath(jobID string) string {
	return filepath.Join(fs.jobDir(jobID), metadataFileName)
}

func (fs *FileStore) resultsPath(jobID string) string {
	return filepath.Join(fs.jobDir(jobID), resultsFileName)
}

func (fs *FileStore) lockPath(jobID string) string {
	return filepath.Join(fs.jobDir(jobID), lockFileName)
}

// XYZPath returns the path of the input geometry file for jobID, named
// after the molecule (spec §6, "<name>.xyz").
func (fs *FileStore) XYZPath(jobID, xyzName string) string {
	return filepath.Join(fs.jobDir(jobID), xyzName)
}

// JobDir returns the job's directory for callers (e.g. the xTB
// executor) that need to locate auxiliary files xTB wrote alongside the
// input, distinct from the executor's own scratch working directory.
func (fs *FileStore) JobDir(jobID string) string {
	return fs.jobDir(jobID)
}

// Create materializes a new job subdirectory with its input XYZ and initial
// metadata. It fails with qerrors.ErrAlreadyExists if the subdirectory
// already exists (spec §4.1).
func (fs *FileStore) Create(_ context.Context, job *models.Job, xyzName string) error {
	if !ValidJobID(job.JobID) {
		return qerrors.NewValidationError("job_id", "malformed job id")
	}

	dir := fs.jobDir(job.JobID)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("job %s: %w", job.JobID, qerrors.ErrAlreadyExists)
		}
		return fmt.Errorf("creating job directory: %w", err)
	}

	if err := writeAtomic(fs.XYZPath(job.JobID, xyzName), []byte(job.XYZContent)); err != nil {
		return fmt.Errorf("writing input geometry: %w", err)
	}

	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := writeAtomic(fs.metadataPath(job.JobID), data); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// ReadMetadata reads the authoritative job record. Concurrent readers always
// observe either the pre- or post-state of any single write (spec §4.1
// guarantee) because writes go through writeAtomic's temp+rename sequence;
// reads take no lock.
func (fs *FileStore) ReadMetadata(_ context.Context, jobID string) (*models.Job, error) {
	return fs.readMetadataUnlocked(jobID)
}

func (fs *FileStore) readMetadataUnlocked(jobID string) (*models.Job, error) {
	data, err := os.ReadFile(fs.metadataPath(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("job %s: %w", jobID, qerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("reading metadata for %s: %w", jobID, err)
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decoding metadata for %s: %w", jobID, err)
	}

	// The API layer must never synthesize a results field when results.json
	// is absent on disk (spec §6, Status interface). Results come from
	// results.json when it exists; otherwise any stale embedded copy is
	// scrubbed, so callers always see ground truth.
	resultsData, err := os.ReadFile(fs.resultsPath(jobID))
	switch {
	case err == nil:
		var results models.Results
		if err := json.Unmarshal(resultsData, &results); err != nil {
			return nil, fmt.Errorf("decoding results for %s: %w", jobID, err)
		}
		job.Results = &results
	case os.IsNotExist(err):
		job.Results = nil
	}

	return &job, nil
}

// Mutate performs a locked read-modify-write cycle on a job's metadata,
// guaranteeing that two concurrent writers (e.g. two workers admitting the
// same job) cannot interleave (spec §4.1, §5, §8 invariant 5).
//
// fn receives the current record and returns the record to persist, or an
// error to abort without writing. Returning qerrors.ErrConflict (or any
// error) leaves the on-disk state untouched.
func (fs *FileStore) Mutate(_ context.Context, jobID string, fn func(*models.Job) (*models.Job, error)) (*models.Job, error) {
	handle, err := fs.acquireLock(jobID)
	if err != nil {
		return nil, fmt.Errorf("locking job %s: %w", jobID, err)
	}
	defer func() { _ = handle.Unlock() }()

	current, err := fs.readMetadataUnlocked(jobID)
	if err != nil {
		return nil, err
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	next.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := writeAtomic(fs.metadataPath(jobID), data); err != nil {
		return nil, fmt.Errorf("writing metadata: %w", err)
	}
	return next, nil
}

var errLockGiveUp = errors.New("filestore: lock wait exceeded timeout")

// acquireLock retries the advisory lock every 25 ms, the same
// pattern the gofslock-using example in the pack uses for its deploy cache
// lock, bounded here by lockTimeout so a crashed holder cannot wedge a
// writer forever.
func (fs *FileStore) acquireLock(jobID string) (fslock.Handle, error) {
	deadline := time.Now().Add(lockTimeout)
	l := fslock.L{
		Path: fs.lockPath(jobID),
		Block: fslock.Blocker(func() error {
			if time.Now().After(deadline) {
				return errLockGiveUp
			}
			time.Sleep(25 * time.Millisecond)
			return nil
		}),
	}
	return l.Lock()
}

// SaveResults writes the canonical parsed-and-scored result set
// (results.json). By spec §8 invariant 2, this file must exist iff the job
// is COMPLETED; callers are responsible for writing it before (or as part
// of, via Mutate) transitioning the job to COMPLETED.
func (fs *FileStore) SaveResults(_ context.Context, jobID string, results *models.Results) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	if err := writeAtomic(fs.resultsPath(jobID), data); err != nil {
		return fmt.Errorf("writing results for %s: %w", jobID, err)
	}
	return nil
}

// ListFilter narrows List to jobs matching Status (if non-empty) and Tag (if
// non-empty). Filtering happens in-memory after reading each metadata.json,
// since FileStore has no query engine (spec §4.1 "list()").
type ListFilter struct {
	Status models.Status
	Tag    string
}

func (f ListFilter) matches(job *models.Job) bool {
	if f.Status != "" && job.Status != f.Status {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range job.Tags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// List returns all jobs matching filter, ordered by modification time
// descending (spec §4.1 recommendation), derived from each job directory's
// mtime rather than CreatedAt so it reflects the most recent metadata write.
func (fs *FileStore) List(_ context.Context, filter ListFilter) ([]*models.Job, error) {
	entries, err := os.ReadDir(fs.rootDir)
	if err != nil {
		return nil, fmt.Errorf("listing jobs root: %w", err)
	}

	type withMtime struct {
		job   *models.Job
		mtime time.Time
	}
	var all []withMtime

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		job, err := fs.readMetadataUnlocked(entry.Name())
		if err != nil {
			// A directory without readable metadata (e.g. torn creation) is
			// skipped rather than failing the whole listing.
			continue
		}
		if !filter.matches(job) {
			continue
		}
		all = append(all, withMtime{job: job, mtime: info.ModTime()})
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].mtime.After(all[j].mtime)
	})

	jobs := make([]*models.Job, len(all))
	for i, wm := range all {
		jobs[i] = wm.job
	}
	return jobs, nil
}

// Delete recursively removes a job's entire subtree. It succeeds even if
// subprocess scratch files remain (spec §4.1).
func (fs *FileStore) Delete(_ context.Context, jobID string) error {
	if err := os.RemoveAll(fs.jobDir(jobID)); err != nil {
		return fmt.Errorf("deleting job %s: %w", jobID, err)
	}
	return nil
}

// writeAtomic writes data to path via a temp file, fsync, and rename, so
// concurrent readers never observe a torn document (spec §4.1 guarantee,
// §9 design note).
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("fsyncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
