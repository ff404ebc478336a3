package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pixelpress/api/internal/model"
)

// MaxFileSize is the fixed per-file admission limit
const MaxFileSize = 5 * 1024 * 1024 // 5 MiB

// ErrNotFound is returned when a job ID is unknown
var ErrNotFound = errors.New("job not found")

// ErrNoValidFiles is returned when a submitted batch yields zero admissible files
var ErrNoValidFiles = errors.New("no valid image files in batch")

// Registry owns the job records for a session: identity, status and result
// data. Records are mutated only through Update, which by contract is called
// by the scheduler alone; every other component reads snapshots.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]*model.Job
	order []string
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		jobs: make(map[string]*model.Job),
	}
}

// Create validates a batch of uploads and appends a queued job for every
// admissible file, preserving input order. Invalid files produce non-fatal
// rejection records. The batch as a whole fails only when nothing in it is
// admissible.
func (r *Registry) Create(files []model.SourceFile) ([]*model.Job, []model.RejectedFile, error) {
	var jobs []*model.Job
	var rejected []model.RejectedFile

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, f := range files {
		if reason := validate(f); reason != "" {
			rejected = append(rejected, model.RejectedFile{Name: f.Name, Reason: reason})
			continue
		}

		job := &model.Job{
			ID:        uuid.New().String(),
			Status:    model.JobStatusQueued,
			Source:    f,
			CreatedAt: now,
		}
		r.jobs[job.ID] = job
		r.order = append(r.order, job.ID)
		jobs = append(jobs, job.Clone())
	}

	if len(jobs) == 0 {
		return nil, rejected, ErrNoValidFiles
	}
	return jobs, rejected, nil
}

// Get returns a snapshot of one job
func (r *Registry) Get(id string) (*model.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// List returns snapshots of all jobs in submission order
func (r *Registry) List() []*model.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Job, 0, len(r.order))
	for _, id := range r.order {
		if job, ok := r.jobs[id]; ok {
			out = append(out, job.Clone())
		}
	}
	return out
}

// Len returns the number of records
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Update applies a mutation to one record and reports whether it exists.
// Scheduler-only by contract: no other component mutates job records.
func (r *Registry) Update(id string, fn func(*model.Job)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	fn(job)
	return true
}

// Remove discards one record and releases its retained bytes
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	job.Source.Data = nil
	job.Result = nil
	delete(r.jobs, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear discards every record and releases all retained bytes
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range r.jobs {
		job.Source.Data = nil
		job.Result = nil
	}
	r.jobs = make(map[string]*model.Job)
	r.order = nil
}

// validate returns a rejection reason, or "" for an admissible file
func validate(f model.SourceFile) string {
	if !strings.HasPrefix(f.MIME, "image/") {
		return fmt.Sprintf("%q is not an image", f.MIME)
	}
	if f.Size <= 0 {
		return "file is empty"
	}
	if f.Size > MaxFileSize {
		return fmt.Sprintf("file exceeds the %d MiB limit", MaxFileSize/(1024*1024))
	}
	return ""
}
