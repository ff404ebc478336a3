package service

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"

	"github.com/pixelpress/api/internal/model"
	"github.com/pixelpress/api/internal/registry"
	"github.com/pixelpress/api/internal/scheduler"
)

// ErrNotCompressed is returned when a download targets a job without a result
var ErrNotCompressed = errors.New("job has no compressed result")

// ErrNothingToDownload is returned when no job in the registry has settled successfully
var ErrNothingToDownload = errors.New("no compressed results to download")

// Download is one file ready to be served to the browser
type Download struct {
	Name        string
	ContentType string
	Data        []byte
}

// JobService exposes registry snapshots and result downloads to the handlers.
// Control operations stay on the scheduler; this layer never mutates a job.
type JobService struct {
	registry  *registry.Registry
	scheduler *scheduler.Scheduler
}

// NewJobService creates a new job service
func NewJobService(reg *registry.Registry, sched *scheduler.Scheduler) *JobService {
	return &JobService{
		registry:  reg,
		scheduler: sched,
	}
}

// List returns snapshots of every job in submission order
func (s *JobService) List() model.JobListResponse {
	jobs := s.registry.List()
	views := make([]model.JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, model.NewJobView(job))
	}
	return model.JobListResponse{
		Jobs:   views,
		Paused: s.scheduler.IsPaused(),
	}
}

// Get returns a snapshot of one job
func (s *JobService) Get(id string) (model.JobView, error) {
	job, ok := s.registry.Get(id)
	if !ok {
		return model.JobView{}, registry.ErrNotFound
	}
	return model.NewJobView(job), nil
}

// Progress returns the aggregate progress counters
func (s *JobService) Progress() model.ProgressResponse {
	return s.scheduler.Progress()
}

// DownloadOne returns the compressed bytes for a single job
func (s *JobService) DownloadOne(id string) (*Download, error) {
	job, ok := s.registry.Get(id)
	if !ok {
		return nil, registry.ErrNotFound
	}
	if job.Status != model.JobStatusCompressed || job.Result == nil {
		return nil, ErrNotCompressed
	}

	contentType := job.Result.Format.ContentType()
	if job.Result.Format == model.FormatAuto {
		contentType = job.Source.MIME
	}

	return &Download{
		Name:        job.Result.Name,
		ContentType: contentType,
		Data:        job.Result.Data,
	}, nil
}

// DownloadAll returns a zip archive of every compressed result
func (s *JobService) DownloadAll() (*Download, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	count := 0
	seen := make(map[string]int)
	for _, job := range s.registry.List() {
		if job.Status != model.JobStatusCompressed || job.Result == nil {
			continue
		}

		name := job.Result.Name
		// Duplicate output names get a numeric suffix inside the archive
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%d_%s", n, name)
		}
		seen[job.Result.Name]++

		entry, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive entry: %w", err)
		}
		if _, err := entry.Write(job.Result.Data); err != nil {
			return nil, fmt.Errorf("failed to write archive entry: %w", err)
		}
		count++
	}

	if count == 0 {
		return nil, ErrNothingToDownload
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	return &Download{
		Name:        "compressed-images.zip",
		ContentType: "application/zip",
		Data:        buf.Bytes(),
	}, nil
}
