package handler

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/pixelpress/api/internal/model"
	"github.com/pixelpress/api/internal/registry"
	"github.com/pixelpress/api/internal/scheduler"
	"github.com/pixelpress/api/internal/service"
	"github.com/pixelpress/api/pkg/response"
)

type JobHandler struct {
	service   *service.JobService
	scheduler *scheduler.Scheduler
}

func NewJobHandler(svc *service.JobService, sched *scheduler.Scheduler) *JobHandler {
	return &JobHandler{
		service:   svc,
		scheduler: sched,
	}
}

// Enqueue handles POST /api/jobs
// @Summary      Enqueue images
// @Description  Submit a batch of images for compression. Valid files (image MIME type, max 5 MiB each) become queued jobs; invalid files are reported individually.
// @Tags         Jobs
// @Accept       multipart/form-data
// @Produce      json
// @Param        files formData file true "Image files (repeatable field)"
// @Success      201 {object} model.EnqueueResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/jobs [post]
func (h *JobHandler) Enqueue(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return response.ValidationError(c, "Multipart form is required", nil)
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return response.ValidationError(c, "At least one file is required", nil)
	}

	files := make([]model.SourceFile, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			return response.ServiceError(c, "Failed to open uploaded file")
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return response.ServiceError(c, "Failed to read uploaded file")
		}

		files = append(files, model.SourceFile{
			Name: header.Filename,
			MIME: header.Header.Get("Content-Type"),
			Size: header.Size,
			Data: data,
		})
	}

	jobs, rejected, err := h.scheduler.Enqueue(files)
	if err != nil {
		if errors.Is(err, registry.ErrNoValidFiles) {
			return response.ValidationError(c, "No valid image files in batch", rejected)
		}
		return response.ServiceError(c, err.Error())
	}

	views := make([]model.JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, model.NewJobView(job))
	}

	return response.Created(c, model.EnqueueResponse{
		Jobs:     views,
		Rejected: rejected,
	})
}

// List handles GET /api/jobs
// @Summary      List jobs
// @Description  Snapshot of every job in submission order, plus the pause flag
// @Tags         Jobs
// @Produce      json
// @Success      200 {object} model.JobListResponse
// @Router       /api/jobs [get]
func (h *JobHandler) List(c *fiber.Ctx) error {
	return response.OK(c, h.service.List())
}

// Get handles GET /api/jobs/:jobId
// @Summary      Get one job
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.JobView
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/jobs/{jobId} [get]
func (h *JobHandler) Get(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	view, err := h.service.Get(jobID)
	if err != nil {
		return jobError(c, err)
	}
	return response.OK(c, view)
}

// Progress handles GET /api/jobs/progress
// @Summary      Aggregate progress
// @Description  processed/total counters across the session. Errored jobs count toward total but never toward processed.
// @Tags         Jobs
// @Produce      json
// @Success      200 {object} model.ProgressResponse
// @Router       /api/jobs/progress [get]
func (h *JobHandler) Progress(c *fiber.Ctx) error {
	return response.OK(c, h.service.Progress())
}

// Cancel handles POST /api/jobs/:jobId/cancel
// @Summary      Cancel a queued job
// @Description  Only jobs not yet admitted can be cancelled; compression in flight runs to completion.
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.JobView
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Router       /api/jobs/{jobId}/cancel [post]
func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	if err := h.scheduler.Cancel(jobID); err != nil {
		return jobError(c, err)
	}

	view, err := h.service.Get(jobID)
	if err != nil {
		return jobError(c, err)
	}
	return response.OK(c, view)
}

// Rerun handles POST /api/jobs/:jobId/rerun
// @Summary      Re-run a settled job
// @Description  Puts a compressed or errored job straight back into compression using the settings current right now. The new result overwrites the old one.
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      202 {object} model.JobView
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Router       /api/jobs/{jobId}/rerun [post]
func (h *JobHandler) Rerun(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	if err := h.scheduler.Rerun(jobID); err != nil {
		return jobError(c, err)
	}

	view, err := h.service.Get(jobID)
	if err != nil {
		return jobError(c, err)
	}
	return response.Accepted(c, view)
}

// Remove handles DELETE /api/jobs/:jobId
// @Summary      Remove a job
// @Description  Discards the record and releases its retained image data
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      204 "No Content"
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/jobs/{jobId} [delete]
func (h *JobHandler) Remove(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	if err := h.scheduler.Remove(jobID); err != nil {
		return jobError(c, err)
	}
	return response.NoContent(c)
}

// Clear handles DELETE /api/jobs
// @Summary      Clear all jobs
// @Description  Empties the registry, the pending list and the active set, and resets the progress counters
// @Tags         Jobs
// @Success      204 "No Content"
// @Router       /api/jobs [delete]
func (h *JobHandler) Clear(c *fiber.Ctx) error {
	h.scheduler.ClearAll()
	return response.NoContent(c)
}

// Pause handles POST /api/queue/pause
// @Summary      Pause admissions
// @Description  No new jobs are admitted while paused; in-flight compressions run to completion
// @Tags         Queue
// @Produce      json
// @Success      200 {object} map[string]bool
// @Router       /api/queue/pause [post]
func (h *JobHandler) Pause(c *fiber.Ctx) error {
	h.scheduler.Pause()
	return response.OK(c, fiber.Map{"paused": true})
}

// Resume handles POST /api/queue/resume
// @Summary      Resume admissions
// @Tags         Queue
// @Produce      json
// @Success      200 {object} map[string]bool
// @Router       /api/queue/resume [post]
func (h *JobHandler) Resume(c *fiber.Ctx) error {
	h.scheduler.Resume()
	return response.OK(c, fiber.Map{"paused": false})
}

// jobError maps registry and scheduler errors onto the response envelope
func jobError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, scheduler.ErrNotCancellable),
		errors.Is(err, scheduler.ErrNotRerunnable),
		errors.Is(err, scheduler.ErrAtCapacity):
		return response.Conflict(c, err.Error())
	default:
		return response.ServiceError(c, err.Error())
	}
}
