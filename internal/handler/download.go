package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/pixelpress/api/internal/registry"
	"github.com/pixelpress/api/internal/service"
	"github.com/pixelpress/api/pkg/response"
)

type DownloadHandler struct {
	service *service.JobService
}

func NewDownloadHandler(svc *service.JobService) *DownloadHandler {
	return &DownloadHandler{service: svc}
}

// One handles GET /api/jobs/:jobId/download
// @Summary      Download one result
// @Description  Streams the compressed image of a single job. The filename carries the output format's extension unless the format was auto.
// @Tags         Download
// @Produce      octet-stream
// @Param        jobId path string true "Job ID"
// @Success      200 {file} binary
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Router       /api/jobs/{jobId}/download [get]
func (h *DownloadHandler) One(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	dl, err := h.service.DownloadOne(jobID)
	if err != nil {
		return downloadError(c, err)
	}
	return serve(c, dl)
}

// All handles GET /api/jobs/download
// @Summary      Download all results
// @Description  Streams a zip archive containing every compressed image
// @Tags         Download
// @Produce      octet-stream
// @Success      200 {file} binary
// @Failure      409 {object} response.ErrorResponse
// @Router       /api/jobs/download [get]
func (h *DownloadHandler) All(c *fiber.Ctx) error {
	dl, err := h.service.DownloadAll()
	if err != nil {
		return downloadError(c, err)
	}
	return serve(c, dl)
}

func serve(c *fiber.Ctx, dl *service.Download) error {
	c.Set(fiber.HeaderContentType, dl.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", dl.Name))
	return c.Send(dl.Data)
}

func downloadError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrNotCompressed),
		errors.Is(err, service.ErrNothingToDownload):
		return response.Conflict(c, err.Error())
	default:
		return response.ServiceError(c, err.Error())
	}
}
