// Package handlers provides HTTP request handling
package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/diffuselab/sdqueue/internal/db/models"
	"github.com/diffuselab/sdqueue/internal/services"
	"github.com/diffuselab/sdqueue/internal/types"
)

// ClientIDHeader carries the caller identity. Requests without it fall
// back to the remote address.
const ClientIDHeader = "X-Client-Id"

// DiffusionHandler handles HTTP requests for generation job operations
type DiffusionHandler struct {
	svc *services.Diffusion
}

// NewDiffusionHandler creates a new diffusion handler instance
func NewDiffusionHandler(svc *services.Diffusion) *DiffusionHandler {
	return &DiffusionHandler{svc: svc}
}

// TextToImage handles the request to enqueue a text-to-image job
func (h *DiffusionHandler) TextToImage(c *fiber.Ctx) error {
	var req types.DiffusionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput(err.Error()))
	}

	result, err := h.svc.Enqueue(c.Context(), clientID(c), req.ToModel(), nil)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(types.Success(result))
}

// ImageToImage handles the request to enqueue an image-to-image job. The
// seed image travels as the multipart file field "init_image".
func (h *DiffusionHandler) ImageToImage(c *fiber.Ctx) error {
	var req types.ImageToImageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput(err.Error()))
	}

	file, err := c.FormFile("init_image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput("missing init_image file"))
	}
	data, err := readMultipartFile(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput(err.Error()))
	}

	result, err := h.svc.Enqueue(c.Context(), clientID(c), req.ToModel(file.Filename), data)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(types.Success(result))
}

// GetJob handles the request to get a job's status. With ?include=files
// the output artifacts are inlined.
func (h *DiffusionHandler) GetJob(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if jobID == "" {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput("invalid job id"))
	}

	job, err := h.svc.GetJob(c.Context(), clientID(c), jobID)
	if err != nil {
		return respondError(c, err)
	}

	resp := types.JobResponse{Job: *job}
	if c.Query("include") == "files" {
		files, err := h.svc.GetJobArtifacts(c.Context(), clientID(c), jobID)
		if err != nil {
			return respondError(c, err)
		}
		resp.Files = files
	}
	return c.JSON(types.Success(resp))
}

// QueryJobs handles the request to list the caller's jobs
func (h *DiffusionHandler) QueryJobs(c *fiber.Ctx) error {
	var statusAbove, statusBelow *models.JobStatus
	if v := c.Query("status_above"); v != "" {
		s, err := parseStatusBound(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).
				JSON(types.ErrInvalidInput(err.Error()))
		}
		statusAbove = s
	}
	if v := c.Query("status_below"); v != "" {
		s, err := parseStatusBound(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).
				JSON(types.ErrInvalidInput(err.Error()))
		}
		statusBelow = s
	}

	windowHours := c.QueryInt("window_hours", 0)
	window := time.Duration(windowHours) * time.Hour

	jobs, err := h.svc.Query(c.Context(), clientID(c), statusAbove, statusBelow, window)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(types.ListJobsResponse{
		Slug:  types.SuccessSlug,
		Jobs:  jobs,
		Total: len(jobs),
	})
}

// CancelJob handles the request to cancel a queued or running job
func (h *DiffusionHandler) CancelJob(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if jobID == "" {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput("invalid job id"))
	}

	cancelled, err := h.svc.Cancel(c.Context(), clientID(c), jobID)
	if err != nil {
		return respondError(c, err)
	}
	if !cancelled {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(types.Success("Job cancelled"))
}

// DownloadImage handles the request to download one result image of a
// completed job. With ?mode=attachment the image is served as a download.
func (h *DiffusionHandler) DownloadImage(c *fiber.Ctx) error {
	jobID := c.Params("id")
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(types.ErrInvalidInput("invalid image index"))
	}

	artifact, err := h.svc.GetArtifact(c.Context(), clientID(c), jobID, index)
	if err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, artifact.MimeType)
	if c.Query("mode") == "attachment" {
		c.Set(fiber.HeaderContentDisposition,
			fmt.Sprintf("attachment; filename=%q", jobID+"_"+artifact.Name))
	}
	return c.Send(artifact.Data)
}

func clientID(c *fiber.Ctx) string {
	if id := c.Get(ClientIDHeader); id != "" {
		return id
	}
	return c.IP()
}

func parseStatusBound(v string) (*models.JobStatus, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("invalid status bound: %s", v)
	}
	s := models.JobStatus(n)
	return &s, nil
}

func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrDuplicateJob):
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	case errors.Is(err, services.ErrQuotaExceeded):
		return c.Status(fiber.StatusTooManyRequests).JSON(types.ErrInvalidInput(err.Error()))
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(types.ErrNotFound(err.Error()))
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(types.ErrForbidden(err.Error()))
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrServer(err.Error()))
	}
}
