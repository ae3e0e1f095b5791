package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/core"
	"github.com/cyberkey/cyberkey-backend/internal/scheduler"
)

// JobRunner runs named background jobs on demand. *scheduler.Runner satisfies it.
type JobRunner interface {
	Names() []string
	RunNow(ctx context.Context, name string) error
}

// JobHandler serves the endpoints called by an external scheduler.
type JobHandler struct {
	scanner core.ExpiringKeyScanner
	jobs    JobRunner
	logger  *zap.Logger
}

func NewJobHandler(scanner core.ExpiringKeyScanner, jobs JobRunner, logger *zap.Logger) *JobHandler {
	return &JobHandler{scanner: scanner, jobs: jobs, logger: logger}
}

// CheckExpiringKeys handles POST /api/check-expiring-keys
func (h *JobHandler) CheckExpiringKeys(c *gin.Context) {
	if err := h.scanner.ScanAndEmail(c.Request.Context()); err != nil {
		h.logger.Error("Error checking expiring keys", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// ListJobs handles GET /internal/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.jobs.Names()})
}

// RunJob handles POST /internal/jobs/:name
func (h *JobHandler) RunJob(c *gin.Context) {
	name := c.Param("name")
	err := h.jobs.RunNow(c.Request.Context(), name)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, JobResponse{Job: name, Status: "completed"})
	case errors.Is(err, scheduler.ErrUnknownJob):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Unknown job", Details: name})
	case errors.Is(err, scheduler.ErrJobRunning):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Job is already running", Details: name})
	default:
		h.logger.Error("Job failed", zap.String("job", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Job failed", Details: err.Error()})
	}
}
