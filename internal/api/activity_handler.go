package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/core"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

// ActivityHandler serves /api/v1/activity.
type ActivityHandler struct {
	activity core.ActivityService
	logger   *zap.Logger
}

func NewActivityHandler(activity core.ActivityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{activity: activity, logger: logger}
}

// queryLimit parses ?limit=. Absent or non-positive values yield 0 so the
// service default applies.
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be an integer"})
		return 0, false
	}
	if n < 0 {
		n = 0
	}
	return n, true
}

// LogActivity handles POST /api/v1/activity
func (h *ActivityHandler) LogActivity(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.LogActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	entry, err := h.activity.Log(c.Request.Context(), userID, req, c.Request.UserAgent(), c.Request.Header)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// ListActivity handles GET /api/v1/activity
func (h *ActivityHandler) ListActivity(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	entries, err := h.activity.Recent(c.Request.Context(), userID, limit)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	if entries == nil {
		entries = []*models.ActivityLog{}
	}
	c.JSON(http.StatusOK, entries)
}
