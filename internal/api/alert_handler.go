package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/core"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

type AlertHandler struct {
	alerts core.AlertService
	logger *zap.Logger
}

func NewAlertHandler(alerts core.AlertService, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, logger: logger}
}

// ListAlerts handles GET /api/v1/alerts?status=new&limit=20
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	alerts, err := h.alerts.List(c.Request.Context(), userID, models.AlertStatus(c.Query("status")), limit)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	if alerts == nil {
		alerts = []*models.SecurityAlert{}
	}
	c.JSON(http.StatusOK, alerts)
}

// UpdateAlertStatus handles PATCH /api/v1/alerts/:alertId
func (h *AlertHandler) UpdateAlertStatus(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.UpdateAlertStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	alert, err := h.alerts.UpdateStatus(c.Request.Context(), userID, c.Param("alertId"), req.Status)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}
