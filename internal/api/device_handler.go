package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/core"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

type DeviceHandler struct {
	devices core.DeviceService
	logger  *zap.Logger
}

func NewDeviceHandler(devices core.DeviceService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{devices: devices, logger: logger}
}

// RegisterDevice handles POST /api/v1/devices
func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	device, err := h.devices.Register(c.Request.Context(), userID, req)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, device)
}

// UnregisterDevice handles DELETE /api/v1/devices/:token
func (h *DeviceHandler) UnregisterDevice(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.devices.Unregister(c.Request.Context(), userID, c.Param("token")); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
