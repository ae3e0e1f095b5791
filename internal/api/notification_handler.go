package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/core"
)

type NotificationHandler struct {
	notifier core.Notifier
	logger   *zap.Logger
}

func NewNotificationHandler(notifier core.Notifier, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifier: notifier, logger: logger}
}

// SendNotification handles POST /api/v1/notifications/send. A user with no
// registered devices gets 200 with success=false and noDevices=true.
func (h *NotificationHandler) SendNotification(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	if req.UserID != "" && req.UserID != userID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "Permission denied. You can only notify your own devices."})
		return
	}

	result, err := h.notifier.Dispatch(c.Request.Context(), userID, req.Notification)
	if err != nil {
		h.logger.Error("Error sending notification", zap.String("userID", userID), zap.Error(err))
		if result == nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to send notification"})
			return
		}
		c.JSON(http.StatusInternalServerError, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
