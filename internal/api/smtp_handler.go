package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/core"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

type SMTPHandler struct {
	mail   core.MailService
	logger *zap.Logger
}

func NewSMTPHandler(mail core.MailService, logger *zap.Logger) *SMTPHandler {
	return &SMTPHandler{mail: mail, logger: logger}
}

// TestSMTP handles POST /api/test-smtp. The SMTP error text is returned to
// the caller so the settings form can show it.
func (h *SMTPHandler) TestSMTP(c *gin.Context) {
	var req models.TestSMTPRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Settings == nil || req.To == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing required parameters"})
		return
	}

	if err := h.mail.SendTestEmail(c.Request.Context(), *req.Settings, req.To); err != nil {
		h.logger.Warn("Test email failed", zap.String("host", req.Settings.Host), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}
