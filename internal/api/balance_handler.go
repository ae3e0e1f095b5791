package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/core"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

type BalanceHandler struct {
	balance core.BalanceService
	logger  *zap.Logger
}

func NewBalanceHandler(balance core.BalanceService, logger *zap.Logger) *BalanceHandler {
	return &BalanceHandler{balance: balance, logger: logger}
}

func balanceError(c *gin.Context, status int, message string) {
	c.JSON(status, models.BalanceResponse{Error: message, Status: models.BalanceStatusError})
}

func (h *BalanceHandler) check(c *gin.Context, lookup func(context.Context, models.BalanceRequest) (*models.BalanceResponse, error)) {
	var req models.BalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		balanceError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	resp, err := lookup(c.Request.Context(), req)
	if err != nil {
		var be *core.BalanceError
		if errors.As(err, &be) {
			balanceError(c, be.Status, be.Message)
			return
		}
		h.logger.Error("Balance lookup failed", zap.Error(err))
		balanceError(c, http.StatusInternalServerError, "Failed to check balance. Please try again later")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CheckBalance handles POST /api/balance: {apiKey, organizationId}.
func (h *BalanceHandler) CheckBalance(c *gin.Context) {
	h.check(c, h.balance.CheckOrganizationBalance)
}

// CheckCreditBalance handles POST /api/anthropic/balance: {apiKey}.
func (h *BalanceHandler) CheckCreditBalance(c *gin.Context) {
	h.check(c, h.balance.CheckCreditBalance)
}
