package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/core"
	"github.com/cyberkey/cyberkey-backend/internal/models"
)

// KeyHandler serves /api/v1/keys.
type KeyHandler struct {
	keys   core.APIKeyService
	logger *zap.Logger
}

func NewKeyHandler(keys core.APIKeyService, logger *zap.Logger) *KeyHandler {
	return &KeyHandler{keys: keys, logger: logger}
}

// CreateKey handles POST /api/v1/keys
func (h *KeyHandler) CreateKey(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	key, err := h.keys.Create(c.Request.Context(), userID, req)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, key)
}

// ListKeys handles GET /api/v1/keys. Expired keys are never listed.
func (h *KeyHandler) ListKeys(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	keys, err := h.keys.List(c.Request.Context(), userID)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	if keys == nil {
		keys = []*models.APIKey{}
	}
	c.JSON(http.StatusOK, keys)
}

// GetKey handles GET /api/v1/keys/:keyId
func (h *KeyHandler) GetKey(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	key, secret, err := h.keys.Get(c.Request.Context(), userID, c.Param("keyId"))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, APIKeyDetailResponse{APIKey: key, Key: secret})
}

// UpdateKey handles PUT /api/v1/keys/:keyId
func (h *KeyHandler) UpdateKey(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.UpdateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	key, err := h.keys.Update(c.Request.Context(), userID, c.Param("keyId"), req)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

// UpdateBalance handles PUT /api/v1/keys/:keyId/balance
func (h *KeyHandler) UpdateBalance(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.UpdateBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	key, err := h.keys.UpdateBalance(c.Request.Context(), userID, c.Param("keyId"), req.Balance)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

// VerifyKey handles POST /api/v1/keys/:keyId/verify
func (h *KeyHandler) VerifyKey(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req VerifyAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	valid, err := h.keys.VerifySecret(c.Request.Context(), userID, c.Param("keyId"), req.Key)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, VerifyAPIKeyResponse{Valid: valid})
}

// DeleteKey handles DELETE /api/v1/keys/:keyId
func (h *KeyHandler) DeleteKey(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	err := h.keys.Delete(c.Request.Context(), userID, c.Param("keyId"))
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, core.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "Permission denied. You can only delete your own API keys."})
	case errors.Is(err, core.ErrAPIKeyNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "API key not found."})
	default:
		mapErrorToStatus(c, h.logger, err)
	}
}
