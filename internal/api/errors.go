package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/core"
	"github.com/cyberkey/cyberkey-backend/internal/middleware"
	"github.com/cyberkey/cyberkey-backend/pkg/mailer"
)

// mapErrorToStatus writes the response for an error returned by a core service.
func mapErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	var statusCode int
	var errResponse ErrorResponse

	switch {
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, mailer.ErrInvalidSettings),
		errors.Is(err, mailer.ErrInvalidMessage):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Validation failed", Details: err.Error()}
	case errors.Is(err, core.ErrAPIKeyNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "API key not found."}
	case errors.Is(err, core.ErrAlertNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "Security alert not found."}
	case errors.Is(err, core.ErrForbidden):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: "Permission denied."}
	case errors.Is(err, core.ErrEncryptFailed):
		logger.Error("API key encryption failed", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "Failed to encrypt API key."}
	case errors.Is(err, core.ErrDecryptFailed):
		logger.Error("API key decryption failed", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "Failed to decrypt API key. Data may be corrupted or the key is incorrect."}
	default:
		logger.Error("Internal server error", zap.String("path", c.FullPath()), zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	c.JSON(statusCode, errResponse)
}

// requireUser returns the authenticated UID or answers 401.
func requireUser(c *gin.Context) (string, bool) {
	userID := middleware.UserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return "", false
	}
	return userID, true
}

func invalidPayload(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
}
