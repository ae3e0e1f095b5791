package api

import "github.com/cyberkey/cyberkey-backend/internal/models"

// ErrorResponse is the error body of every authenticated endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

// APIKeyDetailResponse is returned by GET /api/v1/keys/:keyId and carries the
// decrypted secret.
type APIKeyDetailResponse struct {
	*models.APIKey
	Key string `json:"key"`
}

// VerifyAPIKeyRequest asks whether Key matches the stored secret.
type VerifyAPIKeyRequest struct {
	Key string `json:"key" binding:"required"`
}

type VerifyAPIKeyResponse struct {
	Valid bool `json:"valid"`
}

// SendNotificationRequest mirrors the callable payload. UserID defaults to the
// caller and may not name anyone else.
type SendNotificationRequest struct {
	UserID       string              `json:"userId,omitempty"`
	Notification models.Notification `json:"notification" binding:"required"`
}

type JobResponse struct {
	Job    string `json:"job"`
	Status string `json:"status"`
}
