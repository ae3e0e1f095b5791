package core

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrAPIKeyNotFound = errors.New("API key not found")
	ErrAlertNotFound  = errors.New("security alert not found")
	ErrForbidden      = errors.New("permission denied")
	ErrDecryptFailed  = errors.New("failed to decrypt API key")
	ErrEncryptFailed  = errors.New("failed to encrypt API key")
)
