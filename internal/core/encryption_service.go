package core

import (
	"fmt"

	"github.com/cyberkey/cyberkey-backend/internal/crypto"
)

// encryptionService implements the EncryptionService interface on top of the
// process-wide codec. Call sites never handle the master key.
type encryptionService struct {
	codec *crypto.Codec
}

// NewEncryptionService builds the service from the base64 ENCRYPTION_KEY value.
func NewEncryptionService(keyBase64 string) (EncryptionService, error) {
	key, err := crypto.KeyFromBase64(keyBase64)
	if err != nil {
		return nil, err
	}
	codec, err := crypto.NewCodec(key)
	if err != nil {
		return nil, err
	}
	return &encryptionService{codec: codec}, nil
}

func (s *encryptionService) Encrypt(plainText string) (string, error) {
	blob, err := s.codec.Encrypt(plainText)
	if err != nil {
		return "", fmt.Errorf("encryption_service: failed to encrypt: %w", err)
	}
	return blob, nil
}

func (s *encryptionService) Decrypt(cipherTextBase64 string) (string, error) {
	plain, err := s.codec.Decrypt(cipherTextBase64)
	if err != nil {
		return "", fmt.Errorf("encryption_service: failed to decrypt: %w", err)
	}
	return plain, nil
}
