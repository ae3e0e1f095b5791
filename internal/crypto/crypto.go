package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// AES-256 key length
	keyLength = 32
	// Per-record salt fed into HKDF
	saltLength = 16
	// GCM standard nonce size
	nonceLength = 12
	// GCM authentication tag size
	tagLength = 16

	headerLength = saltLength + nonceLength + tagLength
)

// hkdfInfo binds derived keys to this use so the master key can't be replayed
// against another HKDF consumer.
var hkdfInfo = []byte("cyberkey/api-key")

var (
	ErrInvalidKey          = errors.New("encryption key must be 32 bytes for AES-256")
	ErrMalformedCiphertext = errors.New("ciphertext is not valid base64")
	ErrIntegrity           = errors.New("ciphertext failed integrity check")
)

// KeyFromBase64 decodes the process-wide encryption key as it is stored in
// configuration (ENCRYPTION_KEY).
func KeyFromBase64(keyBase64 string) ([]byte, error) {
	if keyBase64 == "" {
		return nil, fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key from base64: %w", err)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(key))
	}
	return key, nil
}

// Codec encrypts API key secrets before they are persisted.
//
// Every call to Encrypt draws a fresh salt and nonce. The salt is run through
// HKDF-SHA256 together with the master key to produce the AES-256-GCM key for
// that record, so no two records share a data key. The stored blob is
//
//	base64( salt(16) || nonce(12) || tag(16) || ciphertext )
type Codec struct {
	masterKey []byte
}

// NewCodec creates a Codec around a 32-byte master key.
func NewCodec(masterKey []byte) (*Codec, error) {
	if len(masterKey) != keyLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(masterKey))
	}
	key := make([]byte, keyLength)
	copy(key, masterKey)
	return &Codec{masterKey: key}, nil
}

func (c *Codec) aead(salt []byte) (cipher.AEAD, error) {
	recordKey := make([]byte, keyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, c.masterKey, salt, hkdfInfo), recordKey); err != nil {
		return nil, fmt.Errorf("failed to derive record key: %w", err)
	}

	block, err := aes.NewCipher(recordKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext and returns the base64 blob to store.
func (c *Codec) Encrypt(plainText string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	// Seal appends the tag after the ciphertext; the stored layout puts it first.
	sealed := gcm.Seal(nil, nonce, []byte(plainText), nil)
	cipherText := sealed[:len(sealed)-tagLength]
	tag := sealed[len(sealed)-tagLength:]

	blob := make([]byte, 0, headerLength+len(cipherText))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, cipherText...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. Any modification of the blob
// yields ErrIntegrity; partial plaintext is never returned.
func (c *Codec) Decrypt(blobBase64 string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(blobBase64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	if len(blob) < headerLength {
		return "", fmt.Errorf("%w: blob too short (%d bytes)", ErrIntegrity, len(blob))
	}

	salt := blob[:saltLength]
	nonce := blob[saltLength : saltLength+nonceLength]
	tag := blob[saltLength+nonceLength : headerLength]
	cipherText := blob[headerLength:]

	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(cipherText)+tagLength)
	sealed = append(sealed, cipherText...)
	sealed = append(sealed, tag...)

	plainText, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	return string(plainText), nil
}
