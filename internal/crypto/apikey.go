package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"regexp"
)

// APIKeyPrefix marks keys generated by CyberKey itself, as opposed to
// free-form third-party secrets stored by users.
const APIKeyPrefix = "ck_"

var apiKeyPattern = regexp.MustCompile(`^ck_[a-f0-9]{64}$`)

// GenerateAPIKey returns "ck_" followed by 32 random bytes in lowercase hex.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(buf), nil
}

// IsValidAPIKey reports whether key has the internally generated format.
func IsValidAPIKey(key string) bool {
	return apiKeyPattern.MatchString(key)
}

// SafeCompare compares two secrets in constant time.
func SafeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
