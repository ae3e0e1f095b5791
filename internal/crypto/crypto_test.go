package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	codec, err := NewCodec(key)
	require.NoError(t, err)
	return codec
}

func TestNewCodec_KeyLength(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{name: "32 bytes", key: make([]byte, 32)},
		{name: "too short", key: make([]byte, 16), wantErr: true},
		{name: "too long", key: make([]byte, 64), wantErr: true},
		{name: "empty", key: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, err := NewCodec(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidKey))
				assert.Nil(t, codec)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, codec)
		})
	}
}

func TestKeyFromBase64(t *testing.T) {
	raw := make([]byte, 32)
	_, _ = rand.Read(raw)

	key, err := KeyFromBase64(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, key)

	_, err = KeyFromBase64("")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = KeyFromBase64("not base64!!")
	assert.Error(t, err)

	_, err = KeyFromBase64(base64.StdEncoding.EncodeToString(raw[:16]))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	inputs := []string{
		"",
		"sk-ant-api03-abcdef",
		"Привет, мир! 🌍",
		`{"user":"alice","token":"secret"}`,
		strings.Repeat("x", 4096),
	}

	for _, plain := range inputs {
		blob, err := codec.Encrypt(plain)
		require.NoError(t, err)
		if plain != "" {
			assert.NotContains(t, blob, plain)
		}

		got, err := codec.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestCodec_BlobLayout(t *testing.T) {
	codec := newTestCodec(t)

	blob, err := codec.Encrypt("hello")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	assert.Len(t, raw, headerLength+len("hello"))
}

func TestCodec_EncryptIsRandomized(t *testing.T) {
	codec := newTestCodec(t)

	a, err := codec.Encrypt("same secret")
	require.NoError(t, err)
	b, err := codec.Encrypt("same secret")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)

	rawA, _ := base64.StdEncoding.DecodeString(a)
	rawB, _ := base64.StdEncoding.DecodeString(b)
	assert.NotEqual(t, rawA[:saltLength], rawB[:saltLength], "salt must be fresh per call")
	assert.NotEqual(t, rawA[saltLength:saltLength+nonceLength], rawB[saltLength:saltLength+nonceLength], "nonce must be fresh per call")
}

func TestCodec_TamperedBlobFailsIntegrity(t *testing.T) {
	codec := newTestCodec(t)

	blob, err := codec.Encrypt("sk-live-1234567890")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)

	// Flip one byte in every position: salt, nonce, tag and ciphertext.
	for i := range raw {
		tampered := append([]byte(nil), raw...)
		tampered[i] ^= 0x01

		got, err := codec.Decrypt(base64.StdEncoding.EncodeToString(tampered))
		require.Error(t, err, "byte %d", i)
		assert.True(t, errors.Is(err, ErrIntegrity), "byte %d: %v", i, err)
		assert.Empty(t, got)
	}
}

func TestCodec_DecryptErrors(t *testing.T) {
	codec := newTestCodec(t)
	other := newTestCodec(t)

	blob, err := codec.Encrypt("secret")
	require.NoError(t, err)

	tests := []struct {
		name    string
		blob    string
		codec   *Codec
		wantErr error
	}{
		{name: "invalid base64", blob: "%%%", codec: codec, wantErr: ErrMalformedCiphertext},
		{name: "too short", blob: base64.StdEncoding.EncodeToString(make([]byte, 10)), codec: codec, wantErr: ErrIntegrity},
		{name: "wrong key", blob: blob, codec: other, wantErr: ErrIntegrity},
		{name: "truncated", blob: base64.StdEncoding.EncodeToString(mustDecode(t, blob)[:headerLength]), codec: codec, wantErr: ErrIntegrity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.codec.Decrypt(tt.blob)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, got)
		})
	}
}

func mustDecode(t *testing.T, s string) []byte {
	t.Helper()
	b, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	return b
}
