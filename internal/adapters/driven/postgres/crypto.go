package postgres

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// blobVersion is the first byte of every sealed blob.
	blobVersion = 0x01

	nonceSize = 12

	// KeySize is the required key size for AES-256.
	KeySize = 32
)

var (
	// ErrInvalidKeySize is returned when the encryption key is not 32 bytes.
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")

	// ErrInvalidBlobSize is returned when the sealed blob is too small.
	ErrInvalidBlobSize = errors.New("sealed blob is too small")

	// ErrUnsupportedVersion is returned when the blob version is not supported.
	ErrUnsupportedVersion = errors.New("unsupported token blob version")

	// ErrDecryptionFailed is returned for a wrong key, corrupted data or a
	// blob sealed for a different context key.
	ErrDecryptionFailed = errors.New("failed to open token blob")
)

// tokenSecrets is the plaintext sealed into credentials.secret_blob.
type tokenSecrets struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenCipher seals credential tokens with AES-256-GCM.
// Blob layout: version(1) || nonce(12) || ciphertext(N).
// The context key is bound as additional data, so a blob copied onto
// another row does not open.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher creates a cipher from a 32-byte key.
func NewTokenCipher(key []byte) (*TokenCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &TokenCipher{aead: aead}, nil
}

// seal encrypts tokens for the row identified by boundTo.
func (c *TokenCipher) seal(tokens tokenSecrets, boundTo string) ([]byte, error) {
	plaintext, err := json.Marshal(tokens)
	if err != nil {
		return nil, fmt.Errorf("marshal tokens: %w", err)
	}

	blob := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+c.aead.Overhead())
	blob[0] = blobVersion
	if _, err := rand.Read(blob[1:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(blob, blob[1:1+nonceSize], plaintext, []byte(boundTo)), nil
}

// open decrypts a blob sealed for boundTo.
func (c *TokenCipher) open(blob []byte, boundTo string) (tokenSecrets, error) {
	var tokens tokenSecrets
	if len(blob) < 1+nonceSize+c.aead.Overhead() {
		return tokens, ErrInvalidBlobSize
	}
	if blob[0] != blobVersion {
		return tokens, fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, blob[0])
	}

	plaintext, err := c.aead.Open(nil, blob[1:1+nonceSize], blob[1+nonceSize:], []byte(boundTo))
	if err != nil {
		return tokens, ErrDecryptionFailed
	}
	if err := json.Unmarshal(plaintext, &tokens); err != nil {
		return tokens, fmt.Errorf("unmarshal tokens: %w", err)
	}
	return tokens, nil
}
