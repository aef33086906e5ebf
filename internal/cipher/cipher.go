// Package cipher provides symmetric authenticated encryption for chat
// payloads at rest. The key is process-local and generated at startup: it
// protects data sitting in the KV store, not data in flight (TLS is assumed
// to cover the wire).
package cipher

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/velahub/signalcore/internal/logging"
	"go.uber.org/zap"
)

// keySize is 32 bytes for AES-256.
const keySize = 32

// ChatCipher encrypts and decrypts chat message bodies with AES-256-GCM.
// A single instance is shared process-wide; it is safe for concurrent use.
type ChatCipher struct {
	gcm cipher.AEAD
}

// New generates a fresh random key and builds a ChatCipher around it. The
// key never leaves the process and is not persisted: restarting the
// process invalidates previously encrypted history, which is acceptable
// since chat history is bounded and ephemeral (§4.F, §5 chat bound).
func New() (*ChatCipher, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate cipher key: %w", err)
	}
	return NewWithKey(key)
}

// NewWithKey builds a ChatCipher from a caller-supplied 32-byte key, mainly
// for deterministic tests.
func NewWithKey(key []byte) (*ChatCipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("cipher key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("build AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("build GCM mode: %w", err)
	}
	return &ChatCipher{gcm: gcm}, nil
}

// Encrypt returns a base64-encoded nonce||ciphertext string.
func (c *ChatCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Per §4.F, a decryption failure (corrupt
// ciphertext, key rotation, or data written before this process started)
// never propagates as an error to the caller: it logs a warning and
// returns the original string unchanged so callers can still display
// something rather than dropping the message.
func (c *ChatCipher) Decrypt(ctx context.Context, ciphertext string) string {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		logging.Warn(ctx, "chat cipher: ciphertext is not valid base64, returning as-is", zap.Error(err))
		return ciphertext
	}

	nonceSize := c.gcm.NonceSize()
	if len(raw) < nonceSize {
		logging.Warn(ctx, "chat cipher: ciphertext too short, returning as-is")
		return ciphertext
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		logging.Warn(ctx, "chat cipher: decryption failed, returning ciphertext as-is", zap.Error(err))
		return ciphertext
	}
	return string(plaintext)
}

var errEmptyPlaintext = errors.New("cipher: refusing to encrypt empty plaintext")

// EncryptNonEmpty is a small guard used by the router before persisting a
// chat body: an empty chat message is a caller bug, not a valid payload.
func (c *ChatCipher) EncryptNonEmpty(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errEmptyPlaintext
	}
	return c.Encrypt(plaintext)
}
