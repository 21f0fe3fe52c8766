// internal/messaging/crypto.go
// Message body encryption. AES-256-GCM with a key derived once from the
// deployment secret via PBKDF2.

package messaging

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// ContentUnavailable is returned in place of plaintext whenever a stored
// message fails to decrypt. A corrupted row must not break listing of the
// whole conversation.
const ContentUnavailable = "[content unavailable]"

const keyLength = 32 // AES-256

// EncryptedContent carries ciphertext with its encryption parameters.
// IV and AuthTag travel together; both empty means legacy plaintext.
type EncryptedContent struct {
	Ciphertext string
	IV         string
	AuthTag    string
}

// EncryptionService encrypts and decrypts message bodies
type EncryptionService interface {
	Encrypt(plaintext string) (*EncryptedContent, error)
	// Decrypt never fails past the caller: on authentication failure or
	// malformed input it returns ContentUnavailable.
	Decrypt(content *EncryptedContent) string
}

type encryptionService struct {
	aead cipher.AEAD
}

// NewEncryptionService derives the AES key from the long-term secret and
// fixed deployment salt, then prepares the AEAD once
func NewEncryptionService(secret, salt string, iterations int) (EncryptionService, error) {
	key := pbkdf2.Key([]byte(secret), []byte(salt), iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &encryptionService{aead: aead}, nil
}

func (s *encryptionService) Encrypt(plaintext string) (*EncryptedContent, error) {
	iv := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	sealed := s.aead.Seal(nil, iv, []byte(plaintext), nil)

	// GCM appends the authentication tag to the ciphertext; store the two
	// parts separately
	tagOffset := len(sealed) - s.aead.Overhead()
	ciphertext := sealed[:tagOffset]
	tag := sealed[tagOffset:]

	return &EncryptedContent{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
		AuthTag:    base64.StdEncoding.EncodeToString(tag),
	}, nil
}

func (s *encryptionService) Decrypt(content *EncryptedContent) string {
	// Legacy rows predate encryption and store plaintext with no
	// encryption parameters
	if content.IV == "" && content.AuthTag == "" {
		return content.Ciphertext
	}

	ciphertext, err := base64.StdEncoding.DecodeString(content.Ciphertext)
	if err != nil {
		return ContentUnavailable
	}
	iv, err := base64.StdEncoding.DecodeString(content.IV)
	if err != nil {
		return ContentUnavailable
	}
	tag, err := base64.StdEncoding.DecodeString(content.AuthTag)
	if err != nil {
		return ContentUnavailable
	}

	if len(iv) != s.aead.NonceSize() {
		return ContentUnavailable
	}

	plaintext, err := s.aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return ContentUnavailable
	}

	return string(plaintext)
}
