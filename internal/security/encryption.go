package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"

	"deskmate/internal/domain"
)

const encPrefix = "enc:"

const saltSize = 16

// TokenCipher encrypts persisted auth tokens with AES-256-GCM. The key is
// derived from a passphrase via Argon2id; the salt travels with each
// ciphertext so tokens survive process restarts.
type TokenCipher struct {
	passphrase string
}

// NewTokenCipher creates a cipher from a passphrase.
func NewTokenCipher(passphrase string) (*TokenCipher, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase must not be empty")
	}
	return &TokenCipher{passphrase: passphrase}, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// Encrypt returns "enc:" + base64(salt + nonce + ciphertext).
// Empty plaintext passes through unchanged.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(c.passphrase, salt))
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	blob := append(append(salt, nonce...), sealed...)
	return encPrefix + base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt reverses Encrypt. Values without the "enc:" prefix are returned
// as-is, so plain-text records written before encryption was enabled load.
func (c *TokenCipher) Decrypt(value string) (string, error) {
	if !strings.HasPrefix(value, encPrefix) {
		return value, nil
	}

	blob, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encPrefix))
	if err != nil {
		return "", domain.NewDomainError("TokenCipher.Decrypt", domain.ErrDecryption, "bad base64")
	}
	if len(blob) < saltSize {
		return "", domain.NewDomainError("TokenCipher.Decrypt", domain.ErrDecryption, "blob too short")
	}
	salt, rest := blob[:saltSize], blob[saltSize:]

	block, err := aes.NewCipher(deriveKey(c.passphrase, salt))
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}
	if len(rest) < gcm.NonceSize() {
		return "", domain.NewDomainError("TokenCipher.Decrypt", domain.ErrDecryption, "blob too short")
	}

	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", domain.NewDomainError("TokenCipher.Decrypt", domain.ErrDecryption, "wrong passphrase or corrupt record")
	}
	return string(plain), nil
}
