package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for the standalone passphrase path
const (
	scryptN      = 1 << 18
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// scryptSalt is fixed so every service instance derives the same key from the
// shared passphrase. Rotating the passphrase rotates the key.
var scryptSalt = []byte("atc-claude-token-pool-v1")

// ErrNoKeyMaterial is returned when neither a JWT secret nor a passphrase is configured.
var ErrNoKeyMaterial = errors.New("no encryption key material configured")

// TokenCipher encrypts and decrypts contributed credentials with a single
// derived Fernet key.
type TokenCipher struct {
	key []byte // base64-URL encoded 32-byte key
}

// NewTokenCipher derives the Fernet key from the shared JWT secret using
// SHA-256, matching the main backend's derivation so either service can
// decrypt the other's ciphertexts.
func NewTokenCipher(jwtSecret string) (*TokenCipher, error) {
	if jwtSecret == "" {
		return nil, ErrNoKeyMaterial
	}
	digest := sha256.Sum256([]byte(jwtSecret))
	encoded := make([]byte, base64.URLEncoding.EncodedLen(len(digest)))
	base64.URLEncoding.Encode(encoded, digest[:])
	return &TokenCipher{key: encoded}, nil
}

// NewTokenCipherFromPassphrase derives the Fernet key from a standalone
// passphrase via scrypt. For deployments that do not share a JWT secret with
// the main backend.
func NewTokenCipherFromPassphrase(passphrase string) (*TokenCipher, error) {
	if passphrase == "" {
		return nil, ErrNoKeyMaterial
	}
	key, err := scrypt.Key([]byte(passphrase), scryptSalt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	encoded := make([]byte, base64.URLEncoding.EncodedLen(len(key)))
	base64.URLEncoding.Encode(encoded, key)
	return &TokenCipher{key: encoded}, nil
}

// EncryptToken encrypts a plaintext credential for storage.
func (c *TokenCipher) EncryptToken(plaintext string) ([]byte, error) {
	return fernetEncrypt(c.key, []byte(plaintext))
}

// DecryptToken decrypts a stored credential. Returns ErrInvalidCiphertext
// when the value is corrupted or was written with a different key.
func (c *TokenCipher) DecryptToken(ciphertext []byte) (string, error) {
	plaintext, err := fernetDecrypt(c.key, ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
