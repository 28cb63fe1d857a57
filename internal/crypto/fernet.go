// Package crypto encrypts contributed credentials at rest.
//
// Ciphertexts use the Fernet format (AES-128-CBC + HMAC-SHA256) so the key
// can be shared with the main backend, which encrypts with the same scheme:
// - version(1) + timestamp(8) + iv(16) + ciphertext + hmac(32)
// - keys are 32 bytes, base64-URL encoded, split into signing and encryption halves
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	fernetVersion    = 0x80
	fernetIVSize     = 16
	fernetHMACSize   = 32
	fernetSignKeyLen = 16
)

// ErrInvalidCiphertext is returned when a stored value cannot be decrypted,
// either because it is corrupted or because the key changed.
var ErrInvalidCiphertext = errors.New("invalid or corrupted ciphertext")

// fernetEncrypt encrypts plaintext with the base64-URL encoded key.
func fernetEncrypt(key, plaintext []byte) ([]byte, error) {
	decodedKey := make([]byte, base64.URLEncoding.DecodedLen(len(key)))
	n, err := base64.URLEncoding.Decode(decodedKey, key)
	if err != nil {
		return nil, fmt.Errorf("invalid key encoding: %w", err)
	}
	decodedKey = decodedKey[:n]

	if len(decodedKey) != 32 {
		return nil, fmt.Errorf("invalid key length: expected 32, got %d", len(decodedKey))
	}

	signKey := decodedKey[:fernetSignKeyLen]
	encKey := decodedKey[fernetSignKeyLen:]

	iv := make([]byte, fernetIVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	// PKCS7 padding
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	padLen := aes.BlockSize - (len(plaintext) % aes.BlockSize)
	padded := make([]byte, len(plaintext)+padLen)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}

	mode := cipher.NewCBCEncrypter(block, iv)
	ciphertext := make([]byte, len(padded))
	mode.CryptBlocks(ciphertext, padded)

	timestamp := time.Now().Unix()
	tokenLen := 1 + 8 + fernetIVSize + len(ciphertext) + fernetHMACSize
	token := make([]byte, tokenLen)

	token[0] = fernetVersion
	binary.BigEndian.PutUint64(token[1:9], uint64(timestamp))
	copy(token[9:25], iv)
	copy(token[25:25+len(ciphertext)], ciphertext)

	// HMAC over everything except the HMAC itself
	h := hmac.New(sha256.New, signKey)
	h.Write(token[:25+len(ciphertext)])
	copy(token[25+len(ciphertext):], h.Sum(nil))

	return token, nil
}

// fernetDecrypt decrypts a Fernet token with the base64-URL encoded key.
func fernetDecrypt(key, token []byte) ([]byte, error) {
	decodedKey := make([]byte, base64.URLEncoding.DecodedLen(len(key)))
	n, err := base64.URLEncoding.Decode(decodedKey, key)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	decodedKey = decodedKey[:n]

	if len(decodedKey) != 32 {
		return nil, ErrInvalidCiphertext
	}

	signKey := decodedKey[:fernetSignKeyLen]
	encKey := decodedKey[fernetSignKeyLen:]

	// Minimum token size: version(1) + timestamp(8) + iv(16) + 1 block(16) + hmac(32)
	if len(token) < 73 {
		return nil, ErrInvalidCiphertext
	}

	if token[0] != fernetVersion {
		return nil, ErrInvalidCiphertext
	}

	iv := token[9:25]
	ciphertextEnd := len(token) - fernetHMACSize
	ciphertext := token[25:ciphertextEnd]
	tokenHMAC := token[ciphertextEnd:]

	h := hmac.New(sha256.New, signKey)
	h.Write(token[:ciphertextEnd])
	expectedHMAC := h.Sum(nil)
	if !hmac.Equal(tokenHMAC, expectedHMAC) {
		return nil, ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrInvalidCiphertext
	}

	mode := cipher.NewCBCDecrypter(block, iv)
	plaintext := make([]byte, len(ciphertext))
	mode.CryptBlocks(plaintext, ciphertext)

	// Remove PKCS7 padding
	if len(plaintext) == 0 {
		return nil, ErrInvalidCiphertext
	}
	padLen := int(plaintext[len(plaintext)-1])
	if padLen > aes.BlockSize || padLen > len(plaintext) {
		return nil, ErrInvalidCiphertext
	}
	for i := len(plaintext) - padLen; i < len(plaintext); i++ {
		if plaintext[i] != byte(padLen) {
			return nil, ErrInvalidCiphertext
		}
	}

	return plaintext[:len(plaintext)-padLen], nil
}
