package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCipherRoundTrip(t *testing.T) {
	cipher, err := NewTokenCipher("shared-jwt-secret")
	require.NoError(t, err)

	plaintext := "sk-ant-REDACTED"
	encrypted, err := cipher.EncryptToken(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, string(encrypted), plaintext)

	decrypted, err := cipher.DecryptToken(encrypted)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestTokenCipherKeyDerivationIsDeterministic(t *testing.T) {
	first, err := NewTokenCipher("same-secret")
	require.NoError(t, err)
	second, err := NewTokenCipher("same-secret")
	require.NoError(t, err)

	encrypted, err := first.EncryptToken("credential-value")
	require.NoError(t, err)

	// A cipher derived from the same secret decrypts the other's output
	decrypted, err := second.DecryptToken(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "credential-value", decrypted)
}

func TestTokenCipherWrongKey(t *testing.T) {
	cipher, err := NewTokenCipher("secret-one")
	require.NoError(t, err)
	other, err := NewTokenCipher("secret-two")
	require.NoError(t, err)

	encrypted, err := cipher.EncryptToken("credential-value")
	require.NoError(t, err)

	_, err = other.DecryptToken(encrypted)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestTokenCipherCorruptedCiphertext(t *testing.T) {
	cipher, err := NewTokenCipher("secret")
	require.NoError(t, err)

	_, err = cipher.DecryptToken([]byte("definitely not fernet"))
	assert.Error(t, err)

	_, err = cipher.DecryptToken(nil)
	assert.Error(t, err)
}

func TestTokenCipherRequiresKeyMaterial(t *testing.T) {
	_, err := NewTokenCipher("")
	assert.ErrorIs(t, err, ErrNoKeyMaterial)

	_, err = NewTokenCipherFromPassphrase("")
	assert.ErrorIs(t, err, ErrNoKeyMaterial)
}

func TestPassphraseCipherRoundTrip(t *testing.T) {
	cipher, err := NewTokenCipherFromPassphrase("standalone deployment passphrase")
	require.NoError(t, err)

	encrypted, err := cipher.EncryptToken("credential-value")
	require.NoError(t, err)

	decrypted, err := cipher.DecryptToken(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "credential-value", decrypted)
}
