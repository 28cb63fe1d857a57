package crypto

import (
	"strings"
	"sync"
)

// MaskToken creates the display preview of a credential. Only a short prefix
// and the last four characters survive; everything else is elided.
func MaskToken(plaintext string) string {
	if len(plaintext) <= 8 {
		return "****"
	}

	prefixLen := 4
	if len(plaintext) > 12 {
		prefixLen = 8
	}
	return plaintext[:prefixLen] + "..." + plaintext[len(plaintext)-4:]
}

// Masker replaces known credential values in logs and CLI output. It is
// value-based: it tracks the actual secret strings and scrubs them wherever
// they appear, regardless of surrounding text.
type Masker struct {
	mu      sync.RWMutex
	secrets map[string]bool
}

// NewMasker creates a new credential masker
func NewMasker() *Masker {
	return &Masker{
		secrets: make(map[string]bool),
	}
}

// RegisterSecret adds a credential value that should be scrubbed
func (m *Masker) RegisterSecret(value string) {
	if value == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[value] = true
}

// MaskString replaces all known credential values in a string with [REDACTED]
func (m *Masker) MaskString(text string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	masked := text
	for secret := range m.secrets {
		// Skip very short values to avoid false positives
		if len(secret) >= 3 {
			masked = strings.ReplaceAll(masked, secret, "[REDACTED]")
		}
	}
	return masked
}

// Clear removes all registered secrets (useful for testing)
func (m *Masker) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets = make(map[string]bool)
}

// Size returns the number of registered secrets
func (m *Masker) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.secrets)
}

// DefaultMasker is the process-wide instance. The validator registers every
// credential it exercises before logging any CLI output.
var DefaultMasker = NewMasker()

// RegisterSecret adds a credential to the default masker
func RegisterSecret(value string) {
	DefaultMasker.RegisterSecret(value)
}

// MaskString scrubs credentials from a string using the default masker
func MaskString(text string) string {
	return DefaultMasker.MaskString(text)
}
