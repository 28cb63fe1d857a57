package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskToken(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", "****"},
		{"short value fully masked", "abcd1234", "****"},
		{"nine characters keeps short prefix", "abcdefghi", "abcd...fghi"},
		{"twelve characters keeps short prefix", "abcdefghijkl", "abcd...ijkl"},
		{"long token keeps eight char prefix", "sk-ant-REDACTED", "sk-ant-s...mnop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskToken(tt.input))
		})
	}
}

func TestMaskerScrubsRegisteredSecrets(t *testing.T) {
	m := NewMasker()
	m.RegisterSecret("sk-ant-sid01-secretvalue")

	masked := m.MaskString("CLI said: sk-ant-sid01-secretvalue is not valid")
	assert.Equal(t, "CLI said: [REDACTED] is not valid", masked)

	// Untracked values pass through
	assert.Equal(t, "nothing to see", m.MaskString("nothing to see"))
}

func TestMaskerIgnoresTinySecrets(t *testing.T) {
	m := NewMasker()
	m.RegisterSecret("ab")
	m.RegisterSecret("")

	// Two-character values would shred ordinary text, so they are not scrubbed
	assert.Equal(t, "abstract", m.MaskString("abstract"))
	assert.Equal(t, 1, m.Size())
}

func TestMaskerClear(t *testing.T) {
	m := NewMasker()
	m.RegisterSecret("secret-one")
	m.RegisterSecret("secret-two")
	assert.Equal(t, 2, m.Size())

	m.Clear()
	assert.Equal(t, 0, m.Size())
	assert.Equal(t, "secret-one", m.MaskString("secret-one"))
}
