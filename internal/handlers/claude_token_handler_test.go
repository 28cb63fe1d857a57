package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateClaudeTokenFormat(t *testing.T) {
	goodToken := "sk-ant-sid01-" + strings.Repeat("a", 44)

	t.Run("accepts a subscription token", func(t *testing.T) {
		value, problem := ValidateClaudeTokenFormat(goodToken)
		assert.Equal(t, goodToken, value)
		assert.Empty(t, problem)
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		value, problem := ValidateClaudeTokenFormat("  " + goodToken + "\n")
		assert.Equal(t, goodToken, value)
		assert.Empty(t, problem)
	})

	t.Run("rejects console API keys with setup-token guidance", func(t *testing.T) {
		value, problem := ValidateClaudeTokenFormat("sk-ant-api03-" + strings.Repeat("b", 44))
		assert.Empty(t, value)
		assert.Contains(t, problem, "sk-ant-api")
		assert.Contains(t, problem, "setup-token")
	})

	t.Run("rejects unknown prefixes", func(t *testing.T) {
		value, problem := ValidateClaudeTokenFormat("totally-not-a-token")
		assert.Empty(t, value)
		assert.Contains(t, problem, "sk-ant-sid")
	})

	t.Run("rejects truncated tokens", func(t *testing.T) {
		value, problem := ValidateClaudeTokenFormat("sk-ant-sid01-short")
		assert.Empty(t, value)
		assert.Contains(t, problem, "too short")
	})

	t.Run("rejects empty input", func(t *testing.T) {
		value, problem := ValidateClaudeTokenFormat("   ")
		assert.Empty(t, value)
		assert.NotEmpty(t, problem)
	})
}
