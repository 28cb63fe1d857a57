package claudecli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyValidationError(t *testing.T) {
	execErr := errors.New("exit status 1")

	tests := []struct {
		name     string
		output   string
		err      error
		expected ValidationResult
	}{
		{
			name:     "authentication failure",
			output:   "Error: authentication failed, please log in again",
			err:      execErr,
			expected: ValidationResult{Valid: false, Error: "Invalid subscription token"},
		},
		{
			name:     "invalid credential",
			output:   "Invalid API key provided",
			err:      execErr,
			expected: ValidationResult{Valid: false, Error: "Invalid subscription token"},
		},
		{
			name:     "unauthorized from the error itself",
			output:   "",
			err:      errors.New("request unauthorized"),
			expected: ValidationResult{Valid: false, Error: "Invalid subscription token"},
		},
		{
			name:   "rate limited credential still authenticates",
			output: "Error: rate limit exceeded, try again later",
			err:    execErr,
			expected: ValidationResult{
				Valid:       true,
				AccountType: "claude-code",
				Error:       "Token is rate limited - will work after cooldown",
			},
		},
		{
			name:     "missing permissions",
			output:   "Error: permission denied for this operation",
			err:      execErr,
			expected: ValidationResult{Valid: false, Error: "Token lacks required permissions"},
		},
		{
			name:     "expired token",
			output:   "Error: session expired",
			err:      execErr,
			expected: ValidationResult{Valid: false, Error: "Token has expired"},
		},
		{
			name:     "unrecognized failure falls through",
			output:   "something unexpected happened",
			err:      execErr,
			expected: ValidationResult{Valid: false, Error: "Validation failed: exit status 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifyValidationError(tt.output, tt.err)
			require.NotNil(t, result)
			assert.Equal(t, tt.expected, *result)
		})
	}
}

func TestMockValidatorDefaults(t *testing.T) {
	mock := NewMockValidator()

	result, err := mock.Validate(context.Background(), "sk-ant-sid01-anything")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "claude-code", result.AccountType)

	require.Equal(t, 1, mock.GetValidateCallCount())
	assert.Equal(t, "sk-ant-sid01-anything", mock.ValidateCalls[0].Credential)
}

func TestMockValidatorOverride(t *testing.T) {
	mock := NewMockValidator()
	mock.ValidateFunc = func(ctx context.Context, credential string) (*ValidationResult, error) {
		return &ValidationResult{Valid: false, Error: "Invalid subscription token"}, nil
	}

	result, err := mock.Validate(context.Background(), "sk-ant-sid01-revoked")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "Invalid subscription token", result.Error)

	mock.Reset()
	assert.Equal(t, 0, mock.GetValidateCallCount())
}
