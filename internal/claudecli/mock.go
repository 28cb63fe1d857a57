package claudecli

import (
	"context"
	"sync"
)

// MockValidator is a mock implementation of Validator for testing and for
// running the service without the Claude Code CLI installed
type MockValidator struct {
	mu sync.Mutex

	// Control behavior
	ValidateFunc func(ctx context.Context, credential string) (*ValidationResult, error)

	// Track calls for assertions
	ValidateCalls []ValidateCall
}

// ValidateCall records the arguments of one Validate invocation
type ValidateCall struct {
	Credential string
}

// NewMockValidator creates a new mock validator with default behaviors
func NewMockValidator() *MockValidator {
	return &MockValidator{}
}

// Validate mock implementation
func (m *MockValidator) Validate(ctx context.Context, credential string) (*ValidationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ValidateCalls = append(m.ValidateCalls, ValidateCall{Credential: credential})

	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, credential)
	}

	// Default behavior - every credential checks out
	return &ValidationResult{Valid: true, AccountType: accountTypeClaudeCode}, nil
}

// Reset clears all recorded calls
func (m *MockValidator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ValidateCalls = nil
}

// GetValidateCallCount returns the number of Validate calls
func (m *MockValidator) GetValidateCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ValidateCalls)
}

// Ensure MockValidator implements Validator
var _ Validator = (*MockValidator)(nil)
