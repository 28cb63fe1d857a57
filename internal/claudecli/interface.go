package claudecli

import (
	"context"
)

// ValidationResult is the outcome of testing a credential against the
// Claude Code CLI.
type ValidationResult struct {
	// Valid reports whether the credential can serve requests. A rate limited
	// credential is still valid.
	Valid bool `json:"valid"`
	// AccountType is set when the credential authenticated successfully,
	// currently always "claude-code".
	AccountType string `json:"account_type,omitempty"`
	// Error holds a human readable reason when validation did not fully
	// succeed. It may be set alongside Valid=true for rate limited tokens.
	Error string `json:"error,omitempty"`
}

// Validator defines the interface for live credential checks.
// This allows for easy mocking in tests.
type Validator interface {
	// Validate tests a credential by running a minimal one-turn prompt
	// through the Claude Code CLI. Network and CLI startup cost make this
	// expensive, so callers only invoke it on explicit user request.
	Validate(ctx context.Context, credential string) (*ValidationResult, error)
}

// Ensure CLIValidator implements Validator
var _ Validator = (*CLIValidator)(nil)
