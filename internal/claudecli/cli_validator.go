// Package claudecli tests pooled credentials against the Claude Code CLI.
// Validation shells out to the locally installed CLI with a minimal one-turn
// prompt rather than calling the Anthropic API directly, because subscription
// tokens only work through the CLI's session flow.
package claudecli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/pirate-baby/ATC/internal/config"
	"github.com/pirate-baby/ATC/internal/crypto"
	"github.com/pirate-baby/ATC/internal/store"
)

const accountTypeClaudeCode = "claude-code"

// CLIValidator runs credential checks through the claude executable.
type CLIValidator struct {
	// BinaryPath is the claude executable to invoke
	BinaryPath string
	// Timeout bounds a single validation run. Zero means the caller's context
	// is the only bound.
	Timeout time.Duration
}

// NewCLIValidator creates a validator configured from the environment
func NewCLIValidator() *CLIValidator {
	return &CLIValidator{
		BinaryPath: config.ClaudeCliPath,
		Timeout:    time.Duration(config.ValidationTimeoutSeconds) * time.Second,
	}
}

// Validate runs a one-turn throwaway prompt with the candidate credential in
// the environment and classifies the outcome from the CLI's output.
func (v *CLIValidator) Validate(ctx context.Context, credential string) (*ValidationResult, error) {
	// Register the raw credential so it never reaches the logs verbatim
	crypto.RegisterSecret(credential)

	runCtx := ctx
	if v.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, v.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, v.BinaryPath, "--print", "--max-turns", "1", "test")
	// The CLI reads the credential from the environment, matching the
	// subscription flow. It is never passed on the command line.
	cmd.Env = append(os.Environ(), fmt.Sprintf("ANTHROPIC_API_KEY=%s", credential))

	output, err := cmd.CombinedOutput()

	// A killed process surfaces as a generic exec error, so check the
	// context first to report timeouts distinctly.
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, store.ErrValidationTimeout
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if err == nil {
		if strings.TrimSpace(string(output)) == "" {
			return &ValidationResult{Valid: false, Error: "No response from Claude Code CLI"}, nil
		}
		return &ValidationResult{Valid: true, AccountType: accountTypeClaudeCode}, nil
	}

	logging.Log.WithError(err).
		WithField("output", crypto.MaskString(string(output))).
		Debug("Credential validation run failed")

	return classifyValidationError(string(output), err), nil
}

// classifyValidationError maps CLI failure text onto a validation verdict.
// The CLI writes auth errors to stderr, which CombinedOutput captures, so
// both the output and the exec error are searched.
func classifyValidationError(output string, err error) *ValidationResult {
	errStr := strings.ToLower(output + " " + err.Error())

	if strings.Contains(errStr, "authentication") || strings.Contains(errStr, "invalid") || strings.Contains(errStr, "unauthorized") {
		return &ValidationResult{Valid: false, Error: "Invalid subscription token"}
	}
	if strings.Contains(errStr, "rate") && strings.Contains(errStr, "limit") {
		// Rate limited means the credential authenticated; it will serve
		// requests again after the cooldown.
		return &ValidationResult{
			Valid:       true,
			AccountType: accountTypeClaudeCode,
			Error:       "Token is rate limited - will work after cooldown",
		}
	}
	if strings.Contains(errStr, "permission") {
		return &ValidationResult{Valid: false, Error: "Token lacks required permissions"}
	}
	if strings.Contains(errStr, "expired") {
		return &ValidationResult{Valid: false, Error: "Token has expired"}
	}
	return &ValidationResult{Valid: false, Error: fmt.Sprintf("Validation failed: %v", err)}
}
