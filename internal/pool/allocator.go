// Package pool implements fair allocation of contributed Claude credentials,
// usage outcome reporting, and the aggregated pool statistics the dashboard
// serves. Selection is a snapshot read over eligible tokens; state only
// changes when an executor reports how a token behaved.
package pool

import (
	"context"
	"errors"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/pirate-baby/ATC/internal/config"
	"github.com/pirate-baby/ATC/internal/crypto"
	"github.com/pirate-baby/ATC/internal/events"
	"github.com/pirate-baby/ATC/internal/store"
	"github.com/pirate-baby/ATC/internal/store/models"
)

// Outcome names the caller-reported result of using an acquired token.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeInvalid     Outcome = "invalid"
)

// rateLimitedMessage is stored on rows pushed into the rate_limited state.
const rateLimitedMessage = "Rate limited - will retry after reset"

// AcquiredToken carries a decrypted credential to an executor. It is only
// ever serialized on the service-token internal surface.
type AcquiredToken struct {
	TokenID      string                   `json:"token_id"`
	Credential   string                   `json:"credential"`
	Status       models.ClaudeTokenStatus `json:"status"`
	RequestCount int64                    `json:"request_count"`
}

// UsageReport describes one use of an acquired token.
type UsageReport struct {
	Outcome Outcome
	// ResetHint overrides the default rate limit reset time when the upstream
	// response included one. Only read for OutcomeRateLimited.
	ResetHint *time.Time
	// Message is the diagnostic recorded for OutcomeInvalid.
	Message string
}

// Allocator hands out pool credentials and applies usage reports.
type Allocator struct {
	cipher      *crypto.TokenCipher
	broadcaster *events.Broadcaster

	// NowFunc supplies the clock for eligibility checks. Tests override it.
	NowFunc func() time.Time
}

// NewAllocator creates an allocator. The broadcaster may be nil when no
// event consumers exist (CLI commands).
func NewAllocator(cipher *crypto.TokenCipher, broadcaster *events.Broadcaster) *Allocator {
	return &Allocator{
		cipher:      cipher,
		broadcaster: broadcaster,
		NowFunc:     func() time.Time { return time.Now().UTC() },
	}
}

// Acquire returns a decrypted credential for the executor to use. With an
// explicit id it returns that token or reports why it cannot serve. With no
// id it walks the rotation order and returns the first candidate that
// decrypts, marking any corrupted rows invalid along the way.
//
// Selection writes nothing: two concurrent callers may receive the same
// token. The upstream API enforces real rate limits; the allocator's job is
// fairness and steering around known-bad tokens.
func (a *Allocator) Acquire(ctx context.Context, requestedTokenID string) (*AcquiredToken, error) {
	now := a.NowFunc()

	if requestedTokenID != "" {
		return a.acquireExplicit(ctx, requestedTokenID, now)
	}

	candidates, err := store.AppStore.ListEligibleClaudeTokens(ctx, now)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		token := &candidates[i]
		credential, err := a.cipher.DecryptToken(token.EncryptedToken)
		if err != nil {
			a.markUndecryptable(ctx, token.TokenID, err)
			continue
		}
		return &AcquiredToken{
			TokenID:      token.TokenID,
			Credential:   credential,
			Status:       token.Status,
			RequestCount: token.RequestCount,
		}, nil
	}

	return nil, store.ErrPoolExhausted
}

func (a *Allocator) acquireExplicit(ctx context.Context, tokenID string, now time.Time) (*AcquiredToken, error) {
	token, err := store.AppStore.GetClaudeTokenByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	if !token.IsEligibleAt(now) {
		return nil, store.ErrTokenUnavailable
	}

	credential, err := a.cipher.DecryptToken(token.EncryptedToken)
	if err != nil {
		a.markUndecryptable(ctx, token.TokenID, err)
		return nil, store.ErrTokenUnavailable
	}

	return &AcquiredToken{
		TokenID:      token.TokenID,
		Credential:   credential,
		Status:       token.Status,
		RequestCount: token.RequestCount,
	}, nil
}

// markUndecryptable flags a corrupted row so rotation stops offering it. The
// owner has to replace the secret to bring it back.
func (a *Allocator) markUndecryptable(ctx context.Context, tokenID string, cause error) {
	logging.Log.WithError(cause).WithField("token_id", tokenID).
		Warn("Marking undecryptable token invalid")
	if err := store.AppStore.RecordClaudeTokenInvalid(ctx, tokenID, "Token could not be decrypted"); err != nil {
		logging.Log.WithError(err).WithField("token_id", tokenID).
			Error("Failed to mark token invalid")
		return
	}
	a.publishStatusChange(ctx, tokenID)
}

// Report applies a usage outcome to a token. Reporting against an id that no
// longer exists is a logged no-op since the row may have been deleted while
// the executor held the credential.
func (a *Allocator) Report(ctx context.Context, tokenID string, report UsageReport) error {
	now := a.NowFunc()

	var err error
	switch report.Outcome {
	case OutcomeSuccess:
		err = store.AppStore.RecordClaudeTokenSuccess(ctx, tokenID, now)
	case OutcomeRateLimited:
		resetAt := defaultResetTime(now)
		if report.ResetHint != nil {
			resetAt = report.ResetHint.UTC()
		}
		err = store.AppStore.RecordClaudeTokenRateLimited(ctx, tokenID, resetAt, rateLimitedMessage)
	case OutcomeInvalid:
		message := report.Message
		if message == "" {
			message = "Reported invalid by executor"
		}
		err = store.AppStore.RecordClaudeTokenInvalid(ctx, tokenID, message)
	default:
		return store.ErrInvalidInput
	}

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logging.Log.WithField("token_id", tokenID).
				Info("Ignoring usage report for unknown token")
			return nil
		}
		return err
	}

	if report.Outcome != OutcomeSuccess {
		a.publishStatusChange(ctx, tokenID)
	}
	return nil
}

// publishStatusChange rereads the row and broadcasts its fresh view. Fetch
// errors only cost the notification, never the caller's request.
func (a *Allocator) publishStatusChange(ctx context.Context, tokenID string) {
	if a.broadcaster == nil {
		return
	}
	token, err := store.AppStore.GetClaudeTokenByID(ctx, tokenID)
	if err != nil {
		return
	}
	a.broadcaster.Publish(events.TypeTokenStatusChanged, NewTokenView(a.cipher, token))
}

// defaultResetTime is the policy fallback when a rate limit report carries no
// hint: the current hour boundary plus the configured backoff. Subscription
// plans enforce 5-hour windows.
func defaultResetTime(now time.Time) time.Time {
	return now.Truncate(time.Hour).Add(time.Duration(config.RateLimitedBackoffHours) * time.Hour)
}
