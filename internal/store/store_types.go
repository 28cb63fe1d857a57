package store

import (
	"errors"
)

const PostgresdbStoreType = "postgresdb"
const RequestContextKey = "request"

// Common errors that can be returned by any store implementation
var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAlreadyExists      = errors.New("record already exists")
	ErrInternal           = errors.New("internal error")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")           // 403 Forbidden - for permission issues
	ErrServiceUnavailable = errors.New("service unavailable") // 503 Service Unavailable - for external dependencies
)

// Pool and credential errors
var (
	ErrInvalidCredentialFormat = errors.New("invalid credential format")
	ErrPoolExhausted           = errors.New("token pool exhausted")
	ErrTokenUnavailable        = errors.New("token unavailable")
	ErrValidationTimeout       = errors.New("credential validation timed out")
	ErrValidationFailed        = errors.New("credential validation failed")
)

// PoolCounts is the status breakdown of the token pool at one instant.
// Eligible counts rows selectable right now, including rate-limited rows
// whose reset time has already passed.
type PoolCounts struct {
	Total         int64
	Active        int64
	RateLimited   int64
	Invalid       int64
	Eligible      int64
	TotalRequests int64
}

// PaginationParams contains common pagination parameters
type PaginationParams struct {
	Limit  int
	Offset int
}

// SortDirection defines the direction for sorting
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortParams contains sorting parameters
type SortParams struct {
	Field     string
	Direction SortDirection
}

// ClaudeTokenUpdate carries the owner-editable fields of a contributed token.
// Nil means leave unchanged; Secret nil means keep the stored ciphertext.
type ClaudeTokenUpdate struct {
	Name   *string
	Secret *string
}
