package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	ErrNotConnected    = fmt.Errorf("channel not connected")
	ErrDisconnected    = fmt.Errorf("channel disconnected mid-query")
	ErrQuotaExceeded   = fmt.Errorf("daily query limit reached")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrNotAuthed       = fmt.Errorf("not authenticated")
	ErrDeclined        = fmt.Errorf("action declined by user")
	ErrToolUnknown     = fmt.Errorf("unknown tool")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrProviderError   = fmt.Errorf("provider error")
	ErrConfigLoad      = fmt.Errorf("failed to load configuration")
	ErrDecryption      = fmt.Errorf("decryption failed")
	ErrSessionNotFound = fmt.Errorf("no persisted session")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g., "AuthFlow.Handle")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a DomainError wrapping the given sentinel.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// IsDomainError checks if err is (or wraps) a DomainError.
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}
