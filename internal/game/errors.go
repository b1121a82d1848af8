package game

import (
	"errors"
	"fmt"
)

// Error is the engine's structured failure: a stable code for callers to branch on
// plus a human message. Retryable marks transient store failures.
type Error struct {
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Error codes.
const (
	ErrCodeConfiguration   = "CONFIGURATION"
	ErrCodeAuthorization   = "AUTHORIZATION"
	ErrCodePoolExhausted   = "POOL_EXHAUSTED"
	ErrCodeSessionTerminal = "SESSION_TERMINAL"
	ErrCodeAttemptLimit    = "ATTEMPT_LIMIT"
	ErrCodeStorage         = "STORAGE"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInvalidInput    = "INVALID_INPUT"
)

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code string) bool { return CodeOf(err) == code }

func NewConfigurationError(msg string) *Error {
	return &Error{Code: ErrCodeConfiguration, Message: msg}
}

func NewAuthorizationError(msg string) *Error {
	return &Error{Code: ErrCodeAuthorization, Message: msg}
}

// NewPoolExhaustionError reports an empty candidate pool even with no exclusion window.
func NewPoolExhaustionError(t Type, date string) *Error {
	return &Error{
		Code:    ErrCodePoolExhausted,
		Message: fmt.Sprintf("no eligible %s candidates for %s", t, date),
	}
}

func NewSessionTerminalError(t Type, status Status) *Error {
	return &Error{
		Code:    ErrCodeSessionTerminal,
		Message: fmt.Sprintf("%s session already %s", t, status),
	}
}

// NewAttemptLimitError should be unreachable: sessions fail exactly at the limit.
func NewAttemptLimitError(t Type, limit int) *Error {
	return &Error{
		Code:    ErrCodeAttemptLimit,
		Message: fmt.Sprintf("%s session already holds %d guesses", t, limit),
	}
}

// NewStorageError wraps a store failure as retryable.
func NewStorageError(op string, err error) *Error {
	return &Error{Code: ErrCodeStorage, Message: op, Retryable: true, Err: err}
}

func NewNotFoundError(what, id string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found: %s", what, id)}
}

func NewInvalidInputError(msg string) *Error {
	return &Error{Code: ErrCodeInvalidInput, Message: msg}
}
