// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Watchlist errors
	ErrSymbolNotFound    = &Error{Code: "SYMBOL_NOT_FOUND", Message: "symbol not found"}
	ErrWatchlistNotFound = &Error{Code: "WATCHLIST_NOT_FOUND", Message: "watchlist not found"}
	ErrNoActiveWatchlist = &Error{Code: "NO_ACTIVE_WATCHLIST", Message: "no active watchlist"}
	ErrDuplicateEntry    = &Error{Code: "DUPLICATE_ENTRY", Message: "symbol already in watchlist"}
	ErrPriceUnavailable  = &Error{Code: "PRICE_UNAVAILABLE", Message: "price unavailable"}
	ErrDirectoryLoad     = &Error{Code: "DIRECTORY_LOAD_FAILED", Message: "symbol directory could not be loaded"}

	// Backend errors
	ErrBackendFailed = &Error{Code: "BACKEND_FAILED", Message: "backend request failed"}
	ErrBackendStatus = &Error{Code: "BACKEND_STATUS", Message: "backend returned an error status"}

	// Input errors
	ErrInvalidInput = &Error{Code: "INVALID_INPUT", Message: "invalid input"}

	// Archive errors
	ErrArchiveFailed = &Error{Code: "ARCHIVE_FAILED", Message: "archive operation failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// Auth errors
	ErrUnauthorized = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid credentials"}
)
