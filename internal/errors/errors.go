package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unitdesk error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrViewNotFound       ErrorCode = "VIEW_NOT_FOUND"      // 404
	ErrBusy               ErrorCode = "BUSY"                // 409
	ErrApplicationFailure ErrorCode = "APPLICATION_FAILURE" // 422
	ErrRateLimited        ErrorCode = "RATE_LIMITED"        // 429
	ErrFetchFailure       ErrorCode = "FETCH_FAILURE"       // 502
	ErrInternal           ErrorCode = "INTERNAL"            // 500
)

// UnitError represents a structured error with code, status, and details.
type UnitError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *UnitError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the transport or decode error behind a FETCH_FAILURE, if any.
func (e *UnitError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *UnitError {
	return &UnitError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a unit missing from the current page.
func NewNotFound(id string) *UnitError {
	return &UnitError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("unit not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewViewNotFound creates a 404 error for an unknown or expired list view.
func NewViewNotFound(viewID string) *UnitError {
	return &UnitError{
		Code:    ErrViewNotFound,
		Status:  404,
		Message: fmt.Sprintf("view not found or expired: %s", viewID),
		Details: map[string]any{"view": viewID},
	}
}

// NewBusy creates a 409 error when a mutation is already in flight.
func NewBusy(op string) *UnitError {
	return &UnitError{
		Code:    ErrBusy,
		Status:  409,
		Message: fmt.Sprintf("%s already in progress", op),
	}
}

// NewApplicationFailure creates a 422 error carrying the remote API's message.
func NewApplicationFailure(msg string) *UnitError {
	if msg == "" {
		msg = "remote API rejected the request"
	}
	return &UnitError{
		Code:    ErrApplicationFailure,
		Status:  422,
		Message: msg,
	}
}

// NewRateLimited creates a 429 error when a client sends mutations too fast.
func NewRateLimited() *UnitError {
	return &UnitError{
		Code:    ErrRateLimited,
		Status:  429,
		Message: "too many requests, try again later",
	}
}

// NewFetchFailure creates a 502 error for a failed round-trip to the remote API.
func NewFetchFailure(op string, err error) *UnitError {
	msg := op + " failed"
	if err != nil {
		msg = fmt.Sprintf("%s failed: %v", op, err)
	}
	return &UnitError{
		Code:    ErrFetchFailure,
		Status:  502,
		Message: msg,
		Details: map[string]any{"op": op},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The cause is kept in Details for logging, not in Message.
func NewInternal(err error) *UnitError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &UnitError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
		cause:   err,
	}
}

// Is checks if an error is, or wraps, a UnitError with the given code.
func Is(err error, code ErrorCode) bool {
	var uErr *UnitError
	if stderrors.As(err, &uErr) {
		return uErr.Code == code
	}
	return false
}

// As extracts the UnitError from err's chain.
func As(err error) (*UnitError, bool) {
	var uErr *UnitError
	ok := stderrors.As(err, &uErr)
	return uErr, ok
}
