package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDate      = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidAmount    = errors.New("amount must be a positive number")
	ErrEmptyDescription = errors.New("description is required")
	ErrEmptyProductName = errors.New("product name is required")
	ErrTextTooLong      = errors.New("too long (max 200 characters)")
	ErrMissingDate      = errors.New("date is required")
	ErrMissingUser      = errors.New("no authenticated user")
	ErrInvalidKind      = errors.New("unknown transaction kind")
	ErrTargetNotFuture  = errors.New("target date must be in the future")
	ErrInvalidCurrency  = errors.New("unsupported currency")
	ErrInvalidTheme     = errors.New("unsupported theme")
	ErrEmptyQuestion    = errors.New("question is required")
)

// ValidationError reports rejected user input. Field names the offending
// form field; Err is one of the sentinels above.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ExternalServiceError wraps failures of remote dependencies (AI provider,
// document store, broker) so callers can degrade instead of failing.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// External wraps err as an ExternalServiceError unless it is nil.
func External(service string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalServiceError{Service: service, Err: err}
}

// IsExternal reports whether err carries an ExternalServiceError.
func IsExternal(err error) bool {
	var ee *ExternalServiceError
	return errors.As(err, &ee)
}
