package utils

import "fmt"

// ValidationError represents an error occurring during data validation.
type ValidationError struct {
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// OutOfRangeError indicates a request parameter outside its allowed
// bounds. Out-of-range values are reported, never silently clamped.
type OutOfRangeError struct {
	Param   string
	Message string
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s out of range: %s", e.Param, e.Message)
}

// NewOutOfRangeError creates a new OutOfRangeError for a parameter.
func NewOutOfRangeError(param, format string, args ...interface{}) error {
	return &OutOfRangeError{
		Param:   param,
		Message: fmt.Sprintf(format, args...),
	}
}

// NotFoundError indicates an unknown product/site pair. This is a normal
// outcome of a lookup, not a failure of the store.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// NewNotFoundErrorf creates a new NotFoundError with a formatted message.
func NewNotFoundErrorf(format string, args ...interface{}) error {
	return &NotFoundError{
		Message: fmt.Sprintf(format, args...),
	}
}

// StoreUnavailableError indicates the observation store could not be
// read. Kept distinct from NotFoundError: "no data" and "can't tell"
// must never be conflated.
type StoreUnavailableError struct {
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("observation store unavailable: %v", e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// NewStoreUnavailableError wraps a store read failure.
func NewStoreUnavailableError(err error) error {
	return &StoreUnavailableError{Err: err}
}

// ComputationTimeoutError indicates a view refresh exceeded its budget.
// Callers resolve it by serving the last good cached view.
type ComputationTimeoutError struct {
	Operation string
}

func (e *ComputationTimeoutError) Error() string {
	return fmt.Sprintf("computation timed out: %s", e.Operation)
}

// NewComputationTimeoutError creates a timeout error for an operation.
func NewComputationTimeoutError(operation string) error {
	return &ComputationTimeoutError{Operation: operation}
}
