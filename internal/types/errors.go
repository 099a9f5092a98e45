package types

import "fmt"

// ValidationError is a local, pre-network failure tagged with the offending
// field. It is never retried.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// TransactionError wraps a backend failure that either exhausted its retries
// or was classified as non-retryable. Cause carries the last underlying error.
type TransactionError struct {
	Operation string
	Cause     error
}

func (e *TransactionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("transaction failed: %s", e.Operation)
	}
	return fmt.Sprintf("transaction failed: %s: %v", e.Operation, e.Cause)
}

func (e *TransactionError) Unwrap() error {
	return e.Cause
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}
