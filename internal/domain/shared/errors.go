package shared

import (
	"errors"
	"fmt"
)

// Codes of the errors shared by every ledger aggregate. Stock policy errors
// live in the inventory package with their own codes.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeAlreadyExists   = "ALREADY_EXISTS"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeInvalidQuantity = "INVALID_QUANTITY"
	CodeInvalidState    = "INVALID_STATE"
)

// DomainError is a coded error whose message is safe to return to callers
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches by code, so NotFound("Batch") satisfies errors.Is(err, ErrNotFound).
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// NotFound reports a missing ledger record, e.g. NotFound("Location").
func NotFound(what string) *DomainError {
	return NewDomainError(CodeNotFound, what+" not found")
}

// AlreadyExists reports a uniqueness conflict on key.
func AlreadyExists(what, key string) *DomainError {
	return NewDomainError(CodeAlreadyExists, fmt.Sprintf("%s %s already exists", what, key))
}

// InvalidInput rejects a request before any stock is touched.
func InvalidInput(message string) *DomainError {
	return NewDomainError(CodeInvalidInput, message)
}

// InvalidQuantity rejects a non-positive or otherwise unusable quantity.
func InvalidQuantity(message string) *DomainError {
	return NewDomainError(CodeInvalidQuantity, message)
}

// Sentinels for errors.Is
var (
	ErrNotFound        = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists   = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput    = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrInvalidQuantity = NewDomainError(CodeInvalidQuantity, "Quantity must not be negative")
	ErrInvalidState    = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
)
