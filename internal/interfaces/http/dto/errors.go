package dto

import (
	"context"
	"errors"
	"net/http"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
)

// Error codes that originate in the HTTP layer. Domain errors keep their own
// codes (INSUFFICIENT_STOCK, NOT_FOUND, ...) on the wire.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeInvalidJSON      = "INVALID_JSON"
	ErrCodeInvalidID        = "INVALID_ID"
	ErrCodeRequestTooLarge  = "REQUEST_TOO_LARGE"
	ErrCodeTimeout          = "REQUEST_TIMEOUT"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeRouteNotFound    = "ROUTE_NOT_FOUND"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// Stock policy rejections
	inventory.CodeInsufficientStock: http.StatusUnprocessableEntity,
	inventory.CodeCapacityExceeded:  http.StatusUnprocessableEntity,
	inventory.CodeInvalidTransfer:   http.StatusBadRequest,

	// Contention and store health
	inventory.CodeResourceBusy:     http.StatusConflict,
	inventory.CodeStoreUnavailable: http.StatusServiceUnavailable,

	// Shared domain errors
	shared.CodeNotFound:        http.StatusNotFound,
	shared.CodeAlreadyExists:   http.StatusConflict,
	shared.CodeInvalidInput:    http.StatusBadRequest,
	shared.CodeInvalidQuantity: http.StatusBadRequest,
	shared.CodeInvalidState:    http.StatusUnprocessableEntity,

	// Request errors
	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeInvalidJSON:      http.StatusBadRequest,
	ErrCodeInvalidID:        http.StatusBadRequest,
	ErrCodeRequestTooLarge:  http.StatusRequestEntityTooLarge,
	ErrCodeTimeout:          http.StatusServiceUnavailable,
	ErrCodeInternal:         http.StatusInternalServerError,
	ErrCodeRouteNotFound:    http.StatusNotFound,
	ErrCodeMethodNotAllowed: http.StatusMethodNotAllowed,
}

// GetHTTPStatus returns the HTTP status for an error code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// MappedError is an error resolved to its wire representation
type MappedError struct {
	Status    int
	Code      string
	Message   string
	Retryable bool
}

// MapError resolves err to status, code and client message. Unknown errors
// become INTERNAL_ERROR with a generic message so store details never leak.
func MapError(err error) MappedError {
	if code := inventory.ErrorCode(err); code != "" {
		m := MappedError{
			Status:    GetHTTPStatus(code),
			Code:      code,
			Message:   err.Error(),
			Retryable: inventory.IsRetryable(err),
		}
		switch code {
		case inventory.CodeResourceBusy:
			m.Message = "Stock is being modified by another request, retry shortly"
		case inventory.CodeStoreUnavailable:
			m.Message = "Stock store is temporarily unavailable"
		}
		return m
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return MappedError{
			Status:  GetHTTPStatus(domainErr.Code),
			Code:    domainErr.Code,
			Message: domainErr.Message,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return MappedError{
			Status:    GetHTTPStatus(ErrCodeTimeout),
			Code:      ErrCodeTimeout,
			Message:   "Request timed out",
			Retryable: true,
		}
	}

	return MappedError{
		Status:  http.StatusInternalServerError,
		Code:    ErrCodeInternal,
		Message: "An internal error occurred",
	}
}
