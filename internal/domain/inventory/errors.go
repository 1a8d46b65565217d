package inventory

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error codes carried by the stock errors below.
const (
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeCapacityExceeded  = "CAPACITY_EXCEEDED"
	CodeInvalidTransfer   = "INVALID_TRANSFER"
	CodeResourceBusy      = "RESOURCE_BUSY"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
)

// CodedError is implemented by every stock error.
type CodedError interface {
	error
	Code() string
}

// InsufficientStockError is returned when a deduction or transfer asks for more
// sellable stock than exists. LocationID is nil when the shortfall spans locations.
type InsufficientStockError struct {
	ProductID  uuid.UUID
	LocationID *uuid.UUID
	Available  int64
	Requested  int64
}

func (e *InsufficientStockError) Error() string {
	if e.LocationID != nil {
		return fmt.Sprintf("insufficient stock for product %s at location %s: available %d, requested %d",
			e.ProductID, e.LocationID, e.Available, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Code() string { return CodeInsufficientStock }

// CapacityExceededError is returned when a display location would hold more
// of a product than its capacity.
type CapacityExceededError struct {
	ProductID  uuid.UUID
	LocationID uuid.UUID
	Capacity   int64
	Current    int64
	Requested  int64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded at location %s: capacity %d, current %d, requested %d",
		e.LocationID, e.Capacity, e.Current, e.Requested)
}

func (e *CapacityExceededError) Code() string { return CodeCapacityExceeded }

// InvalidTransferError rejects malformed transfers.
type InvalidTransferError struct {
	Reason string
}

func (e *InvalidTransferError) Error() string {
	return "invalid transfer: " + e.Reason
}

func (e *InvalidTransferError) Code() string { return CodeInvalidTransfer }

// ResourceBusyError means a lock could not be acquired within the bounded wait.
// Callers may retry.
type ResourceBusyError struct {
	Resource string
	Err      error
}

func (e *ResourceBusyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resource busy: %s: %v", e.Resource, e.Err)
	}
	return "resource busy: " + e.Resource
}

func (e *ResourceBusyError) Code() string  { return CodeResourceBusy }
func (e *ResourceBusyError) Unwrap() error { return e.Err }

// StoreUnavailableError wraps connection-level failures of the backing store.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Code() string  { return CodeStoreUnavailable }
func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient contention failure.
func IsRetryable(err error) bool {
	var busy *ResourceBusyError
	return errors.As(err, &busy)
}

// ErrorCode returns the stock error code carried by err, or "".
func ErrorCode(err error) string {
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}
