package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Errors returned by the order engine. Item-level failures are wrapped with
// their index (items[i]: ...) so callers can point at the offending line.
var (
	ErrEmptyOrder        = errors.New("order must contain at least one item")
	ErrInvalidLineItem   = errors.New("invalid line item")
	ErrInvalidOrderType  = errors.New("invalid order_type")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidPickupTime = errors.New("invalid pickup_time")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOrderLocked       = errors.New("order is locked")

	// ErrConcurrentUpdate means the stored status changed between our read
	// and the conditional write. The caller decides whether to retry.
	ErrConcurrentUpdate = errors.New("order status changed concurrently, please retry")
)

// MissingFieldError reports a customer field required for the given order
// type that was not supplied.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// ErrMissingRequiredField matches any MissingFieldError via errors.Is.
var ErrMissingRequiredField = errors.New("missing required field")

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingRequiredField
}

// InvalidTransitionError identifies a rejected status transition: which
// order, from which committed state, to which requested state.
type InvalidTransitionError struct {
	OrderID   uuid.UUID
	Current   string
	Requested string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot transition from %s to %s", e.OrderID, e.Current, e.Requested)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// OrderLockedError reports a mutation attempted against an order whose
// status no longer permits it.
type OrderLockedError struct {
	OrderID uuid.UUID
	Status  string
}

func (e *OrderLockedError) Error() string {
	return fmt.Sprintf("order %s: locked in status %s", e.OrderID, e.Status)
}

func (e *OrderLockedError) Is(target error) bool {
	return target == ErrOrderLocked
}

// StoreError wraps a persistence failure verbatim. The engine never retries;
// errors.Is/As reach the underlying cause through Unwrap.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
