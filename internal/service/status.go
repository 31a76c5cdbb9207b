package service

import (
	"github.com/dinehub/ops-api/internal/enum"
	"github.com/google/uuid"
)

// statusPriority is the total ordering used for triage sort: strictly
// increasing along the success path, highest for CANCELLED.
var statusPriority = map[string]int{
	enum.OrderStatusPending:   1,
	enum.OrderStatusConfirmed: 2,
	enum.OrderStatusPreparing: 3,
	enum.OrderStatusReady:     4,
	enum.OrderStatusServed:    5,
	enum.OrderStatusCancelled: 6,
}

// StatusPriority returns the triage sort weight of a status. Unknown
// statuses sort last.
func StatusPriority(status string) int {
	if p, ok := statusPriority[status]; ok {
		return p
	}
	return len(statusPriority) + 1
}

// allowedTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
// An order that is READY or already SERVED cannot be cancelled.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:   {enum.OrderStatusConfirmed, enum.OrderStatusCancelled},
	enum.OrderStatusConfirmed: {enum.OrderStatusPreparing, enum.OrderStatusCancelled},
	enum.OrderStatusPreparing: {enum.OrderStatusReady, enum.OrderStatusCancelled},
	enum.OrderStatusReady:     {enum.OrderStatusServed},
}

// CanTransition reports whether current → next is in the transition table.
func CanTransition(current, next string) bool {
	for _, s := range allowedTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// ValidateTransition checks current → next for the given order and returns
// an InvalidTransitionError identifying order, current and requested state
// when the table does not allow it.
func ValidateTransition(orderID uuid.UUID, current, next string) error {
	if CanTransition(current, next) {
		return nil
	}
	return &InvalidTransitionError{OrderID: orderID, Current: current, Requested: next}
}

// IsTerminalStatus reports whether no further transitions are permitted.
func IsTerminalStatus(status string) bool {
	return status == enum.OrderStatusServed || status == enum.OrderStatusCancelled
}
