package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the canonical in-memory representation of an order. Snapshots of
// []Order are what the filter and projector operate on; all monetary fields
// are derived by the pricing calculator and never hand-entered.
type Order struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID

	// OrderNumber is the human-facing identifier, unique per restaurant,
	// immutable after creation.
	OrderNumber string

	// OrderType holds the value as received, legacy DINE_IN alias included.
	// Compare via enum.CanonicalOrderType, never directly.
	OrderType string
	Status    string

	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	DeliveryAddress string
	TableNumber     string
	PickupTime      *time.Time

	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	DeliveryFee decimal.Decimal
	TotalAmount decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time

	// Items in insertion order; the sequence carries no meaning beyond display.
	Items []OrderItem
}

// OrderItem is one menu-item line within an order. MenuItemID is a weak
// reference: the engine requires it non-empty but does not validate that the
// menu item still exists, and UnitPrice is captured at order-creation time so
// later menu price changes never alter historical orders.
type OrderItem struct {
	ID                  uuid.UUID
	MenuItemID          string
	Quantity            int32
	UnitPrice           decimal.Decimal
	TotalPrice          decimal.Decimal
	SpecialInstructions string
}
