package service

import (
	"fmt"

	"github.com/dinehub/ops-api/internal/enum"
	"github.com/shopspring/decimal"
)

// PricingConfig carries the per-restaurant pricing values. These are
// injected, not hard-coded: the tax rate and delivery fee come from the
// restaurant's configuration (config.Load supplies the 8% / flat-fee
// defaults when the environment leaves them unset).
type PricingConfig struct {
	TaxRate     decimal.Decimal // fraction, e.g. 0.08
	DeliveryFee decimal.Decimal // flat, applied to delivery orders only
}

// Totals is the derived monetary breakdown of an order.
// TotalAmount = Subtotal + TaxAmount + DeliveryFee always holds.
type Totals struct {
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	DeliveryFee decimal.Decimal
	TotalAmount decimal.Decimal
}

// LineTotal computes quantity × unit_price for one line item.
func LineTotal(item OrderItem) decimal.Decimal {
	return item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity))
}

// ValidateLineItem checks the invariants a line item must satisfy before it
// participates in pricing.
func ValidateLineItem(item OrderItem) error {
	if item.MenuItemID == "" {
		return fmt.Errorf("%w: menu_item_id is required", ErrInvalidLineItem)
	}
	if item.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be >= 1", ErrInvalidLineItem)
	}
	if item.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: unit_price must not be negative", ErrInvalidLineItem)
	}
	return nil
}

// CalculateTotals derives subtotal, tax, delivery fee and total from the
// line items and order type. It is pure and idempotent: the same inputs
// always produce the same outputs, with no accumulation across calls.
// Amounts are rounded to the currency minor unit (2 places).
func CalculateTotals(items []OrderItem, orderType string, cfg PricingConfig) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, ErrEmptyOrder
	}

	subtotal := decimal.Zero
	for i, item := range items {
		if err := ValidateLineItem(item); err != nil {
			return Totals{}, fmt.Errorf("items[%d]: %w", i, err)
		}
		subtotal = subtotal.Add(LineTotal(item))
	}
	subtotal = subtotal.Round(2)

	tax := subtotal.Mul(cfg.TaxRate).Round(2)

	fee := decimal.Zero
	if enum.CanonicalOrderType(orderType) == enum.OrderTypeDelivery {
		fee = cfg.DeliveryFee.Round(2)
	}

	return Totals{
		Subtotal:    subtotal,
		TaxAmount:   tax,
		DeliveryFee: fee,
		TotalAmount: subtotal.Add(tax).Add(fee),
	}, nil
}

// PriceItems validates every line item and returns a copy with TotalPrice
// recomputed. Called whenever quantity or unit_price changes so the
// total_price = quantity × unit_price invariant never drifts.
func PriceItems(items []OrderItem) ([]OrderItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	priced := make([]OrderItem, len(items))
	for i, item := range items {
		if err := ValidateLineItem(item); err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		item.TotalPrice = LineTotal(item).Round(2)
		priced[i] = item
	}
	return priced, nil
}
