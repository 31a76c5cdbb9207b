package database

import (
	"context"
	"fmt"
	"time"

	"github.com/dinehub/ops-api/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func scanOrder(row pgx.Row) (service.Order, error) {
	var (
		o          service.Order
		pickupTime pgtype.Timestamptz
		subtotal   pgtype.Numeric
		tax        pgtype.Numeric
		fee        pgtype.Numeric
		total      pgtype.Numeric
	)
	err := row.Scan(
		&o.ID, &o.RestaurantID, &o.OrderNumber, &o.OrderType, &o.Status,
		&o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &o.DeliveryAddress, &o.TableNumber,
		&pickupTime, &subtotal, &tax, &fee, &total, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return service.Order{}, err
	}
	if pickupTime.Valid {
		t := pickupTime.Time
		o.PickupTime = &t
	}
	o.Subtotal = numericToDecimal(subtotal)
	o.TaxAmount = numericToDecimal(tax)
	o.DeliveryFee = numericToDecimal(fee)
	o.TotalAmount = numericToDecimal(total)
	return o, nil
}

func scanItem(row pgx.Row) (uuid.UUID, service.OrderItem, error) {
	var (
		item      service.OrderItem
		orderID   uuid.UUID
		unitPrice pgtype.Numeric
		lineTotal pgtype.Numeric
	)
	err := row.Scan(&item.ID, &orderID, &item.MenuItemID, &item.Quantity,
		&unitPrice, &lineTotal, &item.SpecialInstructions)
	if err != nil {
		return uuid.Nil, service.OrderItem{}, err
	}
	item.UnitPrice = numericToDecimal(unitPrice)
	item.TotalPrice = numericToDecimal(lineTotal)
	return orderID, item, nil
}

func (q *Queries) loadItems(ctx context.Context, o *service.Order) error {
	rows, err := q.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY position ASC`,
		o.ID)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		_, item, err := scanItem(rows)
		if err != nil {
			return err
		}
		o.Items = append(o.Items, item)
	}
	return rows.Err()
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []service.OrderItem) error {
	for i, item := range items {
		_, err := tx.Exec(ctx,
			`INSERT INTO order_items (`+itemColumns+`, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.ID, orderID, item.MenuItemID, item.Quantity,
			decimalToNumeric(item.UnitPrice), decimalToNumeric(item.TotalPrice),
			item.SpecialInstructions, i)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
