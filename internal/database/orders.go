package database

import (
	"context"
	"fmt"

	"github.com/dinehub/ops-api/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries is the Postgres order store. It satisfies service.OrderStore:
// reads return domain orders with their items, writes are per-row atomic
// (status updates are guarded on the expected current status).
type Queries struct {
	pool *pgxpool.Pool
}

// New creates a Queries over the given pool.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

const orderColumns = `id, restaurant_id, order_number, order_type, status,
	customer_name, customer_phone, customer_email, delivery_address, table_number,
	pickup_time, subtotal, tax_amount, delivery_fee, total_amount, created_at, updated_at`

const itemColumns = `id, order_id, menu_item_id, quantity, unit_price, total_price, special_instructions`

// FetchOrders loads the restaurant's full order set, items included.
func (q *Queries) FetchOrders(ctx context.Context, restaurantID uuid.UUID) ([]service.Order, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE restaurant_id = $1 ORDER BY created_at DESC, order_number ASC`,
		restaurantID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []service.Order
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}

	itemRows, err := q.pool.Query(ctx,
		`SELECT oi.id, oi.order_id, oi.menu_item_id, oi.quantity, oi.unit_price,
		        oi.total_price, oi.special_instructions
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 WHERE o.restaurant_id = $1
		 ORDER BY oi.position ASC`,
		restaurantID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		orderID, item, err := scanItem(itemRows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("scan order items: %w", err)
	}
	return orders, nil
}

// GetOrder loads a single order with its items. Returns pgx.ErrNoRows when
// the order does not exist in the restaurant's scope.
func (q *Queries) GetOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (service.Order, error) {
	row := q.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND restaurant_id = $2`,
		orderID, restaurantID)
	o, err := scanOrder(row)
	if err != nil {
		return service.Order{}, err
	}
	if err := q.loadItems(ctx, &o); err != nil {
		return service.Order{}, err
	}
	return o, nil
}

// NextOrderNumber returns the next order sequence value for the restaurant.
// Derived from MAX, so concurrent creations can draw the same value; the
// unique constraint on (restaurant_id, order_number) plus the service-level
// retry resolve that race.
func (q *Queries) NextOrderNumber(ctx context.Context, restaurantID uuid.UUID) (int32, error) {
	var next int32
	err := q.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(CAST(SUBSTRING(order_number FROM 5) AS INTEGER)), 0) + 1
		 FROM orders WHERE restaurant_id = $1`,
		restaurantID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next order number: %w", err)
	}
	return next, nil
}

// CreateOrder persists the order and its items in one transaction.
func (q *Queries) CreateOrder(ctx context.Context, order service.Order) (service.Order, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return service.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		order.ID, order.RestaurantID, order.OrderNumber, order.OrderType, order.Status,
		order.CustomerName, order.CustomerPhone, order.CustomerEmail, order.DeliveryAddress,
		order.TableNumber, timestamptz(order.PickupTime),
		decimalToNumeric(order.Subtotal), decimalToNumeric(order.TaxAmount),
		decimalToNumeric(order.DeliveryFee), decimalToNumeric(order.TotalAmount),
		order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return service.Order{}, err
	}

	if err := insertItems(ctx, tx, order.ID, order.Items); err != nil {
		return service.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return service.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// UpdateOrderStatus commits the new status only when the stored status
// still equals ExpectedStatus. A missed guard surfaces as pgx.ErrNoRows.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg service.UpdateOrderStatusParams) (service.Order, error) {
	row := q.pool.QueryRow(ctx,
		`UPDATE orders SET status = $1, updated_at = $2
		 WHERE id = $3 AND restaurant_id = $4 AND status = $5
		 RETURNING `+orderColumns,
		arg.NewStatus, arg.UpdatedAt, arg.OrderID, arg.RestaurantID, arg.ExpectedStatus)
	o, err := scanOrder(row)
	if err != nil {
		return service.Order{}, err
	}
	if err := q.loadItems(ctx, &o); err != nil {
		return service.Order{}, err
	}
	return o, nil
}

// UpdateOrderFields replaces the editable fields, totals and items. The
// write is guarded on the order still being in an editable status so a
// concurrently served or cancelled order cannot be edited from a stale
// read; a missed guard surfaces as pgx.ErrNoRows.
func (q *Queries) UpdateOrderFields(ctx context.Context, arg service.UpdateOrderFieldsParams) (service.Order, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return service.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx,
		`UPDATE orders SET
			customer_name = $1, customer_phone = $2, customer_email = $3,
			delivery_address = $4, table_number = $5, pickup_time = $6,
			subtotal = $7, tax_amount = $8, delivery_fee = $9, total_amount = $10,
			updated_at = $11
		 WHERE id = $12 AND restaurant_id = $13
		   AND status IN ('PENDING', 'CONFIRMED', 'PREPARING')
		 RETURNING `+orderColumns,
		arg.CustomerName, arg.CustomerPhone, arg.CustomerEmail,
		arg.DeliveryAddress, arg.TableNumber, timestamptz(arg.PickupTime),
		decimalToNumeric(arg.Totals.Subtotal), decimalToNumeric(arg.Totals.TaxAmount),
		decimalToNumeric(arg.Totals.DeliveryFee), decimalToNumeric(arg.Totals.TotalAmount),
		arg.UpdatedAt, arg.OrderID, arg.RestaurantID)
	o, err := scanOrder(row)
	if err != nil {
		return service.Order{}, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, arg.OrderID); err != nil {
		return service.Order{}, err
	}
	if err := insertItems(ctx, tx, arg.OrderID, arg.Items); err != nil {
		return service.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return service.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	o.Items = arg.Items
	return o, nil
}
