package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dinehub/ops-api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// OrderStore is the external persistence collaborator. Satisfied by
// *database.Queries. UpdateOrderStatus must be conditional on the expected
// current status (per-row optimistic concurrency) and report pgx.ErrNoRows
// when the guard misses; GetOrder reports pgx.ErrNoRows for a missing order.
type OrderStore interface {
	FetchOrders(ctx context.Context, restaurantID uuid.UUID) ([]Order, error)
	GetOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (Order, error)
	NextOrderNumber(ctx context.Context, restaurantID uuid.UUID) (int32, error)
	CreateOrder(ctx context.Context, order Order) (Order, error)
	UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error)
	UpdateOrderFields(ctx context.Context, arg UpdateOrderFieldsParams) (Order, error)
}

// UpdateOrderStatusParams is a guarded status write: the store only commits
// when the stored status still equals ExpectedStatus, so a transition is
// always validated against the most recently committed state.
type UpdateOrderStatusParams struct {
	RestaurantID   uuid.UUID
	OrderID        uuid.UUID
	ExpectedStatus string
	NewStatus      string
	UpdatedAt      time.Time
}

// UpdateOrderFieldsParams carries an edited order's replacement fields.
// order_number and created_at are absent on purpose: they are immutable,
// and the monetary fields always arrive re-derived in Totals.
type UpdateOrderFieldsParams struct {
	RestaurantID    uuid.UUID
	OrderID         uuid.UUID
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	DeliveryAddress string
	TableNumber     string
	PickupTime      *time.Time
	Items           []OrderItem
	Totals          Totals
	UpdatedAt       time.Time
}

// CreateOrderRequest is the validated input for creating an order from a
// pending cart.
type CreateOrderRequest struct {
	RestaurantID    uuid.UUID
	OrderType       string
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	DeliveryAddress string
	TableNumber     string
	PickupTime      string // RFC3339, required for pickup orders
	Items           []LineItemRequest
}

// LineItemRequest is a single cart line. UnitPrice is the price captured by
// the ordering form at creation time, as a decimal string.
type LineItemRequest struct {
	MenuItemID          string
	Quantity            int32
	UnitPrice           string
	SpecialInstructions string
}

// EditOrderRequest updates an order still in an editable status. Nil
// pointers leave a field untouched; a non-nil Items slice replaces the line
// items and forces a full repricing.
type EditOrderRequest struct {
	CustomerName    *string
	CustomerPhone   *string
	CustomerEmail   *string
	DeliveryAddress *string
	TableNumber     *string
	PickupTime      *string // RFC3339
	Items           []LineItemRequest
}

// OrderService is the mutation gateway: the single choke point through
// which orders are created and changed. Every mutation is validated against
// the state machine before any persistence call is made.
type OrderService struct {
	store   OrderStore
	pricing PricingConfig
	now     func() time.Time
}

// NewOrderService creates the gateway with the restaurant's injected
// pricing configuration.
func NewOrderService(store OrderStore, pricing PricingConfig) *OrderService {
	return &OrderService{store: store, pricing: pricing, now: time.Now}
}

// Snapshot fetches the restaurant's full order set for filtering and
// projection.
func (s *OrderService) Snapshot(ctx context.Context, restaurantID uuid.UUID) ([]Order, error) {
	orders, err := s.store.FetchOrders(ctx, restaurantID)
	if err != nil {
		return nil, storeErr("fetch orders", err)
	}
	return orders, nil
}

// GetOrder loads one order.
func (s *OrderService) GetOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (Order, error) {
	order, err := s.store.GetOrder(ctx, restaurantID, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, storeErr("get order", err)
	}
	return order, nil
}

// CreateOrder validates the cart, prices it, assigns PENDING status and a
// generated order number, and requests persistence. Retries up to
// maxOrderNumberRetries times on order_number unique constraint violations
// (concurrent creations can draw the same sequence value).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	if !enum.IsValidOrderType(req.OrderType) {
		return Order{}, ErrInvalidOrderType
	}
	if err := validateRequiredFields(req); err != nil {
		return Order{}, err
	}

	var pickupTime *time.Time
	if req.PickupTime != "" {
		t, err := time.Parse(time.RFC3339, req.PickupTime)
		if err != nil {
			return Order{}, fmt.Errorf("%w: %w", ErrInvalidPickupTime, err)
		}
		pickupTime = &t
	}

	items, err := parseLineItems(req.Items)
	if err != nil {
		return Order{}, err
	}
	items, err = PriceItems(items)
	if err != nil {
		return Order{}, err
	}
	totals, err := CalculateTotals(items, req.OrderType, s.pricing)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	order := Order{
		ID:              uuid.New(),
		RestaurantID:    req.RestaurantID,
		OrderType:       req.OrderType,
		Status:          enum.OrderStatusPending,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		DeliveryAddress: req.DeliveryAddress,
		TableNumber:     req.TableNumber,
		PickupTime:      pickupTime,
		Subtotal:        totals.Subtotal,
		TaxAmount:       totals.TaxAmount,
		DeliveryFee:     totals.DeliveryFee,
		TotalAmount:     totals.TotalAmount,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           items,
	}

	// Retry loop: handles the order_number unique constraint race.
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		next, err := s.store.NextOrderNumber(ctx, req.RestaurantID)
		if err != nil {
			return Order{}, storeErr("next order number", err)
		}
		order.OrderNumber = fmt.Sprintf("ORD-%03d", next)

		created, err := s.store.CreateOrder(ctx, order)
		if err == nil {
			return created, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return Order{}, storeErr("create order", err)
	}
	return Order{}, storeErr("create order", lastErr)
}

// TransitionStatus moves an order to the requested status after checking
// the transition table against the most recently committed state.
func (s *OrderService) TransitionStatus(ctx context.Context, restaurantID, orderID uuid.UUID, requested string) (Order, error) {
	current, err := s.GetOrder(ctx, restaurantID, orderID)
	if err != nil {
		return Order{}, err
	}

	if err := ValidateTransition(orderID, current.Status, requested); err != nil {
		return Order{}, err
	}

	return s.commitStatus(ctx, current, requested)
}

// CancelOrder is sugar for a transition to CANCELLED, except that a
// terminal order reports OrderLocked rather than InvalidTransition.
func (s *OrderService) CancelOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (Order, error) {
	current, err := s.GetOrder(ctx, restaurantID, orderID)
	if err != nil {
		return Order{}, err
	}

	if IsTerminalStatus(current.Status) {
		return Order{}, &OrderLockedError{OrderID: orderID, Status: current.Status}
	}
	if err := ValidateTransition(orderID, current.Status, enum.OrderStatusCancelled); err != nil {
		return Order{}, err
	}

	return s.commitStatus(ctx, current, enum.OrderStatusCancelled)
}

// EditOrder applies field updates to an order still in an editable status
// (PENDING, CONFIRMED or PREPARING). order_number, created_at and the
// monetary fields are not editable: money is always re-derived from the
// resulting line items before persistence.
func (s *OrderService) EditOrder(ctx context.Context, restaurantID, orderID uuid.UUID, req EditOrderRequest) (Order, error) {
	current, err := s.GetOrder(ctx, restaurantID, orderID)
	if err != nil {
		return Order{}, err
	}

	if !isEditableStatus(current.Status) {
		return Order{}, &OrderLockedError{OrderID: orderID, Status: current.Status}
	}

	edited := current
	applyString(&edited.CustomerName, req.CustomerName)
	applyString(&edited.CustomerPhone, req.CustomerPhone)
	applyString(&edited.CustomerEmail, req.CustomerEmail)
	applyString(&edited.DeliveryAddress, req.DeliveryAddress)
	applyString(&edited.TableNumber, req.TableNumber)
	if edited.CustomerName == "" {
		return Order{}, &MissingFieldError{Field: "customer_name"}
	}
	if req.PickupTime != nil {
		t, err := time.Parse(time.RFC3339, *req.PickupTime)
		if err != nil {
			return Order{}, fmt.Errorf("%w: %w", ErrInvalidPickupTime, err)
		}
		edited.PickupTime = &t
	}

	items := edited.Items
	if req.Items != nil {
		items, err = parseLineItems(req.Items)
		if err != nil {
			return Order{}, err
		}
	}
	items, err = PriceItems(items)
	if err != nil {
		return Order{}, err
	}
	totals, err := CalculateTotals(items, edited.OrderType, s.pricing)
	if err != nil {
		return Order{}, err
	}

	updated, err := s.store.UpdateOrderFields(ctx, UpdateOrderFieldsParams{
		RestaurantID:    restaurantID,
		OrderID:         orderID,
		CustomerName:    edited.CustomerName,
		CustomerPhone:   edited.CustomerPhone,
		CustomerEmail:   edited.CustomerEmail,
		DeliveryAddress: edited.DeliveryAddress,
		TableNumber:     edited.TableNumber,
		PickupTime:      edited.PickupTime,
		Items:           items,
		Totals:          totals,
		UpdatedAt:       s.now(),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// GetOrder just succeeded, so a missed guard means the status
			// left the editable set between our read and write.
			return Order{}, ErrConcurrentUpdate
		}
		return Order{}, storeErr("update order fields", err)
	}
	return updated, nil
}

// --- Helpers ---

func (s *OrderService) commitStatus(ctx context.Context, current Order, next string) (Order, error) {
	updated, err := s.store.UpdateOrderStatus(ctx, UpdateOrderStatusParams{
		RestaurantID:   current.RestaurantID,
		OrderID:        current.ID,
		ExpectedStatus: current.Status,
		NewStatus:      next,
		UpdatedAt:      s.now(),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The guard missed: the status changed between our read and write.
			return Order{}, ErrConcurrentUpdate
		}
		return Order{}, storeErr("update order status", err)
	}
	return updated, nil
}

func isEditableStatus(status string) bool {
	switch status {
	case enum.OrderStatusPending, enum.OrderStatusConfirmed, enum.OrderStatusPreparing:
		return true
	}
	return false
}

// validateRequiredFields enforces the customer fields each order type needs.
func validateRequiredFields(req CreateOrderRequest) error {
	if req.CustomerName == "" {
		return &MissingFieldError{Field: "customer_name"}
	}
	switch enum.CanonicalOrderType(req.OrderType) {
	case enum.OrderTypeDelivery:
		if req.CustomerPhone == "" {
			return &MissingFieldError{Field: "customer_phone"}
		}
		if req.DeliveryAddress == "" {
			return &MissingFieldError{Field: "delivery_address"}
		}
	case enum.OrderTypePickup:
		if req.CustomerPhone == "" {
			return &MissingFieldError{Field: "customer_phone"}
		}
		if req.PickupTime == "" {
			return &MissingFieldError{Field: "pickup_time"}
		}
	case enum.OrderTypeTableService:
		if req.TableNumber == "" {
			return &MissingFieldError{Field: "table_number"}
		}
	}
	return nil
}

func parseLineItems(reqs []LineItemRequest) ([]OrderItem, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyOrder
	}
	items := make([]OrderItem, len(reqs))
	for i, r := range reqs {
		price, err := decimal.NewFromString(r.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w: invalid unit_price", i, ErrInvalidLineItem)
		}
		items[i] = OrderItem{
			ID:                  uuid.New(),
			MenuItemID:          r.MenuItemID,
			Quantity:            r.Quantity,
			UnitPrice:           price,
			SpecialInstructions: r.SpecialInstructions,
		}
	}
	return items, nil
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_restaurant_id_order_number_key"
	}
	return false
}
