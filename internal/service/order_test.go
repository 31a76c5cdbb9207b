package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dinehub/ops-api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- Mock OrderStore ---

type mockOrderStore struct {
	fetchOrdersFn       func(ctx context.Context, restaurantID uuid.UUID) ([]Order, error)
	getOrderFn          func(ctx context.Context, restaurantID, orderID uuid.UUID) (Order, error)
	nextOrderNumberFn   func(ctx context.Context, restaurantID uuid.UUID) (int32, error)
	createOrderFn       func(ctx context.Context, order Order) (Order, error)
	updateOrderStatusFn func(ctx context.Context, arg UpdateOrderStatusParams) (Order, error)
	updateOrderFieldsFn func(ctx context.Context, arg UpdateOrderFieldsParams) (Order, error)
}

func (m *mockOrderStore) FetchOrders(ctx context.Context, restaurantID uuid.UUID) ([]Order, error) {
	if m.fetchOrdersFn != nil {
		return m.fetchOrdersFn(ctx, restaurantID)
	}
	return []Order{}, nil
}

func (m *mockOrderStore) GetOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, restaurantID, orderID)
	}
	return Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) NextOrderNumber(ctx context.Context, restaurantID uuid.UUID) (int32, error) {
	if m.nextOrderNumberFn != nil {
		return m.nextOrderNumberFn(ctx, restaurantID)
	}
	return 1, nil
}

func (m *mockOrderStore) CreateOrder(ctx context.Context, order Order) (Order, error) {
	if m.createOrderFn != nil {
		return m.createOrderFn(ctx, order)
	}
	return order, nil
}

func (m *mockOrderStore) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	if m.updateOrderStatusFn != nil {
		return m.updateOrderStatusFn(ctx, arg)
	}
	return Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) UpdateOrderFields(ctx context.Context, arg UpdateOrderFieldsParams) (Order, error) {
	if m.updateOrderFieldsFn != nil {
		return m.updateOrderFieldsFn(ctx, arg)
	}
	return Order{}, pgx.ErrNoRows
}

func newTestService(store *mockOrderStore) *OrderService {
	svc := NewOrderService(store, testPricing())
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
	return svc
}

func validCreateRequest(restaurantID uuid.UUID) CreateOrderRequest {
	return CreateOrderRequest{
		RestaurantID:  restaurantID,
		OrderType:     enum.OrderTypePickup,
		CustomerName:  "Alice",
		CustomerPhone: "555-1234",
		PickupTime:    "2026-03-14T13:30:00Z",
		Items: []LineItemRequest{
			{MenuItemID: "burger", Quantity: 2, UnitPrice: "10.00"},
			{MenuItemID: "fries", Quantity: 1, UnitPrice: "3.50"},
		},
	}
}

// --- CreateOrder ---

func TestCreateOrder(t *testing.T) {
	restaurantID := uuid.New()
	store := &mockOrderStore{}

	svc := newTestService(store)
	order, err := svc.CreateOrder(context.Background(), validCreateRequest(restaurantID))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if order.Status != enum.OrderStatusPending {
		t.Errorf("status = %s, want PENDING", order.Status)
	}
	if order.OrderNumber != "ORD-001" {
		t.Errorf("order number = %s, want ORD-001", order.OrderNumber)
	}
	if order.RestaurantID != restaurantID {
		t.Errorf("restaurant id = %s, want %s", order.RestaurantID, restaurantID)
	}
	if got := order.Subtotal.StringFixed(2); got != "23.50" {
		t.Errorf("subtotal = %s, want 23.50", got)
	}
	if got := order.TotalAmount.StringFixed(2); got != "25.38" {
		t.Errorf("total = %s, want 25.38", got)
	}
	if order.PickupTime == nil || !order.PickupTime.Equal(time.Date(2026, 3, 14, 13, 30, 0, 0, time.UTC)) {
		t.Errorf("pickup time = %v, want 2026-03-14T13:30:00Z", order.PickupTime)
	}
	if len(order.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(order.Items))
	}
	if got := order.Items[0].TotalPrice.StringFixed(2); got != "20.00" {
		t.Errorf("items[0].TotalPrice = %s, want 20.00", got)
	}
}

func TestCreateOrderInvalidType(t *testing.T) {
	svc := newTestService(&mockOrderStore{})
	req := validCreateRequest(uuid.New())
	req.OrderType = "DRIVE_THRU"

	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidOrderType) {
		t.Errorf("expected ErrInvalidOrderType, got %v", err)
	}
}

func TestCreateOrderRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateOrderRequest)
		field   string
	}{
		{"missing customer name", func(r *CreateOrderRequest) { r.CustomerName = "" }, "customer_name"},
		{"pickup without phone", func(r *CreateOrderRequest) { r.CustomerPhone = "" }, "customer_phone"},
		{"pickup without pickup time", func(r *CreateOrderRequest) { r.PickupTime = "" }, "pickup_time"},
		{"delivery without address", func(r *CreateOrderRequest) {
			r.OrderType = enum.OrderTypeDelivery
			r.DeliveryAddress = ""
		}, "delivery_address"},
		{"delivery without phone", func(r *CreateOrderRequest) {
			r.OrderType = enum.OrderTypeDelivery
			r.DeliveryAddress = "1 Main St"
			r.CustomerPhone = ""
		}, "customer_phone"},
		{"table service without table number", func(r *CreateOrderRequest) {
			r.OrderType = enum.OrderTypeTableService
		}, "table_number"},
		{"dine-in alias without table number", func(r *CreateOrderRequest) {
			r.OrderType = enum.OrderTypeDineIn
		}, "table_number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&mockOrderStore{})
			req := validCreateRequest(uuid.New())
			tt.mutate(&req)

			_, err := svc.CreateOrder(context.Background(), req)
			if !errors.Is(err, ErrMissingRequiredField) {
				t.Fatalf("expected ErrMissingRequiredField, got %v", err)
			}
			var missing *MissingFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("expected *MissingFieldError, got %T", err)
			}
			if missing.Field != tt.field {
				t.Errorf("field = %s, want %s", missing.Field, tt.field)
			}
		})
	}
}

func TestCreateOrderInvalidPickupTime(t *testing.T) {
	svc := newTestService(&mockOrderStore{})
	req := validCreateRequest(uuid.New())
	req.PickupTime = "tomorrow at noon"

	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidPickupTime) {
		t.Errorf("expected ErrInvalidPickupTime, got %v", err)
	}
}

func TestCreateOrderEmptyCart(t *testing.T) {
	svc := newTestService(&mockOrderStore{})
	req := validCreateRequest(uuid.New())
	req.Items = nil

	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrEmptyOrder) {
		t.Errorf("expected ErrEmptyOrder, got %v", err)
	}
}

func TestCreateOrderBadUnitPrice(t *testing.T) {
	svc := newTestService(&mockOrderStore{})
	req := validCreateRequest(uuid.New())
	req.Items[0].UnitPrice = "ten dollars"

	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidLineItem) {
		t.Errorf("expected ErrInvalidLineItem, got %v", err)
	}
}

func orderNumberConflict() error {
	return &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "orders_restaurant_id_order_number_key",
	}
}

func TestCreateOrderRetriesOnNumberConflict(t *testing.T) {
	attempts := 0
	next := int32(41)
	store := &mockOrderStore{
		nextOrderNumberFn: func(ctx context.Context, restaurantID uuid.UUID) (int32, error) {
			next++
			return next, nil
		},
		createOrderFn: func(ctx context.Context, order Order) (Order, error) {
			attempts++
			if attempts == 1 {
				// A concurrent create took ORD-042 first.
				return Order{}, orderNumberConflict()
			}
			return order, nil
		},
	}

	svc := newTestService(store)
	order, err := svc.CreateOrder(context.Background(), validCreateRequest(uuid.New()))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if attempts != 2 {
		t.Errorf("create attempts = %d, want 2", attempts)
	}
	if order.OrderNumber != "ORD-043" {
		t.Errorf("order number = %s, want ORD-043", order.OrderNumber)
	}
}

func TestCreateOrderRetriesExhausted(t *testing.T) {
	attempts := 0
	store := &mockOrderStore{
		createOrderFn: func(ctx context.Context, order Order) (Order, error) {
			attempts++
			return Order{}, orderNumberConflict()
		},
	}

	svc := newTestService(store)
	_, err := svc.CreateOrder(context.Background(), validCreateRequest(uuid.New()))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != maxOrderNumberRetries {
		t.Errorf("create attempts = %d, want %d", attempts, maxOrderNumberRetries)
	}
	var storeError *StoreError
	if !errors.As(err, &storeError) {
		t.Errorf("expected *StoreError, got %T", err)
	}
}

func TestCreateOrderOtherStoreErrorNotRetried(t *testing.T) {
	attempts := 0
	store := &mockOrderStore{
		createOrderFn: func(ctx context.Context, order Order) (Order, error) {
			attempts++
			return Order{}, errors.New("connection refused")
		},
	}

	svc := newTestService(store)
	_, err := svc.CreateOrder(context.Background(), validCreateRequest(uuid.New()))
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("create attempts = %d, want 1 (no retry on non-conflict errors)", attempts)
	}
}

// --- TransitionStatus ---

func storedOrder(restaurantID, orderID uuid.UUID, status string) Order {
	return Order{
		ID:           orderID,
		RestaurantID: restaurantID,
		OrderNumber:  "ORD-007",
		OrderType:    enum.OrderTypePickup,
		Status:       status,
		CustomerName: "Alice",
		Subtotal:     decimal.RequireFromString("23.50"),
		TotalAmount:  decimal.RequireFromString("25.38"),
		Items:        []OrderItem{item("burger", 2, "10.00")},
	}
}

func TestTransitionStatus(t *testing.T) {
	restaurantID, orderID := uuid.New(), uuid.New()
	var captured UpdateOrderStatusParams
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, rid, oid uuid.UUID) (Order, error) {
			return storedOrder(rid, oid, enum.OrderStatusPending), nil
		},
		updateOrderStatusFn: func(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
			captured = arg
			updated := storedOrder(arg.RestaurantID, arg.OrderID, arg.NewStatus)
			return updated, nil
		},
	}

	svc := newTestService(store)
	order, err := svc.TransitionStatus(context.Background(), restaurantID, orderID, enum.OrderStatusConfirmed)
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if order.Status != enum.OrderStatusConfirmed {
		t.Errorf("status = %s, want CONFIRMED", order.Status)
	}
	// The write is guarded on the status we just read.
	if captured.ExpectedStatus != enum.OrderStatusPending {
		t.Errorf("expected status guard = %s, want PENDING", captured.ExpectedStatus)
	}
}

func TestTransitionStatusRejected(t *testing.T) {
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, rid, oid uuid.UUID) (Order, error) {
			return storedOrder(rid, oid, enum.OrderStatusPending), nil
		},
	}

	svc := newTestService(store)
	_, err := svc.TransitionStatus(context.Background(), uuid.New(), uuid.New(), enum.OrderStatusReady)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitionStatusNotFound(t *testing.T) {
	svc := newTestService(&mockOrderStore{})
	_, err := svc.TransitionStatus(context.Background(), uuid.New(), uuid.New(), enum.OrderStatusConfirmed)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestTransitionStatusConcurrentUpdate(t *testing.T) {
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, rid, oid uuid.UUID) (Order, error) {
			return storedOrder(rid, oid, enum.OrderStatusPending), nil
		},
		updateOrderStatusFn: func(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
			// Someone moved the order between our read and write.
			return Order{}, pgx.ErrNoRows
		},
	}

	svc := newTestService(store)
	_, err := svc.TransitionStatus(context.Background(), uuid.New(), uuid.New(), enum.OrderStatusConfirmed)
	if !errors.Is(err, ErrConcurrentUpdate) {
		t.Errorf("expected ErrConcurrentUpdate, got %v", err)
	}
}

// --- CancelOrder ---

func TestCancelOrder(t *testing.T) {
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, rid, oid uuid.UUID) (Order, error) {
			return storedOrder(rid, oid, enum.OrderStatusConfirmed), nil
		},
		updateOrderStatusFn: func(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
			return storedOrder(arg.RestaurantID, arg.OrderID, arg.NewStatus), nil
		},
	}

	svc := newTestService(store)
	order, err := svc.CancelOrder(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if order.Status != enum.OrderStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", order.Status)
	}
}

func TestCancelOrderTerminal(t *testing.T) {
	for _, status := range []string{enum.OrderStatusServed, enum.OrderStatusCancelled} {
		store := &mockOrderStore{
			getOrderFn: func(ctx context.Context, rid, oid uuid.UUID) (Order, error) {
				return storedOrder(rid, oid, status), nil
			},
		}

		svc := newTestService(store)
		_, err := svc.CancelOrder(context.Background(), uuid.New(), uuid.New())
		if !errors.Is(err, ErrOrderLocked) {
			t.Errorf("cancel %s: expected ErrOrderLocked, got %v", status, err)
		}
	}
}

func TestCancelOrderReady(t *testing.T) {
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, rid, oid uuid.UUID) (Order, error) {
			return storedOrder(rid, oid, enum.OrderStatusReady), nil
		},
	}

	// READY is not terminal but still cannot be cancelled.
	svc := newTestService(store)
	_, err := svc.CancelOrder(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

// --- EditOrder ---

func TestEditOrder(t *testing.T) {
	name := "Bob"
	var captured UpdateOrderFieldsParams
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, rid, oid uuid.UUID) (Order, error) {
			return storedOrder(rid, oid, enum.OrderStatusConfirmed), nil
		},
		updateOrderFieldsFn: func(ctx context.Context, arg UpdateOrderFieldsParams) (Order, error) {
			captured = arg
			updated := storedOrder(arg.RestaurantID, arg.OrderID, enum.OrderStatusConfirmed)
			updated.CustomerName = arg.CustomerName
			updated.Items = arg.Items
			return updated, nil
		},
	}

	svc := newTestService(store)
	order, err := svc.EditOrder(context.Background(), uuid.New(), uuid.New(), EditOrderRequest{
		CustomerName: &name,
		Items: []LineItemRequest{
			{MenuItemID: "salad", Quantity: 1, UnitPrice: "7.25"},
		},
	})
	if err != nil {
		t.Fatalf("EditOrder: %v", err)
	}

	if order.CustomerName != "Bob" {
		t.Errorf("customer name = %s, want Bob", order.CustomerName)
	}
	// Money is re-derived from the replacement items: 7.25 + 8% tax.
	if got := captured.Totals.Subtotal.StringFixed(2); got != "7.25" {
		t.Errorf("subtotal = %s, want 7.25", got)
	}
	if got := captured.Totals.TotalAmount.StringFixed(2); got != "7.83" {
		t.Errorf("total = %s, want 7.83", got)
	}
	if got := captured.Items[0].TotalPrice.StringFixed(2); got != "7.25" {
		t.Errorf("item total = %s, want 7.25", got)
	}
}

func TestEditOrderRepricesWithoutNewItems(t *testing.T) {
	phone := "555-9999"
	var captured UpdateOrderFieldsParams
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, rid, oid uuid.UUID) (Order, error) {
			return storedOrder(rid, oid, enum.OrderStatusPending), nil
		},
		updateOrderFieldsFn: func(ctx context.Context, arg UpdateOrderFieldsParams) (Order, error) {
			captured = arg
			return storedOrder(arg.RestaurantID, arg.OrderID, enum.OrderStatusPending), nil
		},
	}

	svc := newTestService(store)
	_, err := svc.EditOrder(context.Background(), uuid.New(), uuid.New(), EditOrderRequest{
		CustomerPhone: &phone,
	})
	if err != nil {
		t.Fatalf("EditOrder: %v", err)
	}

	// Existing items pass through repricing: 2 × 10.00 + 8% tax.
	if got := captured.Totals.TotalAmount.StringFixed(2); got != "21.60" {
		t.Errorf("total = %s, want 21.60", got)
	}
	if captured.CustomerPhone != "555-9999" {
		t.Errorf("phone = %s, want 555-9999", captured.CustomerPhone)
	}
	// Untouched fields survive.
	if captured.CustomerName != "Alice" {
		t.Errorf("name = %s, want Alice", captured.CustomerName)
	}
}

func TestEditOrderLocked(t *testing.T) {
	for _, status := range []string{enum.OrderStatusReady, enum.OrderStatusServed, enum.OrderStatusCancelled} {
		store := &mockOrderStore{
			getOrderFn: func(ctx context.Context, rid, oid uuid.UUID) (Order, error) {
				return storedOrder(rid, oid, status), nil
			},
		}

		svc := newTestService(store)
		name := "Bob"
		_, err := svc.EditOrder(context.Background(), uuid.New(), uuid.New(), EditOrderRequest{CustomerName: &name})
		if !errors.Is(err, ErrOrderLocked) {
			t.Errorf("edit %s: expected ErrOrderLocked, got %v", status, err)
		}
	}
}

func TestEditOrderClearCustomerName(t *testing.T) {
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, rid, oid uuid.UUID) (Order, error) {
			return storedOrder(rid, oid, enum.OrderStatusPending), nil
		},
	}

	svc := newTestService(store)
	empty := ""
	_, err := svc.EditOrder(context.Background(), uuid.New(), uuid.New(), EditOrderRequest{CustomerName: &empty})
	if !errors.Is(err, ErrMissingRequiredField) {
		t.Errorf("expected ErrMissingRequiredField, got %v", err)
	}
}

func TestEditOrderConcurrentUpdate(t *testing.T) {
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, rid, oid uuid.UUID) (Order, error) {
			return storedOrder(rid, oid, enum.OrderStatusPending), nil
		},
		updateOrderFieldsFn: func(ctx context.Context, arg UpdateOrderFieldsParams) (Order, error) {
			return Order{}, pgx.ErrNoRows
		},
	}

	svc := newTestService(store)
	name := "Bob"
	_, err := svc.EditOrder(context.Background(), uuid.New(), uuid.New(), EditOrderRequest{CustomerName: &name})
	if !errors.Is(err, ErrConcurrentUpdate) {
		t.Errorf("expected ErrConcurrentUpdate, got %v", err)
	}
}

// --- GetOrder / Snapshot ---

func TestGetOrderNotFound(t *testing.T) {
	svc := newTestService(&mockOrderStore{})
	_, err := svc.GetOrder(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestSnapshotStoreError(t *testing.T) {
	store := &mockOrderStore{
		fetchOrdersFn: func(ctx context.Context, restaurantID uuid.UUID) ([]Order, error) {
			return nil, errors.New("connection refused")
		},
	}

	svc := newTestService(store)
	_, err := svc.Snapshot(context.Background(), uuid.New())
	var storeError *StoreError
	if !errors.As(err, &storeError) {
		t.Fatalf("expected *StoreError, got %T", err)
	}
}
