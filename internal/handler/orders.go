package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dinehub/ops-api/internal/enum"
	"github.com/dinehub/ops-api/internal/middleware"
	"github.com/dinehub/ops-api/internal/service"
	"github.com/dinehub/ops-api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// OrderServicer defines the gateway methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (service.Order, error)
	TransitionStatus(ctx context.Context, restaurantID, orderID uuid.UUID, requested string) (service.Order, error)
	CancelOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (service.Order, error)
	EditOrder(ctx context.Context, restaurantID, orderID uuid.UUID, req service.EditOrderRequest) (service.Order, error)
	Snapshot(ctx context.Context, restaurantID uuid.UUID) ([]service.Order, error)
	GetOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (service.Order, error)
}

// Broadcaster pushes order events to connected dashboards after a
// successful mutation. Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToRestaurant(restaurantID uuid.UUID, event ws.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc OrderServicer
	hub Broadcaster
}

// NewOrderHandler creates a new OrderHandler. hub may be nil (no broadcast).
func NewOrderHandler(svc OrderServicer, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a restaurant-scoped subrouter:
// /restaurants/{rid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/views/{role}", h.View)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Edit)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Cancel)
}

// --- Request / Response types ---

type createOrderRequest struct {
	OrderType       string                  `json:"order_type"`
	CustomerName    string                  `json:"customer_name"`
	CustomerPhone   string                  `json:"customer_phone"`
	CustomerEmail   string                  `json:"customer_email"`
	DeliveryAddress string                  `json:"delivery_address"`
	TableNumber     string                  `json:"table_number"`
	PickupTime      string                  `json:"pickup_time"`
	Items           []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	MenuItemID          string `json:"menu_item_id"`
	Quantity            int32  `json:"quantity"`
	UnitPrice           string `json:"unit_price"`
	SpecialInstructions string `json:"special_instructions"`
}

type editOrderRequest struct {
	CustomerName    *string                  `json:"customer_name"`
	CustomerPhone   *string                  `json:"customer_phone"`
	CustomerEmail   *string                  `json:"customer_email"`
	DeliveryAddress *string                  `json:"delivery_address"`
	TableNumber     *string                  `json:"table_number"`
	PickupTime      *string                  `json:"pickup_time"`
	Items           []createOrderItemRequest `json:"items"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	RestaurantID    uuid.UUID           `json:"restaurant_id"`
	OrderNumber     string              `json:"order_number"`
	OrderType       string              `json:"order_type"`
	Status          string              `json:"status"`
	CustomerName    string              `json:"customer_name"`
	CustomerPhone   string              `json:"customer_phone,omitempty"`
	CustomerEmail   string              `json:"customer_email,omitempty"`
	DeliveryAddress string              `json:"delivery_address,omitempty"`
	TableNumber     string              `json:"table_number,omitempty"`
	PickupTime      *time.Time          `json:"pickup_time,omitempty"`
	Subtotal        string              `json:"subtotal"`
	TaxAmount       string              `json:"tax_amount"`
	DeliveryFee     string              `json:"delivery_fee"`
	TotalAmount     string              `json:"total_amount"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Items           []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ID                  uuid.UUID `json:"id"`
	MenuItemID          string    `json:"menu_item_id"`
	Quantity            int32     `json:"quantity"`
	UnitPrice           string    `json:"unit_price"`
	TotalPrice          string    `json:"total_price"`
	SpecialInstructions string    `json:"special_instructions,omitempty"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
}

type orderGroupResponse struct {
	Key    string          `json:"key"`
	Title  string          `json:"title"`
	Orders []orderResponse `json:"orders"`
}

type projectionResponse struct {
	Role   string               `json:"role"`
	Groups []orderGroupResponse `json:"groups"`
	Stats  service.Stats        `json:"stats"`
}

// --- Handlers ---

// Create handles POST /restaurants/{rid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := restaurantFromRequest(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.OrderType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_type is required"})
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		RestaurantID:    restaurantID,
		OrderType:       req.OrderType,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		DeliveryAddress: req.DeliveryAddress,
		TableNumber:     req.TableNumber,
		PickupTime:      req.PickupTime,
		Items:           toLineItemRequests(req.Items),
	})
	if err != nil {
		h.respondError(w, "create order", err)
		return
	}

	h.broadcast(restaurantID, ws.EventOrderCreated, order)
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// List handles GET /restaurants/{rid}/orders.
// Supports ?search=, ?status= and ?type= via the filter engine; the result
// is the flat filtered set, most recent first.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := restaurantFromRequest(w, r)
	if !ok {
		return
	}

	filters, ok := filtersFromQuery(w, r)
	if !ok {
		return
	}

	orders, err := h.svc.Snapshot(r.Context(), restaurantID)
	if err != nil {
		h.respondError(w, "list orders", err)
		return
	}

	projection := service.Project(orders, service.ViewContext{
		Role:    enum.RoleManager,
		Filters: filters,
		Now:     time.Now(),
	})

	flat := projection.Groups[0].Orders
	resp := make([]orderResponse, len(flat))
	for i, o := range flat {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Total: len(resp)})
}

// View handles GET /restaurants/{rid}/orders/views/{role}: the role-specific
// projection the dashboard screens render.
func (h *OrderHandler) View(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := restaurantFromRequest(w, r)
	if !ok {
		return
	}

	role := strings.ToUpper(chi.URLParam(r, "role"))
	switch role {
	case enum.RoleKitchen, enum.RoleServer, enum.RoleManager, enum.RoleClient:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}

	filters, ok := filtersFromQuery(w, r)
	if !ok {
		return
	}

	orders, err := h.svc.Snapshot(r.Context(), restaurantID)
	if err != nil {
		h.respondError(w, "project view", err)
		return
	}

	projection := service.Project(orders, service.ViewContext{
		Role:    role,
		Filters: filters,
		Now:     time.Now(),
	})
	writeJSON(w, http.StatusOK, toProjectionResponse(projection))
}

// Get handles GET /restaurants/{rid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := orderScopeFromRequest(w, r)
	if !ok {
		return
	}

	order, err := h.svc.GetOrder(r.Context(), restaurantID, orderID)
	if err != nil {
		h.respondError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// UpdateStatus handles PATCH /restaurants/{rid}/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := orderScopeFromRequest(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}
	if !enum.IsValidOrderStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	order, err := h.svc.TransitionStatus(r.Context(), restaurantID, orderID, req.Status)
	if err != nil {
		h.respondError(w, "update order status", err)
		return
	}

	h.broadcast(restaurantID, ws.EventOrderUpdated, order)
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Edit handles PATCH /restaurants/{rid}/orders/{id}.
func (h *OrderHandler) Edit(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := orderScopeFromRequest(w, r)
	if !ok {
		return
	}

	var req editOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	edit := service.EditOrderRequest{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		DeliveryAddress: req.DeliveryAddress,
		TableNumber:     req.TableNumber,
		PickupTime:      req.PickupTime,
	}
	if req.Items != nil {
		edit.Items = toLineItemRequests(req.Items)
	}

	order, err := h.svc.EditOrder(r.Context(), restaurantID, orderID, edit)
	if err != nil {
		h.respondError(w, "edit order", err)
		return
	}

	h.broadcast(restaurantID, ws.EventOrderUpdated, order)
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Cancel handles DELETE /restaurants/{rid}/orders/{id}. Cancellation is a
// terminal status, not a removal; the order stays on the books.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := orderScopeFromRequest(w, r)
	if !ok {
		return
	}

	order, err := h.svc.CancelOrder(r.Context(), restaurantID, orderID)
	if err != nil {
		h.respondError(w, "cancel order", err)
		return
	}

	h.broadcast(restaurantID, ws.EventOrderUpdated, order)
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// --- Helpers ---

func restaurantFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return uuid.Nil, false
	}
	if middleware.ClaimsFromContext(r.Context()) == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return uuid.Nil, false
	}
	return restaurantID, true
}

func orderScopeFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	restaurantID, ok := restaurantFromRequest(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return restaurantID, orderID, true
}

func filtersFromQuery(w http.ResponseWriter, r *http.Request) (service.Filters, bool) {
	filters := service.Filters{
		Search:    r.URL.Query().Get("search"),
		Status:    strings.ToUpper(r.URL.Query().Get("status")),
		OrderType: strings.ToUpper(r.URL.Query().Get("type")),
	}
	if filters.Status != "" && filters.Status != service.FilterAll && !enum.IsValidOrderStatus(filters.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
		return service.Filters{}, false
	}
	if filters.OrderType != "" && filters.OrderType != service.FilterAll && !enum.IsValidOrderType(filters.OrderType) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid type filter"})
		return service.Filters{}, false
	}
	return filters, true
}

// respondError maps engine errors to HTTP status codes: validation problems
// are 400, missing orders 404, state conflicts 409, everything else 500.
func (h *OrderHandler) respondError(w http.ResponseWriter, op string, err error) {
	var transitionErr *service.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":            transitionErr.Error(),
			"current_status":   transitionErr.Current,
			"requested_status": transitionErr.Requested,
		})
		return
	}

	var lockedErr *service.OrderLockedError
	if errors.As(err, &lockedErr) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  lockedErr.Error(),
			"status": lockedErr.Status,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, service.ErrConcurrentUpdate):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order changed, please retry"})
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// isValidationError checks if the error is a known validation error
// from the engine that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyOrder) ||
		errors.Is(err, service.ErrInvalidLineItem) ||
		errors.Is(err, service.ErrInvalidOrderType) ||
		errors.Is(err, service.ErrInvalidPickupTime) ||
		errors.Is(err, service.ErrMissingRequiredField)
}

func (h *OrderHandler) broadcast(restaurantID uuid.UUID, eventType string, order service.Order) {
	if h.hub == nil {
		return
	}
	payload, err := json.Marshal(toOrderResponse(order))
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	h.hub.BroadcastToRestaurant(restaurantID, ws.Event{Type: eventType, Payload: payload})
}

func toLineItemRequests(items []createOrderItemRequest) []service.LineItemRequest {
	out := make([]service.LineItemRequest, len(items))
	for i, item := range items {
		out[i] = service.LineItemRequest{
			MenuItemID:          item.MenuItemID,
			Quantity:            item.Quantity,
			UnitPrice:           item.UnitPrice,
			SpecialInstructions: item.SpecialInstructions,
		}
	}
	return out
}

func toOrderResponse(o service.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		RestaurantID:    o.RestaurantID,
		OrderNumber:     o.OrderNumber,
		OrderType:       o.OrderType,
		Status:          o.Status,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		CustomerEmail:   o.CustomerEmail,
		DeliveryAddress: o.DeliveryAddress,
		TableNumber:     o.TableNumber,
		PickupTime:      o.PickupTime,
		Subtotal:        o.Subtotal.StringFixed(2),
		TaxAmount:       o.TaxAmount.StringFixed(2),
		DeliveryFee:     o.DeliveryFee.StringFixed(2),
		TotalAmount:     o.TotalAmount.StringFixed(2),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	resp.Items = make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		resp.Items[i] = orderItemResponse{
			ID:                  item.ID,
			MenuItemID:          item.MenuItemID,
			Quantity:            item.Quantity,
			UnitPrice:           item.UnitPrice.StringFixed(2),
			TotalPrice:          item.TotalPrice.StringFixed(2),
			SpecialInstructions: item.SpecialInstructions,
		}
	}
	return resp
}

func toProjectionResponse(p service.Projection) projectionResponse {
	resp := projectionResponse{
		Role:   p.Role,
		Groups: make([]orderGroupResponse, len(p.Groups)),
		Stats:  p.Stats,
	}
	for i, g := range p.Groups {
		group := orderGroupResponse{Key: g.Key, Title: g.Title, Orders: make([]orderResponse, len(g.Orders))}
		for j, o := range g.Orders {
			group.Orders[j] = toOrderResponse(o)
		}
		resp.Groups[i] = group
	}
	return resp
}
