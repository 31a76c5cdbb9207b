package enum

// ── Order lifecycle (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "PENDING"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusPreparing = "PREPARING"
	OrderStatusReady     = "READY"
	OrderStatusServed    = "SERVED"
	OrderStatusCancelled = "CANCELLED"
)

const (
	OrderTypePickup       = "PICKUP"
	OrderTypeDelivery     = "DELIVERY"
	OrderTypeTableService = "TABLE_SERVICE"

	// OrderTypeDineIn is a legacy alias of TABLE_SERVICE still sent by
	// older dashboard builds. Normalize with CanonicalOrderType before any
	// comparison or grouping.
	OrderTypeDineIn = "DINE_IN"
)

const (
	RoleManager = "MANAGER"
	RoleServer  = "SERVER"
	RoleKitchen = "KITCHEN"
	RoleClient  = "CLIENT"
)

// CanonicalOrderType folds the legacy DINE_IN alias into TABLE_SERVICE.
// Stored values are preserved as received; only comparisons go through this.
func CanonicalOrderType(t string) string {
	if t == OrderTypeDineIn {
		return OrderTypeTableService
	}
	return t
}

// IsValidOrderType reports whether t is an accepted order type, alias included.
func IsValidOrderType(t string) bool {
	switch t {
	case OrderTypePickup, OrderTypeDelivery, OrderTypeTableService, OrderTypeDineIn:
		return true
	}
	return false
}

// IsValidOrderStatus reports whether s is a known lifecycle status.
func IsValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusReady, OrderStatusServed, OrderStatusCancelled:
		return true
	}
	return false
}
