package service

import (
	"strings"

	"github.com/dinehub/ops-api/internal/enum"
)

// FilterAll is the no-op value for the status and type filters.
const FilterAll = "ALL"

// Filters are applied before projection, independent of role. The three
// filters are conjunctive: an order must pass all of them.
type Filters struct {
	// Search is matched as a case-insensitive substring against
	// order_number, customer_name, customer_phone and customer_email; an
	// order matches if any field matches. Absent optional fields (empty
	// strings) simply never match.
	Search string

	// Status is an exact status, or empty / ALL for no filtering.
	Status string

	// OrderType is an exact type, or empty / ALL. The legacy DINE_IN alias
	// and TABLE_SERVICE are treated as the same value on both sides.
	OrderType string
}

// Apply returns the orders passing all filters, preserving input order.
func (f Filters) Apply(orders []Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if f.Matches(o) {
			out = append(out, o)
		}
	}
	return out
}

// Matches reports whether a single order passes all three filters.
func (f Filters) Matches(o Order) bool {
	if f.Search != "" && !matchesSearch(o, f.Search) {
		return false
	}
	if !isFilterAll(f.Status) && o.Status != f.Status {
		return false
	}
	if !isFilterAll(f.OrderType) &&
		enum.CanonicalOrderType(o.OrderType) != enum.CanonicalOrderType(f.OrderType) {
		return false
	}
	return true
}

func isFilterAll(v string) bool {
	return v == "" || strings.EqualFold(v, FilterAll)
}

func matchesSearch(o Order, term string) bool {
	term = strings.ToLower(term)
	for _, field := range []string{o.OrderNumber, o.CustomerName, o.CustomerPhone, o.CustomerEmail} {
		if field != "" && strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}
