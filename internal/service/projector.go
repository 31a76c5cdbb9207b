package service

import (
	"sort"
	"time"

	"github.com/dinehub/ops-api/internal/enum"
)

// clientRecentLimit caps the customer-facing "Recently Completed" group.
const clientRecentLimit = 6

// ViewContext is the explicit, passed-in state a projection depends on:
// the active role, the filters already chosen on screen, and the viewer's
// notion of "now" (local time zone drives the today counter). There is no
// hidden state; projecting the same snapshot with the same context twice
// yields identical output.
type ViewContext struct {
	Role    string
	Filters Filters
	Now     time.Time
}

// OrderGroup is one titled section of a role's screen.
type OrderGroup struct {
	Key    string  `json:"key"`
	Title  string  `json:"title"`
	Orders []Order `json:"orders"`
}

// Stats are the aggregate counters shown alongside a projection. They are
// computed from the unfiltered snapshot so the dashboard header stays
// accurate while the list below is filtered down.
type Stats struct {
	// TodayCount is the number of orders created on the viewer's current
	// calendar date.
	TodayCount int `json:"today_count"`

	// CountByStatus holds a counter per lifecycle status.
	CountByStatus map[string]int `json:"count_by_status"`

	// KitchenItemCount is the total line-item quantity across all
	// non-terminal orders, the kitchen workload gauge. Only computed for
	// the kitchen role.
	KitchenItemCount int64 `json:"kitchen_item_count,omitempty"`
}

// Projection is the complete derived view for one role.
type Projection struct {
	Role   string       `json:"role"`
	Groups []OrderGroup `json:"groups"`
	Stats  Stats        `json:"stats"`
}

// Project filters the snapshot and produces the grouping and ordering the
// given role's screen expects. Pure: no side effects, re-derivable at any
// time from the order set alone.
func Project(orders []Order, vc ViewContext) Projection {
	filtered := vc.Filters.Apply(orders)

	p := Projection{
		Role:  vc.Role,
		Stats: computeStats(orders, vc),
	}

	switch vc.Role {
	case enum.RoleKitchen:
		p.Groups = kitchenGroups(filtered)
	case enum.RoleServer:
		p.Groups = serverGroups(filtered)
	case enum.RoleClient:
		p.Groups = clientGroups(filtered)
	default:
		// MANAGER and anything unrecognized get the full flat list; the
		// manager's table/card rendering toggle is presentation, not
		// projection.
		p.Groups = managerGroups(filtered)
	}
	return p
}

// --- Role groupings ---

// kitchenGroups: triage board. Oldest first within a group so the queue is
// first-in-first-served; SERVED and CANCELLED never reach the kitchen.
func kitchenGroups(orders []Order) []OrderGroup {
	toPrepare := pickByStatus(orders, enum.OrderStatusPending, enum.OrderStatusConfirmed)
	preparing := pickByStatus(orders, enum.OrderStatusPreparing)
	ready := pickByStatus(orders, enum.OrderStatusReady)

	sortPriorityOldest(toPrepare)
	sortPriorityOldest(preparing)
	sortPriorityOldest(ready)

	return []OrderGroup{
		{Key: "to_prepare", Title: "To Prepare", Orders: toPrepare},
		{Key: "preparing", Title: "Preparing", Orders: preparing},
		{Key: "ready", Title: "Ready to Serve", Orders: ready},
	}
}

// serverGroups: table orders in every status, pickup & delivery only while
// still actionable.
func serverGroups(orders []Order) []OrderGroup {
	var tables, pickupDelivery []Order
	for _, o := range orders {
		switch enum.CanonicalOrderType(o.OrderType) {
		case enum.OrderTypeTableService:
			tables = append(tables, o)
		case enum.OrderTypePickup, enum.OrderTypeDelivery:
			if !IsTerminalStatus(o.Status) {
				pickupDelivery = append(pickupDelivery, o)
			}
		}
	}

	sortPriorityNewest(tables)
	sortPriorityNewest(pickupDelivery)

	return []OrderGroup{
		{Key: "table_orders", Title: "Table Orders", Orders: tables},
		{Key: "pickup_delivery", Title: "Pickup & Delivery", Orders: pickupDelivery},
	}
}

func managerGroups(orders []Order) []OrderGroup {
	all := append([]Order(nil), orders...)
	sortNewest(all)
	return []OrderGroup{
		{Key: "all", Title: "All Orders", Orders: all},
	}
}

// clientGroups: the customer-facing pickup display. Cancelled orders are
// never shown.
func clientGroups(orders []Order) []OrderGroup {
	inProgress := pickByStatus(orders,
		enum.OrderStatusPending, enum.OrderStatusConfirmed, enum.OrderStatusPreparing)
	ready := pickByStatus(orders, enum.OrderStatusReady)
	completed := pickByStatus(orders, enum.OrderStatusServed)

	sortPriorityOldest(inProgress)
	sortPriorityOldest(ready)
	sortNewest(completed)
	if len(completed) > clientRecentLimit {
		completed = completed[:clientRecentLimit]
	}

	return []OrderGroup{
		{Key: "preparing", Title: "Preparing Your Order", Orders: inProgress},
		{Key: "ready", Title: "Ready for Pickup", Orders: ready},
		{Key: "completed", Title: "Recently Completed", Orders: completed},
	}
}

// --- Stats ---

func computeStats(orders []Order, vc ViewContext) Stats {
	stats := Stats{CountByStatus: make(map[string]int)}

	year, day := vc.Now.Year(), vc.Now.YearDay()
	for _, o := range orders {
		stats.CountByStatus[o.Status]++

		created := o.CreatedAt.In(vc.Now.Location())
		if created.Year() == year && created.YearDay() == day {
			stats.TodayCount++
		}

		if vc.Role == enum.RoleKitchen && !IsTerminalStatus(o.Status) {
			for _, item := range o.Items {
				stats.KitchenItemCount += int64(item.Quantity)
			}
		}
	}
	return stats
}

// --- Sort helpers ---
//
// Every comparator ends on ascending order_number so equal sort keys still
// produce one deterministic ordering.

func sortPriorityOldest(orders []Order) {
	sort.Slice(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if pa, pb := StatusPriority(a.Status), StatusPriority(b.Status); pa != pb {
			return pa < pb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.OrderNumber < b.OrderNumber
	})
}

func sortPriorityNewest(orders []Order) {
	sort.Slice(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if pa, pb := StatusPriority(a.Status), StatusPriority(b.Status); pa != pb {
			return pa < pb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.OrderNumber < b.OrderNumber
	})
}

func sortNewest(orders []Order) {
	sort.Slice(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.OrderNumber < b.OrderNumber
	})
}

func pickByStatus(orders []Order, statuses ...string) []Order {
	var out []Order
	for _, o := range orders {
		for _, s := range statuses {
			if o.Status == s {
				out = append(out, o)
				break
			}
		}
	}
	return out
}
