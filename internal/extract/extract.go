// Package extract reads operational data out of the restaurant database
// for the training and prediction pipelines. All queries are scoped to a
// single restaurant and all timestamps are normalized to UTC before they
// leave this package.
package extract

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/resto-data/covers.report/internal/db"
	"github.com/resto-data/covers.report/internal/timeutil"
)

// OrderRecord is one order line joined with its menu item, used for
// demand forecasting.
type OrderRecord struct {
	OrderID      int64
	RestaurantID int64
	ServiceType  string
	GrandTotal   float64
	CreatedAt    time.Time
	MenuItemID   int64
	ItemName     string
	CategoryName string
	Quantity     int
	UnitPrice    float64
	HourOfDay    int
	DayOfWeek    int // 0=Sunday
}

// KitchenRecord is one completed station ticket with its timing breakdown.
type KitchenRecord struct {
	TicketID         int64
	StationID        int64
	StationName      string
	MenuItemID       int64
	ItemName         string
	Quantity         int
	AssignedAt       time.Time
	StartedAt        time.Time
	CompletedAt      time.Time
	TotalTimeMinutes float64
	PrepTimeMinutes  float64
	QueueTimeMinutes float64
	HourOfDay        int
	DayOfWeek        int
}

// CustomerRecord is one customer profile aggregated over their completed
// orders, used for churn and lifetime-value modeling.
type CustomerRecord struct {
	CustomerID         int64
	RestaurantID       int64
	CustomerSince      time.Time
	DaysSinceSignup    float64
	CurrentPoints      int
	LifetimePoints     int
	CurrentTier        string
	TotalOrders        int
	TotalSpent         float64
	AvgOrderValue      float64
	LastOrderAt        time.Time // zero when the customer never ordered
	DaysSinceLastOrder float64   // -1 when the customer never ordered
	UniqueOrderDays    int
}

// InventoryRecord is one active inventory item with its current stock
// position and recent consumption.
type InventoryRecord struct {
	ItemID                int64
	RestaurantID          int64
	ItemName              string
	CategoryName          string
	MinLevel              float64
	ReorderLevel          float64
	CurrentStock          float64
	BatchCount            int
	EarliestExpiry        time.Time // zero when no batches carry an expiry
	AvgUnitCost           float64
	ConsumptionLast30Days float64
}

// Extractor runs the per-task extraction queries against a read-only
// database handle.
type Extractor struct {
	db    *db.DB
	clock timeutil.Clock
	log   zerolog.Logger
}

func NewExtractor(d *db.DB, clock timeutil.Clock, log zerolog.Logger) *Extractor {
	return &Extractor{db: d, clock: clock, log: log}
}

const ordersQuery = `
SELECT
    o.id, o.restaurant_id, o.service_type, o.grand_total, o.created_at,
    oi.menu_item_id, mi.name, mc.name, oi.quantity, oi.unit_price
FROM orders o
JOIN order_items oi ON o.id = oi.order_id
JOIN menu_items mi ON oi.menu_item_id = mi.id
JOIN menu_categories mc ON mi.category_id = mc.id
WHERE o.restaurant_id = ?
  AND o.status IN ('completed', 'paid')
  AND o.created_at >= ?
  AND o.created_at < ?
ORDER BY o.created_at`

// Orders returns completed order lines for the restaurant in [start, end).
func (e *Extractor) Orders(ctx context.Context, restaurantID int64, start, end time.Time) ([]OrderRecord, error) {
	rows, err := e.db.QueryContext(ctx, ordersQuery, restaurantID, start.UTC(), end.UTC())
	if err != nil {
		return nil, &ExtractionError{Task: "orders", Query: "orders join", Err: err}
	}
	defer rows.Close()

	var records []OrderRecord
	for rows.Next() {
		var r OrderRecord
		if err := rows.Scan(
			&r.OrderID, &r.RestaurantID, &r.ServiceType, &r.GrandTotal, &r.CreatedAt,
			&r.MenuItemID, &r.ItemName, &r.CategoryName, &r.Quantity, &r.UnitPrice,
		); err != nil {
			return nil, &ExtractionError{Task: "orders", Query: "orders join", Err: err}
		}
		r.CreatedAt = r.CreatedAt.UTC()
		r.HourOfDay = r.CreatedAt.Hour()
		r.DayOfWeek = int(r.CreatedAt.Weekday())
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExtractionError{Task: "orders", Query: "orders join", Err: err}
	}
	e.log.Info().Int64("restaurant_id", restaurantID).Int("records", len(records)).Msg("extracted order records")
	return records, nil
}

const kitchenQuery = `
SELECT
    kt.id, kt.station_id, ks.name, oi.menu_item_id, mi.name, oi.quantity,
    kt.assigned_at, kt.started_at, kt.completed_at
FROM kitchen_tickets kt
JOIN kitchen_stations ks ON kt.station_id = ks.id
JOIN order_items oi ON kt.order_item_id = oi.id
JOIN menu_items mi ON oi.menu_item_id = mi.id
WHERE ks.restaurant_id = ?
  AND kt.status = 'completed'
  AND kt.completed_at IS NOT NULL
  AND kt.assigned_at >= ?
  AND kt.assigned_at < ?
ORDER BY kt.assigned_at`

// Kitchen returns completed station tickets for the restaurant in
// [start, end), with timing split into queue and prep components.
func (e *Extractor) Kitchen(ctx context.Context, restaurantID int64, start, end time.Time) ([]KitchenRecord, error) {
	rows, err := e.db.QueryContext(ctx, kitchenQuery, restaurantID, start.UTC(), end.UTC())
	if err != nil {
		return nil, &ExtractionError{Task: "kitchen", Query: "kitchen_tickets join", Err: err}
	}
	defer rows.Close()

	var records []KitchenRecord
	for rows.Next() {
		var r KitchenRecord
		var started, completed sql.NullTime
		if err := rows.Scan(
			&r.TicketID, &r.StationID, &r.StationName, &r.MenuItemID, &r.ItemName,
			&r.Quantity, &r.AssignedAt, &started, &completed,
		); err != nil {
			return nil, &ExtractionError{Task: "kitchen", Query: "kitchen_tickets join", Err: err}
		}
		r.AssignedAt = r.AssignedAt.UTC()
		if started.Valid {
			r.StartedAt = started.Time.UTC()
		}
		if completed.Valid {
			r.CompletedAt = completed.Time.UTC()
		}
		if !r.CompletedAt.IsZero() {
			r.TotalTimeMinutes = r.CompletedAt.Sub(r.AssignedAt).Minutes()
		}
		if !r.StartedAt.IsZero() {
			r.QueueTimeMinutes = r.StartedAt.Sub(r.AssignedAt).Minutes()
			if !r.CompletedAt.IsZero() {
				r.PrepTimeMinutes = r.CompletedAt.Sub(r.StartedAt).Minutes()
			}
		}
		r.HourOfDay = r.AssignedAt.Hour()
		r.DayOfWeek = int(r.AssignedAt.Weekday())
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExtractionError{Task: "kitchen", Query: "kitchen_tickets join", Err: err}
	}
	e.log.Info().Int64("restaurant_id", restaurantID).Int("records", len(records)).Msg("extracted kitchen records")
	return records, nil
}

const customersQuery = `
SELECT
    c.id, c.restaurant_id, c.created_at,
    COALESCE(lb.current_points, 0), COALESCE(lb.lifetime_points, 0),
    COALESCE(lb.current_tier, 'bronze'),
    COUNT(DISTINCT o.id),
    COALESCE(SUM(o.grand_total), 0),
    COALESCE(AVG(o.grand_total), 0),
    MAX(o.created_at),
    COUNT(DISTINCT DATE(o.created_at))
FROM customers c
LEFT JOIN loyalty_balances lb ON c.id = lb.customer_id
LEFT JOIN orders o ON c.id = o.customer_id AND o.status IN ('completed', 'paid')
WHERE c.restaurant_id = ?
GROUP BY c.id, lb.current_points, lb.lifetime_points, lb.current_tier`

// Customers returns all customer profiles for the restaurant with their
// lifetime order aggregates. Recency is computed against the extractor's
// clock so tests can pin "now".
func (e *Extractor) Customers(ctx context.Context, restaurantID int64) ([]CustomerRecord, error) {
	rows, err := e.db.QueryContext(ctx, customersQuery, restaurantID)
	if err != nil {
		return nil, &ExtractionError{Task: "customers", Query: "customers aggregate", Err: err}
	}
	defer rows.Close()

	now := e.clock.Now().UTC()
	var records []CustomerRecord
	for rows.Next() {
		var r CustomerRecord
		var lastOrder sql.NullTime
		if err := rows.Scan(
			&r.CustomerID, &r.RestaurantID, &r.CustomerSince,
			&r.CurrentPoints, &r.LifetimePoints, &r.CurrentTier,
			&r.TotalOrders, &r.TotalSpent, &r.AvgOrderValue,
			&lastOrder, &r.UniqueOrderDays,
		); err != nil {
			return nil, &ExtractionError{Task: "customers", Query: "customers aggregate", Err: err}
		}
		r.CustomerSince = r.CustomerSince.UTC()
		r.DaysSinceSignup = now.Sub(r.CustomerSince).Hours() / 24
		if lastOrder.Valid {
			r.LastOrderAt = lastOrder.Time.UTC()
			r.DaysSinceLastOrder = now.Sub(r.LastOrderAt).Hours() / 24
		} else {
			r.DaysSinceLastOrder = -1
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExtractionError{Task: "customers", Query: "customers aggregate", Err: err}
	}
	e.log.Info().Int64("restaurant_id", restaurantID).Int("records", len(records)).Msg("extracted customer records")
	return records, nil
}

const inventoryQuery = `
SELECT
    ii.id, ii.restaurant_id, ii.name,
    COALESCE(ic.name, 'Uncategorized'),
    ii.min_level, ii.reorder_level,
    COALESCE(SUM(b.remaining_base), 0),
    COUNT(b.id),
    MIN(b.expiry_date),
    COALESCE(AVG(b.unit_cost_per_base), 0),
    COALESCE(
        (SELECT SUM(ABS(sm.qty_base))
         FROM stock_movements sm
         WHERE sm.item_id = ii.id
           AND sm.movement_type = 'recipe_deduct'
           AND sm.created_at >= ?),
        0
    )
FROM inventory_items ii
LEFT JOIN inventory_categories ic ON ii.category_id = ic.id
LEFT JOIN inventory_batches b ON ii.id = b.item_id AND b.remaining_base > 0
WHERE ii.restaurant_id = ?
  AND ii.is_active = 1
GROUP BY ii.id, ic.name`

// Inventory returns the current stock position of every active inventory
// item for the restaurant, with consumption over the trailing 30 days.
func (e *Extractor) Inventory(ctx context.Context, restaurantID int64) ([]InventoryRecord, error) {
	since := e.clock.Now().UTC().AddDate(0, 0, -30)
	rows, err := e.db.QueryContext(ctx, inventoryQuery, since, restaurantID)
	if err != nil {
		return nil, &ExtractionError{Task: "inventory", Query: "inventory aggregate", Err: err}
	}
	defer rows.Close()

	var records []InventoryRecord
	for rows.Next() {
		var r InventoryRecord
		var expiry sql.NullTime
		if err := rows.Scan(
			&r.ItemID, &r.RestaurantID, &r.ItemName, &r.CategoryName,
			&r.MinLevel, &r.ReorderLevel, &r.CurrentStock, &r.BatchCount,
			&expiry, &r.AvgUnitCost, &r.ConsumptionLast30Days,
		); err != nil {
			return nil, &ExtractionError{Task: "inventory", Query: "inventory aggregate", Err: err}
		}
		if expiry.Valid {
			r.EarliestExpiry = expiry.Time.UTC()
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExtractionError{Task: "inventory", Query: "inventory aggregate", Err: err}
	}
	e.log.Info().Int64("restaurant_id", restaurantID).Int("records", len(records)).Msg("extracted inventory records")
	return records, nil
}

// ExtractionError wraps a database failure with the task and query that
// produced it.
type ExtractionError struct {
	Task  string
	Query string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s (%s): %v", e.Task, e.Query, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
