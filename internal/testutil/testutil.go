// Package testutil provides shared test helpers and database fixtures.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/resto-data/covers.report/internal/db"
)

// OpenTestDB creates a migrated throwaway database under the test's temp
// directory. The handle is closed when the test finishes.
func OpenTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.MigrateUp(); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return d
}

// Fixture holds the identifiers created by SeedRestaurant so tests can
// reference seeded rows.
type Fixture struct {
	RestaurantID int64
	CategoryID   int64
	MenuItemIDs  []int64
	StationIDs   []int64
	CustomerIDs  []int64
}

// SeedRestaurant inserts a restaurant with a small menu, two kitchen
// stations and three customers. Order and ticket rows are left to each
// test; this only builds the reference data every extraction joins on.
func SeedRestaurant(t *testing.T, d *db.DB, restaurantID int64) Fixture {
	t.Helper()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mustExec(t, d, "INSERT INTO restaurants (id, name, created_at) VALUES (?, ?, ?)",
		restaurantID, "Test Bistro", created)

	categoryID := restaurantID*100 + 1
	mustExec(t, d, "INSERT INTO menu_categories (id, restaurant_id, name) VALUES (?, ?, ?)",
		categoryID, restaurantID, "Mains")

	f := Fixture{RestaurantID: restaurantID, CategoryID: categoryID}
	for i, name := range []string{"Burger", "Pasta", "Salad"} {
		id := restaurantID*100 + int64(10+i)
		mustExec(t, d, "INSERT INTO menu_items (id, restaurant_id, category_id, name, price) VALUES (?, ?, ?, ?, ?)",
			id, restaurantID, categoryID, name, 12.5+float64(i))
		f.MenuItemIDs = append(f.MenuItemIDs, id)
	}
	for i, name := range []string{"Grill", "Cold"} {
		id := restaurantID*100 + int64(20+i)
		mustExec(t, d, "INSERT INTO kitchen_stations (id, restaurant_id, name) VALUES (?, ?, ?)",
			id, restaurantID, name)
		f.StationIDs = append(f.StationIDs, id)
	}
	for i := 0; i < 3; i++ {
		id := restaurantID*100 + int64(30+i)
		mustExec(t, d, "INSERT INTO customers (id, restaurant_id, created_at) VALUES (?, ?, ?)",
			id, restaurantID, created.AddDate(0, 0, i))
		mustExec(t, d, "INSERT INTO loyalty_balances (customer_id, current_points, lifetime_points, current_tier) VALUES (?, ?, ?, ?)",
			id, 100*(i+1), 500*(i+1), "bronze")
		f.CustomerIDs = append(f.CustomerIDs, id)
	}
	return f
}

// InsertOrder inserts an order with a single line and returns the order id.
func InsertOrder(t *testing.T, d *db.DB, orderID, restaurantID, customerID, menuItemID int64, total float64, qty int, createdAt time.Time) {
	t.Helper()
	var customer any
	if customerID != 0 {
		customer = customerID
	}
	mustExec(t, d, "INSERT INTO orders (id, restaurant_id, customer_id, service_type, status, grand_total, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		orderID, restaurantID, customer, "dine_in", "completed", total, createdAt)
	mustExec(t, d, "INSERT INTO order_items (id, order_id, menu_item_id, quantity, unit_price) VALUES (?, ?, ?, ?, ?)",
		orderID*10, orderID, menuItemID, qty, total/float64(qty))
}

// InsertTicket inserts a completed kitchen ticket for an existing order line.
func InsertTicket(t *testing.T, d *db.DB, ticketID, stationID, orderItemID int64, assigned time.Time, queueMin, prepMin float64) {
	t.Helper()
	started := assigned.Add(time.Duration(queueMin * float64(time.Minute)))
	completed := started.Add(time.Duration(prepMin * float64(time.Minute)))
	mustExec(t, d, "INSERT INTO kitchen_tickets (id, station_id, order_item_id, status, assigned_at, started_at, completed_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		ticketID, stationID, orderItemID, "completed", assigned, started, completed)
}

// InsertInventoryItem inserts an active inventory item with one batch and
// 30-day consumption recorded as a single recipe_deduct movement.
func InsertInventoryItem(t *testing.T, d *db.DB, itemID, restaurantID int64, name string, stock, minLevel, reorderLevel, consumed30d float64, movedAt time.Time) {
	t.Helper()
	mustExec(t, d, "INSERT INTO inventory_items (id, restaurant_id, category_id, name, min_level, reorder_level, is_active) VALUES (?, ?, NULL, ?, ?, ?, 1)",
		itemID, restaurantID, name, minLevel, reorderLevel)
	if stock > 0 {
		mustExec(t, d, "INSERT INTO inventory_batches (id, item_id, remaining_base, unit_cost_per_base, expiry_date) VALUES (?, ?, ?, ?, ?)",
			itemID*10, itemID, stock, 2.0, movedAt.AddDate(0, 1, 0))
	}
	if consumed30d > 0 {
		mustExec(t, d, "INSERT INTO stock_movements (id, item_id, movement_type, qty_base, created_at) VALUES (?, ?, ?, ?, ?)",
			itemID*10+1, itemID, "recipe_deduct", -consumed30d, movedAt)
	}
}

func mustExec(t *testing.T, d *db.DB, query string, args ...any) {
	t.Helper()
	if _, err := d.Exec(query, args...); err != nil {
		t.Fatalf("seed exec failed: %v\nquery: %s", err, query)
	}
}
