package cli

import (
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/resto-data/covers.report/internal/db"
)

var (
	seedDays      int
	seedCustomers int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the database with synthetic demo data",
	Long: `Seed generates a plausible operating history for one restaurant:
orders concentrated around lunch and dinner, matching kitchen tickets,
a loyalty customer base with mixed recency, and an inventory with
consumption movements. Intended for demos and local development.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedDays, "days", 120, "days of order history to generate")
	seedCmd.Flags().IntVar(&seedCustomers, "customers", 60, "number of loyalty customers")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	d, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.MigrateUp(); err != nil {
		return err
	}

	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rng := rand.New(rand.NewSource(1))
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -seedDays)

	exec := func(query string, args ...any) error {
		_, err := tx.Exec(query, args...)
		return err
	}

	if err := exec(`INSERT INTO restaurants (id, name, created_at) VALUES (?, ?, ?)`,
		restaurantID, "Demo Trattoria", start.AddDate(-1, 0, 0)); err != nil {
		return fmt.Errorf("seed restaurant: %w", err)
	}

	menu, err := seedMenu(tx, rng)
	if err != nil {
		return err
	}
	stations := []string{"Grill", "Saute", "Cold"}
	for i, name := range stations {
		if err := exec(`INSERT INTO kitchen_stations (id, restaurant_id, name) VALUES (?, ?, ?)`,
			i+1, restaurantID, name); err != nil {
			return fmt.Errorf("seed stations: %w", err)
		}
	}

	if err := seedCustomerBase(tx, rng, start); err != nil {
		return err
	}
	orderCount, err := seedOrders(tx, rng, start, now, menu, len(stations))
	if err != nil {
		return err
	}
	if err := seedInventory(tx, rng, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Info().
		Int("days", seedDays).
		Int("orders", orderCount).
		Int("customers", seedCustomers).
		Str("db", cfg.DatabasePath).
		Msg("seeded demo data")
	return nil
}

type menuItem struct {
	id       int64
	price    float64
	station  int64
	prepBase float64
}

func seedMenu(tx *sql.Tx, rng *rand.Rand) ([]menuItem, error) {
	categories := []string{"Starters", "Mains", "Desserts"}
	names := [][]string{
		{"Bruschetta", "Calamari", "Soup"},
		{"Margherita", "Carbonara", "Osso Buco"},
		{"Tiramisu", "Panna Cotta", "Gelato"},
	}
	// Mains run on the hot stations and take longer.
	stations := []int64{3, 1, 3}
	prepBases := []float64{5, 14, 4}

	var items []menuItem
	var itemID int64
	for ci, cat := range categories {
		if _, err := tx.Exec(`INSERT INTO menu_categories (id, restaurant_id, name) VALUES (?, ?, ?)`,
			ci+1, restaurantID, cat); err != nil {
			return nil, fmt.Errorf("seed menu categories: %w", err)
		}
		for _, name := range names[ci] {
			itemID++
			price := 6 + rng.Float64()*24
			if _, err := tx.Exec(`INSERT INTO menu_items (id, restaurant_id, category_id, name, price) VALUES (?, ?, ?, ?, ?)`,
				itemID, restaurantID, ci+1, name, price); err != nil {
				return nil, fmt.Errorf("seed menu items: %w", err)
			}
			items = append(items, menuItem{id: itemID, price: price, station: stations[ci], prepBase: prepBases[ci]})
		}
	}
	return items, nil
}

func seedCustomerBase(tx *sql.Tx, rng *rand.Rand, start time.Time) error {
	tiers := []string{"bronze", "silver", "gold"}
	for i := 0; i < seedCustomers; i++ {
		id := int64(i + 1)
		since := start.AddDate(0, 0, -rng.Intn(365))
		if _, err := tx.Exec(`INSERT INTO customers (id, restaurant_id, created_at) VALUES (?, ?, ?)`,
			id, restaurantID, since); err != nil {
			return fmt.Errorf("seed customers: %w", err)
		}
		points := rng.Intn(2000)
		if _, err := tx.Exec(`INSERT INTO loyalty_balances (customer_id, current_points, lifetime_points, current_tier) VALUES (?, ?, ?, ?)`,
			id, points, points+rng.Intn(3000), tiers[rng.Intn(len(tiers))]); err != nil {
			return fmt.Errorf("seed loyalty: %w", err)
		}
	}
	return nil
}

func seedOrders(tx *sql.Tx, rng *rand.Rand, start, now time.Time, menu []menuItem, stationCount int) (int, error) {
	serviceTypes := []string{"DINE_IN", "TAKEAWAY", "DELIVERY"}
	mealHours := []int{11, 12, 13, 18, 19, 20, 21}

	var orderID, orderItemID, ticketID int64
	days := int(now.Sub(start).Hours() / 24)
	for day := 0; day < days; day++ {
		date := start.AddDate(0, 0, day)
		busy := 1.0
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			busy = 1.5
		}
		for _, hour := range mealHours {
			orders := int(busy * float64(2+rng.Intn(4)))
			for n := 0; n < orders; n++ {
				orderID++
				created := date.Add(time.Duration(hour)*time.Hour + time.Duration(rng.Intn(3600))*time.Second)
				if created.After(now) {
					continue
				}

				// Lapsed customers stop ordering partway through the
				// window, which gives the churn model a signal.
				var customer any
				if c := rng.Intn(seedCustomers * 2); c < seedCustomers {
					lapseDay := (c * days) / seedCustomers
					if c%3 != 0 || day < lapseDay {
						customer = int64(c + 1)
					}
				}

				item := menu[rng.Intn(len(menu))]
				qty := 1 + rng.Intn(3)
				total := item.price * float64(qty)
				if _, err := tx.Exec(
					`INSERT INTO orders (id, restaurant_id, customer_id, service_type, status, grand_total, created_at)
					 VALUES (?, ?, ?, ?, 'completed', ?, ?)`,
					orderID, restaurantID, customer, serviceTypes[rng.Intn(len(serviceTypes))], total, created); err != nil {
					return 0, fmt.Errorf("seed orders: %w", err)
				}

				orderItemID++
				if _, err := tx.Exec(
					`INSERT INTO order_items (id, order_id, menu_item_id, quantity, unit_price) VALUES (?, ?, ?, ?, ?)`,
					orderItemID, orderID, item.id, qty, item.price); err != nil {
					return 0, fmt.Errorf("seed order items: %w", err)
				}

				ticketID++
				queue := time.Duration(rng.Intn(5)) * time.Minute
				prep := time.Duration(item.prepBase+rng.Float64()*6) * time.Minute
				assigned := created.Add(time.Minute)
				if _, err := tx.Exec(
					`INSERT INTO kitchen_tickets (id, station_id, order_item_id, status, assigned_at, started_at, completed_at)
					 VALUES (?, ?, ?, 'completed', ?, ?, ?)`,
					ticketID, item.station, orderItemID, assigned, assigned.Add(queue), assigned.Add(queue+prep)); err != nil {
					return 0, fmt.Errorf("seed kitchen tickets: %w", err)
				}

				if _, err := tx.Exec(
					`INSERT INTO payments (id, order_id, restaurant_id, payment_method, amount, tip_amount, status, created_at, completed_at)
					 VALUES (?, ?, ?, 'card', ?, ?, 'completed', ?, ?)`,
					orderID, orderID, restaurantID, total, total*0.1, created, created.Add(time.Minute)); err != nil {
					return 0, fmt.Errorf("seed payments: %w", err)
				}
			}
		}
	}
	return int(orderID), nil
}

func seedInventory(tx *sql.Tx, rng *rand.Rand, now time.Time) error {
	if _, err := tx.Exec(`INSERT INTO inventory_categories (id, restaurant_id, name) VALUES (1, ?, 'Produce'), (2, ?, 'Dry Goods')`,
		restaurantID, restaurantID); err != nil {
		return fmt.Errorf("seed inventory categories: %w", err)
	}

	for i := 0; i < 40; i++ {
		itemID := int64(i + 1)
		if _, err := tx.Exec(
			`INSERT INTO inventory_items (id, restaurant_id, category_id, name, min_level, reorder_level, is_active)
			 VALUES (?, ?, ?, ?, ?, ?, 1)`,
			itemID, restaurantID, 1+i%2, fmt.Sprintf("ingredient-%02d", i+1),
			5+rng.Float64()*10, 20+rng.Float64()*20); err != nil {
			return fmt.Errorf("seed inventory items: %w", err)
		}

		for b := 0; b < 2; b++ {
			if _, err := tx.Exec(
				`INSERT INTO inventory_batches (item_id, remaining_base, unit_cost_per_base, expiry_date) VALUES (?, ?, ?, ?)`,
				itemID, 10+rng.Float64()*60, 1+rng.Float64()*8, now.AddDate(0, 0, 7+rng.Intn(60))); err != nil {
				return fmt.Errorf("seed inventory batches: %w", err)
			}
		}

		// Daily recipe consumption over the trailing month.
		for day := 0; day < 30; day++ {
			if _, err := tx.Exec(
				`INSERT INTO stock_movements (item_id, movement_type, qty_base, created_at) VALUES (?, 'recipe_deduct', ?, ?)`,
				itemID, -(1 + rng.Float64()*5), now.AddDate(0, 0, -day)); err != nil {
				return fmt.Errorf("seed stock movements: %w", err)
			}
		}
	}
	return nil
}
