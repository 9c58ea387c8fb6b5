package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/resto-data/covers.report/internal/config"
	"github.com/resto-data/covers.report/internal/extract"
	"github.com/resto-data/covers.report/internal/logging"
	"github.com/resto-data/covers.report/internal/timeutil"
)

func testProcessor() *Processor {
	clock := timeutil.NewMockClock(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	return NewProcessor(config.Default(), clock, logging.Nop())
}

func orderAt(id int64, total float64, ts time.Time) extract.OrderRecord {
	return extract.OrderRecord{
		OrderID:      id,
		RestaurantID: 1,
		ServiceType:  "dine_in",
		GrandTotal:   total,
		CreatedAt:    ts,
		Quantity:     1,
		UnitPrice:    total,
		HourOfDay:    ts.Hour(),
		DayOfWeek:    int(ts.Weekday()),
	}
}

func TestCleanOrdersDropsInvalidRows(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	records := []extract.OrderRecord{
		orderAt(1, 25, ts),
		orderAt(2, 0, ts),  // zero total
		orderAt(3, -5, ts), // negative total
		{OrderID: 4, GrandTotal: 20, Quantity: 0, UnitPrice: 20, CreatedAt: ts},
		{OrderID: 5, GrandTotal: 20, Quantity: 1, UnitPrice: 0, CreatedAt: ts},
		orderAt(6, 30, ts),
	}

	out := testProcessor().CleanOrders(records)
	if len(out) != 2 {
		t.Fatalf("got %d clean orders, want 2", len(out))
	}
	for _, o := range out {
		if o.GrandTotal <= 0 {
			t.Errorf("order %d kept with non-positive total", o.OrderID)
		}
	}
}

func TestCleanOrdersRemovesOutliers(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	var records []extract.OrderRecord
	for i := 0; i < 30; i++ {
		records = append(records, orderAt(int64(i+1), 20+float64(i%5), ts))
	}
	records = append(records, orderAt(99, 5000, ts)) // obvious outlier

	out := testProcessor().CleanOrders(records)
	for _, o := range out {
		if o.OrderID == 99 {
			t.Fatal("outlier order survived cleaning")
		}
	}
	if len(out) != 30 {
		t.Errorf("got %d clean orders, want 30", len(out))
	}
}

func TestCleanOrdersFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		ts         time.Time
		isWeekend  bool
		isPeakHour bool
	}{
		{"saturday lunch", time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC), true, true},
		{"sunday morning", time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC), true, false},
		{"tuesday dinner", time.Date(2025, 6, 3, 19, 0, 0, 0, time.UTC), false, true},
		{"tuesday afternoon", time.Date(2025, 6, 3, 15, 0, 0, 0, time.UTC), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := testProcessor().CleanOrders([]extract.OrderRecord{orderAt(1, 25, tt.ts)})
			if len(out) != 1 {
				t.Fatalf("got %d orders, want 1", len(out))
			}
			if out[0].IsWeekend != tt.isWeekend {
				t.Errorf("IsWeekend = %v, want %v", out[0].IsWeekend, tt.isWeekend)
			}
			if out[0].IsPeakHour != tt.isPeakHour {
				t.Errorf("IsPeakHour = %v, want %v", out[0].IsPeakHour, tt.isPeakHour)
			}
		})
	}
}

func TestCleanKitchenRules(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)
	good := extract.KitchenRecord{
		TicketID: 1, StationID: 1, AssignedAt: ts,
		StartedAt: ts.Add(2 * time.Minute), CompletedAt: ts.Add(14 * time.Minute),
		TotalTimeMinutes: 14, PrepTimeMinutes: 12, QueueTimeMinutes: 2,
		HourOfDay: 18, DayOfWeek: 1,
	}
	missingStart := good
	missingStart.TicketID = 2
	missingStart.StartedAt = time.Time{}

	tooLong := good
	tooLong.TicketID = 3
	tooLong.TotalTimeMinutes = 130

	negativeQueue := good
	negativeQueue.TicketID = 4
	negativeQueue.QueueTimeMinutes = -3

	out := testProcessor().CleanKitchen([]extract.KitchenRecord{good, missingStart, tooLong, negativeQueue})
	if len(out) != 2 {
		t.Fatalf("got %d clean tickets, want 2", len(out))
	}
	if out[0].TicketID != 1 {
		t.Errorf("first kept ticket = %d, want 1", out[0].TicketID)
	}
	if out[1].QueueTimeMinutes != 0 {
		t.Errorf("negative queue time not clamped: %v", out[1].QueueTimeMinutes)
	}
	if !out[0].IsPeakHour {
		t.Error("18:00 ticket not flagged as peak hour")
	}
}

func TestCleanCustomersRFMInputs(t *testing.T) {
	t.Parallel()

	records := []extract.CustomerRecord{
		{CustomerID: 1, TotalOrders: 10, TotalSpent: 500, DaysSinceLastOrder: 12, UniqueOrderDays: 5},
		{CustomerID: 2, TotalOrders: 0}, // never ordered, dropped
		{CustomerID: 3, TotalOrders: 3, TotalSpent: 90, DaysSinceLastOrder: -1, UniqueOrderDays: 0},
	}

	out := testProcessor().CleanCustomers(records)
	if len(out) != 2 {
		t.Fatalf("got %d clean customers, want 2", len(out))
	}

	active := out[0]
	if active.RecencyDays != 12 || active.Frequency != 10 || active.Monetary != 500 {
		t.Errorf("RFM inputs = (%v, %v, %v), want (12, 10, 500)",
			active.RecencyDays, active.Frequency, active.Monetary)
	}
	if active.OrderFrequency != 2.0 {
		t.Errorf("OrderFrequency = %v, want 2.0", active.OrderFrequency)
	}

	noRecency := out[1]
	if noRecency.RecencyDays != defaultRecencyDays {
		t.Errorf("RecencyDays = %v, want default %d", noRecency.RecencyDays, defaultRecencyDays)
	}
	if noRecency.OrderFrequency != 3.0 {
		t.Errorf("OrderFrequency with zero active days = %v, want 3.0", noRecency.OrderFrequency)
	}
	if noRecency.CurrentTier != "bronze" {
		t.Errorf("CurrentTier = %q, want bronze default", noRecency.CurrentTier)
	}
}

func TestCleanInventoryDerivedFields(t *testing.T) {
	t.Parallel()

	records := []extract.InventoryRecord{
		{ItemID: 1, CurrentStock: 60, MinLevel: 10, ReorderLevel: 25, ConsumptionLast30Days: 90},
		{ItemID: 2, CurrentStock: 8, MinLevel: 10, ReorderLevel: 25, ConsumptionLast30Days: 0},
		{ItemID: 3, CurrentStock: 20, MinLevel: 10, ReorderLevel: 25, ConsumptionLast30Days: 30},
	}

	out := testProcessor().CleanInventory(records)
	if len(out) != 3 {
		t.Fatalf("got %d items, want 3", len(out))
	}

	healthy := out[0]
	if healthy.DailyConsumptionRate != 3.0 {
		t.Errorf("DailyConsumptionRate = %v, want 3.0", healthy.DailyConsumptionRate)
	}
	if healthy.StockStatus != "high" {
		t.Errorf("StockStatus = %q, want high", healthy.StockStatus)
	}
	if healthy.DaysUntilStockout != 20.0 {
		t.Errorf("DaysUntilStockout = %v, want 20.0", healthy.DaysUntilStockout)
	}

	low := out[1]
	if low.StockStatus != "low" {
		t.Errorf("StockStatus = %q, want low", low.StockStatus)
	}
	if !math.IsInf(low.DaysUntilStockout, 1) {
		t.Errorf("DaysUntilStockout with zero consumption = %v, want +Inf", low.DaysUntilStockout)
	}

	medium := out[2]
	if medium.StockStatus != "medium" {
		t.Errorf("StockStatus = %q, want medium", medium.StockStatus)
	}
}

func TestValidatorReports(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	v := NewValidator(timeutil.NewMockClock(now))

	clean := []extract.OrderRecord{orderAt(1, 25, now.AddDate(0, 0, -1))}
	report := v.ValidateOrders(clean)
	if !report.Valid || report.RecordCount != 1 {
		t.Errorf("clean batch report = %+v, want valid with 1 record", report)
	}

	dirty := []extract.OrderRecord{
		{OrderID: 0, RestaurantID: 1, CreatedAt: now.AddDate(0, 0, -1)},
		orderAt(2, -10, now.AddDate(0, 0, -1)),
		orderAt(3, 10, now.AddDate(0, 0, 2)),
	}
	report = v.ValidateOrders(dirty)
	if report.Valid {
		t.Error("dirty batch reported valid")
	}
	if len(report.Issues) != 3 {
		t.Errorf("got %d issues, want 3: %v", len(report.Issues), report.Issues)
	}

	kitchen := v.ValidateKitchen([]extract.KitchenRecord{{StationID: 1, AssignedAt: now, CompletedAt: now, PrepTimeMinutes: -2}})
	if kitchen.Valid {
		t.Error("negative prep time reported valid")
	}

	customers := v.ValidateCustomers([]extract.CustomerRecord{{CustomerID: 1, TotalOrders: 2, TotalSpent: 40}})
	if !customers.Valid {
		t.Errorf("clean customers reported invalid: %v", customers.Issues)
	}
}
