package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resto-data/covers.report/internal/config"
	"github.com/resto-data/covers.report/internal/dataset"
	"github.com/resto-data/covers.report/internal/extract"
)

func testEngineer() *Engineer {
	return NewEngineer(config.Default())
}

func cleanOrderAt(ts time.Time) dataset.CleanOrder {
	return dataset.CleanOrder{
		OrderRecord: extract.OrderRecord{
			OrderID: 1, RestaurantID: 1, GrandTotal: 25, Quantity: 1, UnitPrice: 25,
			CreatedAt: ts, HourOfDay: ts.Hour(), DayOfWeek: int(ts.Weekday()),
		},
	}
}

func TestDemandFeaturesCalendar(t *testing.T) {
	t.Parallel()

	target := time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC) // Saturday noon
	v := testEngineer().Demand(nil, target)

	assert.Equal(t, 12.0, v.Num["hour"])
	assert.Equal(t, 6.0, v.Num["day_of_week"])
	assert.Equal(t, 7.0, v.Num["day_of_month"])
	assert.Equal(t, 6.0, v.Num["month"])
	assert.Equal(t, 1.0, v.Num["is_weekend"])
	assert.Equal(t, 1.0, v.Num["is_peak_hour"])

	assert.InDelta(t, math.Sin(2*math.Pi*12/24), v.Num["hour_sin"], 1e-12)
	assert.InDelta(t, math.Cos(2*math.Pi*12/24), v.Num["hour_cos"], 1e-12)
	assert.InDelta(t, math.Sin(2*math.Pi*6/7), v.Num["day_sin"], 1e-12)
	assert.InDelta(t, math.Cos(2*math.Pi*6/7), v.Num["day_cos"], 1e-12)
}

func TestDemandFeaturesEmptyHistoryIsZero(t *testing.T) {
	t.Parallel()

	v := testEngineer().Demand(nil, time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC))
	for _, key := range []string{"orders_1d_ago", "orders_7d_ago", "orders_30d_ago", "orders_7d_avg", "orders_30d_avg", "days_since_start"} {
		assert.Equal(t, 0.0, v.Num[key], key)
	}
}

func TestDemandFeaturesLagsAndRolling(t *testing.T) {
	t.Parallel()

	target := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	var orders []dataset.CleanOrder
	// Three orders in the lag-1d hour.
	for i := 0; i < 3; i++ {
		orders = append(orders, cleanOrderAt(target.AddDate(0, 0, -1).Add(time.Duration(i*10)*time.Minute)))
	}
	// One order in the lag-7d hour.
	orders = append(orders, cleanOrderAt(target.AddDate(0, 0, -7).Add(30*time.Minute)))
	// One order outside every lag window, two days back at a different hour.
	orders = append(orders, cleanOrderAt(target.AddDate(0, 0, -2).Add(5*time.Hour)))

	v := testEngineer().Demand(orders, target)
	assert.Equal(t, 3.0, v.Num["orders_1d_ago"])
	assert.Equal(t, 1.0, v.Num["orders_7d_ago"])
	assert.Equal(t, 0.0, v.Num["orders_30d_ago"])

	// 7d window holds 5 orders over 3 distinct observed hours.
	assert.InDelta(t, 5.0/3.0, v.Num["orders_7d_avg"], 1e-12)
	// First order is 6d23h30m before the target, which floors to 6 days.
	assert.Equal(t, 6.0, v.Num["days_since_start"])
}

func TestKitchenFeaturesFallbackChain(t *testing.T) {
	t.Parallel()

	tickets := []dataset.CleanKitchen{
		{KitchenRecord: extract.KitchenRecord{StationID: 1, MenuItemID: 10, PrepTimeMinutes: 8}},
		{KitchenRecord: extract.KitchenRecord{StationID: 1, MenuItemID: 10, PrepTimeMinutes: 12}},
		{KitchenRecord: extract.KitchenRecord{StationID: 1, MenuItemID: 11, PrepTimeMinutes: 30}},
	}
	e := testEngineer()

	t.Run("station and item history", func(t *testing.T) {
		v := e.Kitchen(tickets, 1, 10)
		assert.InDelta(t, 10.0, v.Num["avg_prep_time"], 1e-12)
		assert.InDelta(t, 8.0, v.Num["min_prep_time"], 1e-12)
		assert.InDelta(t, 12.0, v.Num["max_prep_time"], 1e-12)
		assert.InDelta(t, 10.0, v.Num["median_prep_time"], 1e-12)
	})

	t.Run("station fallback for unknown item", func(t *testing.T) {
		v := e.Kitchen(tickets, 1, 99)
		// Falls back to all station-1 tickets: 8, 12, 30.
		assert.InDelta(t, 50.0/3.0, v.Num["avg_prep_time"], 1e-12)
		assert.InDelta(t, 12.0, v.Num["median_prep_time"], 1e-12)
	})

	t.Run("defaults for unknown station", func(t *testing.T) {
		v := e.Kitchen(tickets, 9, 10)
		assert.Equal(t, defaultAvgPrepTime, v.Num["avg_prep_time"])
		assert.Equal(t, defaultStdPrepTime, v.Num["std_prep_time"])
		assert.Equal(t, defaultMinPrepTime, v.Num["min_prep_time"])
		assert.Equal(t, defaultMaxPrepTime, v.Num["max_prep_time"])
		assert.Equal(t, defaultMedianPrepTime, v.Num["median_prep_time"])
		assert.InDelta(t, 0.2, v.Num["item_complexity"], 1e-12)
	})
}

func TestKitchenSingleTicketHasZeroStd(t *testing.T) {
	t.Parallel()

	tickets := []dataset.CleanKitchen{
		{KitchenRecord: extract.KitchenRecord{StationID: 1, MenuItemID: 10, PrepTimeMinutes: 9}},
	}
	v := testEngineer().Kitchen(tickets, 1, 10)
	assert.Equal(t, 0.0, v.Num["std_prep_time"])
	assert.Equal(t, 0.0, v.Num["item_complexity"])
	assert.False(t, math.IsNaN(v.Num["std_prep_time"]))
}

func TestRFMScoreBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                string
		recency, freq, spend float64
		want                float64
	}{
		{"best customer", 30, 20, 1000, 5.0},
		{"worst customer", 181, 1, 49, 1.0},
		{"recency boundary 30 vs 31", 31, 20, 1000, 4.67},
		{"recency 60 boundary", 60, 1, 49, 2.0},
		{"frequency 10 boundary", 200, 10, 49, 2.0},
		{"monetary 500 boundary", 200, 1, 500, 2.0},
		{"mid customer", 90, 5, 200, 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, RFMScore(tt.recency, tt.freq, tt.spend))
		})
	}
}

func TestCustomerFeatures(t *testing.T) {
	t.Parallel()

	c := dataset.CleanCustomer{
		CustomerRecord: extract.CustomerRecord{
			CustomerID: 1, CurrentPoints: 120, LifetimePoints: 800, CurrentTier: "gold",
			AvgOrderValue: 42.5, DaysSinceSignup: 300, UniqueOrderDays: 12,
		},
		RecencyDays: 15, Frequency: 24, Monetary: 1500, OrderFrequency: 2,
	}
	v := testEngineer().Customer(c)

	assert.Equal(t, 15.0, v.Num["recency_days"])
	assert.Equal(t, 24.0, v.Num["frequency"])
	assert.Equal(t, 1500.0, v.Num["monetary"])
	assert.Equal(t, "gold", v.Cat["current_tier"])
	assert.Equal(t, 5.0, v.Num["rfm_score"])
}

func TestInventoryFeatureSentinels(t *testing.T) {
	t.Parallel()

	e := testEngineer()

	idle := dataset.CleanInventory{
		InventoryRecord:      extract.InventoryRecord{ItemID: 1, CurrentStock: 40, ReorderLevel: 0},
		DailyConsumptionRate: 0,
		StockStatus:          "high",
		DaysUntilStockout:    math.Inf(1),
	}
	v := e.Inventory(idle)
	assert.Equal(t, 1.0, v.Num["stock_to_reorder_ratio"], "reorder level 0 defaults the ratio")
	assert.Equal(t, float64(sentinelDays), v.Num["days_until_reorder"])
	assert.Equal(t, float64(sentinelDays), v.Num["days_until_stockout"])

	active := dataset.CleanInventory{
		InventoryRecord:      extract.InventoryRecord{ItemID: 2, CurrentStock: 60, ReorderLevel: 20},
		DailyConsumptionRate: 4,
		StockStatus:          "high",
		DaysUntilStockout:    15,
	}
	v = e.Inventory(active)
	assert.Equal(t, 3.0, v.Num["stock_to_reorder_ratio"])
	assert.Equal(t, 10.0, v.Num["days_until_reorder"])
	assert.Equal(t, 15.0, v.Num["days_until_stockout"])
	assert.Equal(t, "high", v.Cat["stock_status"])
}

func TestScalerFitTransform(t *testing.T) {
	t.Parallel()

	vectors := []Vector{
		{Num: map[string]float64{"a": 1, "b": 10}},
		{Num: map[string]float64{"a": 2, "b": 10}},
		{Num: map[string]float64{"a": 3, "b": 10}},
	}
	var s Scaler
	require.NoError(t, s.Fit(vectors, []string{"a", "b"}))
	require.True(t, s.Fitted())

	out := s.Transform(vectors[0])
	assert.InDelta(t, -1.0, out.Num["a"], 1e-12)
	assert.Equal(t, 0.0, out.Num["b"], "zero-variance feature scales to zero")
	// Input vector untouched.
	assert.Equal(t, 1.0, vectors[0].Num["a"])

	// The fitted parameters apply unchanged to unseen values.
	fresh := s.Transform(Vector{Num: map[string]float64{"a": 4}})
	assert.InDelta(t, 2.0, fresh.Num["a"], 1e-12)
}

func TestScalerEmptyInput(t *testing.T) {
	t.Parallel()

	var s Scaler
	assert.Error(t, s.Fit(nil, []string{"a"}))
}

func TestEncoderUnseenCategory(t *testing.T) {
	t.Parallel()

	var e Encoder
	e.Fit([]Vector{
		{Cat: map[string]string{"current_tier": "bronze"}},
		{Cat: map[string]string{"current_tier": "gold"}},
		{Cat: map[string]string{"current_tier": "silver"}},
	})

	out, err := e.Transform(Vector{Num: map[string]float64{}, Cat: map[string]string{"current_tier": "gold"}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.Num["current_tier"], "codes assigned in sorted value order")
	assert.Empty(t, out.Cat)

	_, err = e.Transform(Vector{Num: map[string]float64{}, Cat: map[string]string{"current_tier": "platinum"}})
	var unseen *UnseenCategoryError
	require.ErrorAs(t, err, &unseen)
	assert.Equal(t, "current_tier", unseen.Feature)
	assert.Equal(t, "platinum", unseen.Value)
}

func TestMaterializeOrderingAndMissingKey(t *testing.T) {
	t.Parallel()

	vectors := []Vector{
		{Num: map[string]float64{"b": 2, "a": 1}},
		{Num: map[string]float64{"a": 3, "b": 4}},
	}
	keys := Keys(vectors)
	assert.Equal(t, []string{"a", "b"}, keys)

	rows, err := Materialize(vectors, keys)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, rows)

	_, err = Materialize([]Vector{{Num: map[string]float64{"a": 1}}}, keys)
	assert.Error(t, err, "missing feature key must fail loudly")
}

func TestDemandFeatureParity(t *testing.T) {
	t.Parallel()

	target := time.Date(2025, 6, 10, 19, 0, 0, 0, time.UTC)
	orders := []dataset.CleanOrder{
		cleanOrderAt(target.AddDate(0, 0, -1)),
		cleanOrderAt(target.AddDate(0, 0, -3)),
	}

	// Same inputs, two independently constructed engineers: identical keys
	// and values, as required for train/serve parity.
	a := testEngineer().Demand(orders, target)
	b := NewEngineer(config.Default()).Demand(orders, target)
	assert.Equal(t, a.Num, b.Num)
	assert.Equal(t, Keys([]Vector{a}), Keys([]Vector{b}))
}
