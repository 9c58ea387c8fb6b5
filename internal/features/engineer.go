package features

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/resto-data/covers.report/internal/config"
	"github.com/resto-data/covers.report/internal/dataset"
)

// Fallback prep-time statistics used when a station has no history at all.
const (
	defaultAvgPrepTime    = 10.0
	defaultStdPrepTime    = 2.0
	defaultMinPrepTime    = 5.0
	defaultMaxPrepTime    = 20.0
	defaultMedianPrepTime = 10.0
)

// Sentinel for reorder/stockout horizons when nothing is being consumed.
const sentinelDays = 999

// Engineer derives per-task feature vectors. One Engineer is shared by the
// training pipeline and the prediction services.
type Engineer struct {
	peakHours   map[int]bool
	weekendDays map[int]bool
}

func NewEngineer(cfg *config.Config) *Engineer {
	e := &Engineer{peakHours: make(map[int]bool), weekendDays: make(map[int]bool)}
	for _, h := range cfg.Features.PeakHours {
		e.peakHours[h] = true
	}
	for _, d := range cfg.Features.WeekendDays {
		e.weekendDays[d] = true
	}
	return e
}

// Demand builds the demand-forecast vector for one target hour, from the
// order history available at that point. Lag features count orders in the
// one-hour window at the lag; rolling features average hourly counts over
// the window. Empty windows contribute zero.
func (e *Engineer) Demand(orders []dataset.CleanOrder, target time.Time) Vector {
	v := newVector()
	target = target.UTC()

	hour := target.Hour()
	dow := int(target.Weekday())
	v.Num["hour"] = float64(hour)
	v.Num["day_of_week"] = float64(dow)
	v.Num["day_of_month"] = float64(target.Day())
	v.Num["month"] = float64(int(target.Month()))
	v.Num["is_weekend"] = boolFeature(e.weekendDays[dow])
	v.Num["is_peak_hour"] = boolFeature(e.peakHours[hour])

	v.Num["hour_sin"] = math.Sin(2 * math.Pi * float64(hour) / 24)
	v.Num["hour_cos"] = math.Cos(2 * math.Pi * float64(hour) / 24)
	v.Num["day_sin"] = math.Sin(2 * math.Pi * float64(dow) / 7)
	v.Num["day_cos"] = math.Cos(2 * math.Pi * float64(dow) / 7)

	v.Num["orders_1d_ago"] = float64(countOrdersInHour(orders, target.AddDate(0, 0, -1)))
	v.Num["orders_7d_ago"] = float64(countOrdersInHour(orders, target.AddDate(0, 0, -7)))
	v.Num["orders_30d_ago"] = float64(countOrdersInHour(orders, target.AddDate(0, 0, -30)))

	v.Num["orders_7d_avg"] = rollingHourlyAvg(orders, target, 7)
	v.Num["orders_30d_avg"] = rollingHourlyAvg(orders, target, 30)

	if len(orders) > 0 {
		first := orders[0].CreatedAt
		for _, o := range orders[1:] {
			if o.CreatedAt.Before(first) {
				first = o.CreatedAt
			}
		}
		v.Num["days_since_start"] = math.Floor(target.Sub(first).Hours() / 24)
	} else {
		v.Num["days_since_start"] = 0
	}
	return v
}

// Kitchen builds the prep-time vector for a (station, item) pair. History
// resolution falls back in order: station+item, then station alone, then
// the documented defaults.
func (e *Engineer) Kitchen(tickets []dataset.CleanKitchen, stationID, menuItemID int64) Vector {
	v := newVector()

	var prepTimes []float64
	for _, t := range tickets {
		if t.StationID == stationID && t.MenuItemID == menuItemID {
			prepTimes = append(prepTimes, t.PrepTimeMinutes)
		}
	}
	if len(prepTimes) == 0 {
		for _, t := range tickets {
			if t.StationID == stationID {
				prepTimes = append(prepTimes, t.PrepTimeMinutes)
			}
		}
	}

	if len(prepTimes) == 0 {
		v.Num["avg_prep_time"] = defaultAvgPrepTime
		v.Num["std_prep_time"] = defaultStdPrepTime
		v.Num["min_prep_time"] = defaultMinPrepTime
		v.Num["max_prep_time"] = defaultMaxPrepTime
		v.Num["median_prep_time"] = defaultMedianPrepTime
	} else {
		sorted := append([]float64(nil), prepTimes...)
		sort.Float64s(sorted)

		v.Num["avg_prep_time"] = stat.Mean(sorted, nil)
		if len(sorted) >= 2 {
			v.Num["std_prep_time"] = stat.StdDev(sorted, nil)
		} else {
			v.Num["std_prep_time"] = 0
		}
		v.Num["min_prep_time"] = sorted[0]
		v.Num["max_prep_time"] = sorted[len(sorted)-1]
		v.Num["median_prep_time"] = median(sorted)
	}

	if v.Num["avg_prep_time"] > 0 {
		v.Num["item_complexity"] = v.Num["std_prep_time"] / v.Num["avg_prep_time"]
	} else {
		v.Num["item_complexity"] = 0
	}
	return v
}

// Customer builds the churn/LTV vector for one cleaned customer, including
// the 1-5 RFM score.
func (e *Engineer) Customer(c dataset.CleanCustomer) Vector {
	v := newVector()
	v.Num["recency_days"] = c.RecencyDays
	v.Num["frequency"] = float64(c.Frequency)
	v.Num["monetary"] = c.Monetary
	v.Num["current_points"] = float64(c.CurrentPoints)
	v.Num["lifetime_points"] = float64(c.LifetimePoints)
	v.Cat["current_tier"] = c.CurrentTier
	v.Num["avg_order_value"] = c.AvgOrderValue
	v.Num["days_since_signup"] = c.DaysSinceSignup
	v.Num["order_frequency"] = c.OrderFrequency
	v.Num["unique_order_days"] = float64(c.UniqueOrderDays)
	v.Num["rfm_score"] = RFMScore(c.RecencyDays, float64(c.Frequency), c.Monetary)
	return v
}

// Inventory builds the optimization vector for one cleaned inventory item.
func (e *Engineer) Inventory(item dataset.CleanInventory) Vector {
	v := newVector()
	v.Num["current_stock"] = item.CurrentStock
	v.Num["min_level"] = item.MinLevel
	v.Num["reorder_level"] = item.ReorderLevel
	v.Num["daily_consumption_rate"] = item.DailyConsumptionRate
	v.Num["consumption_last_30_days"] = item.ConsumptionLast30Days
	v.Num["avg_unit_cost"] = item.AvgUnitCost
	v.Cat["stock_status"] = item.StockStatus
	v.Num["batch_count"] = float64(item.BatchCount)

	daysOut := item.DaysUntilStockout
	if math.IsInf(daysOut, 1) || daysOut > sentinelDays {
		daysOut = sentinelDays
	}
	v.Num["days_until_stockout"] = daysOut

	if item.ReorderLevel > 0 {
		v.Num["stock_to_reorder_ratio"] = item.CurrentStock / item.ReorderLevel
	} else {
		v.Num["stock_to_reorder_ratio"] = 1.0
	}

	if item.DailyConsumptionRate > 0 {
		v.Num["days_until_reorder"] = (item.CurrentStock - item.ReorderLevel) / item.DailyConsumptionRate
	} else {
		v.Num["days_until_reorder"] = sentinelDays
	}
	return v
}

// RFMScore buckets recency, frequency and monetary onto 1-5 scales and
// returns their mean rounded to two decimals. Higher is better.
func RFMScore(recencyDays, frequency, monetary float64) float64 {
	var r float64
	switch {
	case recencyDays <= 30:
		r = 5
	case recencyDays <= 60:
		r = 4
	case recencyDays <= 90:
		r = 3
	case recencyDays <= 180:
		r = 2
	default:
		r = 1
	}

	var f float64
	switch {
	case frequency >= 20:
		f = 5
	case frequency >= 10:
		f = 4
	case frequency >= 5:
		f = 3
	case frequency >= 2:
		f = 2
	default:
		f = 1
	}

	var m float64
	switch {
	case monetary >= 1000:
		m = 5
	case monetary >= 500:
		m = 4
	case monetary >= 200:
		m = 3
	case monetary >= 50:
		m = 2
	default:
		m = 1
	}

	return math.Round((r+f+m)/3*100) / 100
}

// median of a sorted slice, interpolating between the middle pair for even
// lengths.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func countOrdersInHour(orders []dataset.CleanOrder, start time.Time) int {
	end := start.Add(time.Hour)
	n := 0
	for _, o := range orders {
		if !o.CreatedAt.Before(start) && o.CreatedAt.Before(end) {
			n++
		}
	}
	return n
}

// rollingHourlyAvg averages order counts per distinct observed hour over
// the trailing window. Hours with no orders are not counted, matching the
// lag semantics of the rest of the demand features.
func rollingHourlyAvg(orders []dataset.CleanOrder, target time.Time, days int) float64 {
	start := target.AddDate(0, 0, -days)
	counts := make(map[time.Time]int)
	total := 0
	for _, o := range orders {
		if o.CreatedAt.Before(start) || !o.CreatedAt.Before(target) {
			continue
		}
		counts[o.CreatedAt.Truncate(time.Hour)]++
		total++
	}
	if len(counts) == 0 {
		return 0
	}
	return float64(total) / float64(len(counts))
}
