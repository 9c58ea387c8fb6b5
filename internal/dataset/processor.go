// Package dataset cleans and validates extracted records before they reach
// feature engineering. Cleaning drops or repairs rows; validation only
// reports, it never mutates and never errors.
package dataset

import (
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/resto-data/covers.report/internal/config"
	"github.com/resto-data/covers.report/internal/extract"
	"github.com/resto-data/covers.report/internal/timeutil"
)

// Total ticket times above this are treated as data errors, not slow prep.
const maxTotalTimeMinutes = 120

// Recency assigned to customers whose last order predates the data.
const defaultRecencyDays = 999

// CleanOrder is an order line that survived cleaning, with derived flags.
type CleanOrder struct {
	extract.OrderRecord
	IsWeekend  bool
	IsPeakHour bool
	OrderDate  time.Time
}

// CleanKitchen is a kitchen ticket that survived cleaning.
type CleanKitchen struct {
	extract.KitchenRecord
	IsWeekend  bool
	IsPeakHour bool
}

// CleanCustomer is a customer with at least one order, with RFM inputs
// resolved.
type CleanCustomer struct {
	extract.CustomerRecord
	RecencyDays    float64
	Frequency      int
	Monetary       float64
	OrderFrequency float64
}

// CleanInventory is an inventory item with consumption-derived fields.
// DaysUntilStockout is +Inf when nothing is being consumed.
type CleanInventory struct {
	extract.InventoryRecord
	DailyConsumptionRate float64
	StockStatus          string
	DaysUntilStockout    float64
}

// Processor applies the per-task cleaning rules.
type Processor struct {
	peakHours   map[int]bool
	weekendDays map[int]bool
	clock       timeutil.Clock
	log         zerolog.Logger
}

func NewProcessor(cfg *config.Config, clock timeutil.Clock, log zerolog.Logger) *Processor {
	p := &Processor{
		peakHours:   make(map[int]bool),
		weekendDays: make(map[int]bool),
		clock:       clock,
		log:         log,
	}
	for _, h := range cfg.Features.PeakHours {
		p.peakHours[h] = true
	}
	for _, d := range cfg.Features.WeekendDays {
		p.weekendDays[d] = true
	}
	return p
}

// CleanOrders drops lines with non-positive totals, quantities or prices,
// removes grand-total outliers beyond three standard deviations, and adds
// weekend/peak flags.
func (p *Processor) CleanOrders(records []extract.OrderRecord) []CleanOrder {
	kept := records[:0:0]
	for _, r := range records {
		if r.GrandTotal <= 0 || r.Quantity <= 0 || r.UnitPrice <= 0 {
			continue
		}
		if r.ServiceType == "" {
			r.ServiceType = "DINE_IN"
		}
		if r.CategoryName == "" {
			r.CategoryName = "Uncategorized"
		}
		kept = append(kept, r)
	}

	// Outlier bounds need at least two rows to be meaningful.
	lo, hi := math.Inf(-1), math.Inf(1)
	if len(kept) >= 2 {
		totals := make([]float64, len(kept))
		for i, r := range kept {
			totals[i] = r.GrandTotal
		}
		mean, std := stat.MeanStdDev(totals, nil)
		if std > 0 {
			lo, hi = mean-3*std, mean+3*std
		}
	}

	out := make([]CleanOrder, 0, len(kept))
	for _, r := range kept {
		if r.GrandTotal < lo || r.GrandTotal > hi {
			continue
		}
		out = append(out, CleanOrder{
			OrderRecord: r,
			IsWeekend:   p.weekendDays[r.DayOfWeek],
			IsPeakHour:  p.peakHours[r.HourOfDay],
			OrderDate:   r.CreatedAt.Truncate(24 * time.Hour),
		})
	}
	p.log.Info().Int("in", len(records)).Int("out", len(out)).Msg("cleaned order records")
	return out
}

// CleanKitchen drops tickets with missing or non-positive timings, caps
// total time at two hours, clamps queue time at zero and adds flags.
func (p *Processor) CleanKitchen(records []extract.KitchenRecord) []CleanKitchen {
	out := make([]CleanKitchen, 0, len(records))
	for _, r := range records {
		if r.CompletedAt.IsZero() || r.StartedAt.IsZero() {
			continue
		}
		if r.TotalTimeMinutes <= 0 || r.PrepTimeMinutes <= 0 {
			continue
		}
		if r.TotalTimeMinutes > maxTotalTimeMinutes {
			continue
		}
		if r.QueueTimeMinutes < 0 {
			r.QueueTimeMinutes = 0
		}
		out = append(out, CleanKitchen{
			KitchenRecord: r,
			IsWeekend:     p.weekendDays[r.DayOfWeek],
			IsPeakHour:    p.peakHours[r.HourOfDay],
		})
	}
	p.log.Info().Int("in", len(records)).Int("out", len(out)).Msg("cleaned kitchen records")
	return out
}

// CleanCustomers drops customers with no completed orders and resolves the
// RFM inputs. Customers whose last order is unknown get the default
// recency.
func (p *Processor) CleanCustomers(records []extract.CustomerRecord) []CleanCustomer {
	out := make([]CleanCustomer, 0, len(records))
	for _, r := range records {
		if r.TotalOrders <= 0 {
			continue
		}
		if r.CurrentTier == "" {
			r.CurrentTier = "bronze"
		}
		recency := r.DaysSinceLastOrder
		if recency < 0 {
			recency = defaultRecencyDays
		}
		activeDays := r.UniqueOrderDays
		if activeDays < 1 {
			activeDays = 1
		}
		out = append(out, CleanCustomer{
			CustomerRecord: r,
			RecencyDays:    recency,
			Frequency:      r.TotalOrders,
			Monetary:       r.TotalSpent,
			OrderFrequency: float64(r.TotalOrders) / float64(activeDays),
		})
	}
	p.log.Info().Int("in", len(records)).Int("out", len(out)).Msg("cleaned customer records")
	return out
}

// CleanInventory derives the daily consumption rate, a stock status bucket
// and the projected days until stockout for every item.
func (p *Processor) CleanInventory(records []extract.InventoryRecord) []CleanInventory {
	out := make([]CleanInventory, 0, len(records))
	for _, r := range records {
		rate := r.ConsumptionLast30Days / 30

		status := "high"
		switch {
		case r.CurrentStock <= r.MinLevel:
			status = "low"
		case r.CurrentStock <= r.ReorderLevel:
			status = "medium"
		}

		daysOut := math.Inf(1)
		if rate > 0 {
			daysOut = r.CurrentStock / rate
		}

		out = append(out, CleanInventory{
			InventoryRecord:      r,
			DailyConsumptionRate: rate,
			StockStatus:          status,
			DaysUntilStockout:    daysOut,
		})
	}
	p.log.Info().Int("in", len(records)).Int("out", len(out)).Msg("cleaned inventory records")
	return out
}
