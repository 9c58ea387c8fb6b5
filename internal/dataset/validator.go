package dataset

import (
	"fmt"

	"github.com/resto-data/covers.report/internal/extract"
	"github.com/resto-data/covers.report/internal/timeutil"
)

// Report summarizes quality issues found in an extracted batch. A report
// with issues is still usable data; callers decide whether to proceed.
type Report struct {
	Valid       bool     `json:"valid"`
	Issues      []string `json:"issues"`
	RecordCount int      `json:"record_count"`
}

func newReport(count int, issues []string) Report {
	return Report{Valid: len(issues) == 0, Issues: issues, RecordCount: count}
}

// Validator checks extracted batches for quality problems without
// modifying them.
type Validator struct {
	clock timeutil.Clock
}

func NewValidator(clock timeutil.Clock) *Validator {
	return &Validator{clock: clock}
}

// ValidateOrders checks order records for missing identifiers, negative
// totals and timestamps in the future.
func (v *Validator) ValidateOrders(records []extract.OrderRecord) Report {
	var issues []string
	now := v.clock.Now().UTC()

	var missingID, negative, future int
	for _, r := range records {
		if r.OrderID == 0 || r.RestaurantID == 0 || r.CreatedAt.IsZero() {
			missingID++
		}
		if r.GrandTotal < 0 {
			negative++
		}
		if r.CreatedAt.After(now) {
			future++
		}
	}
	if missingID > 0 {
		issues = append(issues, fmt.Sprintf("%d records missing required fields", missingID))
	}
	if negative > 0 {
		issues = append(issues, fmt.Sprintf("%d records with negative grand_total", negative))
	}
	if future > 0 {
		issues = append(issues, fmt.Sprintf("%d records with created_at in the future", future))
	}
	return newReport(len(records), issues)
}

// ValidateKitchen checks kitchen records for missing timing fields and
// negative prep times.
func (v *Validator) ValidateKitchen(records []extract.KitchenRecord) Report {
	var issues []string

	var missing, negative int
	for _, r := range records {
		if r.StationID == 0 || r.AssignedAt.IsZero() || r.CompletedAt.IsZero() {
			missing++
		}
		if r.PrepTimeMinutes < 0 {
			negative++
		}
	}
	if missing > 0 {
		issues = append(issues, fmt.Sprintf("%d records missing station or timing fields", missing))
	}
	if negative > 0 {
		issues = append(issues, fmt.Sprintf("%d records with negative prep_time_minutes", negative))
	}
	return newReport(len(records), issues)
}

// ValidateCustomers checks customer records for missing identifiers and
// negative aggregates.
func (v *Validator) ValidateCustomers(records []extract.CustomerRecord) Report {
	var issues []string

	var missing, negOrders, negSpent int
	for _, r := range records {
		if r.CustomerID == 0 {
			missing++
		}
		if r.TotalOrders < 0 {
			negOrders++
		}
		if r.TotalSpent < 0 {
			negSpent++
		}
	}
	if missing > 0 {
		issues = append(issues, fmt.Sprintf("%d records missing customer_id", missing))
	}
	if negOrders > 0 {
		issues = append(issues, fmt.Sprintf("%d records with negative total_orders", negOrders))
	}
	if negSpent > 0 {
		issues = append(issues, fmt.Sprintf("%d records with negative total_spent", negSpent))
	}
	return newReport(len(records), issues)
}

// ValidateInventory checks inventory records for missing identifiers and
// negative stock levels.
func (v *Validator) ValidateInventory(records []extract.InventoryRecord) Report {
	var issues []string

	var missing, negStock int
	for _, r := range records {
		if r.ItemID == 0 {
			missing++
		}
		if r.CurrentStock < 0 {
			negStock++
		}
	}
	if missing > 0 {
		issues = append(issues, fmt.Sprintf("%d records missing item_id", missing))
	}
	if negStock > 0 {
		issues = append(issues, fmt.Sprintf("%d records with negative current_stock", negStock))
	}
	return newReport(len(records), issues)
}
