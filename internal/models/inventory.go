package models

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Stock forecast status labels, ordered from worst to best.
const (
	StockCritical = "critical"
	StockLow      = "low"
	StockMedium   = "medium"
	StockHealthy  = "healthy"
)

// Recommendation actions.
const (
	ActionHold             = "hold"
	ActionReorder          = "reorder"
	ActionEmergencyReorder = "emergency_reorder"
	ActionReduceOrders     = "reduce_orders"
)

// MinTrainingRows is the least history Train accepts.
const MinTrainingRows = 30

// Inventory is the deterministic operations-research model: reorder points
// from safety-stock theory, order quantities from the EOQ closed form, and
// threshold rules for recommendations. Train only validates that enough
// history backs the consumption rates.
type Inventory struct {
	HoldingCostPerUnitPerDay float64
	StockoutCostPerUnit      float64
	ServiceLevel             float64
	DefaultLeadTimeDays      float64
	ZScore                   float64
	IsTrained                bool
}

func NewInventory(holdingCostPerUnitPerDay, stockoutCostPerUnit, serviceLevel, defaultLeadTimeDays float64) *Inventory {
	dist := distuv.Normal{Mu: 0, Sigma: 1}
	return &Inventory{
		HoldingCostPerUnitPerDay: holdingCostPerUnitPerDay,
		StockoutCostPerUnit:      stockoutCostPerUnit,
		ServiceLevel:             serviceLevel,
		DefaultLeadTimeDays:      defaultLeadTimeDays,
		ZScore:                   dist.Quantile(serviceLevel),
	}
}

func (m *Inventory) Task() string { return TaskInventory }

// Train validates the history size. y is ignored; there is nothing to fit.
func (m *Inventory) Train(in Instances, _ []float64) (Summary, error) {
	if in.Len() < MinTrainingRows {
		return Summary{}, fmt.Errorf("need at least %d rows of inventory history, got %d", MinTrainingRows, in.Len())
	}
	m.IsTrained = true
	return Summary{Task: TaskInventory, Samples: in.Len()}, nil
}

// Predict returns the reorder point per item assuming the default lead
// time and no consumption variance. Item-specific calls with an explicit
// spread go through ReorderPoint.
func (m *Inventory) Predict(in Instances) ([]float64, error) {
	if !m.IsTrained {
		return nil, &NotTrainedError{Task: TaskInventory}
	}
	out := make([]float64, in.Len())
	for i, v := range in.Vectors {
		advice := m.reorderPoint(v.Num["daily_consumption_rate"], m.DefaultLeadTimeDays, 0)
		out[i] = advice.ReorderPoint
	}
	return out, nil
}

// Evaluate compares realized stockouts (y as 0/1 per period) against the
// target service level.
func (m *Inventory) Evaluate(in Instances, y []float64) (Metrics, error) {
	if !m.IsTrained {
		return nil, &NotTrainedError{Task: TaskInventory}
	}
	if len(y) == 0 {
		return nil, errors.New("no periods to evaluate")
	}
	var stockouts float64
	for _, v := range y {
		if v > 0.5 {
			stockouts++
		}
	}
	total := float64(len(y))
	return Metrics{
		"actual_service_level": round4(1 - stockouts/total),
		"target_service_level": m.ServiceLevel,
		"stockout_rate":        round2(stockouts / total * 100),
	}, nil
}

// FeatureImportance is empty: the model is a closed-form calculation, not
// a fitted estimator.
func (m *Inventory) FeatureImportance() (map[string]float64, error) {
	if !m.IsTrained {
		return nil, &NotTrainedError{Task: TaskInventory}
	}
	return map[string]float64{}, nil
}

// ReorderAdvice is the output of ReorderPoint.
type ReorderAdvice struct {
	ReorderPoint             float64 `json:"reorder_point"`
	SafetyStock              float64 `json:"safety_stock"`
	AvgDemandDuringLeadTime  float64 `json:"avg_demand_during_lead_time"`
	ServiceLevel             float64 `json:"service_level"`
}

// ReorderPoint computes demand-during-lead-time plus z-scored safety stock.
func (m *Inventory) ReorderPoint(dailyConsumptionRate, leadTimeDays, consumptionStdDev float64) (ReorderAdvice, error) {
	if !m.IsTrained {
		return ReorderAdvice{}, &NotTrainedError{Task: TaskInventory}
	}
	return m.reorderPoint(dailyConsumptionRate, leadTimeDays, consumptionStdDev), nil
}

func (m *Inventory) reorderPoint(rate, leadTime, stdDev float64) ReorderAdvice {
	demandDuringLead := rate * leadTime
	safety := m.SafetyStock(stdDev, leadTime)
	return ReorderAdvice{
		ReorderPoint:            math.Max(demandDuringLead+safety, 0),
		SafetyStock:             safety,
		AvgDemandDuringLeadTime: demandDuringLead,
		ServiceLevel:            m.ServiceLevel,
	}
}

// SafetyStock is z * sigma * sqrt(leadTime), floored at zero.
func (m *Inventory) SafetyStock(consumptionStdDev, leadTimeDays float64) float64 {
	return math.Max(m.ZScore*consumptionStdDev*math.Sqrt(leadTimeDays), 0)
}

// EOQResult is the output of OrderQuantity.
type EOQResult struct {
	OptimalOrderQuantity float64 `json:"optimal_order_quantity"`
	OrdersPerYear        float64 `json:"orders_per_year"`
	AverageInventory     float64 `json:"average_inventory"`
	TotalCost            float64 `json:"total_cost"`
}

// OrderQuantity computes the economic order quantity sqrt(2DS/H). Any
// non-positive input yields the zero result.
func (m *Inventory) OrderQuantity(annualDemand, orderCost, holdingCost float64) EOQResult {
	if annualDemand <= 0 || orderCost <= 0 || holdingCost <= 0 {
		return EOQResult{}
	}
	eoq := math.Sqrt(2 * annualDemand * orderCost / holdingCost)
	ordersPerYear := annualDemand / eoq
	avgInventory := eoq / 2
	return EOQResult{
		OptimalOrderQuantity: math.Max(eoq, 1),
		OrdersPerYear:        math.Max(ordersPerYear, 1),
		AverageInventory:     avgInventory,
		TotalCost:            ordersPerYear*orderCost + avgInventory*holdingCost,
	}
}

// StockForecast is the output of ForecastStock.
type StockForecast struct {
	ProjectedStock    float64 `json:"projected_stock"`
	DaysUntilStockout float64 `json:"days_until_stockout"`
	WillStockout      bool    `json:"will_stockout"`
	Status            string  `json:"stock_status"`
}

// ForecastStock projects the stock level daysAhead into the future at the
// current consumption rate. DaysUntilStockout is +Inf when the rate is
// zero.
func (m *Inventory) ForecastStock(currentStock, dailyConsumptionRate float64, daysAhead int) StockForecast {
	projected := currentStock - dailyConsumptionRate*float64(daysAhead)

	daysOut := math.Inf(1)
	if dailyConsumptionRate > 0 {
		daysOut = currentStock / dailyConsumptionRate
	}

	status := StockHealthy
	switch {
	case projected < 0:
		status = StockCritical
	case projected < dailyConsumptionRate*7:
		status = StockLow
	case projected < dailyConsumptionRate*14:
		status = StockMedium
	}

	return StockForecast{
		ProjectedStock:    math.Max(projected, 0),
		DaysUntilStockout: daysOut,
		WillStockout:      projected < 0,
		Status:            status,
	}
}

// Recommendation is the output of Recommend.
type Recommendation struct {
	Action              string  `json:"action"`
	Urgency             string  `json:"urgency"`
	Reason              string  `json:"reason"`
	RecommendedOrderQty float64 `json:"recommended_order_qty"`
}

// Recommend applies the threshold rules in escalating order: reorder when
// at or below the reorder point, emergency reorder (1.5x EOQ) when at or
// below the minimum level, reduce orders when at or above maxLevel
// (maxLevel <= 0 disables that check).
func (m *Inventory) Recommend(currentStock, reorderPoint, optimalOrderQty, minLevel, maxLevel float64) Recommendation {
	rec := Recommendation{Action: ActionHold, Urgency: "low", Reason: "Stock level is healthy"}

	if currentStock <= reorderPoint {
		rec = Recommendation{
			Action:              ActionReorder,
			Urgency:             "high",
			Reason:              fmt.Sprintf("Stock below reorder point (%.0f)", reorderPoint),
			RecommendedOrderQty: optimalOrderQty,
		}
	}
	if currentStock <= minLevel {
		rec = Recommendation{
			Action:              ActionEmergencyReorder,
			Urgency:             "critical",
			Reason:              fmt.Sprintf("Stock below minimum level (%.0f)", minLevel),
			RecommendedOrderQty: optimalOrderQty * 1.5,
		}
	}
	if maxLevel > 0 && currentStock >= maxLevel {
		rec = Recommendation{
			Action:  ActionReduceOrders,
			Urgency: "medium",
			Reason:  fmt.Sprintf("Stock above maximum level (%.0f)", maxLevel),
		}
	}
	return rec
}

// AnnualHoldingCost for carrying averageInventory of a unit-cost item.
func (m *Inventory) AnnualHoldingCost(averageInventory, unitCost float64) float64 {
	return averageInventory * unitCost * m.HoldingCostPerUnitPerDay * 365
}

// AnnualOrderingCost for meeting annualDemand in orderQuantity-sized
// orders.
func (m *Inventory) AnnualOrderingCost(annualDemand, orderQuantity, costPerOrder float64) float64 {
	if orderQuantity <= 0 {
		return 0
	}
	return annualDemand / orderQuantity * costPerOrder
}

// OptimizationReport is the combined output of Optimize.
type OptimizationReport struct {
	EOQ                float64        `json:"eoq"`
	ReorderPoint       float64        `json:"reorder_point"`
	AnnualDemand       float64        `json:"annual_demand"`
	HoldingCostAnnual  float64        `json:"holding_cost_annual"`
	OrderingCostAnnual float64        `json:"ordering_cost_annual"`
	TotalCostAnnual    float64        `json:"total_cost_annual"`
	Forecast           StockForecast  `json:"forecast"`
	Recommendation     Recommendation `json:"recommendations"`
}

// Optimize runs the full per-item pass: EOQ, annual costs, a 30-day stock
// forecast and a recommendation.
func (m *Inventory) Optimize(currentStock, reorderPoint, dailyConsumptionRate, holdingCost, orderCost float64) (OptimizationReport, error) {
	if !m.IsTrained {
		return OptimizationReport{}, &NotTrainedError{Task: TaskInventory}
	}
	annualDemand := dailyConsumptionRate * 365
	eoq := m.OrderQuantity(annualDemand, orderCost, holdingCost)
	holdingAnnual := m.AnnualHoldingCost(eoq.AverageInventory, holdingCost)
	orderingAnnual := m.AnnualOrderingCost(annualDemand, eoq.OptimalOrderQuantity, orderCost)

	return OptimizationReport{
		EOQ:                eoq.OptimalOrderQuantity,
		ReorderPoint:       reorderPoint,
		AnnualDemand:       annualDemand,
		HoldingCostAnnual:  holdingAnnual,
		OrderingCostAnnual: orderingAnnual,
		TotalCostAnnual:    holdingAnnual + orderingAnnual,
		Forecast:           m.ForecastStock(currentStock, dailyConsumptionRate, 30),
		Recommendation:     m.Recommend(currentStock, reorderPoint, eoq.OptimalOrderQuantity, 0, 0),
	}, nil
}
