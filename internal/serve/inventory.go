package serve

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/resto-data/covers.report/internal/config"
	"github.com/resto-data/covers.report/internal/dataset"
	"github.com/resto-data/covers.report/internal/models"
	"github.com/resto-data/covers.report/internal/timeutil"
)

// ItemAdvice is the per-item recommendation with its stock context.
type ItemAdvice struct {
	ItemID         int64                 `json:"item_id"`
	ItemName       string                `json:"item_name"`
	CurrentStock   float64               `json:"current_stock"`
	Recommendation models.Recommendation `json:"recommendation"`
}

// BatchAdvice is the whole-inventory recommendation report, most urgent
// first.
type BatchAdvice struct {
	BatchSize     int          `json:"batch_size"`
	Items         []ItemAdvice `json:"recommendations"`
	CriticalCount int          `json:"critical_count"`
	HighCount     int          `json:"high_count"`
}

// InventoryService answers stock questions from the latest inventory
// model.
type InventoryService struct {
	restaurantID int64
	model        *models.Inventory
	version      string
	store        Store
	processor    *dataset.Processor
	log          zerolog.Logger
}

func NewInventoryService(cfg *config.Config, store Store, source ModelSource, restaurantID int64, clock timeutil.Clock, log zerolog.Logger) (*InventoryService, error) {
	model, version, err := loadAs[*models.Inventory](source, models.TaskInventory, restaurantID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("version", version).Int64("restaurant_id", restaurantID).Msg("loaded inventory model")
	return &InventoryService{
		restaurantID: restaurantID,
		model:        model,
		version:      version,
		store:        store,
		processor:    dataset.NewProcessor(cfg, clock, log),
		log:          log,
	}, nil
}

func (s *InventoryService) Version() string { return s.version }

// ReorderPoint computes demand during lead time plus safety stock for the
// given consumption profile.
func (s *InventoryService) ReorderPoint(dailyConsumptionRate, leadTimeDays, consumptionStdDev float64) (models.ReorderAdvice, error) {
	return s.model.ReorderPoint(dailyConsumptionRate, leadTimeDays, consumptionStdDev)
}

// OrderQuantity computes the economic order quantity for the given cost
// profile.
func (s *InventoryService) OrderQuantity(annualDemand, orderCost, holdingCost float64) models.EOQResult {
	return s.model.OrderQuantity(annualDemand, orderCost, holdingCost)
}

// StockForecast projects a stock level daysAhead into the future.
func (s *InventoryService) StockForecast(currentStock, dailyConsumptionRate float64, daysAhead int) models.StockForecast {
	return s.model.ForecastStock(currentStock, dailyConsumptionRate, daysAhead)
}

func (s *InventoryService) items(ctx context.Context) ([]dataset.CleanInventory, error) {
	raw, err := s.store.Inventory(ctx, s.restaurantID)
	if err != nil {
		return nil, err
	}
	return s.processor.CleanInventory(raw), nil
}

func (s *InventoryService) findItem(ctx context.Context, itemID int64) (dataset.CleanInventory, error) {
	items, err := s.items(ctx)
	if err != nil {
		return dataset.CleanInventory{}, err
	}
	for _, item := range items {
		if item.ItemID == itemID {
			return item, nil
		}
	}
	return dataset.CleanInventory{}, fmt.Errorf("inventory item %d not found at restaurant %d", itemID, s.restaurantID)
}

func (s *InventoryService) advise(item dataset.CleanInventory) ItemAdvice {
	// Reorder level doubles as both the reorder trigger and (x2) the
	// stand-in order quantity when no cost profile is configured.
	rec := s.model.Recommend(item.CurrentStock, item.ReorderLevel, item.ReorderLevel*2, item.MinLevel, 0)
	return ItemAdvice{
		ItemID:         item.ItemID,
		ItemName:       item.ItemName,
		CurrentStock:   item.CurrentStock,
		Recommendation: rec,
	}
}

// ItemRecommendation applies the threshold rules to one item's current
// stock position.
func (s *InventoryService) ItemRecommendation(ctx context.Context, itemID int64) (ItemAdvice, error) {
	item, err := s.findItem(ctx, itemID)
	if err != nil {
		return ItemAdvice{}, err
	}
	return s.advise(item), nil
}

// BatchRecommendations advises on every active item, most urgent first.
func (s *InventoryService) BatchRecommendations(ctx context.Context) (BatchAdvice, error) {
	items, err := s.items(ctx)
	if err != nil {
		return BatchAdvice{}, err
	}

	out := BatchAdvice{BatchSize: len(items)}
	for _, item := range items {
		advice := s.advise(item)
		out.Items = append(out.Items, advice)
		switch advice.Recommendation.Urgency {
		case "critical":
			out.CriticalCount++
		case "high":
			out.HighCount++
		}
	}

	rank := map[string]int{"critical": 0, "high": 1, "medium": 2, "low": 3}
	sort.SliceStable(out.Items, func(i, j int) bool {
		return rank[out.Items[i].Recommendation.Urgency] < rank[out.Items[j].Recommendation.Urgency]
	})
	return out, nil
}

// Optimize runs the full cost/forecast/recommendation pass for one item
// using the configured holding cost and the item's average unit cost.
func (s *InventoryService) Optimize(ctx context.Context, itemID int64, orderCost float64) (models.OptimizationReport, error) {
	item, err := s.findItem(ctx, itemID)
	if err != nil {
		return models.OptimizationReport{}, err
	}

	holdingCost := item.AvgUnitCost * s.model.HoldingCostPerUnitPerDay * 365
	if holdingCost <= 0 {
		holdingCost = s.model.HoldingCostPerUnitPerDay * 365
	}
	return s.model.Optimize(item.CurrentStock, item.ReorderLevel, item.DailyConsumptionRate, holdingCost, orderCost)
}
