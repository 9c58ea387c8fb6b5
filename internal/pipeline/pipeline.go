// Package pipeline orchestrates training: extract, validate, clean,
// featurize, fit, evaluate, persist. Each task produces a Result; TrainAll
// runs the five tasks and isolates failures so one broken task never
// blocks the rest.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/resto-data/covers.report/internal/config"
	"github.com/resto-data/covers.report/internal/dataset"
	"github.com/resto-data/covers.report/internal/extract"
	"github.com/resto-data/covers.report/internal/features"
	"github.com/resto-data/covers.report/internal/models"
	"github.com/resto-data/covers.report/internal/timeutil"
)

// Store is the slice of the extractor the pipeline needs.
type Store interface {
	Orders(ctx context.Context, restaurantID int64, start, end time.Time) ([]extract.OrderRecord, error)
	Kitchen(ctx context.Context, restaurantID int64, start, end time.Time) ([]extract.KitchenRecord, error)
	Customers(ctx context.Context, restaurantID int64) ([]extract.CustomerRecord, error)
	Inventory(ctx context.Context, restaurantID int64) ([]extract.InventoryRecord, error)
}

// ModelStore is the slice of the registry the pipeline needs.
type ModelStore interface {
	Save(task string, restaurantID int64, model models.Model, metrics models.Metrics) (string, error)
}

// Result reports one task's training run.
type Result struct {
	RunID         string         `json:"run_id"`
	RestaurantID  int64          `json:"restaurant_id"`
	ModelType     string         `json:"model_type"`
	Status        string         `json:"status"`
	Version       string         `json:"version,omitempty"`
	Metrics       models.Metrics `json:"metrics,omitempty"`
	Samples       int            `json:"samples"`
	Error         string         `json:"error,omitempty"`
	ChurnRate     float64        `json:"churn_rate,omitempty"`
	AvgLTV        float64        `json:"avg_ltv,omitempty"`
	TrendFallback bool           `json:"trend_fallback,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// AllResults is the TrainAll report.
type AllResults struct {
	RestaurantID int64             `json:"restaurant_id"`
	StartedAt    time.Time         `json:"started_at"`
	Models       map[string]Result `json:"models"`
	Total        int               `json:"total"`
	Successful   int               `json:"successful"`
	Failed       int               `json:"failed"`
}

// Pipeline trains all five models for one restaurant.
type Pipeline struct {
	cfg       *config.Config
	store     Store
	registry  ModelStore
	processor *dataset.Processor
	validator *dataset.Validator
	engineer  *features.Engineer
	clock     timeutil.Clock
	log       zerolog.Logger
}

func New(cfg *config.Config, store Store, registry ModelStore, clock timeutil.Clock, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     store,
		registry:  registry,
		processor: dataset.NewProcessor(cfg, clock, log),
		validator: dataset.NewValidator(clock),
		engineer:  features.NewEngineer(cfg),
		clock:     clock,
		log:       log,
	}
}

func (p *Pipeline) newResult(restaurantID int64, task string) Result {
	return Result{RunID: uuid.NewString(), RestaurantID: restaurantID, ModelType: task}
}

func (p *Pipeline) fail(r Result, err error) Result {
	r.Status = StatusError
	r.Error = err.Error()
	p.log.Error().Err(err).Str("task", r.ModelType).Int64("restaurant_id", r.RestaurantID).Msg("training failed")
	return r
}

// TrainDemand builds an hourly order-count series over the demand window
// and fits the demand ensemble on a time-ordered split.
func (p *Pipeline) TrainDemand(ctx context.Context, restaurantID int64) Result {
	result := p.newResult(restaurantID, models.TaskDemand)

	end := p.clock.Now().UTC()
	start := end.AddDate(0, 0, -p.cfg.Training.DemandWindowDays)
	raw, err := p.store.Orders(ctx, restaurantID, start, end)
	if err != nil {
		return p.fail(result, err)
	}
	if report := p.validator.ValidateOrders(raw); !report.Valid {
		return p.fail(result, fmt.Errorf("order validation failed: %v", report.Issues))
	}

	orders := p.processor.CleanOrders(raw)
	if len(orders) == 0 {
		return p.fail(result, fmt.Errorf("no usable orders in the last %d days", p.cfg.Training.DemandWindowDays))
	}

	// One observation per hour between the first and last cleaned order.
	first, last := orders[0].CreatedAt, orders[0].CreatedAt
	for _, o := range orders[1:] {
		if o.CreatedAt.Before(first) {
			first = o.CreatedAt
		}
		if o.CreatedAt.After(last) {
			last = o.CreatedAt
		}
	}
	counts := make(map[time.Time]float64)
	for _, o := range orders {
		counts[o.CreatedAt.Truncate(time.Hour)]++
	}

	var in models.Instances
	var y []float64
	for ts := first.Truncate(time.Hour); !ts.After(last); ts = ts.Add(time.Hour) {
		in.Vectors = append(in.Vectors, p.engineer.Demand(orders, ts))
		in.Times = append(in.Times, ts)
		y = append(y, counts[ts])
	}
	result.Samples = len(y)

	trainIn, trainY, testIn, testY := splitOrdered(in, y, p.cfg.Training.TestSplit)

	model := models.NewDemand(p.cfg.Training.EnsembleWeight, p.log)
	summary, err := model.Train(trainIn, trainY)
	if err != nil {
		return p.fail(result, err)
	}
	result.TrendFallback = summary.TrendFallback

	metrics, err := model.Evaluate(testIn, testY)
	if err != nil {
		return p.fail(result, err)
	}

	version, err := p.registry.Save(models.TaskDemand, restaurantID, model, metrics)
	if err != nil {
		return p.fail(result, err)
	}

	result.Status = StatusSuccess
	result.Version = version
	result.Metrics = metrics
	return result
}

// TrainKitchen fits the prep-time model over the kitchen window with a
// time-ordered split.
func (p *Pipeline) TrainKitchen(ctx context.Context, restaurantID int64) Result {
	result := p.newResult(restaurantID, models.TaskKitchen)

	end := p.clock.Now().UTC()
	start := end.AddDate(0, 0, -p.cfg.Training.KitchenWindowDays)
	raw, err := p.store.Kitchen(ctx, restaurantID, start, end)
	if err != nil {
		return p.fail(result, err)
	}
	if report := p.validator.ValidateKitchen(raw); !report.Valid {
		return p.fail(result, fmt.Errorf("kitchen validation failed: %v", report.Issues))
	}

	tickets := p.processor.CleanKitchen(raw)
	if len(tickets) == 0 {
		return p.fail(result, fmt.Errorf("no usable kitchen tickets in the last %d days", p.cfg.Training.KitchenWindowDays))
	}

	var in models.Instances
	var y []float64
	for _, ticket := range tickets {
		in.Vectors = append(in.Vectors, p.engineer.Kitchen(tickets, ticket.StationID, ticket.MenuItemID))
		y = append(y, ticket.PrepTimeMinutes)
	}
	result.Samples = len(y)

	trainIn, trainY, testIn, testY := splitOrdered(in, y, p.cfg.Training.TestSplit)

	model := models.NewKitchen()
	if _, err := model.Train(trainIn, trainY); err != nil {
		return p.fail(result, err)
	}
	metrics, err := model.Evaluate(testIn, testY)
	if err != nil {
		return p.fail(result, err)
	}

	version, err := p.registry.Save(models.TaskKitchen, restaurantID, model, metrics)
	if err != nil {
		return p.fail(result, err)
	}

	result.Status = StatusSuccess
	result.Version = version
	result.Metrics = metrics
	return result
}

// TrainChurn labels customers churned when their recency exceeds the
// configured threshold, then fits the weighted classifier. The label is
// built here, not in the model.
func (p *Pipeline) TrainChurn(ctx context.Context, restaurantID int64) Result {
	result := p.newResult(restaurantID, models.TaskChurn)

	customers, err := p.customerInstances(ctx, restaurantID)
	if err != nil {
		return p.fail(result, err)
	}

	threshold := float64(p.cfg.Training.ChurnThresholdDays)
	var in models.Instances
	var y []float64
	var churned float64
	for _, c := range customers {
		in.Vectors = append(in.Vectors, p.engineer.Customer(c))
		if c.RecencyDays > threshold {
			y = append(y, 1)
			churned++
		} else {
			y = append(y, 0)
		}
	}
	result.Samples = len(y)
	result.ChurnRate = roundRate(churned / float64(len(y)) * 100)

	trainIn, trainY, testIn, testY := splitOrdered(in, y, p.cfg.Training.TestSplit)

	model := models.NewChurn(0.5)
	if _, err := model.Train(trainIn, trainY); err != nil {
		return p.fail(result, err)
	}
	metrics, err := model.Evaluate(testIn, testY)
	if err != nil {
		return p.fail(result, err)
	}

	version, err := p.registry.Save(models.TaskChurn, restaurantID, model, metrics)
	if err != nil {
		return p.fail(result, err)
	}

	result.Status = StatusSuccess
	result.Version = version
	result.Metrics = metrics
	return result
}

// TrainLTV fits the lifetime-value forest. The target is lifetime spend
// to date.
func (p *Pipeline) TrainLTV(ctx context.Context, restaurantID int64) Result {
	result := p.newResult(restaurantID, models.TaskLTV)

	customers, err := p.customerInstances(ctx, restaurantID)
	if err != nil {
		return p.fail(result, err)
	}

	var in models.Instances
	var y []float64
	var total float64
	for _, c := range customers {
		in.Vectors = append(in.Vectors, p.engineer.Customer(c))
		y = append(y, c.TotalSpent)
		total += c.TotalSpent
	}
	result.Samples = len(y)
	result.AvgLTV = roundRate(total / float64(len(y)))

	trainIn, trainY, testIn, testY := splitOrdered(in, y, p.cfg.Training.TestSplit)

	model := models.NewLTV()
	if _, err := model.Train(trainIn, trainY); err != nil {
		return p.fail(result, err)
	}
	metrics, err := model.Evaluate(testIn, testY)
	if err != nil {
		return p.fail(result, err)
	}

	version, err := p.registry.Save(models.TaskLTV, restaurantID, model, metrics)
	if err != nil {
		return p.fail(result, err)
	}

	result.Status = StatusSuccess
	result.Version = version
	result.Metrics = metrics
	return result
}

func (p *Pipeline) customerInstances(ctx context.Context, restaurantID int64) ([]dataset.CleanCustomer, error) {
	raw, err := p.store.Customers(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if report := p.validator.ValidateCustomers(raw); !report.Valid {
		return nil, fmt.Errorf("customer validation failed: %v", report.Issues)
	}
	customers := p.processor.CleanCustomers(raw)
	if len(customers) == 0 {
		return nil, fmt.Errorf("no customers with order history")
	}
	return customers, nil
}

// TrainInventory validates the inventory history and stores the
// deterministic optimization model.
func (p *Pipeline) TrainInventory(ctx context.Context, restaurantID int64) Result {
	result := p.newResult(restaurantID, models.TaskInventory)

	raw, err := p.store.Inventory(ctx, restaurantID)
	if err != nil {
		return p.fail(result, err)
	}
	if report := p.validator.ValidateInventory(raw); !report.Valid {
		return p.fail(result, fmt.Errorf("inventory validation failed: %v", report.Issues))
	}

	items := p.processor.CleanInventory(raw)
	var in models.Instances
	for _, item := range items {
		in.Vectors = append(in.Vectors, p.engineer.Inventory(item))
	}
	result.Samples = in.Len()

	model := models.NewInventory(
		p.cfg.Inventory.HoldingCostPerUnitPerDay,
		p.cfg.Inventory.StockoutCostPerUnit,
		p.cfg.Inventory.ServiceLevel,
		float64(p.cfg.Inventory.DefaultLeadTimeDays),
	)
	if _, err := model.Train(in, nil); err != nil {
		return p.fail(result, err)
	}

	version, err := p.registry.Save(models.TaskInventory, restaurantID, model, models.Metrics{})
	if err != nil {
		return p.fail(result, err)
	}

	result.Status = StatusSuccess
	result.Version = version
	result.Metrics = models.Metrics{}
	return result
}

// TrainAll runs all five tasks in sequence. A task failure is captured in
// its Result; the remaining tasks still run.
func (p *Pipeline) TrainAll(ctx context.Context, restaurantID int64) AllResults {
	started := p.clock.Now().UTC()
	p.log.Info().Int64("restaurant_id", restaurantID).Msg("training all models")

	results := map[string]Result{
		models.TaskDemand:    p.TrainDemand(ctx, restaurantID),
		models.TaskKitchen:   p.TrainKitchen(ctx, restaurantID),
		models.TaskChurn:     p.TrainChurn(ctx, restaurantID),
		models.TaskLTV:       p.TrainLTV(ctx, restaurantID),
		models.TaskInventory: p.TrainInventory(ctx, restaurantID),
	}

	all := AllResults{RestaurantID: restaurantID, StartedAt: started, Models: results, Total: len(results)}
	for _, r := range results {
		if r.Status == StatusSuccess {
			all.Successful++
		} else {
			all.Failed++
		}
	}
	p.log.Info().
		Int("successful", all.Successful).
		Int("failed", all.Failed).
		Msg("training run complete")
	return all
}

// splitOrdered cuts the batch at the (1-testSize) index without shuffling,
// preserving time order for the temporal tasks.
func splitOrdered(in models.Instances, y []float64, testSize float64) (trainIn models.Instances, trainY []float64, testIn models.Instances, testY []float64) {
	split := int(float64(len(y)) * (1 - testSize))
	if split < 1 {
		split = 1
	}
	if split >= len(y) {
		split = len(y) - 1
	}
	if split < 1 {
		// A single observation trains and tests on itself.
		return in, y, in, y
	}

	trainIn = models.Instances{Vectors: in.Vectors[:split]}
	testIn = models.Instances{Vectors: in.Vectors[split:]}
	if len(in.Times) == len(y) {
		trainIn.Times = in.Times[:split]
		testIn.Times = in.Times[split:]
	}
	return trainIn, y[:split], testIn, y[split:]
}

func roundRate(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
