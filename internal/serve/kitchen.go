package serve

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/resto-data/covers.report/internal/config"
	"github.com/resto-data/covers.report/internal/dataset"
	"github.com/resto-data/covers.report/internal/features"
	"github.com/resto-data/covers.report/internal/learn"
	"github.com/resto-data/covers.report/internal/models"
	"github.com/resto-data/covers.report/internal/timeutil"
)

// PrepEstimate is a prep-time prediction for one (station, item) pair.
type PrepEstimate struct {
	StationID        int64   `json:"station_id"`
	MenuItemID       int64   `json:"menu_item_id"`
	PredictedMinutes float64 `json:"predicted_prep_time_minutes"`
	LowerMinutes     float64 `json:"lower_bound_minutes"`
	UpperMinutes     float64 `json:"upper_bound_minutes"`
}

// BatchItem identifies one line of a batch prediction request.
type BatchItem struct {
	StationID  int64 `json:"station_id"`
	MenuItemID int64 `json:"menu_item_id"`
}

// BatchEstimate is the batch prediction result. Stations work in parallel,
// so the total is the slowest item, not the sum.
type BatchEstimate struct {
	BatchSize          int            `json:"batch_size"`
	Items              []PrepEstimate `json:"item_predictions"`
	EstimatedTotalTime float64        `json:"estimated_total_time_minutes"`
}

// SlowItem is a menu item whose prep time sits above a station's
// bottleneck threshold.
type SlowItem struct {
	MenuItemID  int64   `json:"menu_item_id"`
	AvgPrepTime float64 `json:"avg_prep_time"`
	Occurrences int     `json:"occurrences"`
}

// Bottleneck is a station with items past its threshold percentile.
type Bottleneck struct {
	StationID   int64      `json:"station_id"`
	StationName string     `json:"station_name"`
	AvgPrepTime float64    `json:"avg_prep_time"`
	Threshold   float64    `json:"bottleneck_threshold"`
	SlowItems   []SlowItem `json:"slow_items"`
}

// StationStats summarizes one station's historical prep times.
type StationStats struct {
	StationID     int64   `json:"station_id"`
	StationName   string  `json:"station_name"`
	ItemsPrepared int     `json:"total_items_prepared"`
	AvgMinutes    float64 `json:"avg_prep_time_minutes"`
	MedianMinutes float64 `json:"median_prep_time_minutes"`
	StdDevMinutes float64 `json:"std_dev_prep_time"`
	MinMinutes    float64 `json:"min_prep_time"`
	MaxMinutes    float64 `json:"max_prep_time"`
	Within5MinPct float64 `json:"within_5_min_pct"`
}

// KitchenService estimates prep times from the latest kitchen model.
type KitchenService struct {
	restaurantID int64
	model        *models.Kitchen
	version      string
	store        Store
	processor    *dataset.Processor
	engineer     *features.Engineer
	historyDays  int
	clock        timeutil.Clock
	log          zerolog.Logger
}

func NewKitchenService(cfg *config.Config, store Store, source ModelSource, restaurantID int64, clock timeutil.Clock, log zerolog.Logger) (*KitchenService, error) {
	model, version, err := loadAs[*models.Kitchen](source, models.TaskKitchen, restaurantID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("version", version).Int64("restaurant_id", restaurantID).Msg("loaded kitchen model")
	return &KitchenService{
		restaurantID: restaurantID,
		model:        model,
		version:      version,
		store:        store,
		processor:    dataset.NewProcessor(cfg, clock, log),
		engineer:     features.NewEngineer(cfg),
		historyDays:  cfg.Training.KitchenWindowDays,
		clock:        clock,
		log:          log,
	}, nil
}

func (s *KitchenService) Version() string { return s.version }

func (s *KitchenService) history(ctx context.Context) ([]dataset.CleanKitchen, error) {
	end := s.clock.Now().UTC()
	raw, err := s.store.Kitchen(ctx, s.restaurantID, end.AddDate(0, 0, -s.historyDays), end)
	if err != nil {
		return nil, err
	}
	return s.processor.CleanKitchen(raw), nil
}

func (s *KitchenService) estimate(history []dataset.CleanKitchen, stationID, menuItemID int64) (PrepEstimate, error) {
	in := models.Instances{Vectors: []features.Vector{s.engineer.Kitchen(history, stationID, menuItemID)}}
	bounds, err := s.model.PredictWithConfidence(in)
	if err != nil {
		return PrepEstimate{}, err
	}
	b := bounds[0]
	return PrepEstimate{
		StationID:        stationID,
		MenuItemID:       menuItemID,
		PredictedMinutes: round1(b.Prediction),
		LowerMinutes:     round1(b.Lower),
		UpperMinutes:     round1(b.Upper),
	}, nil
}

// PredictPrepTime estimates how long menuItemID takes at stationID.
func (s *KitchenService) PredictPrepTime(ctx context.Context, stationID, menuItemID int64) (PrepEstimate, error) {
	history, err := s.history(ctx)
	if err != nil {
		return PrepEstimate{}, err
	}
	return s.estimate(history, stationID, menuItemID)
}

// PredictBatch estimates each item and aggregates to the batch total as
// the maximum individual prediction.
func (s *KitchenService) PredictBatch(ctx context.Context, items []BatchItem) (BatchEstimate, error) {
	history, err := s.history(ctx)
	if err != nil {
		return BatchEstimate{}, err
	}

	out := BatchEstimate{BatchSize: len(items)}
	for _, item := range items {
		est, err := s.estimate(history, item.StationID, item.MenuItemID)
		if err != nil {
			return BatchEstimate{}, err
		}
		out.Items = append(out.Items, est)
		if est.PredictedMinutes > out.EstimatedTotalTime {
			out.EstimatedTotalTime = est.PredictedMinutes
		}
	}
	return out, nil
}

// IdentifyBottlenecks flags, per station, the menu items whose prep times
// sit above the station's thresholdPercentile.
func (s *KitchenService) IdentifyBottlenecks(ctx context.Context, thresholdPercentile float64) ([]Bottleneck, error) {
	history, err := s.history(ctx)
	if err != nil {
		return nil, err
	}

	byStation := groupByStation(history)
	out := make([]Bottleneck, 0, len(byStation))
	for _, stationID := range sortedStationIDs(byStation) {
		tickets := byStation[stationID]

		prepTimes := make([]float64, len(tickets))
		for i, t := range tickets {
			prepTimes[i] = t.PrepTimeMinutes
		}
		threshold := learn.Percentile(prepTimes, thresholdPercentile)

		type agg struct {
			total float64
			count int
		}
		slow := make(map[int64]*agg)
		for _, t := range tickets {
			if t.PrepTimeMinutes <= threshold {
				continue
			}
			a := slow[t.MenuItemID]
			if a == nil {
				a = &agg{}
				slow[t.MenuItemID] = a
			}
			a.total += t.PrepTimeMinutes
			a.count++
		}
		if len(slow) == 0 {
			continue
		}

		items := make([]SlowItem, 0, len(slow))
		for id, a := range slow {
			items = append(items, SlowItem{
				MenuItemID:  id,
				AvgPrepTime: round1(a.total / float64(a.count)),
				Occurrences: a.count,
			})
		}
		sort.Slice(items, func(i, j int) bool { return items[i].MenuItemID < items[j].MenuItemID })

		out = append(out, Bottleneck{
			StationID:   stationID,
			StationName: tickets[0].StationName,
			AvgPrepTime: round1(stat.Mean(prepTimes, nil)),
			Threshold:   round1(threshold),
			SlowItems:   items,
		})
	}
	return out, nil
}

// StationPerformance summarizes historical prep times per station.
func (s *KitchenService) StationPerformance(ctx context.Context) ([]StationStats, error) {
	history, err := s.history(ctx)
	if err != nil {
		return nil, err
	}

	byStation := groupByStation(history)
	out := make([]StationStats, 0, len(byStation))
	for _, stationID := range sortedStationIDs(byStation) {
		tickets := byStation[stationID]

		prepTimes := make([]float64, len(tickets))
		var within5 int
		for i, t := range tickets {
			prepTimes[i] = t.PrepTimeMinutes
			if t.PrepTimeMinutes <= 5 {
				within5++
			}
		}
		sorted := append([]float64(nil), prepTimes...)
		sort.Float64s(sorted)

		std := 0.0
		if len(prepTimes) >= 2 {
			std = stat.StdDev(prepTimes, nil)
		}
		out = append(out, StationStats{
			StationID:     stationID,
			StationName:   tickets[0].StationName,
			ItemsPrepared: len(tickets),
			AvgMinutes:    round1(stat.Mean(prepTimes, nil)),
			MedianMinutes: round1(learn.Percentile(prepTimes, 50)),
			StdDevMinutes: round1(std),
			MinMinutes:    round1(sorted[0]),
			MaxMinutes:    round1(sorted[len(sorted)-1]),
			Within5MinPct: round1(float64(within5) / float64(len(tickets)) * 100),
		})
	}
	return out, nil
}

func groupByStation(history []dataset.CleanKitchen) map[int64][]dataset.CleanKitchen {
	byStation := make(map[int64][]dataset.CleanKitchen)
	for _, t := range history {
		byStation[t.StationID] = append(byStation[t.StationID], t)
	}
	return byStation
}

func sortedStationIDs(byStation map[int64][]dataset.CleanKitchen) []int64 {
	ids := make([]int64, 0, len(byStation))
	for id := range byStation {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
