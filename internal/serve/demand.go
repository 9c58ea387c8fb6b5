package serve

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/resto-data/covers.report/internal/config"
	"github.com/resto-data/covers.report/internal/dataset"
	"github.com/resto-data/covers.report/internal/features"
	"github.com/resto-data/covers.report/internal/models"
	"github.com/resto-data/covers.report/internal/timeutil"
)

// HourlyForecast is one forecast hour.
type HourlyForecast struct {
	Timestamp       time.Time `json:"timestamp"`
	Hour            int       `json:"hour"`
	PredictedOrders int       `json:"predicted_orders"`
	Lower           float64   `json:"lower_bound"`
	Upper           float64   `json:"upper_bound"`
}

// DailyForecast is one forecast day with its hourly breakdown.
type DailyForecast struct {
	Date            time.Time `json:"date"`
	DayOfWeek       string    `json:"day_of_week"`
	PredictedOrders int       `json:"predicted_orders"`
	HourlyBreakdown [24]int   `json:"hourly_breakdown"`
}

// PeakDay lists the busiest forecast hours of one day.
type PeakDay struct {
	Date      time.Time  `json:"date"`
	PeakHours []PeakHour `json:"peak_hours"`
}

// PeakHour is one of a day's top forecast hours.
type PeakHour struct {
	Hour            int `json:"hour"`
	PredictedOrders int `json:"predicted_orders"`
}

// DemandService forecasts order volume from the latest demand model.
type DemandService struct {
	restaurantID int64
	model        *models.Demand
	version      string
	store        Store
	processor    *dataset.Processor
	engineer     *features.Engineer
	historyDays  int
	clock        timeutil.Clock
	log          zerolog.Logger
}

func NewDemandService(cfg *config.Config, store Store, source ModelSource, restaurantID int64, clock timeutil.Clock, log zerolog.Logger) (*DemandService, error) {
	model, version, err := loadAs[*models.Demand](source, models.TaskDemand, restaurantID)
	if err != nil {
		return nil, err
	}
	model.SetLogger(log)
	log.Info().Str("version", version).Int64("restaurant_id", restaurantID).Msg("loaded demand model")
	return &DemandService{
		restaurantID: restaurantID,
		model:        model,
		version:      version,
		store:        store,
		processor:    dataset.NewProcessor(cfg, clock, log),
		engineer:     features.NewEngineer(cfg),
		historyDays:  cfg.Training.DemandWindowDays,
		clock:        clock,
		log:          log,
	}, nil
}

// Version reports the loaded model version.
func (s *DemandService) Version() string { return s.version }

func (s *DemandService) history(ctx context.Context) ([]dataset.CleanOrder, error) {
	end := s.clock.Now().UTC()
	raw, err := s.store.Orders(ctx, s.restaurantID, end.AddDate(0, 0, -s.historyDays), end)
	if err != nil {
		return nil, err
	}
	return s.processor.CleanOrders(raw), nil
}

func (s *DemandService) forecastHour(orders []dataset.CleanOrder, target time.Time) (HourlyForecast, error) {
	in := models.Instances{
		Vectors: []features.Vector{s.engineer.Demand(orders, target)},
		Times:   []time.Time{target},
	}
	bounds, err := s.model.PredictWithBounds(in)
	if err != nil {
		return HourlyForecast{}, err
	}
	b := bounds[0]
	orderCount := int(b.Prediction)
	if orderCount < 0 {
		orderCount = 0
	}
	return HourlyForecast{
		Timestamp:       target,
		Hour:            target.Hour(),
		PredictedOrders: orderCount,
		Lower:           round1(b.Lower),
		Upper:           round1(b.Upper),
	}, nil
}

// PredictHourly forecasts the next hoursAhead hours starting at the
// current hour.
func (s *DemandService) PredictHourly(ctx context.Context, hoursAhead int) ([]HourlyForecast, error) {
	orders, err := s.history(ctx)
	if err != nil {
		return nil, err
	}

	start := s.clock.Now().UTC().Truncate(time.Hour)
	out := make([]HourlyForecast, 0, hoursAhead)
	for i := 0; i < hoursAhead; i++ {
		f, err := s.forecastHour(orders, start.Add(time.Duration(i)*time.Hour))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// PredictDaily forecasts the next daysAhead days, each with a 24-hour
// breakdown. The first day is today from midnight.
func (s *DemandService) PredictDaily(ctx context.Context, daysAhead int) ([]DailyForecast, error) {
	orders, err := s.history(ctx)
	if err != nil {
		return nil, err
	}

	start := s.clock.Now().UTC().Truncate(24 * time.Hour)
	out := make([]DailyForecast, 0, daysAhead)
	for d := 0; d < daysAhead; d++ {
		date := start.AddDate(0, 0, d)
		day := DailyForecast{Date: date, DayOfWeek: date.Weekday().String()}
		for hour := 0; hour < 24; hour++ {
			f, err := s.forecastHour(orders, date.Add(time.Duration(hour)*time.Hour))
			if err != nil {
				return nil, err
			}
			day.HourlyBreakdown[hour] = f.PredictedOrders
			day.PredictedOrders += f.PredictedOrders
		}
		out = append(out, day)
	}
	return out, nil
}

// PeakHours reports the three busiest forecast hours for each of the next
// daysAhead days.
func (s *DemandService) PeakHours(ctx context.Context, daysAhead int) ([]PeakDay, error) {
	days, err := s.PredictDaily(ctx, daysAhead)
	if err != nil {
		return nil, err
	}

	out := make([]PeakDay, 0, len(days))
	for _, day := range days {
		peaks := make([]PeakHour, 0, 24)
		for hour, n := range day.HourlyBreakdown {
			peaks = append(peaks, PeakHour{Hour: hour, PredictedOrders: n})
		}
		// Stable so ties resolve to the earlier hour.
		sort.SliceStable(peaks, func(i, j int) bool {
			return peaks[i].PredictedOrders > peaks[j].PredictedOrders
		})
		out = append(out, PeakDay{Date: day.Date, PeakHours: peaks[:3]})
	}
	return out, nil
}
