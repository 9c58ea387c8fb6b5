package models

import (
	"errors"
	"math"

	"github.com/rs/zerolog"

	"github.com/resto-data/covers.report/internal/features"
	"github.com/resto-data/covers.report/internal/learn"
)

// Demand forecasts hourly order counts with a two-component ensemble: a
// boosted model over lag/calendar features for short-horizon structure and
// a trend/season decomposition for the long horizon. When the trend fit
// fails the model degrades to boosted-only and flags it.
type Demand struct {
	EnsembleWeight float64
	Keys           []string
	Scaler         features.Scaler
	Boost          *learn.GBTRegressor
	Trend          *learn.TrendSeason
	TrendFallback  bool
	IsTrained      bool

	log zerolog.Logger
}

// Bounds is a prediction with its 95% interval.
type Bounds struct {
	Prediction float64 `json:"prediction"`
	Lower      float64 `json:"lower_bound"`
	Upper      float64 `json:"upper_bound"`
}

func NewDemand(ensembleWeight float64, log zerolog.Logger) *Demand {
	return &Demand{
		EnsembleWeight: ensembleWeight,
		Boost: &learn.GBTRegressor{Params: learn.GBTParams{
			NumTrees: 100, MaxDepth: 6, LearningRate: 0.1, Subsample: 0.8, Seed: Seed,
		}},
		log: log,
	}
}

// SetLogger restores the logger after a model is loaded from the registry.
func (d *Demand) SetLogger(log zerolog.Logger) { d.log = log }

func (d *Demand) Task() string { return TaskDemand }

// Train fits both components. The boosted component always trains; a trend
// failure is recorded, not returned.
func (d *Demand) Train(in Instances, y []float64) (Summary, error) {
	if in.Len() == 0 || in.Len() != len(y) {
		return Summary{}, errors.New("demand training data is empty or misaligned")
	}
	if len(in.Times) != in.Len() {
		return Summary{}, errors.New("demand training requires a timestamp per observation")
	}

	d.Keys = features.Keys(in.Vectors)
	if err := d.Scaler.Fit(in.Vectors, d.Keys); err != nil {
		return Summary{}, err
	}
	X, err := features.Materialize(d.Scaler.TransformAll(in.Vectors), d.Keys)
	if err != nil {
		return Summary{}, err
	}
	if err := d.Boost.Fit(X, y); err != nil {
		return Summary{}, err
	}

	trend, err := learn.FitTrendSeason(in.Times, y)
	if err != nil {
		d.log.Warn().Err(err).Msg("trend component failed to fit, using boosted-only demand model")
		d.Trend = nil
		d.TrendFallback = true
	} else {
		d.Trend = trend
		d.TrendFallback = false
	}

	d.IsTrained = true
	return Summary{Task: TaskDemand, Samples: in.Len(), TrendFallback: d.TrendFallback}, nil
}

// Predict returns non-negative hourly order forecasts.
func (d *Demand) Predict(in Instances) ([]float64, error) {
	if !d.IsTrained {
		return nil, &NotTrainedError{Task: TaskDemand}
	}
	if d.Trend != nil && len(in.Times) != in.Len() {
		return nil, errors.New("demand prediction requires a timestamp per observation")
	}

	X, err := features.Materialize(d.Scaler.TransformAll(in.Vectors), d.Keys)
	if err != nil {
		return nil, err
	}

	out := make([]float64, in.Len())
	for i, row := range X {
		p := d.Boost.PredictOne(row)
		if d.Trend != nil {
			p = d.EnsembleWeight*p + (1-d.EnsembleWeight)*d.Trend.Predict(in.Times[i])
		}
		out[i] = p
	}
	return clampNonNegative(out), nil
}

// PredictWithBounds adds a 95% interval: the trend band when the trend
// component is live, otherwise ±20% of the point forecast.
func (d *Demand) PredictWithBounds(in Instances) ([]Bounds, error) {
	preds, err := d.Predict(in)
	if err != nil {
		return nil, err
	}
	out := make([]Bounds, len(preds))
	for i, p := range preds {
		b := Bounds{Prediction: p}
		if d.Trend != nil {
			b.Lower, b.Upper = d.Trend.Band(in.Times[i])
		} else {
			b.Lower = math.Max(p*0.8, 0)
			b.Upper = p * 1.2
		}
		out[i] = b
	}
	return out, nil
}

// Evaluate reports mae, rmse, r2, mape and within_5_orders. The mape
// denominator is y+1 so zero-order hours do not blow it up.
func (d *Demand) Evaluate(in Instances, y []float64) (Metrics, error) {
	preds, err := d.Predict(in)
	if err != nil {
		return nil, err
	}

	var mapeSum float64
	for i := range preds {
		mapeSum += math.Abs((y[i] - preds[i]) / (y[i] + 1))
	}
	mape := mapeSum / float64(len(preds)) * 100

	return Metrics{
		"mae":             round2(learn.MAE(preds, y)),
		"rmse":            round2(learn.RMSE(preds, y)),
		"r2":              round4(learn.R2(preds, y)),
		"mape":            round2(mape),
		"within_5_orders": round2(learn.WithinTolerance(preds, y, 5) * 100),
	}, nil
}

// FeatureImportance reports the boosted component's normalized gains.
func (d *Demand) FeatureImportance() (map[string]float64, error) {
	if !d.IsTrained {
		return nil, &NotTrainedError{Task: TaskDemand}
	}
	return importanceMap(d.Keys, d.Boost.Importance()), nil
}
