package models

import (
	"errors"

	"gonum.org/v1/gonum/stat"

	"github.com/resto-data/covers.report/internal/features"
	"github.com/resto-data/covers.report/internal/learn"
)

// Kitchen predicts prep time in minutes for a (station, item) pair.
type Kitchen struct {
	Keys      []string
	Scaler    features.Scaler
	Boost     *learn.GBTRegressor
	IsTrained bool
}

func NewKitchen() *Kitchen {
	return &Kitchen{
		Boost: &learn.GBTRegressor{Params: learn.GBTParams{
			NumTrees: 200, MaxDepth: 8, LearningRate: 0.05, Subsample: 0.8, Seed: Seed,
		}},
	}
}

func (k *Kitchen) Task() string { return TaskKitchen }

func (k *Kitchen) Train(in Instances, y []float64) (Summary, error) {
	if in.Len() == 0 || in.Len() != len(y) {
		return Summary{}, errors.New("kitchen training data is empty or misaligned")
	}
	k.Keys = features.Keys(in.Vectors)
	if err := k.Scaler.Fit(in.Vectors, k.Keys); err != nil {
		return Summary{}, err
	}
	X, err := features.Materialize(k.Scaler.TransformAll(in.Vectors), k.Keys)
	if err != nil {
		return Summary{}, err
	}
	if err := k.Boost.Fit(X, y); err != nil {
		return Summary{}, err
	}
	k.IsTrained = true
	return Summary{Task: TaskKitchen, Samples: in.Len()}, nil
}

// Predict returns non-negative prep-time forecasts in minutes.
func (k *Kitchen) Predict(in Instances) ([]float64, error) {
	if !k.IsTrained {
		return nil, &NotTrainedError{Task: TaskKitchen}
	}
	X, err := features.Materialize(k.Scaler.TransformAll(in.Vectors), k.Keys)
	if err != nil {
		return nil, err
	}
	out := make([]float64, in.Len())
	for i, row := range X {
		out[i] = k.Boost.PredictOne(row)
	}
	return clampNonNegative(out), nil
}

// PredictWithConfidence brackets each prediction with ±1.96 times a spread
// taken as 20% of the batch's prediction standard deviation. This is a
// documented heuristic, not a calibrated interval.
func (k *Kitchen) PredictWithConfidence(in Instances) ([]Bounds, error) {
	preds, err := k.Predict(in)
	if err != nil {
		return nil, err
	}
	spread := 0.0
	if len(preds) >= 2 {
		spread = stat.StdDev(preds, nil) * 0.2
	}
	out := make([]Bounds, len(preds))
	for i, p := range preds {
		lo := p - 1.96*spread
		if lo < 0 {
			lo = 0
		}
		out[i] = Bounds{Prediction: p, Lower: lo, Upper: p + 1.96*spread}
	}
	return out, nil
}

// Evaluate reports mae, rmse, r2 and within_5_minutes.
func (k *Kitchen) Evaluate(in Instances, y []float64) (Metrics, error) {
	preds, err := k.Predict(in)
	if err != nil {
		return nil, err
	}
	return Metrics{
		"mae":              round2(learn.MAE(preds, y)),
		"rmse":             round2(learn.RMSE(preds, y)),
		"r2":               round4(learn.R2(preds, y)),
		"within_5_minutes": round2(learn.WithinTolerance(preds, y, 5) * 100),
	}, nil
}

func (k *Kitchen) FeatureImportance() (map[string]float64, error) {
	if !k.IsTrained {
		return nil, &NotTrainedError{Task: TaskKitchen}
	}
	return importanceMap(k.Keys, k.Boost.Importance()), nil
}
