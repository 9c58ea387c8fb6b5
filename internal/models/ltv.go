package models

import (
	"errors"

	"gonum.org/v1/gonum/stat"

	"github.com/resto-data/covers.report/internal/features"
	"github.com/resto-data/covers.report/internal/learn"
)

// LTV segment labels.
const (
	ValueLow    = "low_value"
	ValueMedium = "medium_value"
	ValueHigh   = "high_value"
)

// LTV predicts customer lifetime value with a random forest. The training
// target is lifetime spend to date, which makes this a descriptive score
// for ranking customers rather than a forward-looking estimate.
type LTV struct {
	Keys      []string
	Scaler    features.Scaler
	Encoder   features.Encoder
	Forest    *learn.Forest
	IsTrained bool
}

func NewLTV() *LTV {
	return &LTV{
		Forest: &learn.Forest{Params: learn.ForestParams{
			NumTrees: 200, MaxDepth: 10, MinSamplesSplit: 10, MinSamplesLeaf: 5, Seed: Seed,
		}},
	}
}

func (l *LTV) Task() string { return TaskLTV }

func (l *LTV) Train(in Instances, y []float64) (Summary, error) {
	if in.Len() == 0 || in.Len() != len(y) {
		return Summary{}, errors.New("ltv training data is empty or misaligned")
	}
	l.Encoder.Fit(in.Vectors)
	encoded, err := l.Encoder.TransformAll(in.Vectors)
	if err != nil {
		return Summary{}, err
	}
	l.Keys = features.Keys(encoded)
	if err := l.Scaler.Fit(encoded, l.Keys); err != nil {
		return Summary{}, err
	}
	X, err := features.Materialize(l.Scaler.TransformAll(encoded), l.Keys)
	if err != nil {
		return Summary{}, err
	}
	if err := l.Forest.Fit(X, y); err != nil {
		return Summary{}, err
	}
	l.IsTrained = true
	return Summary{Task: TaskLTV, Samples: in.Len()}, nil
}

// Predict returns non-negative lifetime-value estimates.
func (l *LTV) Predict(in Instances) ([]float64, error) {
	if !l.IsTrained {
		return nil, &NotTrainedError{Task: TaskLTV}
	}
	encoded, err := l.Encoder.TransformAll(in.Vectors)
	if err != nil {
		return nil, err
	}
	X, err := features.Materialize(l.Scaler.TransformAll(encoded), l.Keys)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = l.Forest.PredictOne(row)
	}
	return clampNonNegative(out), nil
}

// Segments buckets the scored batch on its own 33rd and 67th percentiles.
// The cut points are batch-relative: the same customer can land in a
// different segment depending on who they are scored with.
func (l *LTV) Segments(in Instances) ([]string, error) {
	preds, err := l.Predict(in)
	if err != nil {
		return nil, err
	}
	p33 := learn.Percentile(preds, 33)
	p67 := learn.Percentile(preds, 67)

	out := make([]string, len(preds))
	for i, v := range preds {
		switch {
		case v < p33:
			out[i] = ValueLow
		case v < p67:
			out[i] = ValueMedium
		default:
			out[i] = ValueHigh
		}
	}
	return out, nil
}

// Evaluate reports mae, rmse, r2 and mae as a percentage of mean truth.
func (l *LTV) Evaluate(in Instances, y []float64) (Metrics, error) {
	preds, err := l.Predict(in)
	if err != nil {
		return nil, err
	}
	mae := learn.MAE(preds, y)
	maePct := 0.0
	if m := stat.Mean(y, nil); m > 0 {
		maePct = mae / m * 100
	}
	return Metrics{
		"mae":            round2(mae),
		"rmse":           round2(learn.RMSE(preds, y)),
		"r2":             round4(learn.R2(preds, y)),
		"mae_percentage": round2(maePct),
	}, nil
}

func (l *LTV) FeatureImportance() (map[string]float64, error) {
	if !l.IsTrained {
		return nil, &NotTrainedError{Task: TaskLTV}
	}
	return importanceMap(l.Keys, l.Forest.Importance()), nil
}
