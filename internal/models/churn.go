package models

import (
	"errors"

	"github.com/resto-data/covers.report/internal/features"
	"github.com/resto-data/covers.report/internal/learn"
)

// Churn risk segment labels.
const (
	RiskLow    = "low_risk"
	RiskMedium = "medium_risk"
	RiskHigh   = "high_risk"
)

// Churn classifies customers as likely to churn. Labels are constructed
// upstream by the training pipeline; the model only sees 0/1 targets. The
// positive class is weighted 3x because churners are the minority.
type Churn struct {
	Threshold float64
	Keys      []string
	Scaler    features.Scaler
	Encoder   features.Encoder
	Boost     *learn.GBTClassifier
	IsTrained bool
}

func NewChurn(threshold float64) *Churn {
	return &Churn{
		Threshold: threshold,
		Boost: &learn.GBTClassifier{
			Params:    learn.GBTParams{NumTrees: 150, MaxDepth: 5, LearningRate: 0.1, Seed: Seed},
			PosWeight: 3,
		},
	}
}

func (c *Churn) Task() string { return TaskChurn }

func (c *Churn) Train(in Instances, y []float64) (Summary, error) {
	if in.Len() == 0 || in.Len() != len(y) {
		return Summary{}, errors.New("churn training data is empty or misaligned")
	}
	c.Encoder.Fit(in.Vectors)
	encoded, err := c.Encoder.TransformAll(in.Vectors)
	if err != nil {
		return Summary{}, err
	}
	c.Keys = features.Keys(encoded)
	if err := c.Scaler.Fit(encoded, c.Keys); err != nil {
		return Summary{}, err
	}
	X, err := features.Materialize(c.Scaler.TransformAll(encoded), c.Keys)
	if err != nil {
		return Summary{}, err
	}
	if err := c.Boost.Fit(X, y); err != nil {
		return Summary{}, err
	}
	c.IsTrained = true
	return Summary{Task: TaskChurn, Samples: in.Len()}, nil
}

func (c *Churn) matrix(in Instances) ([][]float64, error) {
	encoded, err := c.Encoder.TransformAll(in.Vectors)
	if err != nil {
		return nil, err
	}
	return features.Materialize(c.Scaler.TransformAll(encoded), c.Keys)
}

// PredictProba returns P(churn) per customer.
func (c *Churn) PredictProba(in Instances) ([]float64, error) {
	if !c.IsTrained {
		return nil, &NotTrainedError{Task: TaskChurn}
	}
	X, err := c.matrix(in)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = c.Boost.PredictProbaOne(row)
	}
	return out, nil
}

// Predict returns 0/1 churn labels at the configured threshold.
func (c *Churn) Predict(in Instances) ([]float64, error) {
	proba, err := c.PredictProba(in)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(proba))
	for i, p := range proba {
		if p >= c.Threshold {
			out[i] = 1
		}
	}
	return out, nil
}

// RiskSegments buckets churn probabilities into low/medium/high risk.
func (c *Churn) RiskSegments(in Instances) ([]string, error) {
	proba, err := c.PredictProba(in)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(proba))
	for i, p := range proba {
		switch {
		case p < 0.3:
			out[i] = RiskLow
		case p < 0.6:
			out[i] = RiskMedium
		default:
			out[i] = RiskHigh
		}
	}
	return out, nil
}

// Evaluate reports precision, recall, f1 and auc_roc.
func (c *Churn) Evaluate(in Instances, y []float64) (Metrics, error) {
	proba, err := c.PredictProba(in)
	if err != nil {
		return nil, err
	}
	precision, recall, f1 := learn.Classification(proba, y, c.Threshold)
	return Metrics{
		"precision": round4(precision),
		"recall":    round4(recall),
		"f1":        round4(f1),
		"auc_roc":   round4(learn.AUC(proba, y)),
	}, nil
}

func (c *Churn) FeatureImportance() (map[string]float64, error) {
	if !c.IsTrained {
		return nil, &NotTrainedError{Task: TaskChurn}
	}
	return importanceMap(c.Keys, c.Boost.Importance()), nil
}
