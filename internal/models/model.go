// Package models holds the five per-restaurant prediction models. Each
// model owns its fitted preprocessing (scaler, encoder) so that training
// and serving always roll features through identical transforms.
package models

import (
	"fmt"
	"math"
	"time"

	"github.com/resto-data/covers.report/internal/features"
)

// Task names, also the registry directory names.
const (
	TaskDemand    = "demand"
	TaskKitchen   = "kitchen"
	TaskChurn     = "churn"
	TaskLTV       = "ltv"
	TaskInventory = "inventory"
)

// Seed fixes every stochastic component for reproducible training.
const Seed = 42

// Instances is a batch of observations. Times is parallel to Vectors and
// only consulted by models with a temporal component.
type Instances struct {
	Vectors []features.Vector
	Times   []time.Time
}

// Len returns the number of observations.
func (in Instances) Len() int { return len(in.Vectors) }

// Summary reports what Train produced.
type Summary struct {
	Task          string `json:"task"`
	Samples       int    `json:"samples"`
	TrendFallback bool   `json:"trend_fallback,omitempty"`
}

// Metrics are the task-specific evaluation results.
type Metrics map[string]float64

// Model is the contract shared by all five tasks. Concrete models expose
// additional task-specific methods beyond this.
type Model interface {
	Task() string
	Train(in Instances, y []float64) (Summary, error)
	Predict(in Instances) ([]float64, error)
	Evaluate(in Instances, y []float64) (Metrics, error)
	FeatureImportance() (map[string]float64, error)
}

// NotTrainedError is returned by any inference call before Train.
type NotTrainedError struct {
	Task string
}

func (e *NotTrainedError) Error() string {
	return fmt.Sprintf("%s model must be trained before use", e.Task)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func clampNonNegative(v []float64) []float64 {
	for i := range v {
		if v[i] < 0 {
			v[i] = 0
		}
	}
	return v
}

// importanceMap zips feature keys with normalized gains.
func importanceMap(keys []string, gains []float64) map[string]float64 {
	out := make(map[string]float64, len(keys))
	for i, k := range keys {
		if i < len(gains) {
			out[k] = gains[i]
		}
	}
	return out
}
