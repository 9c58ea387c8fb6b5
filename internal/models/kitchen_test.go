package models

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resto-data/covers.report/internal/features"
)

func kitchenFixture() (Instances, []float64) {
	rng := rand.New(rand.NewSource(9))
	var in Instances
	var y []float64
	for i := 0; i < 200; i++ {
		avg := 5 + rng.Float64()*15
		complexity := rng.Float64()
		in.Vectors = append(in.Vectors, features.Vector{Num: map[string]float64{
			"avg_prep_time":    avg,
			"std_prep_time":    avg * complexity * 0.3,
			"min_prep_time":    avg * 0.6,
			"max_prep_time":    avg * 1.5,
			"median_prep_time": avg,
			"item_complexity":  complexity,
		}})
		y = append(y, avg*(1+0.2*complexity)+rng.NormFloat64()*0.5)
	}
	return in, y
}

func TestKitchenTrainPredictEvaluate(t *testing.T) {
	t.Parallel()

	in, y := kitchenFixture()
	m := NewKitchen()

	summary, err := m.Train(in, y)
	require.NoError(t, err)
	assert.Equal(t, TaskKitchen, summary.Task)

	preds, err := m.Predict(in)
	require.NoError(t, err)
	for _, p := range preds {
		assert.GreaterOrEqual(t, p, 0.0)
	}

	metrics, err := m.Evaluate(in, y)
	require.NoError(t, err)
	assert.Greater(t, metrics["r2"], 0.8)
	assert.LessOrEqual(t, metrics["within_5_minutes"], 100.0)

	importance, err := m.FeatureImportance()
	require.NoError(t, err)
	assert.NotEmpty(t, importance)
}

func TestKitchenConfidenceBounds(t *testing.T) {
	t.Parallel()

	in, y := kitchenFixture()
	m := NewKitchen()
	_, err := m.Train(in, y)
	require.NoError(t, err)

	bounds, err := m.PredictWithConfidence(in)
	require.NoError(t, err)
	require.Len(t, bounds, in.Len())
	for _, b := range bounds {
		assert.GreaterOrEqual(t, b.Lower, 0.0)
		assert.LessOrEqual(t, b.Lower, b.Prediction)
		assert.GreaterOrEqual(t, b.Upper, b.Prediction)
	}
	// The spread is batch-wide, so interval width is uniform except where
	// the lower bound clipped at zero.
	w0 := bounds[0].Upper - bounds[0].Prediction
	w1 := bounds[1].Upper - bounds[1].Prediction
	assert.InDelta(t, w0, w1, 1e-9)
}

func TestKitchenNotTrained(t *testing.T) {
	t.Parallel()

	m := NewKitchen()
	_, err := m.Predict(Instances{Vectors: []features.Vector{{Num: map[string]float64{"avg_prep_time": 10}}}})
	var notTrained *NotTrainedError
	require.ErrorAs(t, err, &notTrained)
	assert.Equal(t, TaskKitchen, notTrained.Task)
}

func TestKitchenSingleRowConfidence(t *testing.T) {
	t.Parallel()

	in, y := kitchenFixture()
	m := NewKitchen()
	_, err := m.Train(in, y)
	require.NoError(t, err)

	one := Instances{Vectors: in.Vectors[:1]}
	bounds, err := m.PredictWithConfidence(one)
	require.NoError(t, err)
	require.Len(t, bounds, 1)
	// No batch spread to estimate from: the interval collapses.
	assert.Equal(t, bounds[0].Prediction, bounds[0].Lower)
	assert.Equal(t, bounds[0].Prediction, bounds[0].Upper)
}
