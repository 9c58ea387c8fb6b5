package models

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resto-data/covers.report/internal/features"
)

func ltvFixture() (Instances, []float64) {
	rng := rand.New(rand.NewSource(17))
	tiers := []string{"bronze", "silver", "gold"}
	var in Instances
	var y []float64
	for i := 0; i < 300; i++ {
		freq := 1 + rng.Float64()*25
		aov := 20 + rng.Float64()*40
		spend := freq * aov
		in.Vectors = append(in.Vectors, features.Vector{
			Num: map[string]float64{
				"frequency":       freq,
				"avg_order_value": aov,
				"monetary":        spend,
				"recency_days":    rng.Float64() * 90,
			},
			Cat: map[string]string{"current_tier": tiers[rng.Intn(len(tiers))]},
		})
		y = append(y, spend)
	}
	return in, y
}

func TestLTVTrainPredictEvaluate(t *testing.T) {
	t.Parallel()

	in, y := ltvFixture()
	m := NewLTV()

	summary, err := m.Train(in, y)
	require.NoError(t, err)
	assert.Equal(t, TaskLTV, summary.Task)

	preds, err := m.Predict(in)
	require.NoError(t, err)
	for _, p := range preds {
		assert.GreaterOrEqual(t, p, 0.0)
	}

	metrics, err := m.Evaluate(in, y)
	require.NoError(t, err)
	assert.Greater(t, metrics["r2"], 0.8)
	assert.Greater(t, metrics["mae_percentage"], 0.0)

	importance, err := m.FeatureImportance()
	require.NoError(t, err)
	assert.NotEmpty(t, importance)
}

func TestLTVSegmentsAreBatchRelative(t *testing.T) {
	t.Parallel()

	in, y := ltvFixture()
	m := NewLTV()
	_, err := m.Train(in, y)
	require.NoError(t, err)

	segments, err := m.Segments(in)
	require.NoError(t, err)
	require.Len(t, segments, in.Len())

	counts := map[string]int{}
	for _, s := range segments {
		counts[s]++
	}
	assert.Greater(t, counts[ValueLow], 0)
	assert.Greater(t, counts[ValueMedium], 0)
	assert.Greater(t, counts[ValueHigh], 0)

	// Scoring a top customer inside a batch of even bigger spenders can
	// demote them: the cut points come from the batch itself.
	preds, err := m.Predict(in)
	require.NoError(t, err)
	maxIdx := 0
	for i, p := range preds {
		if p > preds[maxIdx] {
			maxIdx = i
		}
	}
	solo, err := m.Segments(Instances{Vectors: []features.Vector{in.Vectors[maxIdx]}})
	require.NoError(t, err)
	assert.Equal(t, ValueHigh, solo[0], "a single-customer batch always lands at/above its own 67th percentile")
}

func TestLTVNotTrained(t *testing.T) {
	t.Parallel()

	m := NewLTV()
	_, err := m.Segments(Instances{Vectors: []features.Vector{{Num: map[string]float64{"frequency": 5}}}})
	var notTrained *NotTrainedError
	require.ErrorAs(t, err, &notTrained)
	assert.Equal(t, TaskLTV, notTrained.Task)
}
