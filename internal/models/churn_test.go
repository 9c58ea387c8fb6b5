package models

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resto-data/covers.report/internal/features"
)

func churnFixture() (Instances, []float64) {
	rng := rand.New(rand.NewSource(21))
	tiers := []string{"bronze", "silver", "gold"}
	var in Instances
	var y []float64
	for i := 0; i < 300; i++ {
		recency := rng.Float64() * 120
		freq := 1 + rng.Float64()*20
		in.Vectors = append(in.Vectors, features.Vector{
			Num: map[string]float64{
				"recency_days":    recency,
				"frequency":       freq,
				"monetary":        freq * 30,
				"avg_order_value": 30,
			},
			Cat: map[string]string{"current_tier": tiers[rng.Intn(len(tiers))]},
		})
		if recency > 60 {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}
	return in, y
}

func TestChurnTrainPredictEvaluate(t *testing.T) {
	t.Parallel()

	in, y := churnFixture()
	m := NewChurn(0.5)

	summary, err := m.Train(in, y)
	require.NoError(t, err)
	assert.Equal(t, TaskChurn, summary.Task)

	proba, err := m.PredictProba(in)
	require.NoError(t, err)
	for _, p := range proba {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}

	labels, err := m.Predict(in)
	require.NoError(t, err)
	for i, l := range labels {
		if proba[i] >= 0.5 {
			assert.Equal(t, 1.0, l)
		} else {
			assert.Equal(t, 0.0, l)
		}
	}

	metrics, err := m.Evaluate(in, y)
	require.NoError(t, err)
	assert.Greater(t, metrics["auc_roc"], 0.9, "recency-driven labels should be near-separable")
	assert.Greater(t, metrics["recall"], 0.8)
}

func TestChurnRiskSegments(t *testing.T) {
	t.Parallel()

	in, y := churnFixture()
	m := NewChurn(0.5)
	_, err := m.Train(in, y)
	require.NoError(t, err)

	proba, err := m.PredictProba(in)
	require.NoError(t, err)
	segments, err := m.RiskSegments(in)
	require.NoError(t, err)
	require.Len(t, segments, len(proba))

	for i, s := range segments {
		switch {
		case proba[i] < 0.3:
			assert.Equal(t, RiskLow, s)
		case proba[i] < 0.6:
			assert.Equal(t, RiskMedium, s)
		default:
			assert.Equal(t, RiskHigh, s)
		}
	}
}

func TestChurnUnseenTier(t *testing.T) {
	t.Parallel()

	in, y := churnFixture()
	m := NewChurn(0.5)
	_, err := m.Train(in, y)
	require.NoError(t, err)

	unknown := Instances{Vectors: []features.Vector{{
		Num: map[string]float64{"recency_days": 10, "frequency": 5, "monetary": 150, "avg_order_value": 30},
		Cat: map[string]string{"current_tier": "platinum"},
	}}}
	_, err = m.PredictProba(unknown)
	var unseen *features.UnseenCategoryError
	require.ErrorAs(t, err, &unseen)
	assert.Equal(t, "platinum", unseen.Value)
}

func TestChurnNotTrained(t *testing.T) {
	t.Parallel()

	m := NewChurn(0.5)
	_, err := m.RiskSegments(Instances{Vectors: []features.Vector{{Num: map[string]float64{"recency_days": 10}}}})
	var notTrained *NotTrainedError
	require.ErrorAs(t, err, &notTrained)
}
