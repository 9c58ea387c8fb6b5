package models

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resto-data/covers.report/internal/config"
	"github.com/resto-data/covers.report/internal/dataset"
	"github.com/resto-data/covers.report/internal/extract"
	"github.com/resto-data/covers.report/internal/features"
	"github.com/resto-data/covers.report/internal/logging"
)

// demandFixture builds a month of hourly training instances with a
// lunch/dinner shape plus noise.
func demandFixture(t *testing.T) (Instances, []float64) {
	t.Helper()
	eng := features.NewEngineer(config.Default())
	rng := rand.New(rand.NewSource(3))

	origin := time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)
	var orders []dataset.CleanOrder
	for day := 0; day < 35; day++ {
		for hour := 11; hour < 22; hour++ {
			n := 3
			if hour == 12 || hour == 19 {
				n = 8
			}
			n += rng.Intn(3)
			for i := 0; i < n; i++ {
				ts := origin.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(rng.Intn(60))*time.Minute)
				orders = append(orders, dataset.CleanOrder{OrderRecord: extract.OrderRecord{
					OrderID: int64(len(orders) + 1), GrandTotal: 20, Quantity: 1, UnitPrice: 20, CreatedAt: ts,
				}})
			}
		}
	}

	var in Instances
	var y []float64
	counts := make(map[time.Time]float64)
	for _, o := range orders {
		counts[o.CreatedAt.Truncate(time.Hour)]++
	}
	// Skip the first week so lag features have history behind them.
	for day := 7; day < 35; day++ {
		for hour := 11; hour < 22; hour++ {
			ts := origin.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
			in.Vectors = append(in.Vectors, eng.Demand(orders, ts))
			in.Times = append(in.Times, ts)
			y = append(y, counts[ts])
		}
	}
	return in, y
}

func TestDemandTrainPredictEvaluate(t *testing.T) {
	t.Parallel()

	in, y := demandFixture(t)
	m := NewDemand(0.7, logging.Nop())

	summary, err := m.Train(in, y)
	require.NoError(t, err)
	assert.Equal(t, TaskDemand, summary.Task)
	assert.Equal(t, len(y), summary.Samples)
	assert.False(t, summary.TrendFallback)

	preds, err := m.Predict(in)
	require.NoError(t, err)
	require.Len(t, preds, len(y))
	for _, p := range preds {
		assert.GreaterOrEqual(t, p, 0.0)
	}

	metrics, err := m.Evaluate(in, y)
	require.NoError(t, err)
	for _, key := range []string{"mae", "rmse", "r2", "mape", "within_5_orders"} {
		_, ok := metrics[key]
		assert.True(t, ok, "missing metric %s", key)
	}
	assert.Greater(t, metrics["r2"], 0.3)

	importance, err := m.FeatureImportance()
	require.NoError(t, err)
	assert.NotEmpty(t, importance)
}

func TestDemandNotTrained(t *testing.T) {
	t.Parallel()

	m := NewDemand(0.7, logging.Nop())
	_, err := m.Predict(Instances{Vectors: []features.Vector{{Num: map[string]float64{"hour": 12}}}})
	var notTrained *NotTrainedError
	require.ErrorAs(t, err, &notTrained)
	assert.Equal(t, TaskDemand, notTrained.Task)

	_, err = m.FeatureImportance()
	assert.ErrorAs(t, err, &notTrained)
}

func TestDemandTrendFallback(t *testing.T) {
	t.Parallel()

	// Identical timestamps make the trend unfittable; the boosted
	// component must carry the model alone.
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	in := Instances{}
	var y []float64
	for i := 0; i < 20; i++ {
		in.Vectors = append(in.Vectors, features.Vector{Num: map[string]float64{"hour": 12, "orders_1d_ago": float64(i)}})
		in.Times = append(in.Times, ts)
		y = append(y, float64(i))
	}

	m := NewDemand(0.7, logging.Nop())
	summary, err := m.Train(in, y)
	require.NoError(t, err)
	assert.True(t, summary.TrendFallback)
	assert.True(t, m.TrendFallback)

	bounds, err := m.PredictWithBounds(in)
	require.NoError(t, err)
	for _, b := range bounds {
		assert.InDelta(t, b.Prediction*0.8, b.Lower, 1e-9, "fallback lower bound is -20%")
		assert.InDelta(t, b.Prediction*1.2, b.Upper, 1e-9, "fallback upper bound is +20%")
	}
}

func TestDemandDeterminism(t *testing.T) {
	t.Parallel()

	in, y := demandFixture(t)

	a := NewDemand(0.7, logging.Nop())
	_, err := a.Train(in, y)
	require.NoError(t, err)
	b := NewDemand(0.7, logging.Nop())
	_, err = b.Train(in, y)
	require.NoError(t, err)

	pa, err := a.Predict(in)
	require.NoError(t, err)
	pb, err := b.Predict(in)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestDemandMisalignedInput(t *testing.T) {
	t.Parallel()

	m := NewDemand(0.7, logging.Nop())
	_, err := m.Train(Instances{Vectors: []features.Vector{{Num: map[string]float64{"a": 1}}}}, []float64{1, 2})
	require.Error(t, err)

	// Times are mandatory for training.
	_, err = m.Train(Instances{Vectors: []features.Vector{{Num: map[string]float64{"a": 1}}}}, []float64{1})
	require.Error(t, err)
	assert.False(t, errors.As(err, new(*NotTrainedError)))
}
