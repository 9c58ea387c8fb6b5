package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resto-data/covers.report/internal/features"
	"github.com/resto-data/covers.report/internal/logging"
	"github.com/resto-data/covers.report/internal/models"
	"github.com/resto-data/covers.report/internal/timeutil"
)

func testRegistry(t *testing.T) (*Registry, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC))
	return New(t.TempDir(), clock, logging.Nop()), clock
}

func trainedKitchen(t *testing.T) *models.Kitchen {
	t.Helper()
	in := models.Instances{}
	var y []float64
	for i := 0; i < 50; i++ {
		in.Vectors = append(in.Vectors, features.Vector{Num: map[string]float64{
			"avg_prep_time": float64(5 + i%10), "item_complexity": float64(i%3) * 0.2,
		}})
		y = append(y, float64(5+i%10))
	}
	m := models.NewKitchen()
	_, err := m.Train(in, y)
	require.NoError(t, err)
	return m
}

func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	r, _ := testRegistry(t)
	m := trainedKitchen(t)
	metrics := models.Metrics{"mae": 1.2, "r2": 0.9}

	version, err := r.Save(models.TaskKitchen, 1, m, metrics)
	require.NoError(t, err)
	assert.NotEmpty(t, version)

	loaded, meta, err := r.LoadLatest(models.TaskKitchen, 1)
	require.NoError(t, err)
	assert.Equal(t, models.TaskKitchen, meta.ModelType)
	assert.Equal(t, int64(1), meta.RestaurantID)
	assert.Equal(t, version, meta.Version)
	assert.Equal(t, metrics, meta.Metrics)

	kitchen, ok := loaded.(*models.Kitchen)
	require.True(t, ok)
	assert.True(t, kitchen.IsTrained)

	// The reloaded model predicts identically to the original.
	in := models.Instances{Vectors: []features.Vector{{Num: map[string]float64{
		"avg_prep_time": 8, "item_complexity": 0.2,
	}}}}
	want, err := m.Predict(in)
	require.NoError(t, err)
	got, err := kitchen.Predict(in)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reloaded model predictions differ (-want +got):\n%s", diff)
	}
}

func TestLatestPointerAdvances(t *testing.T) {
	t.Parallel()

	r, clock := testRegistry(t)
	m := trainedKitchen(t)

	v1, err := r.Save(models.TaskKitchen, 1, m, nil)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	v2, err := r.Save(models.TaskKitchen, 1, m, nil)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	latest, err := r.ResolveLatest(models.TaskKitchen, 1)
	require.NoError(t, err)
	assert.Equal(t, v2, latest)

	versions, err := r.ListVersions(models.TaskKitchen, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{v2, v1}, versions, "newest first")

	// Both versions remain loadable.
	_, meta, err := r.LoadModel(models.TaskKitchen, 1, v1)
	require.NoError(t, err)
	assert.Equal(t, v1, meta.Version)
}

func TestSameSecondSavesGetSuffixes(t *testing.T) {
	t.Parallel()

	r, _ := testRegistry(t)
	m := trainedKitchen(t)

	v1, err := r.Save(models.TaskKitchen, 1, m, nil)
	require.NoError(t, err)
	v2, err := r.Save(models.TaskKitchen, 1, m, nil)
	require.NoError(t, err)
	v3, err := r.Save(models.TaskKitchen, 1, m, nil)
	require.NoError(t, err)

	assert.Equal(t, v1+"-01", v2)
	assert.Equal(t, v1+"-02", v3)

	latest, err := r.ResolveLatest(models.TaskKitchen, 1)
	require.NoError(t, err)
	assert.Equal(t, v3, latest)
}

func TestModelNotFound(t *testing.T) {
	t.Parallel()

	r, _ := testRegistry(t)

	_, err := r.ResolveLatest(models.TaskDemand, 42)
	var notFound *ModelNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, models.TaskDemand, notFound.Task)
	assert.Equal(t, int64(42), notFound.RestaurantID)

	_, _, err = r.LoadLatest(models.TaskDemand, 42)
	require.ErrorAs(t, err, &notFound)

	versions, err := r.ListVersions(models.TaskDemand, 42)
	require.NoError(t, err)
	assert.Empty(t, versions, "empty slot lists no versions without error")
}

func TestSlotsAreIsolated(t *testing.T) {
	t.Parallel()

	r, _ := testRegistry(t)
	m := trainedKitchen(t)

	_, err := r.Save(models.TaskKitchen, 1, m, nil)
	require.NoError(t, err)

	var notFound *ModelNotFoundError
	_, err = r.ResolveLatest(models.TaskKitchen, 2)
	require.ErrorAs(t, err, &notFound)
	_, err = r.ResolveLatest(models.TaskDemand, 1)
	require.ErrorAs(t, err, &notFound)
}

func TestModelInfo(t *testing.T) {
	t.Parallel()

	r, clock := testRegistry(t)
	m := trainedKitchen(t)

	_, err := r.Save(models.TaskKitchen, 1, m, models.Metrics{"mae": 2})
	require.NoError(t, err)
	clock.Advance(time.Second)
	v2, err := r.Save(models.TaskKitchen, 1, m, models.Metrics{"mae": 1})
	require.NoError(t, err)

	info, err := r.ModelInfo(models.TaskKitchen, 1)
	require.NoError(t, err)
	assert.Equal(t, v2, info.Latest.Version)
	assert.Equal(t, models.Metrics{"mae": 1}, info.Latest.Metrics)
	assert.Equal(t, 2, info.VersionCount)
	assert.Equal(t, v2, info.Versions[0])
}

// The latest pointer must always name a fully written version, even while
// saves are in flight.
func TestConcurrentSaveAndResolve(t *testing.T) {
	t.Parallel()

	r, clock := testRegistry(t)
	m := trainedKitchen(t)

	_, err := r.Save(models.TaskKitchen, 1, m, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			clock.Advance(time.Second)
			if _, err := r.Save(models.TaskKitchen, 1, m, nil); err != nil {
				t.Errorf("concurrent save: %v", err)
				break
			}
		}
		close(done)
	}()

	for {
		select {
		case <-done:
			wg.Wait()
			return
		default:
		}
		model, meta, err := r.LoadLatest(models.TaskKitchen, 1)
		require.NoError(t, err, "latest must always resolve to a complete version")
		require.NotNil(t, model)
		require.NotEmpty(t, meta.Version)
	}
}
