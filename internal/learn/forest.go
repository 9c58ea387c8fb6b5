package learn

import (
	"errors"
	"math"
	"math/rand"
)

// ForestParams configure a random-forest regressor.
type ForestParams struct {
	NumTrees        int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Seed            int64
}

// Forest is a bagged ensemble of regression trees with per-split feature
// subsampling (sqrt of the feature count).
type Forest struct {
	Params   ForestParams
	Trees    []*Tree
	GainSums []float64
}

// Fit trains the forest. Each tree sees a bootstrap sample of the rows.
func (f *Forest) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return errors.New("training data is empty or misaligned")
	}
	rng := rand.New(rand.NewSource(f.Params.Seed))

	p := numFeatures(X)
	maxFeatures := int(math.Sqrt(float64(p)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}
	treeParams := TreeParams{
		MaxDepth:        f.Params.MaxDepth,
		MinSamplesSplit: f.Params.MinSamplesSplit,
		MinSamplesLeaf:  f.Params.MinSamplesLeaf,
		MaxFeatures:     maxFeatures,
	}

	f.Trees = f.Trees[:0]
	f.GainSums = make([]float64, p)

	rows := make([][]float64, len(X))
	sub := make([]float64, len(y))
	for i := 0; i < f.Params.NumTrees; i++ {
		for j := range rows {
			k := rng.Intn(len(X))
			rows[j] = X[k]
			sub[j] = y[k]
		}
		tree := FitTree(rows, sub, treeParams, rng)
		f.Trees = append(f.Trees, tree)
		accumulate(f.GainSums, tree.Gains)
	}
	return nil
}

// Predict averages the trees for each row.
func (f *Forest) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = f.PredictOne(row)
	}
	return out
}

// PredictOne averages the trees for one row.
func (f *Forest) PredictOne(row []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var s float64
	for _, t := range f.Trees {
		s += t.Predict(row)
	}
	return s / float64(len(f.Trees))
}

// Importance returns normalized per-feature gains.
func (f *Forest) Importance() []float64 {
	return normalize(f.GainSums)
}
