package learn

import (
	"errors"
	"math"
	"math/rand"
)

// GBTParams configure a gradient-boosted ensemble.
type GBTParams struct {
	NumTrees     int
	MaxDepth     int
	LearningRate float64
	Subsample    float64
	Seed         int64
}

// GBTRegressor is a gradient-boosted regression ensemble with squared
// loss. Fields are exported for gob serialization.
type GBTRegressor struct {
	Params   GBTParams
	BaseLine float64
	Trees    []*Tree
	// GainSums is the per-feature importance accumulated over all trees.
	GainSums []float64
}

// Fit trains the ensemble. Each stage fits a depth-bounded tree to the
// current residuals over a row subsample.
func (g *GBTRegressor) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return errors.New("training data is empty or misaligned")
	}
	rng := rand.New(rand.NewSource(g.Params.Seed))

	g.BaseLine = mean(y)
	g.Trees = g.Trees[:0]
	g.GainSums = make([]float64, numFeatures(X))

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = g.BaseLine
	}
	residual := make([]float64, len(y))

	treeParams := TreeParams{MaxDepth: g.Params.MaxDepth, MinSamplesSplit: 2, MinSamplesLeaf: 1}
	for stage := 0; stage < g.Params.NumTrees; stage++ {
		for i := range y {
			residual[i] = y[i] - pred[i]
		}
		rows, sub := subsampleRows(X, residual, g.Params.Subsample, rng)
		tree := FitTree(rows, sub, treeParams, rng)
		g.Trees = append(g.Trees, tree)
		accumulate(g.GainSums, tree.Gains)

		for i, row := range X {
			pred[i] += g.Params.LearningRate * tree.Predict(row)
		}
	}
	return nil
}

// Predict returns the ensemble prediction for each row.
func (g *GBTRegressor) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = g.PredictOne(row)
	}
	return out
}

// PredictOne returns the ensemble prediction for one row.
func (g *GBTRegressor) PredictOne(row []float64) float64 {
	p := g.BaseLine
	for _, t := range g.Trees {
		p += g.Params.LearningRate * t.Predict(row)
	}
	return p
}

// Importance returns normalized per-feature gains.
func (g *GBTRegressor) Importance() []float64 {
	return normalize(g.GainSums)
}

// GBTClassifier is a gradient-boosted binary classifier with logistic
// loss and an optional positive-class weight for imbalanced labels.
type GBTClassifier struct {
	Params    GBTParams
	PosWeight float64
	BaseScore float64
	Trees     []*Tree
	GainSums  []float64
}

// Fit trains the classifier on 0/1 labels.
func (g *GBTClassifier) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return errors.New("training data is empty or misaligned")
	}
	rng := rand.New(rand.NewSource(g.Params.Seed))

	posWeight := g.PosWeight
	if posWeight <= 0 {
		posWeight = 1
	}

	// Weighted base score: log-odds of the positive class.
	var pos, total float64
	for _, v := range y {
		if v > 0.5 {
			pos += posWeight
			total += posWeight
		} else {
			total++
		}
	}
	if pos == 0 || pos == total {
		// Degenerate labels still train: the base score carries the
		// constant decision and the trees fit nothing.
		pos = math.Max(math.Min(pos, total-1e-6), 1e-6)
	}
	g.BaseScore = math.Log(pos / (total - pos))
	g.Trees = g.Trees[:0]
	g.GainSums = make([]float64, numFeatures(X))

	score := make([]float64, len(y))
	for i := range score {
		score[i] = g.BaseScore
	}

	gradient := make([]float64, len(y))
	weights := make([]float64, len(y))
	for i, v := range y {
		if v > 0.5 {
			weights[i] = posWeight
		} else {
			weights[i] = 1
		}
	}

	treeParams := TreeParams{MaxDepth: g.Params.MaxDepth, MinSamplesSplit: 2, MinSamplesLeaf: 1}
	for stage := 0; stage < g.Params.NumTrees; stage++ {
		for i := range y {
			gradient[i] = y[i] - sigmoid(score[i])
		}
		tree := FitTreeWeighted(X, gradient, weights, treeParams, rng)
		g.Trees = append(g.Trees, tree)
		accumulate(g.GainSums, tree.Gains)

		for i, row := range X {
			score[i] += g.Params.LearningRate * tree.Predict(row)
		}
	}
	return nil
}

// PredictProba returns P(positive) per row.
func (g *GBTClassifier) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = g.PredictProbaOne(row)
	}
	return out
}

// PredictProbaOne returns P(positive) for one row.
func (g *GBTClassifier) PredictProbaOne(row []float64) float64 {
	s := g.BaseScore
	for _, t := range g.Trees {
		s += g.Params.LearningRate * t.Predict(row)
	}
	return sigmoid(s)
}

// Importance returns normalized per-feature gains.
func (g *GBTClassifier) Importance() []float64 {
	return normalize(g.GainSums)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func mean(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var s float64
	for _, v := range y {
		s += v
	}
	return s / float64(len(y))
}

func subsampleRows(X [][]float64, y []float64, fraction float64, rng *rand.Rand) ([][]float64, []float64) {
	if fraction <= 0 || fraction >= 1 {
		return X, y
	}
	n := int(math.Round(fraction * float64(len(X))))
	if n < 1 {
		n = 1
	}
	perm := rng.Perm(len(X))[:n]
	rows := make([][]float64, n)
	sub := make([]float64, n)
	for i, j := range perm {
		rows[i] = X[j]
		sub[i] = y[j]
	}
	return rows, sub
}

func accumulate(dst, src []float64) {
	for i := range src {
		dst[i] += src[i]
	}
}

func normalize(gains []float64) []float64 {
	out := make([]float64, len(gains))
	var total float64
	for _, g := range gains {
		total += g
	}
	if total == 0 {
		return out
	}
	for i, g := range gains {
		out[i] = g / total
	}
	return out
}
