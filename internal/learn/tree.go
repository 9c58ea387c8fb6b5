// Package learn implements the estimators behind the prediction models:
// CART regression trees, gradient boosting, random forests, a trend/season
// decomposition and the evaluation metrics. Everything is deterministic
// under a fixed seed.
package learn

import (
	"math/rand"
)

// TreeNode is one node of a regression tree. Leaves have Feature == -1.
type TreeNode struct {
	Feature   int
	Threshold float64
	Value     float64
	Left      *TreeNode
	Right     *TreeNode
}

// IsLeaf reports whether the node is terminal.
func (n *TreeNode) IsLeaf() bool { return n.Feature < 0 }

// TreeParams bound tree growth.
type TreeParams struct {
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MaxFeatures limits how many features are considered per split;
	// 0 means all. Used by random forests.
	MaxFeatures int
}

// Tree is a fitted CART regression tree.
type Tree struct {
	Root       *TreeNode
	NumFeature int
	// Gains accumulates the variance reduction credited to each feature
	// during fitting, for feature importance.
	Gains []float64
}

// FitTree grows a regression tree on X, y minimizing within-node variance.
// The rng is only consulted when params.MaxFeatures restricts the split
// search.
func FitTree(X [][]float64, y []float64, params TreeParams, rng *rand.Rand) *Tree {
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	t := &Tree{NumFeature: numFeatures(X), Gains: make([]float64, numFeatures(X))}
	t.Root = t.grow(X, y, idx, 0, params, rng)
	return t
}

// FitTreeWeighted grows a tree with per-sample weights. Leaf values are
// weighted means and split quality is weighted variance reduction.
func FitTreeWeighted(X [][]float64, y, w []float64, params TreeParams, rng *rand.Rand) *Tree {
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	t := &Tree{NumFeature: numFeatures(X), Gains: make([]float64, numFeatures(X))}
	t.Root = t.growWeighted(X, y, w, idx, 0, params, rng)
	return t
}

// Predict returns the leaf value for one row.
func (t *Tree) Predict(row []float64) float64 {
	n := t.Root
	for !n.IsLeaf() {
		if row[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

func numFeatures(X [][]float64) int {
	if len(X) == 0 {
		return 0
	}
	return len(X[0])
}

func (t *Tree) grow(X [][]float64, y []float64, idx []int, depth int, params TreeParams, rng *rand.Rand) *TreeNode {
	uniform := make([]float64, len(idx))
	for i := range uniform {
		uniform[i] = 1
	}
	return t.growWeightedIdx(X, y, uniform, idx, depth, params, rng)
}

func (t *Tree) growWeighted(X [][]float64, y, w []float64, idx []int, depth int, params TreeParams, rng *rand.Rand) *TreeNode {
	sub := make([]float64, len(idx))
	for i, j := range idx {
		sub[i] = w[j]
	}
	return t.growWeightedIdx(X, y, sub, idx, depth, params, rng)
}

// growWeightedIdx grows a subtree over idx. weights is parallel to idx.
func (t *Tree) growWeightedIdx(X [][]float64, y, weights []float64, idx []int, depth int, params TreeParams, rng *rand.Rand) *TreeNode {
	leaf := &TreeNode{Feature: -1, Value: weightedMeanAt(y, weights, idx)}
	if depth >= params.MaxDepth || len(idx) < params.MinSamplesSplit || len(idx) < 2*params.MinSamplesLeaf {
		return leaf
	}

	parentImpurity := weightedSSEAt(y, weights, idx, leaf.Value)
	if parentImpurity <= 0 {
		return leaf
	}

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	for _, f := range t.candidateFeatures(params, rng) {
		threshold, gain, ok := bestSplitOnFeature(X, y, weights, idx, f, parentImpurity, params.MinSamplesLeaf)
		if ok && gain > bestGain {
			bestFeature, bestThreshold, bestGain = f, threshold, gain
		}
	}
	if bestFeature < 0 {
		return leaf
	}
	t.Gains[bestFeature] += bestGain

	var leftIdx, rightIdx []int
	var leftW, rightW []float64
	for i, j := range idx {
		if X[j][bestFeature] <= bestThreshold {
			leftIdx = append(leftIdx, j)
			leftW = append(leftW, weights[i])
		} else {
			rightIdx = append(rightIdx, j)
			rightW = append(rightW, weights[i])
		}
	}

	return &TreeNode{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Value:     leaf.Value,
		Left:      t.growWeightedIdx(X, y, leftW, leftIdx, depth+1, params, rng),
		Right:     t.growWeightedIdx(X, y, rightW, rightIdx, depth+1, params, rng),
	}
}

func (t *Tree) candidateFeatures(params TreeParams, rng *rand.Rand) []int {
	all := make([]int, t.NumFeature)
	for i := range all {
		all[i] = i
	}
	if params.MaxFeatures <= 0 || params.MaxFeatures >= t.NumFeature || rng == nil {
		return all
	}
	rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:params.MaxFeatures]
}

type splitSample struct {
	x, y, w float64
}

// bestSplitOnFeature scans midpoints between consecutive distinct values.
func bestSplitOnFeature(X [][]float64, y, weights []float64, idx []int, feature int, parentImpurity float64, minLeaf int) (threshold, gain float64, ok bool) {
	samples := make([]splitSample, len(idx))
	for i, j := range idx {
		samples[i] = splitSample{x: X[j][feature], y: y[j], w: weights[i]}
	}
	sortSamples(samples)

	var totalW, totalWY float64
	for _, s := range samples {
		totalW += s.w
		totalWY += s.w * s.y
	}
	if totalW == 0 {
		return 0, 0, false
	}

	var leftW, leftWY, leftSq float64
	var totalSq float64
	for _, s := range samples {
		totalSq += s.w * s.y * s.y
	}

	bestGain := 0.0
	found := false
	for i := 0; i < len(samples)-1; i++ {
		s := samples[i]
		leftW += s.w
		leftWY += s.w * s.y
		leftSq += s.w * s.y * s.y
		if s.x == samples[i+1].x {
			continue
		}
		if i+1 < minLeaf || len(samples)-(i+1) < minLeaf {
			continue
		}
		rightW := totalW - leftW
		if leftW == 0 || rightW == 0 {
			continue
		}
		leftSSE := leftSq - leftWY*leftWY/leftW
		rightWY := totalWY - leftWY
		rightSSE := (totalSq - leftSq) - rightWY*rightWY/rightW
		g := parentImpurity - leftSSE - rightSSE
		if g > bestGain {
			bestGain = g
			threshold = (s.x + samples[i+1].x) / 2
			found = true
		}
	}
	return threshold, bestGain, found
}

func sortSamples(s []splitSample) {
	// Insertion sort keeps the hot path allocation-free for the small
	// node sizes deep in the tree; fall back to quicksort above that.
	if len(s) > 32 {
		quickSortSamples(s)
		return
	}
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].x < s[j-1].x; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func quickSortSamples(s []splitSample) {
	if len(s) < 2 {
		return
	}
	pivot := s[len(s)/2].x
	left, right := 0, len(s)-1
	for left <= right {
		for s[left].x < pivot {
			left++
		}
		for s[right].x > pivot {
			right--
		}
		if left <= right {
			s[left], s[right] = s[right], s[left]
			left++
			right--
		}
	}
	quickSortSamples(s[:right+1])
	quickSortSamples(s[left:])
}

func weightedMeanAt(y, weights []float64, idx []int) float64 {
	var sw, swy float64
	for i, j := range idx {
		sw += weights[i]
		swy += weights[i] * y[j]
	}
	if sw == 0 {
		return 0
	}
	return swy / sw
}

func weightedSSEAt(y, weights []float64, idx []int, mean float64) float64 {
	var sse float64
	for i, j := range idx {
		d := y[j] - mean
		sse += weights[i] * d * d
	}
	if sse < 1e-12 {
		return 0
	}
	return sse
}

// FeatureGains returns the normalized variance-reduction importance per
// feature index. All zeros when the tree never split.
func (t *Tree) FeatureGains() []float64 {
	out := make([]float64, len(t.Gains))
	var total float64
	for _, g := range t.Gains {
		total += g
	}
	if total == 0 {
		return out
	}
	for i, g := range t.Gains {
		out[i] = g / total
	}
	return out
}
