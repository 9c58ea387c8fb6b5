package learn

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// MAE is the mean absolute error.
func MAE(pred, truth []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	var s float64
	for i := range pred {
		s += math.Abs(pred[i] - truth[i])
	}
	return s / float64(len(pred))
}

// RMSE is the root mean squared error.
func RMSE(pred, truth []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	var s float64
	for i := range pred {
		d := pred[i] - truth[i]
		s += d * d
	}
	return math.Sqrt(s / float64(len(pred)))
}

// R2 is the coefficient of determination. A constant truth vector yields 0.
func R2(pred, truth []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	m := stat.Mean(truth, nil)
	var ssRes, ssTot float64
	for i := range pred {
		ssRes += (truth[i] - pred[i]) * (truth[i] - pred[i])
		ssTot += (truth[i] - m) * (truth[i] - m)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// MAPE is the mean absolute percentage error over rows with nonzero truth.
func MAPE(pred, truth []float64) float64 {
	var s float64
	n := 0
	for i := range pred {
		if truth[i] == 0 {
			continue
		}
		s += math.Abs((truth[i] - pred[i]) / truth[i])
		n++
	}
	if n == 0 {
		return 0
	}
	return s / float64(n) * 100
}

// WithinTolerance is the fraction of predictions within tol of the truth.
func WithinTolerance(pred, truth []float64, tol float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	n := 0
	for i := range pred {
		if math.Abs(pred[i]-truth[i]) <= tol {
			n++
		}
	}
	return float64(n) / float64(len(pred))
}

// Classification counts predictions at the given probability threshold and
// returns precision, recall and F1 for the positive class.
func Classification(proba, truth []float64, threshold float64) (precision, recall, f1 float64) {
	var tp, fp, fn float64
	for i := range proba {
		predicted := proba[i] >= threshold
		actual := truth[i] > 0.5
		switch {
		case predicted && actual:
			tp++
		case predicted && !actual:
			fp++
		case !predicted && actual:
			fn++
		}
	}
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

// AUC is the area under the ROC curve, computed from ranks with midrank
// tie handling. Returns 0.5 when one class is absent.
func AUC(proba, truth []float64) float64 {
	type scored struct {
		p   float64
		pos bool
	}
	all := make([]scored, len(proba))
	var nPos, nNeg float64
	for i := range proba {
		pos := truth[i] > 0.5
		all[i] = scored{p: proba[i], pos: pos}
		if pos {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}
	sort.Slice(all, func(i, j int) bool { return all[i].p < all[j].p })

	// Sum of positive-class midranks.
	var rankSum float64
	i := 0
	for i < len(all) {
		j := i
		for j < len(all) && all[j].p == all[i].p {
			j++
		}
		midrank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if all[k].pos {
				rankSum += midrank
			}
		}
		i = j
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg)
}

// Percentile returns the p-th percentile (0-100) of values using linear
// interpolation, matching the convention of the feature pipeline.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}
