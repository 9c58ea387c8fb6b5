package learn

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// TrendSeason decomposes an hourly series into a linear trend plus a
// day-of-week by hour seasonal component. It backs the long-horizon side
// of demand forecasting, where a boosted model trained on lag features has
// nothing to stand on.
type TrendSeason struct {
	Origin      time.Time
	Intercept   float64
	Slope       float64 // per hour since Origin
	Season      map[int]float64
	ResidualStd float64
}

func seasonKey(t time.Time) int {
	return int(t.Weekday())*24 + t.Hour()
}

// FitTrendSeason fits the decomposition over (timestamp, count) pairs.
// It needs at least two distinct timestamps to anchor a trend.
func FitTrendSeason(times []time.Time, counts []float64) (*TrendSeason, error) {
	if len(times) != len(counts) {
		return nil, errors.New("times and counts are misaligned")
	}
	if len(times) < 2 {
		return nil, errors.New("need at least two observations to fit a trend")
	}

	origin := times[0]
	for _, t := range times[1:] {
		if t.Before(origin) {
			origin = t
		}
	}

	xs := make([]float64, len(times))
	distinct := false
	for i, t := range times {
		xs[i] = t.Sub(origin).Hours()
		if xs[i] != xs[0] {
			distinct = true
		}
	}
	if !distinct {
		return nil, errors.New("need at least two distinct timestamps to fit a trend")
	}

	intercept, slope := stat.LinearRegression(xs, counts, nil, false)
	if math.IsNaN(intercept) || math.IsNaN(slope) {
		return nil, errors.New("trend regression is degenerate")
	}

	m := &TrendSeason{
		Origin:    origin.UTC(),
		Intercept: intercept,
		Slope:     slope,
		Season:    make(map[int]float64),
	}

	// Seasonal component: mean detrended residual per (weekday, hour) slot.
	sums := make(map[int]float64)
	counts2 := make(map[int]int)
	for i, t := range times {
		r := counts[i] - (intercept + slope*xs[i])
		k := seasonKey(t.UTC())
		sums[k] += r
		counts2[k]++
	}
	for k, s := range sums {
		m.Season[k] = s / float64(counts2[k])
	}

	// Residual spread after both components, for prediction bands.
	var sse float64
	for i, t := range times {
		d := counts[i] - m.Predict(t)
		sse += d * d
	}
	m.ResidualStd = math.Sqrt(sse / float64(len(times)))
	return m, nil
}

// Predict returns the decomposition value at t, floored at zero.
func (m *TrendSeason) Predict(t time.Time) float64 {
	t = t.UTC()
	v := m.Intercept + m.Slope*t.Sub(m.Origin).Hours() + m.Season[seasonKey(t)]
	if v < 0 {
		return 0
	}
	return v
}

// Band returns the 95% prediction band around Predict(t). The lower bound
// is floored at zero.
func (m *TrendSeason) Band(t time.Time) (lo, hi float64) {
	p := m.Predict(t)
	delta := 1.96 * m.ResidualStd
	lo = p - delta
	if lo < 0 {
		lo = 0
	}
	return lo, p + delta
}
