package features

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes numeric features to zero mean and unit variance.
// Fit once on training vectors; the same fitted parameters are reused at
// prediction time and are serialized with the model.
type Scaler struct {
	Mean map[string]float64
	Std  map[string]float64
}

// Fit computes per-feature mean and standard deviation over the vectors.
// Features with zero variance scale to zero rather than dividing by zero.
func (s *Scaler) Fit(vectors []Vector, keys []string) error {
	if len(vectors) == 0 {
		return errors.New("cannot fit scaler on empty input")
	}
	s.Mean = make(map[string]float64, len(keys))
	s.Std = make(map[string]float64, len(keys))

	values := make([]float64, len(vectors))
	for _, k := range keys {
		for i, v := range vectors {
			values[i] = v.Num[k]
		}
		mean, std := stat.MeanStdDev(values, nil)
		s.Mean[k] = mean
		if len(vectors) < 2 {
			std = 0
		}
		s.Std[k] = std
	}
	return nil
}

// Fitted reports whether Fit has been called.
func (s *Scaler) Fitted() bool { return s.Mean != nil }

// Transform returns a copy of v with every fitted feature standardized.
// Features the scaler was not fitted on pass through unchanged.
func (s *Scaler) Transform(v Vector) Vector {
	out := v.Clone()
	for k, val := range out.Num {
		mean, ok := s.Mean[k]
		if !ok {
			continue
		}
		if std := s.Std[k]; std > 0 {
			out.Num[k] = (val - mean) / std
		} else {
			out.Num[k] = 0
		}
	}
	return out
}

// TransformAll applies Transform to every vector.
func (s *Scaler) TransformAll(vectors []Vector) []Vector {
	out := make([]Vector, len(vectors))
	for i, v := range vectors {
		out[i] = s.Transform(v)
	}
	return out
}
