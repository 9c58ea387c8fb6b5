// Package features derives model inputs from cleaned records. Training and
// prediction both go through this package so the two always see the same
// feature keys in the same order.
package features

import (
	"fmt"
	"sort"
)

// Vector is one observation's features. Numeric and categorical values are
// kept apart until an Encoder folds the categoricals in.
type Vector struct {
	Num map[string]float64
	Cat map[string]string
}

func newVector() Vector {
	return Vector{Num: make(map[string]float64), Cat: make(map[string]string)}
}

// Clone returns a deep copy of the vector.
func (v Vector) Clone() Vector {
	out := Vector{Num: make(map[string]float64, len(v.Num)), Cat: make(map[string]string, len(v.Cat))}
	for k, val := range v.Num {
		out.Num[k] = val
	}
	for k, val := range v.Cat {
		out.Cat[k] = val
	}
	return out
}

// Keys returns the sorted union of numeric feature names across vectors.
// This is the canonical column order for matrix building; train and serve
// must both derive it from here.
func Keys(vectors []Vector) []string {
	seen := make(map[string]bool)
	for _, v := range vectors {
		for k := range v.Num {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Materialize builds a dense row-major matrix from vectors using the given
// column order. A vector missing a key is an error: it means train and
// serve disagreed about the feature set.
func Materialize(vectors []Vector, keys []string) ([][]float64, error) {
	rows := make([][]float64, len(vectors))
	for i, v := range vectors {
		row := make([]float64, len(keys))
		for j, k := range keys {
			val, ok := v.Num[k]
			if !ok {
				return nil, fmt.Errorf("vector %d missing feature %q", i, k)
			}
			row[j] = val
		}
		rows[i] = row
	}
	return rows, nil
}

// UnseenCategoryError reports a categorical value that was not present
// when the encoder was fitted.
type UnseenCategoryError struct {
	Feature string
	Value   string
}

func (e *UnseenCategoryError) Error() string {
	return fmt.Sprintf("unseen category %q for feature %q", e.Value, e.Feature)
}
