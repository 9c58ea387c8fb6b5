package features

import "sort"

// Encoder maps categorical feature values onto stable integer codes. Fit
// once on training vectors; prediction-time values that were never seen
// during fitting are an error, not a silent new code.
type Encoder struct {
	// Codes[feature][value] is the integer code assigned at fit time.
	Codes map[string]map[string]int
}

// Fit assigns codes to every categorical value present in the vectors.
// Codes are assigned in sorted value order so fitting is deterministic.
func (e *Encoder) Fit(vectors []Vector) {
	values := make(map[string]map[string]bool)
	for _, v := range vectors {
		for feature, value := range v.Cat {
			if values[feature] == nil {
				values[feature] = make(map[string]bool)
			}
			values[feature][value] = true
		}
	}

	e.Codes = make(map[string]map[string]int, len(values))
	for feature, seen := range values {
		sorted := make([]string, 0, len(seen))
		for value := range seen {
			sorted = append(sorted, value)
		}
		sort.Strings(sorted)

		codes := make(map[string]int, len(sorted))
		for i, value := range sorted {
			codes[value] = i
		}
		e.Codes[feature] = codes
	}
}

// Fitted reports whether Fit has been called.
func (e *Encoder) Fitted() bool { return e.Codes != nil }

// Transform returns a copy of v with every categorical feature folded into
// the numeric map as its fitted code. An unfitted value returns
// *UnseenCategoryError.
func (e *Encoder) Transform(v Vector) (Vector, error) {
	out := v.Clone()
	for feature, value := range out.Cat {
		codes, ok := e.Codes[feature]
		if !ok {
			return Vector{}, &UnseenCategoryError{Feature: feature, Value: value}
		}
		code, ok := codes[value]
		if !ok {
			return Vector{}, &UnseenCategoryError{Feature: feature, Value: value}
		}
		out.Num[feature] = float64(code)
		delete(out.Cat, feature)
	}
	return out, nil
}

// TransformAll applies Transform to every vector, stopping at the first
// unseen value.
func (e *Encoder) TransformAll(vectors []Vector) ([]Vector, error) {
	out := make([]Vector, len(vectors))
	for i, v := range vectors {
		t, err := e.Transform(v)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}
