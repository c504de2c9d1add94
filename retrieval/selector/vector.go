/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package selector

import "math"

// Normalize returns v scaled to unit length. NaN and infinite components
// are treated as zero. It reports false when the vector has no usable
// direction: a zero or non-finite norm.
func Normalize(v []float64) ([]float64, bool) {
	out := make([]float64, len(v))
	var sum float64
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			x = 0
		}
		out[i] = x
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, false
	}
	for i := range out {
		out[i] /= norm
	}
	return out, true
}

// Dot returns the dot product of two vectors, which for unit vectors is
// their cosine similarity. Vectors of different length score NaN.
func Dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.NaN()
	}
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// Valid reports whether a similarity score can be ranked.
func Valid(score float64) bool {
	return !math.IsNaN(score) && !math.IsInf(score, 0)
}
