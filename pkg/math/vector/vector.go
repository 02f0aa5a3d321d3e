// Package vector provides float32 vector primitives shared across themescan
// packages. All functions tolerate mismatched or empty inputs by returning
// zero values rather than panicking, so callers on hot paths can skip
// defensive length checks.
package vector

import "math"

// Dot returns the dot product of a and b. Mismatched lengths yield 0.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Zero vectors or mismatched lengths yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// Euclidean returns the Euclidean distance between a and b.
// Mismatched lengths yield 0.
func Euclidean(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-L2 copy of v. A zero vector is returned unchanged
// (as a copy) so downstream distance math stays finite.
func Normalize(v []float32) []float32 {
	out := append([]float32(nil), v...)
	NormalizeInPlace(out)
	return out
}

// NormalizeInPlace scales v to unit L2 norm in place. Zero vectors are left
// untouched.
func NormalizeInPlace(v []float32) {
	n := Norm(v)
	if n == 0 {
		return
	}
	inv := float32(1 / n)
	for i := range v {
		v[i] *= inv
	}
}

// Centroid returns the element-wise mean of vecs. Vectors whose length differs
// from the first are skipped. Returns nil when no usable vectors exist.
func Centroid(vecs [][]float32) []float32 {
	var dim int
	for _, v := range vecs {
		if len(v) > 0 {
			dim = len(v)
			break
		}
	}
	if dim == 0 {
		return nil
	}
	sums := make([]float64, dim)
	count := 0
	for _, v := range vecs {
		if len(v) != dim {
			continue
		}
		for d := range v {
			sums[d] += float64(v[d])
		}
		count++
	}
	if count == 0 {
		return nil
	}
	out := make([]float32, dim)
	for d := range sums {
		out[d] = float32(sums[d] / float64(count))
	}
	return out
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
