package graph

import (
	"fmt"
	"math"
)

// CosineDistance returns 1 - cos(a, b). Identical directions give 0, larger
// values mean less similar vectors. Both vectors must have the same length
// and a non-zero magnitude.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0, ErrZeroVector
	}

	return 1 - dot/(math.Sqrt(magA)*math.Sqrt(magB)), nil
}
