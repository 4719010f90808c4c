package distance

import (
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/pqcodec/internal/simd"
)

// SquaredL2 returns the sum of squared element-wise differences of a and b.
// The sum is accumulated in float64 and narrowed once.
//
// Panics if len(a) != len(b).
func SquaredL2(a, b []float32) float32 {
	mustSameLength(a, b)
	return simd.SquaredL2(a, b)
}

// Dot returns the dot product of a and b.
//
// Panics if len(a) != len(b).
func Dot(a, b []float32) float32 {
	mustSameLength(a, b)
	return simd.Dot(a, b)
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	return float32(math.Sqrt(simd.DotF64(v, v)))
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	norm := Norm(v)
	if norm == 0 {
		return false
	}
	simd.ScaleInPlace(v, 1/norm)
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

func mustSameLength(a, b []float32) {
	if len(a) != len(b) {
		panic(fmt.Sprintf("distance: length mismatch: %d != %d", len(a), len(b)))
	}
}
