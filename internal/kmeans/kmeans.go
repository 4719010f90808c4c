package kmeans

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/pqcodec/internal/simd"
)

// ErrInvalidInput is returned for malformed training input.
var ErrInvalidInput = errors.New("kmeans: invalid input")

// Options controls a training run.
type Options struct {
	// MaxIterations bounds the number of assign/update rounds. Must be > 0.
	MaxIterations int

	// Tolerance stops training once no centroid moved by more than this
	// squared distance in an update step.
	Tolerance float32
}

// Result holds the trained centroids and run statistics.
type Result struct {
	// Centroids is the flattened k*dim centroid matrix.
	Centroids []float32

	// Counts is the number of points assigned to each centroid in the final
	// assignment step.
	Counts []int

	// Empty contains the centroids that received no points in the final
	// assignment step.
	Empty *roaring.Bitmap

	// Inertia is the sum of squared distances of the points to their
	// centroid in the final assignment step.
	Inertia float64

	Iterations int
	Converged  bool
}

// Assign returns the index of the nearest centroid to vec and its squared
// distance before narrowing. Centroid 0 is the initial best; a later centroid
// wins only when its narrowed distance is strictly smaller, so ties resolve
// to the lowest index exactly as simd.SquaredL2 would rank them.
func Assign(vec, centroids []float32, dim int) (int, float64) {
	k := len(centroids) / dim
	best := 0
	minDist := simd.SquaredL2F64(vec, centroids[:dim])
	for j := 1; j < k; j++ {
		off := j * dim
		d := simd.SquaredL2F64(vec, centroids[off:off+dim])
		if float32(d) < float32(minDist) {
			minDist = d
			best = j
		}
	}
	return best, minDist
}

// Train clusters the n = len(points)/dim points into k centroids.
//
// The initial centroids are the first k entries of a permutation drawn from
// rng; when n < k points are reused cyclically. ctx is checked before each
// iteration.
func Train(ctx context.Context, points []float32, dim, k int, rng *rand.Rand, opts Options) (*Result, error) {
	if dim <= 0 || k <= 0 {
		return nil, fmt.Errorf("%w: dim=%d k=%d", ErrInvalidInput, dim, k)
	}
	if len(points) == 0 || len(points)%dim != 0 {
		return nil, fmt.Errorf("%w: %d values is not a positive multiple of dim %d", ErrInvalidInput, len(points), dim)
	}
	if opts.MaxIterations <= 0 {
		return nil, fmt.Errorf("%w: max iterations %d", ErrInvalidInput, opts.MaxIterations)
	}

	n := len(points) / dim
	centroids := make([]float32, k*dim)

	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		src := perm[i%n] * dim
		copy(centroids[i*dim:(i+1)*dim], points[src:src+dim])
	}

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}
	counts := make([]int, k)
	sums := make([]float64, k*dim)

	res := &Result{Centroids: centroids, Counts: counts}

	for iter := 0; iter < opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changed := false
		inertia := 0.0
		for i := 0; i < n; i++ {
			c, d := Assign(points[i*dim:(i+1)*dim], centroids, dim)
			inertia += d
			if assignments[i] != c {
				assignments[i] = c
				changed = true
			}
		}
		res.Iterations = iter + 1
		res.Inertia = inertia

		if !changed {
			res.Converged = true
			break
		}

		shift := update(points, centroids, assignments, counts, sums, dim)
		if shift <= opts.Tolerance {
			res.Converged = true
			break
		}
	}

	// Counts and Empty describe the final assignment step.
	for j := range counts {
		counts[j] = 0
	}
	for _, c := range assignments {
		counts[c]++
	}

	res.Empty = roaring.New()
	for j, c := range counts {
		if c == 0 {
			res.Empty.Add(uint32(j))
		}
	}

	return res, nil
}

// update recomputes every non-empty centroid as the mean of its points and
// returns the largest squared movement of any centroid.
func update(points, centroids []float32, assignments, counts []int, sums []float64, dim int) float32 {
	for i := range sums {
		sums[i] = 0
	}
	for i := range counts {
		counts[i] = 0
	}

	for i, c := range assignments {
		vec := points[i*dim : (i+1)*dim]
		acc := sums[c*dim : (c+1)*dim]
		for d, v := range vec {
			acc[d] += float64(v)
		}
		counts[c]++
	}

	var maxShift float32
	next := make([]float32, dim)
	for j, cnt := range counts {
		if cnt == 0 {
			continue
		}
		acc := sums[j*dim : (j+1)*dim]
		for d := range next {
			next[d] = float32(acc[d] / float64(cnt))
		}
		cur := centroids[j*dim : (j+1)*dim]
		if s := simd.SquaredL2(next, cur); s > maxShift {
			maxShift = s
		}
		copy(cur, next)
	}
	return maxShift
}
