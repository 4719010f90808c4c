package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/pqcodec/distance"
	"github.com/hupe1980/pqcodec/internal/simd"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// FillUniform fills dst with random values in range [0, 1).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UniformVectors generates random vectors with values in range [0, 1).
// The vectors share one backing array.
func (r *RNG) UniformVectors(num, dim int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	vectors := make([][]float32, num)
	for i := range num {
		vec := data[i*dim : (i+1)*dim]
		for j := range vec {
			vec[j] = r.rand.Float32()
		}
		vectors[i] = vec
	}
	return vectors
}

// GaussianVectors generates vectors drawn from a standard normal distribution.
func (r *RNG) GaussianVectors(num, dim int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	vectors := make([][]float32, num)
	for i := range num {
		vec := data[i*dim : (i+1)*dim]
		for j := range vec {
			vec[j] = float32(r.rand.NormFloat64())
		}
		vectors[i] = vec
	}
	return vectors
}

// ScaledVectors generates Gaussian directions with norms uniform in
// [minNorm, maxNorm). Useful for exercising norm quantization.
func (r *RNG) ScaledVectors(num, dim int, minNorm, maxNorm float32) [][]float32 {
	vectors := r.GaussianVectors(num, dim)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, vec := range vectors {
		n := distance.Norm(vec)
		if n == 0 {
			continue
		}
		target := minNorm + r.rand.Float32()*(maxNorm-minNorm)
		simd.ScaleInPlace(vec, target/n)
	}
	return vectors
}

// ClusteredVectors generates num vectors around clusters centers spread
// across [-scale, scale) per coordinate, with Gaussian noise of stddev
// spread. Vector i belongs to cluster i % clusters.
func (r *RNG) ClusteredVectors(num, dim, clusters int, scale, spread float32) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	centers := make([][]float32, clusters)
	for c := range centers {
		center := make([]float32, dim)
		for j := range center {
			center[j] = (r.rand.Float32()*2 - 1) * scale
		}
		centers[c] = center
	}

	data := make([]float32, num*dim)
	vectors := make([][]float32, num)
	for i := range num {
		center := centers[i%clusters]
		vec := data[i*dim : (i+1)*dim]
		for j := range vec {
			vec[j] = center[j] + float32(r.rand.NormFloat64())*spread
		}
		vectors[i] = vec
	}
	return vectors
}

// MeanSquaredError returns the mean squared L2 distance between paired
// vectors of a and b.
func MeanSquaredError(a, b [][]float32) float64 {
	if len(a) == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(distance.SquaredL2(a[i], b[i]))
	}
	return sum / float64(len(a))
}

// Variance returns the total variance of vectors: the mean squared distance
// to their centroid. A codec that does no better than the mean scores this
// as its reconstruction error.
func Variance(vectors [][]float32) float64 {
	if len(vectors) == 0 {
		return 0
	}
	dim := len(vectors[0])
	mean := make([]float64, dim)
	for _, v := range vectors {
		for j, x := range v {
			mean[j] += float64(x)
		}
	}
	for j := range mean {
		mean[j] /= float64(len(vectors))
	}
	var sum float64
	for _, v := range vectors {
		for j, x := range v {
			d := float64(x) - mean[j]
			sum += d * d
		}
	}
	return sum / float64(len(vectors))
}

// NearestNeighbor returns the index of the vector closest to query by exact
// squared L2 distance. Ties keep the lowest index.
func NearestNeighbor(vectors [][]float32, query []float32) int {
	best, bestDist := -1, float32(math.MaxFloat32)
	for i, v := range vectors {
		if d := distance.SquaredL2(query, v); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
