package quantization

import (
	"fmt"
	"slices"

	"github.com/hupe1980/pqcodec/internal/kmeans"
)

// Codebook is the immutable set of centroids of one subspace.
// It is safe for concurrent use.
type Codebook struct {
	dim       int
	k         int
	centroids []float32 // k*dim, row-major
}

// NewCodebook creates a codebook from k*dim flattened centroids.
// The slice is copied.
func NewCodebook(dim int, centroids []float32) (*Codebook, error) {
	if dim <= 0 {
		return nil, &ConfigError{Field: "subvector dimension", Value: dim, Reason: "must be positive"}
	}
	if len(centroids) == 0 || len(centroids)%dim != 0 {
		return nil, &ConfigError{Field: "centroid values", Value: len(centroids), Reason: fmt.Sprintf("must be a positive multiple of %d", dim)}
	}
	return &Codebook{
		dim:       dim,
		k:         len(centroids) / dim,
		centroids: slices.Clone(centroids),
	}, nil
}

// Dim returns the centroid width.
func (cb *Codebook) Dim() int { return cb.dim }

// Len returns the number of centroids k.
func (cb *Codebook) Len() int { return cb.k }

// Centroid returns a read-only view of centroid i. The view's capacity is
// clipped so appends cannot reach the next centroid.
//
// Panics if i is outside [0, Len()).
func (cb *Codebook) Centroid(i int) []float32 {
	if i < 0 || i >= cb.k {
		panic(fmt.Sprintf("quantization: centroid %d out of range [0,%d)", i, cb.k))
	}
	off := i * cb.dim
	return cb.centroids[off : off+cb.dim : off+cb.dim]
}

// Centroids returns a copy of the flattened centroid matrix.
func (cb *Codebook) Centroids() []float32 {
	return slices.Clone(cb.centroids)
}

// Assign returns the nearest centroid to v and its squared distance.
// Centroid 0 is the initial best and later centroids win only when
// strictly closer, so ties resolve to the lowest index.
//
// Panics if len(v) != Dim().
func (cb *Codebook) Assign(v []float32) (int, float32) {
	idx, d := cb.assign(v)
	return idx, float32(d)
}

// assign is Assign with the distance left in float64 for summing across
// subspaces.
func (cb *Codebook) assign(v []float32) (int, float64) {
	if len(v) != cb.dim {
		panic(fmt.Sprintf("quantization: subvector length %d != codebook dimension %d", len(v), cb.dim))
	}
	return kmeans.Assign(v, cb.centroids, cb.dim)
}

// Equal reports whether both codebooks hold bit-identical centroids.
func (cb *Codebook) Equal(other *Codebook) bool {
	if cb.dim != other.dim || cb.k != other.k {
		return false
	}
	return slices.Equal(cb.centroids, other.centroids)
}
