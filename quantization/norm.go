package quantization

import "fmt"

// NormSubspace identifies the norm codebook in warnings and reports.
const NormSubspace = -2

// NormQuantizer is a scalar quantizer over vector norms: a codebook of
// one-dimensional centroids.
type NormQuantizer struct {
	cb    *Codebook
	nbits int
	unit  int
}

// NewNormQuantizer creates a norm quantizer from a power-of-two number of
// scalar centroids.
func NewNormQuantizer(centroids []float32) (*NormQuantizer, error) {
	nbits, ok := bitsFor(len(centroids))
	if !ok {
		return nil, &ConfigError{Field: "norm centroid count", Value: len(centroids), Reason: "must be a power of two"}
	}
	if nbits > MaxBits {
		return nil, &ConfigError{Field: "norm bits", Value: nbits, Reason: "must be in [0,16]"}
	}
	cb, err := NewCodebook(1, centroids)
	if err != nil {
		return nil, err
	}
	return &NormQuantizer{cb: cb, nbits: nbits, unit: unitBytes(nbits)}, nil
}

// Len returns the number of norm centroids.
func (nq *NormQuantizer) Len() int { return nq.cb.Len() }

// Bits returns log2(Len()).
func (nq *NormQuantizer) Bits() int { return nq.nbits }

// Codebook returns the underlying 1-D codebook.
func (nq *NormQuantizer) Codebook() *Codebook { return nq.cb }

// Encode returns the index of the centroid nearest to norm and its squared
// distance.
func (nq *NormQuantizer) Encode(norm float32) (int, float32) {
	return nq.cb.Assign([]float32{norm})
}

// Decode returns the norm stored at idx.
func (nq *NormQuantizer) Decode(idx int) (float32, error) {
	if idx < 0 || idx >= nq.cb.Len() {
		return 0, &ErrCentroidIndex{Subspace: NormSubspace, Index: idx, K: nq.cb.Len()}
	}
	return nq.cb.centroids[idx], nil
}

func (nq *NormQuantizer) String() string {
	return fmt.Sprintf("NormQuantizer(k=%d)", nq.cb.Len())
}
