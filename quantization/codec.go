package quantization

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/pqcodec/distance"
	"github.com/hupe1980/pqcodec/internal/simd"
)

// Codec combines a ProductQuantizer with an optional NormQuantizer. It is
// the unit that gets trained, persisted and published.
//
// With norm quantization a code is the PQ code of the unit-length direction
// followed by one norm entry, and decoding scales the decoded direction by
// the decoded norm.
type Codec struct {
	cfg    Config
	pq     *ProductQuantizer
	norm   *NormQuantizer
	pqSize int

	// Squared norms of every PQ centroid, m*k. Only set with norm.
	centroidNorms []float64

	sdcOnce sync.Once
	sdc     *CodecSymmetricTable
	sdcErr  error
}

// NewCodec assembles a codec. norm must be nil exactly when the quantizer's
// config has no norm quantization.
func NewCodec(pq *ProductQuantizer, norm *NormQuantizer) (*Codec, error) {
	if pq == nil {
		return nil, &ConfigError{Field: "product quantizer", Value: 0, Reason: "is nil"}
	}
	cfg := pq.Config()
	c := &Codec{pq: pq, norm: norm, pqSize: pq.BytesPerVector()}
	if norm != nil {
		cfg.NormQuantization = true
		cfg.NormBits = norm.Bits()
		c.centroidNorms = make([]float64, pq.m*pq.k)
		for i, cb := range pq.codebooks {
			for j := 0; j < pq.k; j++ {
				ctr := cb.Centroid(j)
				c.centroidNorms[i*pq.k+j] = simd.DotF64(ctr, ctr)
			}
		}
	}
	c.cfg = cfg
	return c, nil
}

// Config returns the full codec shape.
func (c *Codec) Config() Config { return c.cfg }

// Dimension returns the vector length.
func (c *Codec) Dimension() int { return c.cfg.Dimension }

// PQ returns the product quantizer.
func (c *Codec) PQ() *ProductQuantizer { return c.pq }

// Norm returns the norm quantizer or nil.
func (c *Codec) Norm() *NormQuantizer { return c.norm }

// CodeSize returns the size of one code in bytes.
func (c *Codec) CodeSize() int { return c.cfg.CodeSize() }

// CompressionRatio returns the ratio of float32 vector size to code size.
func (c *Codec) CompressionRatio() float64 {
	return float64(c.cfg.Dimension*4) / float64(c.CodeSize())
}

// Encode quantizes v into a new code.
func (c *Codec) Encode(v []float32) ([]byte, error) {
	code := make([]byte, c.CodeSize())
	if err := c.EncodeInto(code, v); err != nil {
		return nil, err
	}
	return code, nil
}

// EncodeInto quantizes v into dst.
func (c *Codec) EncodeInto(dst []byte, v []float32) error {
	if len(v) != c.cfg.Dimension {
		return &ErrDimensionMismatch{Expected: c.cfg.Dimension, Actual: len(v)}
	}
	if len(dst) != c.CodeSize() {
		return &ErrCodeLength{Expected: c.CodeSize(), Actual: len(dst)}
	}
	if c.norm == nil {
		_, err := c.pq.EncodeInto(dst, v)
		return err
	}

	dir, n := splitNorm(v)
	if _, err := c.pq.EncodeInto(dst[:c.pqSize], dir); err != nil {
		return err
	}
	idx, _ := c.norm.Encode(n)
	putEntry(dst[c.pqSize:], 0, c.norm.unit, idx)
	return nil
}

// EncodeBatch encodes every vector of src on at most workers goroutines and
// returns the codes back to back in input order.
func (c *Codec) EncodeBatch(ctx context.Context, src VectorSource, workers int) ([]byte, error) {
	if c.norm == nil {
		return c.pq.EncodeBatch(ctx, src, workers)
	}
	size := c.CodeSize()
	out := make([]byte, src.Len()*size)
	err := parallelRange(ctx, src.Len(), workers, func(i int) error {
		if err := c.EncodeInto(out[i*size:(i+1)*size], src.At(i)); err != nil {
			return fmt.Errorf("vector %d: %w", i, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Decode reconstructs the approximate vector of code.
func (c *Codec) Decode(code []byte) ([]float32, error) {
	dst := make([]float32, c.cfg.Dimension)
	if err := c.DecodeInto(dst, code); err != nil {
		return nil, err
	}
	return dst, nil
}

// DecodeInto writes the approximate vector of code into dst.
func (c *Codec) DecodeInto(dst []float32, code []byte) error {
	if len(code) != c.CodeSize() {
		return &ErrCodeLength{Expected: c.CodeSize(), Actual: len(code)}
	}
	if c.norm == nil {
		return c.pq.DecodeInto(dst, code)
	}
	n, err := c.norm.Decode(getEntry(code[c.pqSize:], 0, c.norm.unit))
	if err != nil {
		return err
	}
	if err := c.pq.DecodeInto(dst, code[:c.pqSize]); err != nil {
		return err
	}
	simd.ScaleInPlace(dst, n)
	return nil
}

// NormOf returns the decoded norm stored in code, or 0 without norm
// quantization.
func (c *Codec) NormOf(code []byte) (float32, error) {
	if len(code) != c.CodeSize() {
		return 0, &ErrCodeLength{Expected: c.CodeSize(), Actual: len(code)}
	}
	if c.norm == nil {
		return 0, nil
	}
	return c.norm.Decode(getEntry(code[c.pqSize:], 0, c.norm.unit))
}

// splitNorm returns the unit-length direction of v and its norm. A zero
// vector yields a zero direction and norm 0.
func splitNorm(v []float32) ([]float32, float32) {
	dir, ok := distance.NormalizeL2Copy(v)
	if !ok {
		return make([]float32, len(v)), 0
	}
	return dir, distance.Norm(v)
}

// QueryTable scores codes of a Codec against one raw query.
//
// Without norm quantization it wraps a DistanceTable. With norm
// quantization a code decodes to s*u, so
//
//	||q - s*u||^2 = ||q||^2 - 2s(q.u) + s^2 ||u||^2
//
// and both q.u and ||u||^2 are sums of per-subspace lookups.
type QueryTable struct {
	c    *Codec
	adc  *DistanceTable
	qq   float64
	dots []float64 // m*k
}

// NewQueryTable builds the lookup tables for query.
func (c *Codec) NewQueryTable(query []float32) (*QueryTable, error) {
	if len(query) != c.cfg.Dimension {
		return nil, &ErrDimensionMismatch{Expected: c.cfg.Dimension, Actual: len(query)}
	}
	if c.norm == nil {
		adc, err := c.pq.NewDistanceTable(query)
		if err != nil {
			return nil, err
		}
		return &QueryTable{c: c, adc: adc}, nil
	}

	pq := c.pq
	qt := &QueryTable{c: c, qq: simd.DotF64(query, query), dots: make([]float64, pq.m*pq.k)}
	for i, cb := range pq.codebooks {
		sub := pq.subvector(query, i)
		for j := 0; j < pq.k; j++ {
			qt.dots[i*pq.k+j] = simd.DotF64(sub, cb.Centroid(j))
		}
	}
	return qt, nil
}

// Distance returns the approximate squared distance between the query and
// the vector encoded by code.
func (qt *QueryTable) Distance(code []byte) (float32, error) {
	c := qt.c
	if len(code) != c.CodeSize() {
		return 0, &ErrCodeLength{Expected: c.CodeSize(), Actual: len(code)}
	}
	if qt.adc != nil {
		return qt.adc.Distance(code)
	}

	pq := c.pq
	pqCode := code[:c.pqSize]
	if err := pq.checkCode(pqCode); err != nil {
		return 0, err
	}
	s, err := c.norm.Decode(getEntry(code[c.pqSize:], 0, c.norm.unit))
	if err != nil {
		return 0, err
	}
	var qu, uu float64
	for i := 0; i < pq.m; i++ {
		off := i*pq.k + getEntry(pqCode, i, pq.unit)
		qu += qt.dots[off]
		uu += c.centroidNorms[off]
	}
	sf := float64(s)
	return clampSquared(qt.qq - 2*sf*qu + sf*sf*uu), nil
}

// DistanceBatch scores len(out) codes stored back to back in codes.
func (qt *QueryTable) DistanceBatch(codes []byte, out []float32) error {
	size := qt.c.CodeSize()
	if len(codes) != len(out)*size {
		return &ErrCodeLength{Expected: len(out) * size, Actual: len(codes)}
	}
	for j := range out {
		d, err := qt.Distance(codes[j*size : (j+1)*size])
		if err != nil {
			return fmt.Errorf("code %d: %w", j, err)
		}
		out[j] = d
	}
	return nil
}

// Release returns pooled buffers. The table must not be used afterwards.
func (qt *QueryTable) Release() {
	if qt.adc != nil {
		qt.adc.Release()
		qt.adc = nil
	}
	qt.dots = nil
}
