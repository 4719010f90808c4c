package quantization

import (
	"fmt"

	"github.com/hupe1980/pqcodec/internal/simd"
)

// CodecSymmetricTable scores pairs of full codec codes.
//
// Without norm quantization it wraps the quantizer's SymmetricTable. With
// norm quantization codes decode to s_a*u_a and s_b*u_b, so
//
//	||s_a*u_a - s_b*u_b||^2 = s_a^2 ||u_a||^2 + s_b^2 ||u_b||^2 - 2 s_a s_b (u_a.u_b)
//
// and u_a.u_b is a sum of per-subspace centroid dot products.
type CodecSymmetricTable struct {
	c    *Codec
	sdc  *SymmetricTable
	dots []float64 // m*k*k, only with norm
}

// SymmetricTable returns the codec's symmetric table, building it on first
// use. It fails with ErrTableTooLarge when k > MaxSymmetricCentroids.
func (c *Codec) SymmetricTable() (*CodecSymmetricTable, error) {
	c.sdcOnce.Do(func() {
		if c.norm == nil {
			sdc, err := c.pq.SymmetricTable()
			if err != nil {
				c.sdcErr = err
				return
			}
			c.sdc = &CodecSymmetricTable{c: c, sdc: sdc}
			return
		}
		pq := c.pq
		if pq.k > MaxSymmetricCentroids {
			c.sdcErr = fmt.Errorf("%w: k=%d exceeds %d", ErrTableTooLarge, pq.k, MaxSymmetricCentroids)
			return
		}
		c.sdc = &CodecSymmetricTable{c: c, dots: buildDotTable(pq)}
	})
	return c.sdc, c.sdcErr
}

func buildDotTable(pq *ProductQuantizer) []float64 {
	k := pq.k
	kk := k * k
	dots := make([]float64, pq.m*kk)
	for i, cb := range pq.codebooks {
		block := dots[i*kk : (i+1)*kk]
		for a := 0; a < k; a++ {
			ca := cb.Centroid(a)
			for b := a; b < k; b++ {
				d := simd.DotF64(ca, cb.Centroid(b))
				block[a*k+b] = d
				block[b*k+a] = d
			}
		}
	}
	return dots
}

// Distance returns the squared distance between the vectors encoded by a
// and b.
func (t *CodecSymmetricTable) Distance(a, b []byte) (float32, error) {
	c := t.c
	if err := c.checkPair(a, b); err != nil {
		return 0, err
	}
	if t.sdc != nil {
		return t.sdc.Distance(a, b)
	}
	pq := c.pq
	kk := pq.k * pq.k
	return c.normPairDistance(a, b, func(i, ia, ib int) float64 {
		return t.dots[i*kk+ia*pq.k+ib]
	})
}

// SymmetricDistance returns the squared distance between the vectors
// encoded by a and b without building a table.
func (c *Codec) SymmetricDistance(a, b []byte) (float32, error) {
	if err := c.checkPair(a, b); err != nil {
		return 0, err
	}
	if c.norm == nil {
		return c.pq.SymmetricDistance(a, b)
	}
	pq := c.pq
	return c.normPairDistance(a, b, func(i, ia, ib int) float64 {
		cb := pq.codebooks[i]
		return simd.DotF64(cb.Centroid(ia), cb.Centroid(ib))
	})
}

func (c *Codec) checkPair(a, b []byte) error {
	if len(a) != c.CodeSize() {
		return &ErrCodeLength{Expected: c.CodeSize(), Actual: len(a)}
	}
	if len(b) != c.CodeSize() {
		return &ErrCodeLength{Expected: c.CodeSize(), Actual: len(b)}
	}
	return nil
}

// normPairDistance expands the norm-scaled pair distance. dot returns the
// dot product of centroids ia and ib of subspace i.
func (c *Codec) normPairDistance(a, b []byte, dot func(i, ia, ib int) float64) (float32, error) {
	pq := c.pq
	pa, pb := a[:c.pqSize], b[:c.pqSize]
	if err := pq.checkCode(pa); err != nil {
		return 0, err
	}
	if err := pq.checkCode(pb); err != nil {
		return 0, err
	}
	sa, err := c.norm.Decode(getEntry(a[c.pqSize:], 0, c.norm.unit))
	if err != nil {
		return 0, err
	}
	sb, err := c.norm.Decode(getEntry(b[c.pqSize:], 0, c.norm.unit))
	if err != nil {
		return 0, err
	}
	var aa, bb, ab float64
	for i := 0; i < pq.m; i++ {
		ia, ib := getEntry(pa, i, pq.unit), getEntry(pb, i, pq.unit)
		aa += c.centroidNorms[i*pq.k+ia]
		bb += c.centroidNorms[i*pq.k+ib]
		ab += dot(i, ia, ib)
	}
	fa, fb := float64(sa), float64(sb)
	return clampSquared(fa*fa*aa + fb*fb*bb - 2*fa*fb*ab), nil
}

// clampSquared narrows an expanded squared distance, clamping the negative
// values cancellation can produce to 0.
func clampSquared(d float64) float32 {
	if d < 0 {
		return 0
	}
	return float32(d)
}
