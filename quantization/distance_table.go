package quantization

import (
	"fmt"

	"github.com/hupe1980/pqcodec/internal/simd"
)

// MaxSymmetricCentroids bounds k for symmetric tables. A table holds
// m*k*k float64 values.
const MaxSymmetricCentroids = 1024

// DistanceTable holds the squared distances from one query to every
// centroid of every subspace. Tables are pooled per quantizer: call Release
// when done and do not use the table afterwards.
//
// Entries stay in float64 and lookups narrow once, so Distance(code) equals
// distance.SquaredL2(query, Decode(code)).
type DistanceTable struct {
	pq    *ProductQuantizer
	table []float64 // m*k, row i is subspace i
}

// NewDistanceTable builds the asymmetric table for query.
func (pq *ProductQuantizer) NewDistanceTable(query []float32) (*DistanceTable, error) {
	if len(query) != pq.cfg.Dimension {
		return nil, &ErrDimensionMismatch{Expected: pq.cfg.Dimension, Actual: len(query)}
	}
	t := pq.tables.Get().(*DistanceTable)
	for i := 0; i < pq.m; i++ {
		cb := pq.codebooks[i]
		row := t.table[i*pq.k : (i+1)*pq.k]
		simd.SquaredL2Batch(pq.subvector(query, i), cb.centroids, pq.ds, row)
	}
	return t, nil
}

// Distance returns the approximate squared distance between the query and
// the vector encoded by code.
func (t *DistanceTable) Distance(code []byte) (float32, error) {
	if err := t.pq.checkCode(code); err != nil {
		return 0, err
	}
	return float32(t.lookup(code)), nil
}

// DistanceBatch scores len(out) codes stored back to back in codes.
func (t *DistanceTable) DistanceBatch(codes []byte, out []float32) error {
	size := t.pq.BytesPerVector()
	if len(codes) != len(out)*size {
		return &ErrCodeLength{Expected: len(out) * size, Actual: len(codes)}
	}
	for j := range out {
		code := codes[j*size : (j+1)*size]
		if err := t.pq.checkCode(code); err != nil {
			return fmt.Errorf("code %d: %w", j, err)
		}
		out[j] = float32(t.lookup(code))
	}
	return nil
}

// Partial returns the squared distance from the query's subvector i to
// centroid c of subspace i.
func (t *DistanceTable) Partial(i, c int) float32 {
	return float32(t.table[i*t.pq.k+c])
}

// Release returns the table to its quantizer's pool.
func (t *DistanceTable) Release() {
	if t == nil || t.pq == nil {
		return
	}
	t.pq.tables.Put(t)
}

func (t *DistanceTable) lookup(code []byte) float64 {
	pq := t.pq
	if pq.unit == 1 {
		return simd.PqAdcLookup(t.table, code, pq.m, pq.k)
	}
	var sum float64
	for i := 0; i < pq.m; i++ {
		sum += t.table[i*pq.k+getEntry(code, i, pq.unit)]
	}
	return sum
}

// SymmetricTable holds the squared distances between every pair of
// centroids of every subspace. It is built once per quantizer and shared.
// Like DistanceTable it sums in float64 and narrows once.
type SymmetricTable struct {
	m, k, unit int
	size       int
	table      []float64 // m*k*k
}

// SymmetricTable returns the quantizer's symmetric table, building it on
// first use. It fails with ErrTableTooLarge when k > MaxSymmetricCentroids.
func (pq *ProductQuantizer) SymmetricTable() (*SymmetricTable, error) {
	pq.sdcOnce.Do(func() {
		if pq.k > MaxSymmetricCentroids {
			pq.sdcErr = fmt.Errorf("%w: k=%d exceeds %d", ErrTableTooLarge, pq.k, MaxSymmetricCentroids)
			return
		}
		pq.sdc = buildSymmetricTable(pq)
	})
	return pq.sdc, pq.sdcErr
}

func buildSymmetricTable(pq *ProductQuantizer) *SymmetricTable {
	k := pq.k
	kk := k * k
	t := &SymmetricTable{
		m:     pq.m,
		k:     k,
		unit:  pq.unit,
		size:  pq.BytesPerVector(),
		table: make([]float64, pq.m*kk),
	}
	for i, cb := range pq.codebooks {
		block := t.table[i*kk : (i+1)*kk]
		for a := 0; a < k; a++ {
			ca := cb.Centroid(a)
			for b := a + 1; b < k; b++ {
				d := simd.SquaredL2F64(ca, cb.Centroid(b))
				block[a*k+b] = d
				block[b*k+a] = d
			}
		}
	}
	return t
}

// Lookup returns the squared distance between centroids a and b of
// subspace i.
func (t *SymmetricTable) Lookup(i, a, b int) float32 {
	return float32(t.lookup(i, a, b))
}

func (t *SymmetricTable) lookup(i, a, b int) float64 {
	return t.table[i*t.k*t.k+a*t.k+b]
}

// Distance returns the squared distance between the vectors encoded by a
// and b.
func (t *SymmetricTable) Distance(a, b []byte) (float32, error) {
	if len(a) != t.size {
		return 0, &ErrCodeLength{Expected: t.size, Actual: len(a)}
	}
	if len(b) != t.size {
		return 0, &ErrCodeLength{Expected: t.size, Actual: len(b)}
	}
	var sum float64
	for i := 0; i < t.m; i++ {
		ia, ib := getEntry(a, i, t.unit), getEntry(b, i, t.unit)
		if ia >= t.k {
			return 0, &ErrCentroidIndex{Subspace: i, Index: ia, K: t.k}
		}
		if ib >= t.k {
			return 0, &ErrCentroidIndex{Subspace: i, Index: ib, K: t.k}
		}
		sum += t.lookup(i, ia, ib)
	}
	return float32(sum), nil
}
