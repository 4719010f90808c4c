package quantization

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pqcodec/internal/simd"
)

// ProductQuantizer encodes vectors as one centroid index per subspace.
// It is immutable after construction and safe for concurrent use.
type ProductQuantizer struct {
	cfg       Config
	m         int // number of subspaces
	k         int // centroids per subspace
	ds        int // subspace width
	unit      int // bytes per code entry
	codebooks []*Codebook

	sdcOnce sync.Once
	sdc     *SymmetricTable
	sdcErr  error

	tables sync.Pool
}

// NewProductQuantizer assembles a quantizer from one codebook per subspace.
// Every codebook must hold exactly 2^cfg.NBits centroids of width
// cfg.SubvectorDim. Norm settings in cfg are ignored.
func NewProductQuantizer(cfg Config, codebooks []*Codebook) (*ProductQuantizer, error) {
	cfg.NormQuantization = false
	cfg.NormBits = 0
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := cfg.NumSubvectors()
	if len(codebooks) != m {
		return nil, &ConfigError{Field: "codebook count", Value: len(codebooks), Reason: fmt.Sprintf("expected %d", m)}
	}

	k := cfg.NumCentroids()
	for i, cb := range codebooks {
		if cb == nil {
			return nil, &ConfigError{Field: "codebook", Value: i, Reason: "is nil"}
		}
		if cb.Dim() != cfg.SubvectorDim {
			return nil, &ConfigError{Field: "codebook dimension", Value: cb.Dim(), Reason: fmt.Sprintf("subspace %d: expected %d", i, cfg.SubvectorDim)}
		}
		if _, ok := bitsFor(cb.Len()); !ok {
			return nil, &ConfigError{Field: "centroid count", Value: cb.Len(), Reason: fmt.Sprintf("subspace %d: must be a power of two", i)}
		}
		if cb.Len() != k {
			return nil, &ConfigError{Field: "centroid count", Value: cb.Len(), Reason: fmt.Sprintf("subspace %d: expected %d", i, k)}
		}
	}

	pq := &ProductQuantizer{
		cfg:       cfg,
		m:         m,
		k:         k,
		ds:        cfg.SubvectorDim,
		unit:      unitBytes(cfg.NBits),
		codebooks: append([]*Codebook(nil), codebooks...),
	}
	pq.tables.New = func() any {
		return &DistanceTable{pq: pq, table: make([]float64, m*k)}
	}
	return pq, nil
}

// Config returns the quantizer shape.
func (pq *ProductQuantizer) Config() Config { return pq.cfg }

// Dimension returns the vector length d.
func (pq *ProductQuantizer) Dimension() int { return pq.cfg.Dimension }

// NumSubvectors returns m.
func (pq *ProductQuantizer) NumSubvectors() int { return pq.m }

// NumCentroids returns k.
func (pq *ProductQuantizer) NumCentroids() int { return pq.k }

// SubvectorDim returns ds.
func (pq *ProductQuantizer) SubvectorDim() int { return pq.ds }

// Codebook returns the codebook of subspace i.
func (pq *ProductQuantizer) Codebook(i int) *Codebook { return pq.codebooks[i] }

// BytesPerVector returns the code size in bytes.
func (pq *ProductQuantizer) BytesPerVector() int { return pq.m * pq.unit }

// CompressionRatio returns the ratio of float32 vector size to code size.
func (pq *ProductQuantizer) CompressionRatio() float64 {
	return float64(pq.cfg.Dimension*4) / float64(pq.BytesPerVector())
}

// Encode quantizes v into a new code.
func (pq *ProductQuantizer) Encode(v []float32) ([]byte, error) {
	code := make([]byte, pq.BytesPerVector())
	if _, err := pq.EncodeInto(code, v); err != nil {
		return nil, err
	}
	return code, nil
}

// EncodeWithDistances quantizes v and also returns the squared distance of
// each subvector to its assigned centroid.
func (pq *ProductQuantizer) EncodeWithDistances(v []float32) ([]byte, []float32, error) {
	if len(v) != pq.cfg.Dimension {
		return nil, nil, &ErrDimensionMismatch{Expected: pq.cfg.Dimension, Actual: len(v)}
	}
	code := make([]byte, pq.BytesPerVector())
	dists := make([]float32, pq.m)
	for i := 0; i < pq.m; i++ {
		idx, dist := pq.codebooks[i].Assign(pq.subvector(v, i))
		putEntry(code, i, pq.unit, idx)
		dists[i] = dist
	}
	return code, dists, nil
}

// EncodeInto quantizes v into dst and returns the summed assignment
// distance. Partials are added in float64 and narrowed once, so the result
// matches distance.SquaredL2(v, Decode(dst)).
func (pq *ProductQuantizer) EncodeInto(dst []byte, v []float32) (float32, error) {
	if len(v) != pq.cfg.Dimension {
		return 0, &ErrDimensionMismatch{Expected: pq.cfg.Dimension, Actual: len(v)}
	}
	if len(dst) != pq.BytesPerVector() {
		return 0, &ErrCodeLength{Expected: pq.BytesPerVector(), Actual: len(dst)}
	}
	var total float64
	for i := 0; i < pq.m; i++ {
		idx, dist := pq.codebooks[i].assign(pq.subvector(v, i))
		putEntry(dst, i, pq.unit, idx)
		total += dist
	}
	return float32(total), nil
}

// EncodeBatch encodes every vector of src and returns the codes back to back
// in input order. Vectors are split across at most workers goroutines;
// workers <= 0 uses GOMAXPROCS.
func (pq *ProductQuantizer) EncodeBatch(ctx context.Context, src VectorSource, workers int) ([]byte, error) {
	size := pq.BytesPerVector()
	out := make([]byte, src.Len()*size)
	err := parallelRange(ctx, src.Len(), workers, func(i int) error {
		if _, err := pq.EncodeInto(out[i*size:(i+1)*size], src.At(i)); err != nil {
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
func (pq *ProductQuantizer) Decode(code []byte) ([]float32, error) {
	dst := make([]float32, pq.cfg.Dimension)
	if err := pq.DecodeInto(dst, code); err != nil {
		return nil, err
	}
	return dst, nil
}

// DecodeInto writes the approximate vector of code into dst.
func (pq *ProductQuantizer) DecodeInto(dst []float32, code []byte) error {
	if len(dst) != pq.cfg.Dimension {
		return &ErrDimensionMismatch{Expected: pq.cfg.Dimension, Actual: len(dst)}
	}
	if err := pq.checkCode(code); err != nil {
		return err
	}
	for i := 0; i < pq.m; i++ {
		copy(dst[i*pq.ds:(i+1)*pq.ds], pq.codebooks[i].Centroid(getEntry(code, i, pq.unit)))
	}
	return nil
}

// AsymmetricDistance returns the squared distance between query and the
// decoded code without materializing the decoded vector. Use a
// DistanceTable when scoring many codes against one query.
func (pq *ProductQuantizer) AsymmetricDistance(query []float32, code []byte) (float32, error) {
	if len(query) != pq.cfg.Dimension {
		return 0, &ErrDimensionMismatch{Expected: pq.cfg.Dimension, Actual: len(query)}
	}
	if err := pq.checkCode(code); err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < pq.m; i++ {
		sum += simd.SquaredL2F64(pq.subvector(query, i), pq.codebooks[i].Centroid(getEntry(code, i, pq.unit)))
	}
	return float32(sum), nil
}

// SymmetricDistance returns the squared distance between two decoded codes,
// summed per subspace in subspace order.
func (pq *ProductQuantizer) SymmetricDistance(a, b []byte) (float32, error) {
	if err := pq.checkCode(a); err != nil {
		return 0, err
	}
	if err := pq.checkCode(b); err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < pq.m; i++ {
		cb := pq.codebooks[i]
		sum += simd.SquaredL2F64(cb.Centroid(getEntry(a, i, pq.unit)), cb.Centroid(getEntry(b, i, pq.unit)))
	}
	return float32(sum), nil
}

func (pq *ProductQuantizer) subvector(v []float32, i int) []float32 {
	off := i * pq.ds
	return v[off : off+pq.ds : off+pq.ds]
}

// checkCode validates the length and the centroid range of every entry.
func (pq *ProductQuantizer) checkCode(code []byte) error {
	if len(code) != pq.BytesPerVector() {
		return &ErrCodeLength{Expected: pq.BytesPerVector(), Actual: len(code)}
	}
	if pq.unit == 1 && pq.k == 256 {
		return nil
	}
	for i := 0; i < pq.m; i++ {
		if idx := getEntry(code, i, pq.unit); idx >= pq.k {
			return &ErrCentroidIndex{Subspace: i, Index: idx, K: pq.k}
		}
	}
	return nil
}

// parallelRange runs fn for every i in [0, n) on at most workers goroutines.
// Indices are split into contiguous chunks; the first error cancels the rest.
func parallelRange(ctx context.Context, n, workers int, fn func(i int) error) error {
	if n == 0 {
		return ctx.Err()
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, n)
	chunk := (n + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%256 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
