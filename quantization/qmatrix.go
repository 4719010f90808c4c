package quantization

import (
	"context"
	"fmt"

	"github.com/hupe1980/pqcodec/internal/simd"
)

// QMatrix is a row-quantized dense matrix: every row is stored as one code
// of a shared Codec. It supports the row operations needed to use the
// matrix as a compressed embedding table.
type QMatrix struct {
	codec *Codec
	rows  int
	codes []byte
}

// QuantizeMatrix trains a codec on the rows of the row-major matrix data
// and encodes every row with it. cfg.Dimension may be left zero; it is set
// to cols.
func QuantizeMatrix(ctx context.Context, data []float32, cols int, cfg Config, opts TrainOptions) (*QMatrix, *TrainReport, error) {
	if cfg.Dimension == 0 {
		cfg.Dimension = cols
	}
	if cfg.Dimension != cols {
		return nil, nil, &ErrDimensionMismatch{Expected: cols, Actual: cfg.Dimension}
	}
	src, err := NewFlatVectors(data, cols)
	if err != nil {
		return nil, nil, err
	}

	trainer, err := NewTrainer(cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	codec, report, err := trainer.Train(ctx, src)
	if err != nil {
		return nil, nil, err
	}

	codes, err := codec.EncodeBatch(ctx, src, opts.Workers)
	if err != nil {
		return nil, nil, err
	}
	return &QMatrix{codec: codec, rows: src.Len(), codes: codes}, report, nil
}

// NewQMatrix wraps rows codes of codec stored back to back. codes is not
// copied.
func NewQMatrix(codec *Codec, rows int, codes []byte) (*QMatrix, error) {
	if rows < 0 {
		return nil, &ConfigError{Field: "rows", Value: rows, Reason: "must not be negative"}
	}
	if want := rows * codec.CodeSize(); len(codes) != want {
		return nil, &ErrCodeLength{Expected: want, Actual: len(codes)}
	}
	return &QMatrix{codec: codec, rows: rows, codes: codes}, nil
}

// Rows returns the number of rows.
func (q *QMatrix) Rows() int { return q.rows }

// Cols returns the row length.
func (q *QMatrix) Cols() int { return q.codec.Dimension() }

// Codec returns the shared codec.
func (q *QMatrix) Codec() *Codec { return q.codec }

// Codes returns all row codes back to back. The slice must not be modified.
func (q *QMatrix) Codes() []byte { return q.codes }

// Code returns the code of row i.
func (q *QMatrix) Code(i int) ([]byte, error) {
	if i < 0 || i >= q.rows {
		return nil, fmt.Errorf("%w: row %d out of range [0,%d)", ErrInvalidConfig, i, q.rows)
	}
	size := q.codec.CodeSize()
	return q.codes[i*size : (i+1)*size : (i+1)*size], nil
}

// Row decodes row i.
func (q *QMatrix) Row(i int) ([]float32, error) {
	code, err := q.Code(i)
	if err != nil {
		return nil, err
	}
	return q.codec.Decode(code)
}

// DotRow returns the dot product of vec with the decoded row i without
// decoding it.
func (q *QMatrix) DotRow(vec []float32, i int) (float32, error) {
	if len(vec) != q.Cols() {
		return 0, &ErrDimensionMismatch{Expected: q.Cols(), Actual: len(vec)}
	}
	code, err := q.Code(i)
	if err != nil {
		return 0, err
	}
	norm, err := q.rowNorm(code)
	if err != nil {
		return 0, err
	}

	pq := q.codec.pq
	pqCode := code[:q.codec.pqSize]
	if err := pq.checkCode(pqCode); err != nil {
		return 0, err
	}
	var sum float64
	for s := 0; s < pq.m; s++ {
		sum += simd.DotF64(pq.subvector(vec, s), pq.codebooks[s].Centroid(getEntry(pqCode, s, pq.unit)))
	}
	return norm * float32(sum), nil
}

// AddRowTo adds scale times the decoded row i to dst.
func (q *QMatrix) AddRowTo(dst []float32, i int, scale float32) error {
	if len(dst) != q.Cols() {
		return &ErrDimensionMismatch{Expected: q.Cols(), Actual: len(dst)}
	}
	code, err := q.Code(i)
	if err != nil {
		return err
	}
	norm, err := q.rowNorm(code)
	if err != nil {
		return err
	}

	pq := q.codec.pq
	pqCode := code[:q.codec.pqSize]
	if err := pq.checkCode(pqCode); err != nil {
		return err
	}
	alpha := scale * norm
	for s := 0; s < pq.m; s++ {
		ctr := pq.codebooks[s].Centroid(getEntry(pqCode, s, pq.unit))
		out := pq.subvector(dst, s)
		for j, c := range ctr {
			out[j] += alpha * c
		}
	}
	return nil
}

func (q *QMatrix) rowNorm(code []byte) (float32, error) {
	if q.codec.norm == nil {
		return 1, nil
	}
	return q.codec.NormOf(code)
}
