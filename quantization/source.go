package quantization

import "fmt"

// VectorSource supplies training or encoding input without the codec owning
// the data. At may return a view into caller memory; it is never modified.
type VectorSource interface {
	Len() int
	At(i int) []float32
}

// Vectors adapts a slice of vectors to VectorSource.
type Vectors [][]float32

// Len implements VectorSource.
func (v Vectors) Len() int { return len(v) }

// At implements VectorSource.
func (v Vectors) At(i int) []float32 { return v[i] }

// FlatVectors adapts a row-major matrix to VectorSource.
type FlatVectors struct {
	data []float32
	dim  int
}

// NewFlatVectors wraps data holding len(data)/dim vectors of length dim.
func NewFlatVectors(data []float32, dim int) (FlatVectors, error) {
	if dim <= 0 {
		return FlatVectors{}, &ConfigError{Field: "dimension", Value: dim, Reason: "must be positive"}
	}
	if len(data)%dim != 0 {
		return FlatVectors{}, fmt.Errorf("%w: %d values is not a multiple of dimension %d", ErrInvalidConfig, len(data), dim)
	}
	return FlatVectors{data: data, dim: dim}, nil
}

// Len implements VectorSource.
func (f FlatVectors) Len() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

// At implements VectorSource.
func (f FlatVectors) At(i int) []float32 {
	off := i * f.dim
	return f.data[off : off+f.dim : off+f.dim]
}
