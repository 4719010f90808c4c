package quantization

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pqcodec/distance"
)

func randomMatrix(r *rand.Rand, rows, cols int) []float32 {
	data := make([]float32, rows*cols)
	for i := range data {
		data[i] = r.Float32()*2 - 1
	}
	return data
}

func TestQuantizeMatrix(t *testing.T) {
	for _, norm := range []bool{false, true} {
		t.Run(map[bool]string{false: "plain", true: "norm"}[norm], func(t *testing.T) {
			r := rand.New(rand.NewSource(31))
			const rows, cols = 200, 8
			data := randomMatrix(r, rows, cols)

			cfg := Config{SubvectorDim: 2, NBits: 4, NormQuantization: norm, NormBits: 4}
			qm, report, err := QuantizeMatrix(context.Background(), data, cols, cfg, DefaultTrainOptions())
			require.NoError(t, err)
			require.NotNil(t, report)
			assert.Equal(t, rows, qm.Rows())
			assert.Equal(t, cols, qm.Cols())
			assert.Len(t, qm.Codes(), rows*qm.Codec().CodeSize())

			vec := randomMatrix(r, 1, cols)
			for i := 0; i < rows; i += 17 {
				row, err := qm.Row(i)
				require.NoError(t, err)

				dot, err := qm.DotRow(vec, i)
				require.NoError(t, err)
				assert.InDelta(t, distance.Dot(vec, row), dot, 1e-4)

				dst := make([]float32, cols)
				dst[0] = 1
				require.NoError(t, qm.AddRowTo(dst, i, 0.5))
				for j := range dst {
					want := 0.5 * row[j]
					if j == 0 {
						want++
					}
					assert.InDelta(t, want, dst[j], 1e-5)
				}
			}
		})
	}
}

func TestQMatrixErrors(t *testing.T) {
	r := rand.New(rand.NewSource(32))
	data := randomMatrix(r, 20, 4)

	_, _, err := QuantizeMatrix(context.Background(), data, 4, Config{Dimension: 8, SubvectorDim: 2, NBits: 2}, DefaultTrainOptions())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, _, err = QuantizeMatrix(context.Background(), data[:7], 4, Config{SubvectorDim: 2, NBits: 2}, DefaultTrainOptions())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	qm, _, err := QuantizeMatrix(context.Background(), data, 4, Config{SubvectorDim: 2, NBits: 2}, DefaultTrainOptions())
	require.NoError(t, err)

	_, err = qm.Row(20)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = qm.DotRow([]float32{1}, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Error(t, qm.AddRowTo(make([]float32, 3), 0, 1))

	_, err = NewQMatrix(qm.Codec(), 3, qm.Codes())
	var lenErr *ErrCodeLength
	assert.ErrorAs(t, err, &lenErr)

	same, err := NewQMatrix(qm.Codec(), 20, qm.Codes())
	require.NoError(t, err)
	a, _ := same.Row(5)
	b, _ := qm.Row(5)
	assert.Equal(t, b, a)
}

func TestFlatVectors(t *testing.T) {
	fv, err := NewFlatVectors([]float32{1, 2, 3, 4, 5, 6}, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, fv.Len())
	assert.Equal(t, []float32{4, 5, 6}, fv.At(1))
	assert.Equal(t, 3, cap(fv.At(0)))

	_, err = NewFlatVectors([]float32{1, 2}, 3)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewFlatVectors(nil, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	assert.Equal(t, 0, FlatVectors{}.Len())
}
