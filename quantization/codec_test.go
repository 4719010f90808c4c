package quantization

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pqcodec/distance"
)

func newNormCodec(t *testing.T, direction [][]float32, norms []float32, cfg Config) *Codec {
	t.Helper()
	pq := newTestPQ(t, cfg, direction...)
	nq, err := NewNormQuantizer(norms)
	require.NoError(t, err)
	c, err := NewCodec(pq, nq)
	require.NoError(t, err)
	return c
}

func TestNormCodecReconstructsExactly(t *testing.T) {
	unit, ok := distance.NormalizeL2Copy([]float32{3, 4})
	require.True(t, ok)

	c := newNormCodec(t,
		[][]float32{append(unit, -1, 0)},
		[]float32{5},
		Config{Dimension: 2, SubvectorDim: 2, NBits: 1},
	)
	assert.True(t, c.Config().NormQuantization)
	assert.Equal(t, 0, c.Config().NormBits)
	assert.Equal(t, 2, c.CodeSize())

	code, err := c.Encode([]float32{3, 4})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, code)

	decoded, err := c.Decode(code)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, decoded)

	n, err := c.NormOf(code)
	require.NoError(t, err)
	assert.Equal(t, float32(5), n)
}

func TestNormCodecZeroVector(t *testing.T) {
	c := newNormCodec(t,
		[][]float32{{1, 0, 0, 1}},
		[]float32{0, 5},
		Config{Dimension: 2, SubvectorDim: 2, NBits: 1},
	)

	code, err := c.Encode([]float32{0, 0})
	require.NoError(t, err)
	assert.Equal(t, byte(0), code[1])

	decoded, err := c.Decode(code)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0}, decoded)
}

func TestNormCodecSeparatesMagnitude(t *testing.T) {
	c := newNormCodec(t,
		[][]float32{{1, 0, 0, 1}},
		[]float32{1, 10},
		Config{Dimension: 2, SubvectorDim: 2, NBits: 1},
	)

	code, err := c.Encode([]float32{0, 9})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 1}, code)

	decoded, err := c.Decode(code)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 10}, decoded)
}

func TestCodecWithoutNorm(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	pq := integerPQ(t, r, 8, 4, 3)
	c, err := NewCodec(pq, nil)
	require.NoError(t, err)
	assert.Nil(t, c.Norm())
	assert.Equal(t, pq.BytesPerVector(), c.CodeSize())

	v := integerVector(r, 8)
	code, err := c.Encode(v)
	require.NoError(t, err)
	want, _ := pq.Encode(v)
	assert.Equal(t, want, code)

	n, err := c.NormOf(code)
	require.NoError(t, err)
	assert.Zero(t, n)

	query := integerVector(r, 8)
	qt, err := c.NewQueryTable(query)
	require.NoError(t, err)
	defer qt.Release()

	got, err := qt.Distance(code)
	require.NoError(t, err)
	direct, _ := pq.AsymmetricDistance(query, code)
	assert.Equal(t, direct, got)
}

func TestCodecQueryTableWithNorm(t *testing.T) {
	r := rand.New(rand.NewSource(12))
	cfg := Config{Dimension: 8, SubvectorDim: 2, NBits: 4}
	direction := make([][]float32, cfg.NumSubvectors())
	for i := range direction {
		direction[i] = randomVector(r, cfg.NumCentroids()*cfg.SubvectorDim)
	}
	c := newNormCodec(t, direction, []float32{0.5, 1, 2, 4}, cfg)
	assert.Equal(t, 5, c.CodeSize())

	query := randomVector(r, 8)
	qt, err := c.NewQueryTable(query)
	require.NoError(t, err)
	defer qt.Release()

	const n = 50
	codes := make([]byte, 0, n*c.CodeSize())
	for i := 0; i < n; i++ {
		v := randomVector(r, 8)
		distance.NormalizeL2InPlace(v)
		for j := range v {
			v[j] *= float32(1 + i%4)
		}
		code, err := c.Encode(v)
		require.NoError(t, err)
		codes = append(codes, code...)

		decoded, err := c.Decode(code)
		require.NoError(t, err)

		got, err := qt.Distance(code)
		require.NoError(t, err)
		assert.InDelta(t, distance.SquaredL2(query, decoded), got, 1e-3)
	}

	out := make([]float32, n)
	require.NoError(t, qt.DistanceBatch(codes, out))
	for i := range out {
		d, _ := qt.Distance(codes[i*5 : (i+1)*5])
		assert.Equal(t, d, out[i])
	}

	_, err = qt.Distance(codes[:4])
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCodecEncodeBatchWithNorm(t *testing.T) {
	r := rand.New(rand.NewSource(13))
	cfg := Config{Dimension: 4, SubvectorDim: 2, NBits: 2}
	c := newNormCodec(t,
		[][]float32{randomVector(r, 8), randomVector(r, 8)},
		[]float32{1, 2},
		cfg,
	)

	vectors := make(Vectors, 100)
	for i := range vectors {
		vectors[i] = randomVector(r, 4)
	}
	codes, err := c.EncodeBatch(context.Background(), vectors, 4)
	require.NoError(t, err)
	for i, v := range vectors {
		want, err := c.Encode(v)
		require.NoError(t, err)
		assert.Equal(t, want, codes[i*3:(i+1)*3])
	}
}

func TestCodecErrors(t *testing.T) {
	_, err := NewCodec(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	c := newNormCodec(t, [][]float32{{1, 0, 0, 1}}, []float32{1, 2}, Config{Dimension: 2, SubvectorDim: 2, NBits: 1})

	_, err = c.Encode([]float32{1})
	var dimErr *ErrDimensionMismatch
	assert.ErrorAs(t, err, &dimErr)

	_, err = c.Decode([]byte{0})
	var lenErr *ErrCodeLength
	assert.ErrorAs(t, err, &lenErr)

	_, err = c.Decode([]byte{0, 2})
	var idxErr *ErrCentroidIndex
	require.ErrorAs(t, err, &idxErr)
	assert.Equal(t, NormSubspace, idxErr.Subspace)

	_, err = c.NewQueryTable([]float32{1, 2, 3})
	assert.ErrorAs(t, err, &dimErr)
}

func TestNormQuantizer(t *testing.T) {
	nq, err := NewNormQuantizer([]float32{1, 2, 4, 8})
	require.NoError(t, err)
	assert.Equal(t, 4, nq.Len())
	assert.Equal(t, 2, nq.Bits())

	idx, dist := nq.Encode(3.5)
	assert.Equal(t, 2, idx)
	assert.InDelta(t, 0.25, dist, 1e-6)

	v, err := nq.Decode(3)
	require.NoError(t, err)
	assert.Equal(t, float32(8), v)

	_, err = nq.Decode(4)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewNormQuantizer([]float32{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
