package quantization

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pqcodec/distance"
)

func randomCodebooks(r *rand.Rand, cfg Config) [][]float32 {
	centroids := make([][]float32, cfg.NumSubvectors())
	for i := range centroids {
		centroids[i] = randomVector(r, cfg.NumCentroids()*cfg.SubvectorDim)
	}
	return centroids
}

func randomCode(r *rand.Rand, m, k int) []byte {
	code := make([]byte, m)
	for i := range code {
		code[i] = byte(r.Intn(k))
	}
	return code
}

func TestSymmetricDistanceMatchesKernelWithFloatCentroids(t *testing.T) {
	r := rand.New(rand.NewSource(31))
	cfg := Config{Dimension: 16, SubvectorDim: 4, NBits: 4}
	pq := newTestPQ(t, cfg, randomCodebooks(r, cfg)...)

	sdc, err := pq.SymmetricTable()
	require.NoError(t, err)

	mismatches := 0
	for n := 0; n < 2000; n++ {
		a := randomCode(r, pq.NumSubvectors(), pq.NumCentroids())
		b := randomCode(r, pq.NumSubvectors(), pq.NumCentroids())

		da, err := pq.Decode(a)
		require.NoError(t, err)
		db, err := pq.Decode(b)
		require.NoError(t, err)
		want := distance.SquaredL2(da, db)

		got, err := sdc.Distance(a, b)
		require.NoError(t, err)
		direct, err := pq.SymmetricDistance(a, b)
		require.NoError(t, err)
		if got != want || direct != want {
			mismatches++
		}
	}
	assert.Zero(t, mismatches)
}

func TestTrainedCodecDistancesMatchKernel(t *testing.T) {
	const d = 128
	r := rand.New(rand.NewSource(32))
	train := make(Vectors, 300)
	for i := range train {
		train[i] = randomVector(r, d)
	}

	opts := DefaultTrainOptions()
	opts.MaxIterations = 5
	trainer, err := NewTrainer(Config{Dimension: d, SubvectorDim: 8, NBits: 4}, opts)
	require.NoError(t, err)
	codec, _, err := trainer.Train(context.Background(), train)
	require.NoError(t, err)
	pq := codec.PQ()

	query := randomVector(r, d)
	table, err := pq.NewDistanceTable(query)
	require.NoError(t, err)
	defer table.Release()

	errMismatches, adcMismatches := 0, 0
	code := make([]byte, pq.BytesPerVector())
	for n := 0; n < 500; n++ {
		v := randomVector(r, d)
		total, err := pq.EncodeInto(code, v)
		require.NoError(t, err)
		decoded, err := pq.Decode(code)
		require.NoError(t, err)
		if total != distance.SquaredL2(v, decoded) {
			errMismatches++
		}

		adc, err := table.Distance(code)
		require.NoError(t, err)
		if adc != distance.SquaredL2(query, decoded) {
			adcMismatches++
		}
	}
	assert.Zero(t, errMismatches)
	assert.Zero(t, adcMismatches)
}

func TestCodecSymmetricDistanceWithoutNorm(t *testing.T) {
	r := rand.New(rand.NewSource(33))
	cfg := Config{Dimension: 8, SubvectorDim: 2, NBits: 3}
	c, err := NewCodec(newTestPQ(t, cfg, randomCodebooks(r, cfg)...), nil)
	require.NoError(t, err)

	table, err := c.SymmetricTable()
	require.NoError(t, err)
	again, err := c.SymmetricTable()
	require.NoError(t, err)
	assert.Same(t, table, again)

	for n := 0; n < 200; n++ {
		a, err := c.Encode(randomVector(r, 8))
		require.NoError(t, err)
		b, err := c.Encode(randomVector(r, 8))
		require.NoError(t, err)

		da, _ := c.Decode(a)
		db, _ := c.Decode(b)
		want := distance.SquaredL2(da, db)

		got, err := table.Distance(a, b)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		direct, err := c.SymmetricDistance(a, b)
		require.NoError(t, err)
		assert.Equal(t, want, direct)
	}
}

func TestCodecSymmetricDistanceWithNorm(t *testing.T) {
	r := rand.New(rand.NewSource(34))
	cfg := Config{Dimension: 8, SubvectorDim: 2, NBits: 4}
	c := newNormCodec(t, randomCodebooks(r, cfg), []float32{0.5, 1, 2, 4}, cfg)

	table, err := c.SymmetricTable()
	require.NoError(t, err)

	for n := 0; n < 200; n++ {
		va := randomVector(r, 8)
		distance.NormalizeL2InPlace(va)
		for j := range va {
			va[j] *= float32(1 + n%4)
		}
		a, err := c.Encode(va)
		require.NoError(t, err)
		b, err := c.Encode(randomVector(r, 8))
		require.NoError(t, err)

		da, _ := c.Decode(a)
		db, _ := c.Decode(b)
		want := distance.SquaredL2(da, db)

		direct, err := c.SymmetricDistance(a, b)
		require.NoError(t, err)
		assert.InDelta(t, want, direct, 1e-3)

		got, err := table.Distance(a, b)
		require.NoError(t, err)
		assert.Equal(t, direct, got)

		self, err := c.SymmetricDistance(a, a)
		require.NoError(t, err)
		assert.InDelta(t, 0, self, 1e-3)
	}

	code, err := c.Encode(randomVector(r, 8))
	require.NoError(t, err)
	_, err = c.SymmetricDistance(code[:c.PQ().BytesPerVector()], code)
	var lenErr *ErrCodeLength
	assert.ErrorAs(t, err, &lenErr)
	_, err = table.Distance(code, code[:1])
	assert.ErrorAs(t, err, &lenErr)
}

func TestCodecSymmetricTableTooLargeWithNorm(t *testing.T) {
	cfg := Config{Dimension: 1, SubvectorDim: 1, NBits: 11}
	c := newNormCodec(t, [][]float32{make([]float32, cfg.NumCentroids())}, []float32{1, 2}, cfg)

	_, err := c.SymmetricTable()
	assert.ErrorIs(t, err, ErrTableTooLarge)

	a := make([]byte, c.CodeSize())
	b := make([]byte, c.CodeSize())
	a[0], b[0], b[c.CodeSize()-1] = 1, 2, 1
	d, err := c.SymmetricDistance(a, b)
	require.NoError(t, err)
	assert.Equal(t, float32(0), d)
}
