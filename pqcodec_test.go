package pqcodec_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/hupe1980/pqcodec"
	"github.com/hupe1980/pqcodec/blobstore"
	"github.com/hupe1980/pqcodec/distance"
	"github.com/hupe1980/pqcodec/persistence"
	"github.com/hupe1980/pqcodec/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomVectors(n, dim int, seed int64) pqcodec.Vectors {
	return testutil.NewRNG(seed).UniformVectors(n, dim)
}

func TestTrain(t *testing.T) {
	ctx := context.Background()
	data := randomVectors(300, 8, 1)

	c, report, err := pqcodec.Train(ctx, data,
		pqcodec.WithSubvectorDim(4),
		pqcodec.WithNBits(3),
		pqcodec.WithIterations(10),
	)
	require.NoError(t, err)

	cfg := c.Config()
	assert.Equal(t, 8, cfg.Dimension)
	assert.Equal(t, 2, cfg.NumSubvectors())
	assert.Equal(t, 8, cfg.NumCentroids())
	assert.Equal(t, 300, report.Vectors)
	assert.Len(t, report.Subspaces, 2)
	assert.Equal(t, 2, c.CodeSize())

	code, err := c.Encode(data[0])
	require.NoError(t, err)
	decoded, err := c.Decode(code)
	require.NoError(t, err)
	assert.Len(t, decoded, 8)
}

func TestTrain_ReconstructionBeatsMean(t *testing.T) {
	data := testutil.NewRNG(7).ClusteredVectors(800, 8, 8, 10, 0.1)

	c, _, err := pqcodec.Train(context.Background(), pqcodec.Vectors(data),
		pqcodec.WithSubvectorDim(2),
		pqcodec.WithNBits(4),
	)
	require.NoError(t, err)

	decoded := make([][]float32, len(data))
	for i, v := range data {
		code, err := c.Encode(v)
		require.NoError(t, err)
		decoded[i], err = c.Decode(code)
		require.NoError(t, err)
	}

	assert.Less(t, testutil.MeanSquaredError(data, decoded), testutil.Variance(data)/2)
}

func TestTrain_Deterministic(t *testing.T) {
	ctx := context.Background()
	data := randomVectors(200, 6, 2)
	opts := []pqcodec.Option{
		pqcodec.WithSubvectorDim(3),
		pqcodec.WithNBits(2),
		pqcodec.WithSeed(42),
		pqcodec.WithNormQuantization(2),
	}

	a, _, err := pqcodec.Train(ctx, data, append(opts, pqcodec.WithWorkers(1))...)
	require.NoError(t, err)
	b, _, err := pqcodec.Train(ctx, data, append(opts, pqcodec.WithWorkers(4))...)
	require.NoError(t, err)

	for i := 0; i < a.PQ().NumSubvectors(); i++ {
		assert.True(t, a.PQ().Codebook(i).Equal(b.PQ().Codebook(i)), "subspace %d", i)
	}
	assert.True(t, a.Norm().Codebook().Equal(b.Norm().Codebook()))
}

func TestTrain_Errors(t *testing.T) {
	ctx := context.Background()

	_, _, err := pqcodec.Train(ctx, pqcodec.Vectors{})
	assert.ErrorIs(t, err, pqcodec.ErrNoTrainingData)

	_, _, err = pqcodec.Train(ctx, randomVectors(10, 5, 3), pqcodec.WithSubvectorDim(2))
	assert.ErrorIs(t, err, pqcodec.ErrInvalidConfig)

	var cerr *pqcodec.ConfigError
	require.ErrorAs(t, err, &cerr)

	_, _, err = pqcodec.Train(ctx, randomVectors(10, 4, 3), pqcodec.WithNBits(17))
	assert.ErrorIs(t, err, pqcodec.ErrInvalidConfig)
}

func TestTrain_LogsAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := pqcodec.NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	metrics := &pqcodec.BasicMetricsCollector{}

	_, _, err := pqcodec.Train(context.Background(), randomVectors(100, 4, 4),
		pqcodec.WithNBits(2),
		pqcodec.WithLogger(logger),
		pqcodec.WithMetricsCollector(metrics),
	)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "training completed")
	assert.Contains(t, buf.String(), "distance kernels")

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.TrainCount)
	assert.Equal(t, int64(0), stats.TrainErrors)
	assert.Equal(t, int64(100), stats.TrainVectors)
}

func TestQuantizer_NoCodec(t *testing.T) {
	q := pqcodec.New(blobstore.NewMemoryStore())

	assert.Nil(t, q.Codec())

	_, err := q.Encode([]float32{1, 2})
	assert.ErrorIs(t, err, pqcodec.ErrNoCodec)
	_, err = q.Decode([]byte{0})
	assert.ErrorIs(t, err, pqcodec.ErrNoCodec)
	_, err = q.EncodeBatch(context.Background(), pqcodec.Vectors{{1, 2}})
	assert.ErrorIs(t, err, pqcodec.ErrNoCodec)
	_, err = q.NewQueryTable([]float32{1, 2})
	assert.ErrorIs(t, err, pqcodec.ErrNoCodec)
	_, err = q.SymmetricDistance([]byte{0}, []byte{0})
	assert.ErrorIs(t, err, pqcodec.ErrNoCodec)

	_, err = q.Load(context.Background())
	assert.ErrorIs(t, err, pqcodec.ErrNotPublished)
}

func TestQuantizer_TrainPublishLoad(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	data := randomVectors(256, 8, 5)
	metrics := &pqcodec.BasicMetricsCollector{}

	pub := pqcodec.New(store,
		pqcodec.WithSubvectorDim(2),
		pqcodec.WithNBits(4),
		pqcodec.WithNormQuantization(4),
		pqcodec.WithCompression(persistence.CompressionZSTD),
		pqcodec.WithMetricsCollector(metrics),
	)

	snap, report, err := pub.TrainAndPublish(ctx, data, true)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, uint64(1), snap.Manifest.Version)
	assert.Equal(t, 256, snap.Manifest.Count)
	assert.Len(t, snap.Codes, 256*pub.Codec().CodeSize())

	sub := pqcodec.New(store, pqcodec.WithMetricsCollector(metrics))
	loaded, err := sub.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Codes, loaded.Codes)

	for i, v := range data[:16] {
		want, err := pub.Encode(v)
		require.NoError(t, err)
		got, err := sub.Encode(v)
		require.NoError(t, err)
		assert.Equal(t, want, got, "vector %d", i)
		assert.Equal(t, snap.Codes[i*len(want):(i+1)*len(want)], got)
	}

	table, err := sub.NewQueryTable(data[0])
	require.NoError(t, err)
	defer table.Release()

	dists := make([]float32, 256)
	require.NoError(t, table.DistanceBatch(loaded.Codes, dists))
	for _, d := range dists {
		assert.GreaterOrEqual(t, d, float32(0))
	}

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.PublishCount)
	assert.Equal(t, int64(1), stats.LoadCount)
	assert.Equal(t, int64(256+32), stats.EncodeVectors)
}

func TestQuantizer_PublishTwiceAndPrune(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	q := pqcodec.New(store, pqcodec.WithNBits(2))

	for i := 0; i < 3; i++ {
		c, _, err := q.Train(ctx, randomVectors(64, 4, int64(i)))
		require.NoError(t, err)
		_, err = q.Publish(ctx, c, nil)
		require.NoError(t, err)
	}

	removed, err := q.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	versions, err := q.Registry().Versions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, versions)
}

func TestQuantizer_MemoryLimit(t *testing.T) {
	q := pqcodec.New(blobstore.NewMemoryStore(), pqcodec.WithNBits(4), pqcodec.WithMemoryLimit(8))

	_, _, err := q.Train(context.Background(), randomVectors(64, 4, 6))
	assert.Error(t, err)
}

func TestQuantizer_SymmetricDistance(t *testing.T) {
	ctx := context.Background()
	data := randomVectors(200, 8, 9)

	for _, norm := range []bool{false, true} {
		opts := []pqcodec.Option{pqcodec.WithSubvectorDim(2), pqcodec.WithNBits(4)}
		if norm {
			opts = append(opts, pqcodec.WithNormQuantization(4))
		}
		q := pqcodec.New(blobstore.NewMemoryStore(), opts...)
		snap, _, err := q.TrainAndPublish(ctx, data, true)
		require.NoError(t, err)

		size := q.Codec().CodeSize()
		for i := 0; i+1 < 40; i++ {
			a := snap.Codes[i*size : (i+1)*size]
			b := snap.Codes[(i+1)*size : (i+2)*size]

			da, err := q.Decode(a)
			require.NoError(t, err)
			db, err := q.Decode(b)
			require.NoError(t, err)

			got, err := q.SymmetricDistance(a, b)
			require.NoError(t, err)
			assert.InDelta(t, distance.SquaredL2(da, db), got, 1e-4, "norm=%v pair %d", norm, i)
		}

		_, err = q.SymmetricDistance(snap.Codes[:size-1], snap.Codes[:size])
		assert.Error(t, err)
	}
}
