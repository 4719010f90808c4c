// Package pqcodec provides Product Quantization codecs for float32 vectors.
//
// A vector of dimension d is split into m = d/ds contiguous subvectors. Each
// subvector is replaced by the index of its nearest centroid in a per-subspace
// codebook of 2^nbits centroids, learned with k-means. A code is the sequence
// of those indices: one byte per subspace for nbits <= 8, two bytes
// otherwise. With norm quantization the L2 norm is coded separately and PQ
// only sees unit directions.
//
// # Quick Start
//
//	ctx := context.Background()
//	c, report, err := pqcodec.Train(ctx, pqcodec.Vectors(samples),
//	    pqcodec.WithSubvectorDim(8),
//	    pqcodec.WithNBits(8),
//	)
//	code, _ := c.Encode(v)
//	approx, _ := c.Decode(code)
//
// # Scoring
//
// Asymmetric distance compares a raw query with codes through a per-query
// table of m x 2^nbits partial distances:
//
//	table, _ := c.NewQueryTable(query)
//	defer table.Release()
//	d, err := table.Distance(code)
//
// Symmetric distance compares two codes through a table precomputed once per
// codec. It accepts full codes, including the norm entry:
//
//	d, err := q.SymmetricDistance(codeA, codeB)
//
// # Publishing
//
// A Quantizer publishes codecs to a blobstore and serves the active one:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("codecs/prod"))
//	q := pqcodec.New(store, pqcodec.WithCompression(persistence.CompressionZSTD))
//	snap, report, err := q.TrainAndPublish(ctx, pqcodec.Vectors(samples), true)
//
//	// elsewhere
//	q := pqcodec.New(store)
//	_, err := q.Load(ctx)
//	code, _ := q.Encode(v)
//
// # Observability
//
// Structured logging goes through Logger (log/slog). Metrics go through a
// MetricsCollector; BasicMetricsCollector keeps in-memory counters.
package pqcodec
