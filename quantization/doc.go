// Package quantization implements a product-quantization (PQ) codec for
// float32 embedding vectors.
//
// A vector of dimension d is split into m = d/ds contiguous subspaces. Each
// subspace has its own Codebook of k = 2^nbits centroids, learned with
// Lloyd's k-means. Encoding replaces every subspace by the index of its
// nearest centroid, so a 128-dim vector with ds=4 and nbits=8 shrinks from
// 512 bytes to 32 bytes.
//
// # Training
//
//	cfg := quantization.Config{Dimension: 128, SubvectorDim: 4, NBits: 8}
//	trainer, _ := quantization.NewTrainer(cfg, quantization.DefaultTrainOptions())
//	codec, report, err := trainer.Train(ctx, quantization.Vectors(samples))
//
// Training is deterministic: the same seed, sample order and iteration
// budget produce bit-identical codebooks. Empty clusters keep their
// previous centroid and are listed in the TrainReport.
//
// # Encoding and decoding
//
//	code, _ := codec.Encode(vec)     // m bytes (+1 norm byte)
//	approx, _ := codec.Decode(code)  // concatenated centroids
//
// # Distances
//
// Asymmetric distance (raw query vs code) uses a per-query table of m*k
// partial distances:
//
//	table, _ := codec.PQ().NewDistanceTable(query)
//	defer table.Release()
//	d, _ := table.Distance(code)
//
// Symmetric distance (code vs code) uses an m*k*k table built once per
// codec:
//
//	sdc, _ := codec.SymmetricTable()
//	d, _ := sdc.Distance(codeA, codeB)
//
// Tables hold float64 entries and narrow the sum once, so ADC and SDC
// results match distance.SquaredL2 on the decoded vectors.
//
// # Norm quantization
//
// With Config.NormQuantization the codec normalizes vectors to unit length
// before PQ and stores the norm separately through a 1-D codebook.
// Codec.NewQueryTable and Codec.SymmetricTable score such codes without
// decoding them.
package quantization
