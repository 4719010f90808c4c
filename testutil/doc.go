// Package testutil provides testing utilities for pqcodec.
//
// This package is intended for use in tests and benchmarks only.
// It generates reproducible training data and measures reconstruction
// quality.
//
//	rng := testutil.NewRNG(seed)
//	data := rng.ClusteredVectors(1000, 16, 8, 5, 0.1)
//	...
//	mse := testutil.MeanSquaredError(data, decoded)
package testutil
