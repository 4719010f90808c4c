// Package kmeans implements Lloyd's k-means for codebook training.
//
// Training is deterministic for a fixed random source, point order and
// iteration budget. Empty clusters keep their previous centroid.
package kmeans
