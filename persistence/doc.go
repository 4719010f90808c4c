// Package persistence reads and writes codec artifacts in a stable binary
// format.
//
// An artifact is a 64-byte little-endian header, the PQ centroids
// (m*k*ds float32), the norm centroids when present, an optional section of
// codes and a CRC32 (IEEE) trailer over everything before it:
//
//	+--------+------------------+----------------+---------------+-------+
//	| header | PQ centroids     | norm centroids | codes         | CRC32 |
//	| 64 B   | m*k*ds*4 B       | kn*4 B         | CodesSize B   | 4 B   |
//	+--------+------------------+----------------+---------------+-------+
//
// The code section holds Count codes of CodeSize bytes each, stored raw or
// as a sequence of LZ4 or Zstandard compressed blocks. Readers never return
// a partially decoded artifact: a short stream fails with ErrTruncated and a
// damaged one with ErrChecksum or ErrCorrupt.
package persistence
