// Package hash provides CRC32-Castagnoli (CRC32C) checksums.
//
// CRC32C is the checksum S3 accepts for end-to-end upload integrity. The
// artifact trailer itself uses CRC32-IEEE; see package persistence.
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
package hash
