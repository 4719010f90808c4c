package persistence

import (
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// CRC32 (IEEE) detects accidental corruption only; it is not a tamper check.

// CRC32Table is the IEEE polynomial table for checksum computation.
var CRC32Table = crc32.MakeTable(crc32.IEEE)

// ChecksumWriter wraps an io.Writer and computes a running CRC32 checksum.
type ChecksumWriter struct {
	w    io.Writer
	hash hash.Hash32
	n    int64
}

// NewChecksumWriter creates a new checksumming writer.
func NewChecksumWriter(w io.Writer) *ChecksumWriter {
	return &ChecksumWriter{
		w:    w,
		hash: crc32.New(CRC32Table),
	}
}

// Write implements io.Writer.
func (cw *ChecksumWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	_, _ = cw.hash.Write(p[:n])
	cw.n += int64(n)
	return n, err
}

// Sum returns the checksum of everything written so far.
func (cw *ChecksumWriter) Sum() uint32 { return cw.hash.Sum32() }

// BytesWritten returns the number of bytes written so far.
func (cw *ChecksumWriter) BytesWritten() int64 { return cw.n }

// ChecksumReader wraps an io.Reader and computes a running CRC32 checksum.
type ChecksumReader struct {
	r    io.Reader
	hash hash.Hash32
	n    int64
}

// NewChecksumReader creates a new checksumming reader.
func NewChecksumReader(r io.Reader) *ChecksumReader {
	return &ChecksumReader{
		r:    r,
		hash: crc32.New(CRC32Table),
	}
}

// Read implements io.Reader.
func (cr *ChecksumReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		_, _ = cr.hash.Write(p[:n])
		cr.n += int64(n)
	}
	return n, err
}

// Sum returns the checksum of everything read so far.
func (cr *ChecksumReader) Sum() uint32 { return cr.hash.Sum32() }

// BytesRead returns the number of bytes read so far.
func (cr *ChecksumReader) BytesRead() int64 { return cr.n }

// Verify checks the computed checksum against expected.
func (cr *ChecksumReader) Verify(expected uint32) error {
	if actual := cr.Sum(); actual != expected {
		return &ChecksumMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}

// ChecksumMismatchError is returned when checksum verification fails.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// Is reports whether target is ErrChecksum.
func (e *ChecksumMismatchError) Is(target error) bool { return target == ErrChecksum }
