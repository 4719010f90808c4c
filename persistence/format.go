package persistence

import (
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies codec artifacts (ASCII "PQC1", little-endian).
	MagicNumber = 0x31435150
	// Version is the current artifact format version.
	Version = 1

	// HeaderSize is the encoded size of FileHeader.
	HeaderSize = 64

	trailerSize = 4
)

// Header flags.
const (
	FlagNorm uint32 = 1 << iota
	FlagCompressed

	knownFlags = FlagNorm | FlagCompressed
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")

	// ErrTruncated is returned when the stream ends before the artifact does.
	ErrTruncated = errors.New("truncated artifact")

	// ErrCorrupt is returned for header or body values that cannot describe a
	// valid artifact.
	ErrCorrupt = errors.New("corrupt artifact")

	// ErrChecksum is returned when the CRC32 trailer does not match.
	ErrChecksum = errors.New("artifact checksum mismatch")
)

// FileHeader is the 64-byte header at the start of every artifact.
type FileHeader struct {
	Magic         uint32 // "PQC1"
	Version       uint32
	Flags         uint32
	Dimension     uint32 // d
	SubvectorDim  uint32 // ds
	NumSubvectors uint32 // m
	NBits         uint8
	NormBits      uint8
	Compression   uint8 // CompressionType of the code section
	Padding1      uint8
	Count         uint64 // number of codes
	CodesSize     uint64 // stored size of the code section in bytes
	Reserved      [20]byte
}

// validate checks the header against the format rules.
func (h *FileHeader) validate() error {
	if h.Magic != MagicNumber {
		return fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return fmt.Errorf("%w: got %d", ErrInvalidVersion, h.Version)
	}
	if h.Flags&^knownFlags != 0 {
		return fmt.Errorf("%w: unknown flags 0x%x", ErrCorrupt, h.Flags)
	}
	if h.Dimension == 0 || h.SubvectorDim == 0 || h.Dimension%h.SubvectorDim != 0 {
		return fmt.Errorf("%w: dimension %d with subvector dimension %d", ErrCorrupt, h.Dimension, h.SubvectorDim)
	}
	if h.NumSubvectors != h.Dimension/h.SubvectorDim {
		return fmt.Errorf("%w: %d subvectors for dimension %d/%d", ErrCorrupt, h.NumSubvectors, h.Dimension, h.SubvectorDim)
	}
	if h.NBits < 1 || h.NBits > 16 || h.NormBits > 16 {
		return fmt.Errorf("%w: nbits %d, norm bits %d", ErrCorrupt, h.NBits, h.NormBits)
	}
	if h.Flags&FlagNorm == 0 && h.NormBits != 0 {
		return fmt.Errorf("%w: norm bits %d without norm flag", ErrCorrupt, h.NormBits)
	}
	comp := CompressionType(h.Compression)
	if !comp.valid() {
		return fmt.Errorf("%w: compression type %d", ErrCorrupt, h.Compression)
	}
	if (h.Flags&FlagCompressed != 0) != (comp != CompressionNone) {
		return fmt.Errorf("%w: compression flag does not match type %s", ErrCorrupt, comp)
	}
	if comp == CompressionNone && h.CodesSize != h.Count*uint64(h.codeSize()) {
		return fmt.Errorf("%w: code section of %d bytes for %d codes", ErrCorrupt, h.CodesSize, h.Count)
	}
	return nil
}

func (h *FileHeader) centroidCount() uint64 {
	return uint64(h.NumSubvectors) << h.NBits * uint64(h.SubvectorDim)
}

func (h *FileHeader) normCentroidCount() uint64 {
	if h.Flags&FlagNorm == 0 {
		return 0
	}
	return 1 << h.NormBits
}

func (h *FileHeader) codeSize() int {
	size := int(h.NumSubvectors) * unitBytes(h.NBits)
	if h.Flags&FlagNorm != 0 {
		size += unitBytes(h.NormBits)
	}
	return size
}

func unitBytes(nbits uint8) int {
	if nbits <= 8 {
		return 1
	}
	return 2
}
