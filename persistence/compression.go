package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType selects the block compression of the code section.
type CompressionType uint8

const (
	// CompressionNone stores codes raw.
	CompressionNone CompressionType = 0
	// CompressionLZ4 uses LZ4 blocks (fast).
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD uses Zstandard blocks (better ratio).
	CompressionZSTD CompressionType = 2
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (CompressionType, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression %q", s)
	}
}

func (c CompressionType) valid() bool { return c <= CompressionZSTD }

// DefaultBlockSize is the uncompressed size of a code block.
const DefaultBlockSize = 256 * 1024

// Block layout: [UncompressedSize uint32][CompressedSize uint32][Data...]
// CompressedSize 0 means the block is stored uncompressed.
const blockHeaderSize = 8

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) { zstdEncoderPool.Put(enc) }

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) { zstdDecoderPool.Put(dec) }

// compressSection splits data into blocks of blockSize and compresses each.
// Blocks that do not shrink below 90% are stored raw.
func compressSection(data []byte, comp CompressionType, blockSize int) ([]byte, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	var out bytes.Buffer
	for start := 0; start < len(data); start += blockSize {
		block := data[start:min(start+blockSize, len(data))]

		var compressed []byte
		switch comp {
		case CompressionLZ4:
			buf := make([]byte, lz4.CompressBlockBound(len(block)))
			n, err := lz4.CompressBlock(block, buf, nil)
			if err != nil {
				return nil, err
			}
			compressed = buf[:n] // n == 0: incompressible
		case CompressionZSTD:
			enc := getZstdEncoder()
			compressed = enc.EncodeAll(block, nil)
			putZstdEncoder(enc)
		default:
			return nil, fmt.Errorf("compression %s cannot produce blocks", comp)
		}

		var hdr [blockHeaderSize]byte
		binary.LittleEndian.PutUint32(hdr[0:], uint32(len(block)))
		if len(compressed) == 0 || float64(len(compressed)) > float64(len(block))*0.9 {
			out.Write(hdr[:])
			out.Write(block)
			continue
		}
		binary.LittleEndian.PutUint32(hdr[4:], uint32(len(compressed)))
		out.Write(hdr[:])
		out.Write(compressed)
	}
	return out.Bytes(), nil
}

// decompressSection decodes a block sequence that must expand to exactly
// want bytes.
func decompressSection(data []byte, comp CompressionType, want uint64) ([]byte, error) {
	out := make([]byte, 0, min(want, uint64(len(data))*4))
	for off := 0; off < len(data); {
		if len(data)-off < blockHeaderSize {
			return nil, fmt.Errorf("%w: block header at offset %d", ErrCorrupt, off)
		}
		rawSize := binary.LittleEndian.Uint32(data[off:])
		compSize := binary.LittleEndian.Uint32(data[off+4:])
		off += blockHeaderSize

		if uint64(len(out))+uint64(rawSize) > want {
			return nil, fmt.Errorf("%w: block at offset %d expands past %d bytes", ErrCorrupt, off, want)
		}

		if compSize == 0 {
			if uint64(len(data)-off) < uint64(rawSize) {
				return nil, fmt.Errorf("%w: raw block of %d bytes at offset %d", ErrCorrupt, rawSize, off)
			}
			out = append(out, data[off:off+int(rawSize)]...)
			off += int(rawSize)
			continue
		}

		if uint64(len(data)-off) < uint64(compSize) {
			return nil, fmt.Errorf("%w: compressed block of %d bytes at offset %d", ErrCorrupt, compSize, off)
		}
		src := data[off : off+int(compSize)]
		off += int(compSize)

		start := len(out)
		out = append(out, make([]byte, rawSize)...)
		dst := out[start:]
		switch comp {
		case CompressionLZ4:
			n, err := lz4.UncompressBlock(src, dst)
			if err != nil {
				return nil, fmt.Errorf("%w: lz4: %w", ErrCorrupt, err)
			}
			if uint32(n) != rawSize {
				return nil, fmt.Errorf("%w: lz4 block expanded to %d of %d bytes", ErrCorrupt, n, rawSize)
			}
		case CompressionZSTD:
			dec := getZstdDecoder()
			decoded, err := dec.DecodeAll(src, dst[:0])
			putZstdDecoder(dec)
			if err != nil {
				return nil, fmt.Errorf("%w: zstd: %w", ErrCorrupt, err)
			}
			if uint32(len(decoded)) != rawSize {
				return nil, fmt.Errorf("%w: zstd block expanded to %d of %d bytes", ErrCorrupt, len(decoded), rawSize)
			}
		default:
			return nil, fmt.Errorf("%w: compression type %s", ErrCorrupt, comp)
		}
	}
	if uint64(len(out)) != want {
		return nil, fmt.Errorf("%w: code section expands to %d of %d bytes", ErrCorrupt, len(out), want)
	}
	return out, nil
}
