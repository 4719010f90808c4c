package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/pqcodec/internal/conv"
	"github.com/hupe1980/pqcodec/quantization"
)

// Artifact is a decoded codec together with the codes stored alongside it.
type Artifact struct {
	Codec *quantization.Codec
	// Codes holds Count codes of Codec.CodeSize() bytes, back to back.
	Codes []byte
	Count int
}

// WriteOptions controls how an artifact is written.
type WriteOptions struct {
	Compression CompressionType
	// BlockSize is the uncompressed size of a code block. Zero uses
	// DefaultBlockSize.
	BlockSize int
}

// Write encodes codec and codes to w and returns the number of bytes
// written. codes may be empty; otherwise it must hold whole codes.
func Write(w io.Writer, codec *quantization.Codec, codes []byte, opts WriteOptions) (int64, error) {
	cfg := codec.Config()
	codeSize := codec.CodeSize()
	if len(codes)%codeSize != 0 {
		return 0, fmt.Errorf("%w: %d code bytes is not a multiple of code size %d", quantization.ErrInvalidConfig, len(codes), codeSize)
	}
	if !opts.Compression.valid() {
		return 0, fmt.Errorf("unknown compression type %d", opts.Compression)
	}

	h := FileHeader{
		Magic:         MagicNumber,
		Version:       Version,
		Dimension:     uint32(cfg.Dimension),
		SubvectorDim:  uint32(cfg.SubvectorDim),
		NumSubvectors: uint32(cfg.NumSubvectors()),
		NBits:         uint8(cfg.NBits),
		Compression:   uint8(opts.Compression),
		Count:         uint64(len(codes) / codeSize),
	}
	if cfg.NormQuantization {
		h.Flags |= FlagNorm
		h.NormBits = uint8(cfg.NormBits)
	}

	section := codes
	if opts.Compression != CompressionNone {
		h.Flags |= FlagCompressed
		var err error
		if section, err = compressSection(codes, opts.Compression, opts.BlockSize); err != nil {
			return 0, err
		}
	}
	h.CodesSize = uint64(len(section))

	cw := NewChecksumWriter(w)
	if err := binary.Write(cw, binary.LittleEndian, &h); err != nil {
		return cw.BytesWritten(), err
	}
	pq := codec.PQ()
	for i := 0; i < pq.NumSubvectors(); i++ {
		if err := binary.Write(cw, binary.LittleEndian, pq.Codebook(i).Centroids()); err != nil {
			return cw.BytesWritten(), err
		}
	}
	if norm := codec.Norm(); norm != nil {
		if err := binary.Write(cw, binary.LittleEndian, norm.Codebook().Centroids()); err != nil {
			return cw.BytesWritten(), err
		}
	}
	if _, err := cw.Write(section); err != nil {
		return cw.BytesWritten(), err
	}
	if err := binary.Write(w, binary.LittleEndian, cw.Sum()); err != nil {
		return cw.BytesWritten(), err
	}
	return cw.BytesWritten() + trailerSize, nil
}

// Read decodes one artifact from r. It reads exactly the bytes of the
// artifact and verifies the trailer before building the codec.
func Read(r io.Reader) (*Artifact, error) {
	cr := NewChecksumReader(r)

	var h FileHeader
	if err := binary.Read(cr, binary.LittleEndian, &h); err != nil {
		return nil, truncated(err, "header")
	}
	if err := h.validate(); err != nil {
		return nil, err
	}

	centroidBytes, err := readSection(cr, h.centroidCount()*4, "centroids")
	if err != nil {
		return nil, err
	}
	normBytes, err := readSection(cr, h.normCentroidCount()*4, "norm centroids")
	if err != nil {
		return nil, err
	}
	section, err := readSection(cr, h.CodesSize, "codes")
	if err != nil {
		return nil, err
	}

	var trailer uint32
	if err := binary.Read(r, binary.LittleEndian, &trailer); err != nil {
		return nil, truncated(err, "checksum")
	}
	if err := cr.Verify(trailer); err != nil {
		return nil, err
	}

	codeSize := uint64(h.codeSize())
	count, cerr := conv.Uint64ToInt(h.Count)
	if cerr != nil || h.Count > math.MaxInt/codeSize {
		return nil, fmt.Errorf("%w: %d codes", ErrCorrupt, h.Count)
	}
	codes := section
	if h.Compression != uint8(CompressionNone) {
		if codes, err = decompressSection(section, CompressionType(h.Compression), h.Count*codeSize); err != nil {
			return nil, err
		}
	}

	codec, err := buildCodec(&h, bytesToFloat32s(centroidBytes), bytesToFloat32s(normBytes))
	if err != nil {
		return nil, err
	}
	return &Artifact{Codec: codec, Codes: codes, Count: count}, nil
}

// WriteQMatrix writes the codec and row codes of qm.
func WriteQMatrix(w io.Writer, qm *quantization.QMatrix, opts WriteOptions) (int64, error) {
	return Write(w, qm.Codec(), qm.Codes(), opts)
}

// ReadQMatrix reads an artifact written by WriteQMatrix.
func ReadQMatrix(r io.Reader) (*quantization.QMatrix, error) {
	a, err := Read(r)
	if err != nil {
		return nil, err
	}
	return quantization.NewQMatrix(a.Codec, a.Count, a.Codes)
}

func buildCodec(h *FileHeader, centroids, norms []float32) (*quantization.Codec, error) {
	cfg := quantization.Config{
		Dimension:    int(h.Dimension),
		SubvectorDim: int(h.SubvectorDim),
		NBits:        int(h.NBits),
	}
	per := len(centroids) / int(h.NumSubvectors)
	codebooks := make([]*quantization.Codebook, h.NumSubvectors)
	for i := range codebooks {
		cb, err := quantization.NewCodebook(cfg.SubvectorDim, centroids[i*per:(i+1)*per])
		if err != nil {
			return nil, fmt.Errorf("%w: subspace %d: %w", ErrCorrupt, i, err)
		}
		codebooks[i] = cb
	}
	pq, err := quantization.NewProductQuantizer(cfg, codebooks)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	var nq *quantization.NormQuantizer
	if h.Flags&FlagNorm != 0 {
		if nq, err = quantization.NewNormQuantizer(norms); err != nil {
			return nil, fmt.Errorf("%w: norm codebook: %w", ErrCorrupt, err)
		}
	}
	return quantization.NewCodec(pq, nq)
}

// readSection reads n bytes without trusting n for the allocation size.
func readSection(r io.Reader, n uint64, what string) ([]byte, error) {
	if n > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %s section of %d bytes", ErrCorrupt, what, n)
	}
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		return nil, truncated(err, what)
	}
	return buf.Bytes(), nil
}

func truncated(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s", ErrTruncated, what)
	}
	return fmt.Errorf("reading %s: %w", what, err)
}

func bytesToFloat32s(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
