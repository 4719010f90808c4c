package quantization

const (
	// MinBits and MaxBits bound the bits per code entry.
	MinBits = 1
	MaxBits = 16

	// DefaultNBits gives 256 centroids per subspace and one byte per entry.
	DefaultNBits = 8

	// DefaultSubvectorDim is the default subspace width.
	DefaultSubvectorDim = 2
)

// Config describes the shape of a codec.
type Config struct {
	// Dimension is the vector length d.
	Dimension int

	// SubvectorDim is the subspace width ds. Dimension must be a multiple.
	SubvectorDim int

	// NBits sets k = 2^NBits centroids per subspace (1..16). Entries take
	// one byte for NBits <= 8 and two bytes (little-endian) above.
	NBits int

	// NormQuantization splits the vector norm off into a 1-D codebook.
	// Vectors are normalized to unit length before PQ.
	NormQuantization bool

	// NormBits sets 2^NormBits norm centroids (0..16) when NormQuantization
	// is enabled.
	NormBits int
}

// DefaultConfig returns a config with default subspace width and bits.
func DefaultConfig(dimension int) Config {
	return Config{
		Dimension:    dimension,
		SubvectorDim: DefaultSubvectorDim,
		NBits:        DefaultNBits,
		NormBits:     DefaultNBits,
	}
}

// Validate checks the config and returns a *ConfigError.
func (c Config) Validate() error {
	if c.Dimension <= 0 {
		return &ConfigError{Field: "dimension", Value: c.Dimension, Reason: "must be positive"}
	}
	if c.SubvectorDim <= 0 {
		return &ConfigError{Field: "subvector dimension", Value: c.SubvectorDim, Reason: "must be positive"}
	}
	if c.Dimension%c.SubvectorDim != 0 {
		return &ConfigError{Field: "dimension", Value: c.Dimension, Reason: "must be a multiple of the subvector dimension"}
	}
	if c.NBits < MinBits || c.NBits > MaxBits {
		return &ConfigError{Field: "nbits", Value: c.NBits, Reason: "must be in [1,16]"}
	}
	if c.NormBits < 0 || c.NormBits > MaxBits {
		return &ConfigError{Field: "norm bits", Value: c.NormBits, Reason: "must be in [0,16]"}
	}
	return nil
}

// NumSubvectors returns m = Dimension / SubvectorDim.
func (c Config) NumSubvectors() int { return c.Dimension / c.SubvectorDim }

// NumCentroids returns k = 2^NBits.
func (c Config) NumCentroids() int { return 1 << c.NBits }

// NumNormCentroids returns 2^NormBits, or 0 without norm quantization.
func (c Config) NumNormCentroids() int {
	if !c.NormQuantization {
		return 0
	}
	return 1 << c.NormBits
}

// PQCodeSize returns the size in bytes of the PQ part of a code.
func (c Config) PQCodeSize() int { return c.NumSubvectors() * unitBytes(c.NBits) }

// CodeSize returns the size in bytes of a full code including the norm entry.
func (c Config) CodeSize() int {
	size := c.PQCodeSize()
	if c.NormQuantization {
		size += unitBytes(c.NormBits)
	}
	return size
}

func unitBytes(nbits int) int {
	if nbits <= 8 {
		return 1
	}
	return 2
}

func bitsFor(k int) (int, bool) {
	if k <= 0 || k&(k-1) != 0 {
		return 0, false
	}
	bits := 0
	for 1<<bits < k {
		bits++
	}
	return bits, true
}

func getEntry(code []byte, i, unit int) int {
	if unit == 1 {
		return int(code[i])
	}
	return int(code[2*i]) | int(code[2*i+1])<<8
}

func putEntry(code []byte, i, unit, v int) {
	if unit == 1 {
		code[i] = byte(v)
		return
	}
	code[2*i] = byte(v)
	code[2*i+1] = byte(v >> 8)
}
