package pqcodec

import (
	"log/slog"

	"github.com/hupe1980/pqcodec/codec"
	"github.com/hupe1980/pqcodec/internal/resource"
	"github.com/hupe1980/pqcodec/persistence"
	"github.com/hupe1980/pqcodec/quantization"
)

type options struct {
	subvectorDim     int
	nbits            int
	normQuantization bool
	normBits         int
	train            quantization.TrainOptions
	compression      persistence.CompressionType
	encoding         codec.Codec
	resources        resource.Config
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a Quantizer and the package-level Train helper.
type Option func(*options)

// WithSubvectorDim sets the number of dimensions per subspace.
// The vector dimension must be divisible by it. Default: 2.
func WithSubvectorDim(ds int) Option {
	return func(o *options) {
		o.subvectorDim = ds
	}
}

// WithNBits sets the bits per subspace code; each codebook has 2^nbits
// centroids. Valid range 1-16. Default: 8.
func WithNBits(nbits int) Option {
	return func(o *options) {
		o.nbits = nbits
	}
}

// WithNormQuantization stores each vector's L2 norm in its own scalar
// codebook of 2^bits centroids and quantizes the unit direction with PQ.
//
// Example:
//
//	q := pqcodec.New(store, pqcodec.WithNormQuantization(8))
func WithNormQuantization(bits int) Option {
	return func(o *options) {
		o.normQuantization = true
		o.normBits = bits
	}
}

// WithSeed sets the training seed. Default: 1234.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.train.Seed = seed
	}
}

// WithIterations sets the Lloyd iteration budget per codebook. Default: 25.
func WithIterations(n int) Option {
	return func(o *options) {
		o.train.MaxIterations = n
	}
}

// WithTolerance stops a codebook early once no centroid moves by more than
// tol (squared distance).
func WithTolerance(tol float32) Option {
	return func(o *options) {
		o.train.Tolerance = tol
	}
}

// WithMaxPointsPerCluster caps the training sample of each codebook at
// n*2^nbits points. Zero disables the cap. Default: 256.
func WithMaxPointsPerCluster(n int) Option {
	return func(o *options) {
		o.train.MaxPointsPerCluster = n
	}
}

// WithWorkers bounds the goroutines used by training and batch encoding.
// <= 0 uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.train.Workers = n
		o.resources.MaxWorkers = int64(max(n, 0))
	}
}

// WithMemoryLimit bounds training sample memory and artifact load buffers.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.resources.MemoryLimitBytes = bytes
	}
}

// WithIOLimit throttles artifact reads and writes to bytesPerSec.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.resources.IOLimitBytesPerSec = bytesPerSec
	}
}

// WithCompression sets the compression of published code sections.
// Default: persistence.CompressionNone.
func WithCompression(c persistence.CompressionType) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithCodec configures the encoding used for registry manifests.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.encoding = c
	}
}

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &pqcodec.BasicMetricsCollector{}
//	q := pqcodec.New(store, pqcodec.WithMetricsCollector(metrics))
//	// ... use q ...
//	stats := metrics.GetStats()
//	fmt.Printf("Encoded: %d, Avg latency: %dns\n", stats.EncodeVectors, stats.EncodeAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := pqcodec.NewJSONLogger(slog.LevelInfo)
//	q := pqcodec.New(store, pqcodec.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		subvectorDim:     quantization.DefaultSubvectorDim,
		nbits:            quantization.DefaultNBits,
		train:            quantization.DefaultTrainOptions(),
		encoding:         codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o *options) config(dimension int) quantization.Config {
	return quantization.Config{
		Dimension:        dimension,
		SubvectorDim:     o.subvectorDim,
		NBits:            o.nbits,
		NormQuantization: o.normQuantization,
		NormBits:         o.normBits,
	}
}
