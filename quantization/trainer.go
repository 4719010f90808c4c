package quantization

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pqcodec/internal/kmeans"
)

const (
	// DefaultSeed seeds every training run unless overridden.
	DefaultSeed = 1234

	// DefaultMaxIterations is the Lloyd iteration budget per codebook.
	DefaultMaxIterations = 25

	// DefaultMaxPointsPerCluster caps the training sample of a codebook at
	// this many points per centroid.
	DefaultMaxPointsPerCluster = 256
)

// Limiter bounds the resources used by training. internal/resource.Controller
// implements it.
type Limiter interface {
	AcquireWorker(ctx context.Context) error
	ReleaseWorker()
	AcquireMemory(bytes int64) error
	ReleaseMemory(bytes int64)
}

// TrainOptions controls a training run.
type TrainOptions struct {
	// Seed makes training reproducible. Codebook i draws from its own
	// generator derived from (Seed, i), so results do not depend on Workers.
	Seed int64

	// MaxIterations bounds the Lloyd iterations per codebook.
	MaxIterations int

	// Tolerance stops a codebook early once no centroid moves by more than
	// this squared distance. Zero stops only on a fixed point.
	Tolerance float32

	// MaxPointsPerCluster caps the sample per codebook at
	// MaxPointsPerCluster*k points. Zero disables the cap.
	MaxPointsPerCluster int

	// Workers bounds the codebooks trained concurrently. <= 0 uses GOMAXPROCS.
	Workers int

	// Logger receives progress and warnings. Nil discards.
	Logger *slog.Logger

	// Limiter optionally bounds workers and sample memory.
	Limiter Limiter
}

// DefaultTrainOptions returns the default training options.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Seed:                DefaultSeed,
		MaxIterations:       DefaultMaxIterations,
		MaxPointsPerCluster: DefaultMaxPointsPerCluster,
	}
}

// SubspaceReport describes the training of one codebook.
type SubspaceReport struct {
	// Index is the subspace, or NormSubspace for the norm codebook.
	Index      int
	Samples    int
	Iterations int
	Converged  bool
	Inertia    float64

	// Empty holds the centroids that received no points in the final
	// assignment step.
	Empty *roaring.Bitmap
}

// TrainReport summarizes a training run.
type TrainReport struct {
	Vectors   int
	Subspaces []SubspaceReport
	Norm      *SubspaceReport
	Warnings  []Warning
	Duration  time.Duration
}

// HasWarnings reports whether training hit a degenerate condition.
func (r *TrainReport) HasWarnings() bool { return len(r.Warnings) > 0 }

// Trainer learns a Codec from sample vectors.
type Trainer struct {
	cfg    Config
	opts   TrainOptions
	logger *slog.Logger
}

// NewTrainer validates cfg and opts.
func NewTrainer(cfg Config, opts TrainOptions) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxIterations <= 0 {
		return nil, &ConfigError{Field: "max iterations", Value: opts.MaxIterations, Reason: "must be positive"}
	}
	if opts.MaxPointsPerCluster < 0 {
		return nil, &ConfigError{Field: "max points per cluster", Value: opts.MaxPointsPerCluster, Reason: "must not be negative"}
	}
	if opts.Tolerance < 0 {
		return nil, fmt.Errorf("%w: tolerance %g must not be negative", ErrInvalidConfig, opts.Tolerance)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Trainer{cfg: cfg, opts: opts, logger: logger}, nil
}

// Train learns one codebook per subspace, plus the norm codebook when norm
// quantization is enabled. Degenerate conditions do not fail training; they
// are returned as warnings in the report and logged.
func (t *Trainer) Train(ctx context.Context, src VectorSource) (*Codec, *TrainReport, error) {
	start := time.Now()
	n := src.Len()
	if n == 0 {
		return nil, nil, ErrNoTrainingData
	}
	d := t.cfg.Dimension
	for i := 0; i < n; i++ {
		if l := len(src.At(i)); l != d {
			return nil, nil, fmt.Errorf("training vector %d: %w", i, &ErrDimensionMismatch{Expected: d, Actual: l})
		}
	}

	data := src
	var norms []float32
	if t.cfg.NormQuantization {
		bytes := int64(n) * int64(d+1) * 4
		if err := t.acquireMemory(bytes); err != nil {
			return nil, nil, err
		}
		defer t.releaseMemory(bytes)

		dirs := make([]float32, n*d)
		norms = make([]float32, n)
		for i := 0; i < n; i++ {
			dir, nrm := splitNorm(src.At(i))
			copy(dirs[i*d:], dir)
			norms[i] = nrm
		}
		data = FlatVectors{data: dirs, dim: d}
	}

	m, k, ds := t.cfg.NumSubvectors(), t.cfg.NumCentroids(), t.cfg.SubvectorDim
	report := &TrainReport{Vectors: n, Subspaces: make([]SubspaceReport, m)}
	results := make([]*kmeans.Result, m)

	t.logger.Info("training codec",
		slog.Int("vectors", n),
		slog.Int("dimension", d),
		slog.Int("subspaces", m),
		slog.Int("centroids", k),
		slog.Bool("norm", t.cfg.NormQuantization),
		slog.Int("workers", t.opts.Workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Workers)
	for i := 0; i < m; i++ {
		g.Go(func() error {
			if err := t.acquireWorker(gctx); err != nil {
				return err
			}
			defer t.releaseWorker()

			res, samples, err := t.trainSubspace(gctx, i, n, ds, k, func(dst []float32, j int) {
				copy(dst, data.At(j)[i*ds:(i+1)*ds])
			})
			if err != nil {
				return fmt.Errorf("subspace %d: %w", i, err)
			}
			results[i] = res
			report.Subspaces[i] = subspaceReport(i, samples, res)
			t.logger.Debug("trained subspace",
				slog.Int("subspace", i),
				slog.Int("samples", samples),
				slog.Int("iterations", res.Iterations),
				slog.Bool("converged", res.Converged),
				slog.Float64("inertia", res.Inertia))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	codebooks := make([]*Codebook, m)
	for i, res := range results {
		codebooks[i] = &Codebook{dim: ds, k: k, centroids: res.Centroids}
		if empty := res.Empty.GetCardinality(); empty > 0 {
			report.Warnings = append(report.Warnings, Warning{
				Kind:     WarnEmptyCentroids,
				Subspace: i,
				Count:    int(empty),
				Message:  fmt.Sprintf("%d of %d centroids received no points and kept their previous value", empty, k),
			})
		}
	}
	if samples := report.Subspaces[0].Samples; samples < k {
		report.Warnings = append(report.Warnings, Warning{
			Kind:     WarnFewSamples,
			Subspace: -1,
			Count:    samples,
			Message:  fmt.Sprintf("%d training vectors for %d centroids per subspace", samples, k),
		})
	}

	pq, err := NewProductQuantizer(t.cfg, codebooks)
	if err != nil {
		return nil, nil, err
	}

	var nq *NormQuantizer
	if t.cfg.NormQuantization {
		kn := t.cfg.NumNormCentroids()
		res, samples, err := t.trainSubspace(ctx, NormSubspace, n, 1, kn, func(dst []float32, j int) {
			dst[0] = norms[j]
		})
		if err != nil {
			return nil, nil, fmt.Errorf("norm codebook: %w", err)
		}
		nr := subspaceReport(NormSubspace, samples, res)
		report.Norm = &nr
		if samples < kn {
			report.Warnings = append(report.Warnings, Warning{
				Kind:     WarnFewSamples,
				Subspace: NormSubspace,
				Count:    samples,
				Message:  fmt.Sprintf("%d training vectors for %d norm centroids", samples, kn),
			})
		}
		if empty := res.Empty.GetCardinality(); empty > 0 {
			report.Warnings = append(report.Warnings, Warning{
				Kind:     WarnEmptyCentroids,
				Subspace: NormSubspace,
				Count:    int(empty),
				Message:  fmt.Sprintf("%d of %d norm centroids received no points and kept their previous value", empty, kn),
			})
		}
		if nq, err = NewNormQuantizer(res.Centroids); err != nil {
			return nil, nil, err
		}
	}

	codec, err := NewCodec(pq, nq)
	if err != nil {
		return nil, nil, err
	}

	for _, w := range report.Warnings {
		t.logger.Warn("degenerate training condition",
			slog.String("kind", w.Kind.String()),
			slog.Int("subspace", w.Subspace),
			slog.Int("count", w.Count),
			slog.String("detail", w.Message))
	}
	report.Duration = time.Since(start)
	t.logger.Info("trained codec",
		slog.Duration("duration", report.Duration),
		slog.Int("code_size", codec.CodeSize()),
		slog.Int("warnings", len(report.Warnings)))

	return codec, report, nil
}

// trainSubspace samples up to MaxPointsPerCluster*k of the n points through
// a seeded shuffle and clusters them. load copies point j into dst.
func (t *Trainer) trainSubspace(ctx context.Context, index, n, dim, k int, load func(dst []float32, j int)) (*kmeans.Result, int, error) {
	rng := rand.New(rand.NewSource(subspaceSeed(t.opts.Seed, index)))

	np := n
	if t.opts.MaxPointsPerCluster > 0 {
		np = min(n, t.opts.MaxPointsPerCluster*k)
	}
	perm := rng.Perm(n)

	bytes := int64(np) * int64(dim) * 4
	if err := t.acquireMemory(bytes); err != nil {
		return nil, 0, err
	}
	defer t.releaseMemory(bytes)

	points := make([]float32, np*dim)
	for s := 0; s < np; s++ {
		load(points[s*dim:(s+1)*dim], perm[s])
	}

	res, err := kmeans.Train(ctx, points, dim, k, rng, kmeans.Options{
		MaxIterations: t.opts.MaxIterations,
		Tolerance:     t.opts.Tolerance,
	})
	if err != nil {
		return nil, 0, err
	}
	return res, np, nil
}

func subspaceReport(index, samples int, res *kmeans.Result) SubspaceReport {
	return SubspaceReport{
		Index:      index,
		Samples:    samples,
		Iterations: res.Iterations,
		Converged:  res.Converged,
		Inertia:    res.Inertia,
		Empty:      res.Empty,
	}
}

// subspaceSeed derives the generator seed of one codebook with a splitmix64
// step so neighbouring subspaces get unrelated streams.
func subspaceSeed(seed int64, index int) int64 {
	z := uint64(seed) + uint64(index+3)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}

func (t *Trainer) acquireWorker(ctx context.Context) error {
	if t.opts.Limiter == nil {
		return nil
	}
	return t.opts.Limiter.AcquireWorker(ctx)
}

func (t *Trainer) releaseWorker() {
	if t.opts.Limiter != nil {
		t.opts.Limiter.ReleaseWorker()
	}
}

func (t *Trainer) acquireMemory(bytes int64) error {
	if t.opts.Limiter == nil {
		return nil
	}
	return t.opts.Limiter.AcquireMemory(bytes)
}

func (t *Trainer) releaseMemory(bytes int64) {
	if t.opts.Limiter != nil {
		t.opts.Limiter.ReleaseMemory(bytes)
	}
}
