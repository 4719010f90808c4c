package pqcodec

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/pqcodec/internal/simd"
	"github.com/hupe1980/pqcodec/quantization"
)

// Logger wraps slog.Logger with pqcodec-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// WithVersion adds a registry version field to the logger.
func (l *Logger) WithVersion(version uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("version", version),
	}
}

// LogCapabilities logs the distance kernel capabilities of this host.
func (l *Logger) LogCapabilities(ctx context.Context) {
	info := simd.GetInfo()
	l.DebugContext(ctx, "distance kernels",
		"arch", info.Arch,
		"isa", info.ISA.String(),
		"features", info.Features,
	)
}

// LogTrain logs a training run.
func (l *Logger) LogTrain(ctx context.Context, cfg quantization.Config, report *quantization.TrainReport, err error) {
	if err != nil {
		l.ErrorContext(ctx, "training failed",
			"dimension", cfg.Dimension,
			"subvector_dim", cfg.SubvectorDim,
			"nbits", cfg.NBits,
			"error", err,
		)
		return
	}

	attrs := []any{
		"dimension", cfg.Dimension,
		"subspaces", cfg.NumSubvectors(),
		"nbits", cfg.NBits,
		"norm", cfg.NormQuantization,
		"vectors", report.Vectors,
		"duration", report.Duration,
	}
	if report.HasWarnings() {
		l.WarnContext(ctx, "training completed with warnings", append(attrs, "warnings", len(report.Warnings))...)
		return
	}
	l.InfoContext(ctx, "training completed", attrs...)
}

// LogEncodeBatch logs a batch encoding.
func (l *Logger) LogEncodeBatch(ctx context.Context, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "batch encode failed",
			"count", count,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "batch encode completed",
			"count", count,
		)
	}
}

// LogPublish logs a registry publication.
func (l *Logger) LogPublish(ctx context.Context, version uint64, artifact string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "publish failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "publish completed",
			"version", version,
			"artifact", artifact,
		)
	}
}

// LogLoad logs a registry load.
func (l *Logger) LogLoad(ctx context.Context, version uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "load completed",
			"version", version,
		)
	}
}
