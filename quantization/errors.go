package quantization

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is matched by every configuration error.
	ErrInvalidConfig = errors.New("invalid quantization config")

	// ErrNoTrainingData is returned when the training source is empty.
	ErrNoTrainingData = errors.New("no vectors provided for training")

	// ErrTableTooLarge is returned when a symmetric table would exceed
	// MaxSymmetricCentroids per subspace.
	ErrTableTooLarge = errors.New("symmetric distance table too large")
)

// ConfigError describes an invalid configuration value.
type ConfigError struct {
	Field  string
	Value  int
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %d: %s", e.Field, e.Value, e.Reason)
}

// Is reports whether target is ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// ErrDimensionMismatch indicates a vector whose length differs from the
// configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is reports whether target is ErrInvalidConfig.
func (e *ErrDimensionMismatch) Is(target error) bool { return target == ErrInvalidConfig }

// ErrCodeLength indicates a code whose length differs from the code size.
type ErrCodeLength struct {
	Expected int
	Actual   int
}

func (e *ErrCodeLength) Error() string {
	return fmt.Sprintf("code length mismatch: expected %d bytes, got %d", e.Expected, e.Actual)
}

// Is reports whether target is ErrInvalidConfig.
func (e *ErrCodeLength) Is(target error) bool { return target == ErrInvalidConfig }

// ErrCentroidIndex indicates a code entry that does not address a centroid.
type ErrCentroidIndex struct {
	Subspace int
	Index    int
	K        int
}

func (e *ErrCentroidIndex) Error() string {
	return fmt.Sprintf("centroid index %d out of range [0,%d) in subspace %d", e.Index, e.K, e.Subspace)
}

// Is reports whether target is ErrInvalidConfig.
func (e *ErrCentroidIndex) Is(target error) bool { return target == ErrInvalidConfig }

// WarningKind classifies degenerate training conditions.
type WarningKind int

const (
	// WarnFewSamples means fewer training vectors than centroids were given;
	// some centroids are duplicates of their initial sample.
	WarnFewSamples WarningKind = iota + 1
	// WarnEmptyCentroids means some centroids received no points in the
	// final assignment step and kept their previous value.
	WarnEmptyCentroids
)

func (k WarningKind) String() string {
	switch k {
	case WarnFewSamples:
		return "few_samples"
	case WarnEmptyCentroids:
		return "empty_centroids"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Warning is a recoverable training condition. Subspace is -1 for
// conditions that concern the whole run and NormSubspace for the norm
// codebook.
type Warning struct {
	Kind     WarningKind
	Subspace int
	Count    int
	Message  string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s (subspace %d, count %d): %s", w.Kind, w.Subspace, w.Count, w.Message)
}
