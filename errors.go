package pqcodec

import (
	"errors"

	"github.com/hupe1980/pqcodec/blobstore/s3"
	"github.com/hupe1980/pqcodec/persistence"
	"github.com/hupe1980/pqcodec/quantization"
	"github.com/hupe1980/pqcodec/registry"
)

var (
	// ErrNoCodec is returned by Quantizer operations that need an active
	// codec before one was trained, published or loaded.
	ErrNoCodec = errors.New("no active codec")

	// ErrInvalidConfig matches every configuration and shape error.
	ErrInvalidConfig = quantization.ErrInvalidConfig
	// ErrNoTrainingData is returned when the training source is empty.
	ErrNoTrainingData = quantization.ErrNoTrainingData
	// ErrTableTooLarge is returned when a symmetric table would be too large.
	ErrTableTooLarge = quantization.ErrTableTooLarge

	// ErrTruncated, ErrCorrupt and ErrChecksum report damaged artifacts.
	ErrTruncated = persistence.ErrTruncated
	ErrCorrupt   = persistence.ErrCorrupt
	ErrChecksum  = persistence.ErrChecksum

	// ErrNotPublished is returned by Load when nothing was published.
	ErrNotPublished = registry.ErrNotPublished
	// ErrConcurrentModification is returned when another publisher won the
	// commit of the same version.
	ErrConcurrentModification = s3.ErrConcurrentModification
)

type (
	// ConfigError describes an invalid configuration value.
	ConfigError = quantization.ConfigError
	// ErrDimensionMismatch indicates a vector of the wrong length.
	ErrDimensionMismatch = quantization.ErrDimensionMismatch
	// ErrCodeLength indicates a code of the wrong length.
	ErrCodeLength = quantization.ErrCodeLength
	// ErrCentroidIndex indicates a code entry outside its codebook.
	ErrCentroidIndex = quantization.ErrCentroidIndex
)
