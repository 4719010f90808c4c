package pqcodec

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/pqcodec/blobstore"
	"github.com/hupe1980/pqcodec/internal/resource"
	"github.com/hupe1980/pqcodec/quantization"
	"github.com/hupe1980/pqcodec/registry"
)

type (
	// Codec encodes, decodes and scores vectors. See quantization.Codec.
	Codec = quantization.Codec
	// TrainReport summarizes a training run.
	TrainReport = quantization.TrainReport
	// VectorSource feeds training and batch encoding.
	VectorSource = quantization.VectorSource
	// Vectors adapts [][]float32 to VectorSource.
	Vectors = quantization.Vectors
	// Snapshot is a published codec.
	Snapshot = registry.Snapshot
)

// Train learns a Codec from src. The dimension is taken from the first vector.
func Train(ctx context.Context, src VectorSource, optFns ...Option) (*Codec, *TrainReport, error) {
	o := applyOptions(optFns)
	return train(ctx, src, &o, resource.NewController(o.resources))
}

func train(ctx context.Context, src VectorSource, o *options, limiter quantization.Limiter) (*Codec, *TrainReport, error) {
	start := time.Now()

	if src == nil || src.Len() == 0 {
		o.metricsCollector.RecordTrain(0, time.Since(start), ErrNoTrainingData)
		return nil, nil, ErrNoTrainingData
	}
	cfg := o.config(len(src.At(0)))

	topts := o.train
	topts.Logger = o.logger.WithDimension(cfg.Dimension).Logger
	topts.Limiter = limiter

	o.logger.LogCapabilities(ctx)

	c, report, err := trainWith(ctx, src, cfg, topts)
	o.logger.LogTrain(ctx, cfg, report, err)
	o.metricsCollector.RecordTrain(src.Len(), time.Since(start), err)
	return c, report, err
}

func trainWith(ctx context.Context, src VectorSource, cfg quantization.Config, opts quantization.TrainOptions) (*Codec, *TrainReport, error) {
	t, err := quantization.NewTrainer(cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	return t.Train(ctx, src)
}

// Quantizer trains codecs, publishes them to a blob store and serves the
// active one. It is safe for concurrent use.
type Quantizer struct {
	opts      options
	resources *resource.Controller
	registry  *registry.Registry
}

// New creates a Quantizer that publishes to store. Call Load to pick up a
// codec published earlier.
func New(store blobstore.BlobStore, optFns ...Option) *Quantizer {
	o := applyOptions(optFns)
	resources := resource.NewController(o.resources)

	return &Quantizer{
		opts:      o,
		resources: resources,
		registry: registry.New(store, func(ro *registry.Options) {
			ro.Logger = o.logger.Logger
			ro.Compression = o.compression
			ro.Encoding = o.encoding
			ro.Resource = resources
		}),
	}
}

// Registry returns the underlying registry.
func (q *Quantizer) Registry() *registry.Registry {
	return q.registry
}

// Codec returns the active codec, or nil.
func (q *Quantizer) Codec() *Codec {
	return q.registry.Codec()
}

// Train learns a Codec from src without publishing it.
func (q *Quantizer) Train(ctx context.Context, src VectorSource) (*Codec, *TrainReport, error) {
	return train(ctx, src, &q.opts, q.resources)
}

// Publish stores c with optional codes and makes it active.
func (q *Quantizer) Publish(ctx context.Context, c *Codec, codes []byte) (*Snapshot, error) {
	start := time.Now()
	snap, err := q.registry.Publish(ctx, c, codes)
	q.opts.metricsCollector.RecordPublish(time.Since(start), err)
	if err != nil {
		q.opts.logger.LogPublish(ctx, 0, "", err)
		return nil, err
	}
	q.opts.logger.LogPublish(ctx, snap.Manifest.Version, snap.Manifest.Artifact, nil)
	return snap, nil
}

// TrainAndPublish trains on src and publishes the codec. With storeCodes the
// codes of every vector in src are published alongside it.
func (q *Quantizer) TrainAndPublish(ctx context.Context, src VectorSource, storeCodes bool) (*Snapshot, *TrainReport, error) {
	c, report, err := q.Train(ctx, src)
	if err != nil {
		return nil, report, err
	}

	var codes []byte
	if storeCodes {
		if codes, err = q.encodeBatch(ctx, c, src); err != nil {
			return nil, report, err
		}
	}

	snap, err := q.Publish(ctx, c, codes)
	return snap, report, err
}

// Load activates the codec committed in the store.
func (q *Quantizer) Load(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	snap, err := q.registry.Load(ctx)
	q.opts.metricsCollector.RecordLoad(time.Since(start), err)
	if err != nil {
		q.opts.logger.LogLoad(ctx, 0, err)
		return nil, err
	}
	q.opts.logger.LogLoad(ctx, snap.Manifest.Version, nil)
	return snap, nil
}

// Prune deletes all but the newest keep published versions.
func (q *Quantizer) Prune(ctx context.Context, keep int) (int, error) {
	return q.registry.Prune(ctx, keep)
}

func (q *Quantizer) active() (*Codec, error) {
	c := q.registry.Codec()
	if c == nil {
		return nil, ErrNoCodec
	}
	return c, nil
}

// Encode encodes v with the active codec.
func (q *Quantizer) Encode(v []float32) ([]byte, error) {
	c, err := q.active()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	code, err := c.Encode(v)
	q.opts.metricsCollector.RecordEncode(1, time.Since(start), err)
	return code, err
}

// EncodeBatch encodes every vector of src with the active codec.
func (q *Quantizer) EncodeBatch(ctx context.Context, src VectorSource) ([]byte, error) {
	c, err := q.active()
	if err != nil {
		return nil, err
	}
	return q.encodeBatch(ctx, c, src)
}

func (q *Quantizer) encodeBatch(ctx context.Context, c *Codec, src VectorSource) ([]byte, error) {
	start := time.Now()
	codes, err := c.EncodeBatch(ctx, src, q.resources.Workers())
	q.opts.metricsCollector.RecordEncode(src.Len(), time.Since(start), err)
	q.opts.logger.LogEncodeBatch(ctx, src.Len(), err)
	return codes, err
}

// Decode reconstructs a vector with the active codec.
func (q *Quantizer) Decode(code []byte) ([]float32, error) {
	c, err := q.active()
	if err != nil {
		return nil, err
	}
	return c.Decode(code)
}

// NewQueryTable prepares asymmetric scoring of codes against query with the
// active codec. Release the table when done.
func (q *Quantizer) NewQueryTable(query []float32) (*quantization.QueryTable, error) {
	c, err := q.active()
	if err != nil {
		return nil, err
	}
	return c.NewQueryTable(query)
}

// SymmetricDistance returns the approximate squared distance between two
// codes of the active codec.
func (q *Quantizer) SymmetricDistance(a, b []byte) (float32, error) {
	c, err := q.active()
	if err != nil {
		return 0, err
	}
	t, err := c.SymmetricTable()
	if errors.Is(err, quantization.ErrTableTooLarge) {
		return c.SymmetricDistance(a, b)
	}
	if err != nil {
		return 0, err
	}
	return t.Distance(a, b)
}
