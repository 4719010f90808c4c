package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// UploadConfig configures the multipart uploader used by Create.
type UploadConfig struct {
	// PartSize is the minimum part size for multipart uploads.
	// Default: 8MB
	PartSize int64

	// Concurrency is the number of concurrent part uploads.
	// Default: 5
	Concurrency int

	// EnableChecksum asks S3 to validate CRC32C checksums.
	// Default: true
	EnableChecksum bool

	// LeavePartsOnError keeps the parts of a failed multipart upload.
	// Default: false
	LeavePartsOnError bool
}

// DefaultUploadConfig returns the default upload settings.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:       8 * 1024 * 1024,
		Concurrency:    5,
		EnableChecksum: true,
	}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize >= manager.MinUploadPartSize {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
		u.LeavePartsOnError = cfg.LeavePartsOnError
	})
}

// Options configures stores built by New and NewCommitStore.
type Options struct {
	// Prefix is prepended to every key.
	Prefix string
	// Region overrides the region from the shared AWS config.
	Region string
	// Endpoint points the client at an S3-compatible endpoint.
	Endpoint string
	// UsePathStyle selects path-style addressing, needed by most local emulators.
	UsePathStyle bool
	// Upload configures streaming uploads.
	Upload UploadConfig
}

func defaultOptions() Options {
	return Options{Upload: DefaultUploadConfig()}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) func(*Options) {
	return func(o *Options) { o.Prefix = prefix }
}

// WithRegion sets the AWS region.
func WithRegion(region string) func(*Options) {
	return func(o *Options) { o.Region = region }
}

// WithEndpoint sets a custom endpoint and enables path-style addressing.
func WithEndpoint(endpoint string) func(*Options) {
	return func(o *Options) {
		o.Endpoint = endpoint
		o.UsePathStyle = true
	}
}

// WithUploadConfig replaces the upload settings.
func WithUploadConfig(cfg UploadConfig) func(*Options) {
	return func(o *Options) { o.Upload = cfg }
}

func loadConfig(ctx context.Context, opts Options) (aws.Config, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("s3: load aws config: %w", err)
	}
	return cfg, nil
}

func newClient(cfg aws.Config, opts Options) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
}

// New creates a Store using the default AWS credential chain.
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("codecs/prod"),
//	    s3.WithRegion("us-east-1"),
//	)
func New(ctx context.Context, bucket string, optFns ...func(*Options)) (*Store, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg, err := loadConfig(ctx, opts)
	if err != nil {
		return nil, err
	}
	return newStore(newClient(cfg, opts), bucket, opts), nil
}

// NewCommitStore creates a DDBCommitStore that keeps blobs in S3 and commits
// CURRENT through the given DynamoDB table. The store URI is the partition key.
func NewCommitStore(ctx context.Context, bucket, table string, optFns ...func(*Options)) (*DDBCommitStore, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg, err := loadConfig(ctx, opts)
	if err != nil {
		return nil, err
	}

	store := newStore(newClient(cfg, opts), bucket, opts)
	return NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg), table, store.URI()), nil
}
