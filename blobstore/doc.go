// Package blobstore stores codec artifacts and registry manifests.
//
// BlobStore is the interface for reading and writing named blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process maps, used by tests and ephemeral registries
//   - LocalStore: local filesystem, mmap reads and atomic rename writes
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - s3.DDBCommitStore: s3.Store with DynamoDB conditional commits of CURRENT
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Create(ctx, name) (WritableBlob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Missing blobs must be reported with an error matching ErrNotFound.
package blobstore
