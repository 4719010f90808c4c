// Package s3 stores codec artifacts in Amazon S3.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("codecs/prod"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	reg := registry.New(store)
//
// Several publishers sharing one prefix should use a DDBCommitStore, which
// commits the CURRENT pointer with a DynamoDB conditional write:
//
//	store, err := s3.NewCommitStore(ctx, "my-bucket", "pqcodec-commits",
//	    s3.WithPrefix("codecs/prod"),
//	)
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads with CRC32C checksums for streaming writes
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
