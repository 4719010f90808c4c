// Package minio stores codec artifacts in MinIO or any other S3-compatible
// service through the MinIO Go client.
//
// # Basic Usage
//
//	store, err := minio.Dial(ctx, minio.Config{
//	    Endpoint:     "localhost:9000",
//	    AccessKey:    "minioadmin",
//	    SecretKey:    "minioadmin",
//	    Bucket:       "codecs",
//	    CreateBucket: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	reg := registry.New(store)
//
// NewStore wraps an existing *minio.Client for callers that configure the
// client themselves.
//
// CURRENT is written with a plain PUT, so concurrent publishers can race.
// Use s3.DDBCommitStore when more than one process publishes to a prefix.
package minio
