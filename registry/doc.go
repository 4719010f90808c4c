// Package registry publishes trained codecs to a blobstore and serves the
// active one to readers.
//
// A publication writes three blobs:
//
//	codecs/000007.pqc      persistence artifact (codebooks and optional codes)
//	manifests/000007.json  manifest describing the artifact
//	CURRENT                path of the active manifest
//
// CURRENT is written last, so a reader that follows it never observes a
// half-written codec. Within a process the active codec is swapped through an
// atomic pointer and readers never lock.
//
//	reg := registry.New(store, registry.WithLogger(logger))
//	snap, err := reg.Publish(ctx, codec, codes)
//	...
//	codec := reg.Codec()
package registry
