package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/pqcodec/internal/conv"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
// It aliases os.ErrNotExist so local and remote stores agree.
var ErrNotFound = os.ErrNotExist

// CurrentName is the blob that points at the active codec artifact.
// Stores with stronger commit semantics treat writes to it specially.
const CurrentName = "CURRENT"

// BlobStore stores named, immutable blobs such as codec artifacts and
// registry manifests. Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create starts a streaming write. The blob becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a whole blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names that start with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.Closer
	// ReadAt reads len(p) bytes at off. It returns io.EOF when fewer bytes remain.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange streams up to length bytes starting at off.
	// It returns io.EOF if off is at or past the end of the blob.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.WriteCloser
	// Sync flushes buffered data where the backend supports it.
	Sync() error
}

// Mappable is implemented by blobs that expose their contents without a copy.
type Mappable interface {
	// Bytes returns the contents. The slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// NewReader returns a sequential reader over the whole blob.
func NewReader(ctx context.Context, b Blob) io.Reader {
	return io.NewSectionReader(&readerAt{ctx: ctx, b: b}, 0, b.Size())
}

type readerAt struct {
	ctx context.Context
	b   Blob
}

func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	return r.b.ReadAt(r.ctx, p, off)
}

// ReadAll returns the contents of the named blob.
func ReadAll(ctx context.Context, s BlobStore, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	size, err := conv.Int64ToInt(b.Size())
	if err != nil {
		return nil, fmt.Errorf("blobstore: %s: %w", name, err)
	}
	out := make([]byte, size)
	n, err := b.ReadAt(ctx, out, 0)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == b.Size()) {
		return nil, err
	}
	return out[:n], nil
}

// Exists reports whether the named blob exists.
func Exists(ctx context.Context, s BlobStore, name string) (bool, error) {
	b, err := s.Open(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_ = b.Close()
	return true, nil
}

// rangeReader returns a bounded reader over data for ReadRange implementations.
func rangeReader(data []byte, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= int64(len(data)) {
		return nil, io.EOF
	}
	end := off + length
	if length < 0 || end > int64(len(data)) {
		end = int64(len(data))
	}
	return io.NopCloser(bytes.NewReader(data[off:end])), nil
}
