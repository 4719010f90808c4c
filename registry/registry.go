package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/pqcodec/blobstore"
	"github.com/hupe1980/pqcodec/codec"
	"github.com/hupe1980/pqcodec/internal/resource"
	"github.com/hupe1980/pqcodec/persistence"
	"github.com/hupe1980/pqcodec/quantization"
)

var (
	// ErrNotPublished is returned by Load when the store has no CURRENT pointer.
	ErrNotPublished = errors.New("registry: no codec published")
	// ErrManifestMismatch is returned when a manifest disagrees with its artifact.
	ErrManifestMismatch = errors.New("registry: manifest does not match artifact")
)

// Snapshot is an immutable published codec.
type Snapshot struct {
	Manifest Manifest
	Codec    *quantization.Codec
	// Codes holds Manifest.Count codes stored with the codec. May be nil.
	Codes []byte
}

// Options configures a Registry.
type Options struct {
	Logger *slog.Logger
	// Compression is applied to the code section of published artifacts.
	Compression persistence.CompressionType
	// BlockSize is the uncompressed code block size. Zero uses the default.
	BlockSize int
	// Encoding encodes manifests. Defaults to codec.Default.
	Encoding codec.Codec
	// IOLimitBytesPerSec throttles artifact reads and writes. Zero is unlimited.
	IOLimitBytesPerSec int64
	// MemoryLimitBytes bounds the artifact bytes held while loading. Zero only tracks.
	MemoryLimitBytes int64
	// Resource shares a controller with other components. When set it
	// replaces the IO and memory limits above.
	Resource *resource.Controller
	// Now stamps manifests. Defaults to time.Now.
	Now func() time.Time
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) func(*Options) {
	return func(o *Options) { o.Logger = l }
}

// WithCompression sets the code section compression.
func WithCompression(c persistence.CompressionType) func(*Options) {
	return func(o *Options) { o.Compression = c }
}

// WithEncoding sets the manifest encoding.
func WithEncoding(c codec.Codec) func(*Options) {
	return func(o *Options) { o.Encoding = c }
}

// WithIOLimit throttles artifact IO to bytesPerSec.
func WithIOLimit(bytesPerSec int64) func(*Options) {
	return func(o *Options) { o.IOLimitBytesPerSec = bytesPerSec }
}

// WithMemoryLimit bounds the artifact bytes held while loading.
func WithMemoryLimit(bytes int64) func(*Options) {
	return func(o *Options) { o.MemoryLimitBytes = bytes }
}

// WithResourceController makes the registry charge IO and memory to rc.
func WithResourceController(rc *resource.Controller) func(*Options) {
	return func(o *Options) { o.Resource = rc }
}

// Registry publishes codecs to a BlobStore and holds the active one.
type Registry struct {
	store    blobstore.BlobStore
	opts     Options
	logger   *slog.Logger
	resource *resource.Controller

	// mu serializes Publish and Load within the process. Readers use active.
	mu     sync.Mutex
	active atomic.Pointer[Snapshot]
}

// New creates a Registry over store.
func New(store blobstore.BlobStore, optFns ...func(*Options)) *Registry {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Encoding == nil {
		opts.Encoding = codec.Default
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	rc := opts.Resource
	if rc == nil {
		rc = resource.NewController(resource.Config{
			MemoryLimitBytes:   opts.MemoryLimitBytes,
			IOLimitBytesPerSec: opts.IOLimitBytesPerSec,
		})
	}

	return &Registry{
		store:    store,
		opts:     opts,
		logger:   logger.With("component", "registry"),
		resource: rc,
	}
}

// Current returns the active snapshot, or nil before the first Publish or Load.
func (r *Registry) Current() *Snapshot {
	return r.active.Load()
}

// Codec returns the active codec, or nil.
func (r *Registry) Codec() *quantization.Codec {
	if s := r.active.Load(); s != nil {
		return s.Codec
	}
	return nil
}

// Publish stores c and codes as the next version, commits CURRENT and makes
// the codec active. codes may be nil.
func (r *Registry) Publish(ctx context.Context, c *quantization.Codec, codes []byte) (*Snapshot, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil codec", quantization.ErrInvalidConfig)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()

	versions, err := r.Versions(ctx)
	if err != nil {
		return nil, err
	}
	version := uint64(1)
	if len(versions) > 0 {
		version = versions[len(versions)-1] + 1
	}

	size, err := r.writeArtifact(ctx, artifactName(version), c, codes)
	if err != nil {
		return nil, err
	}

	cfg := c.Config()
	m := Manifest{
		Version:      version,
		Artifact:     artifactName(version),
		Size:         size,
		Dimension:    cfg.Dimension,
		SubvectorDim: cfg.SubvectorDim,
		NBits:        cfg.NBits,
		Norm:         cfg.NormQuantization,
		NormBits:     cfg.NormBits,
		Count:        len(codes) / c.CodeSize(),
		Compression:  r.opts.Compression.String(),
		Encoding:     r.opts.Encoding.Name(),
		CreatedAt:    r.opts.Now().UTC(),
	}

	data, err := r.opts.Encoding.Marshal(&m)
	if err != nil {
		r.discardArtifact(ctx, m.Artifact)
		return nil, fmt.Errorf("registry: encode manifest: %w", err)
	}
	if err := r.store.Put(ctx, manifestName(version), data); err != nil {
		r.discardArtifact(ctx, m.Artifact)
		return nil, fmt.Errorf("registry: write manifest: %w", err)
	}

	if err := r.store.Put(ctx, blobstore.CurrentName, []byte(manifestName(version))); err != nil {
		return nil, fmt.Errorf("registry: commit version %d: %w", version, err)
	}

	snap := &Snapshot{Manifest: m, Codec: c, Codes: codes}
	r.active.Store(snap)

	r.logger.InfoContext(ctx, "codec published",
		"version", version,
		"artifact", m.Artifact,
		"bytes", size,
		"count", m.Count,
		"compression", m.Compression,
		"duration", time.Since(start),
	)

	return snap, nil
}

// discardArtifact removes an artifact no manifest will reference.
func (r *Registry) discardArtifact(ctx context.Context, name string) {
	if err := r.store.Delete(ctx, name); err != nil {
		r.logger.WarnContext(ctx, "failed to remove orphaned artifact", "artifact", name, "error", err)
	}
}

func (r *Registry) writeArtifact(ctx context.Context, name string, c *quantization.Codec, codes []byte) (int64, error) {
	w, err := r.store.Create(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("registry: create %s: %w", name, err)
	}

	n, err := persistence.Write(resource.NewRateLimitedWriter(ctx, w, r.resource), c, codes, persistence.WriteOptions{
		Compression: r.opts.Compression,
		BlockSize:   r.opts.BlockSize,
	})
	if err != nil {
		_ = w.Close()
		_ = r.store.Delete(ctx, name)
		return 0, fmt.Errorf("registry: write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("registry: close %s: %w", name, err)
	}
	return n, nil
}

// Load reads CURRENT, its manifest and artifact, and makes the codec active.
// On error the active snapshot is unchanged.
func (r *Registry) Load(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()

	current, err := blobstore.ReadAll(ctx, r.store, blobstore.CurrentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNotPublished
		}
		return nil, fmt.Errorf("registry: read %s: %w", blobstore.CurrentName, err)
	}

	m, err := r.readManifest(ctx, strings.TrimSpace(string(current)))
	if err != nil {
		return nil, err
	}

	if cur := r.active.Load(); cur != nil && cur.Manifest.Version == m.Version {
		return cur, nil
	}

	a, err := r.readArtifact(ctx, m)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Manifest: *m, Codec: a.Codec, Codes: a.Codes}
	r.active.Store(snap)

	r.logger.InfoContext(ctx, "codec loaded",
		"version", m.Version,
		"artifact", m.Artifact,
		"count", m.Count,
		"duration", time.Since(start),
	)

	return snap, nil
}

func (r *Registry) readManifest(ctx context.Context, name string) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, r.store, name)
	if err != nil {
		return nil, fmt.Errorf("registry: read manifest %s: %w", name, err)
	}
	var m Manifest
	if err := r.opts.Encoding.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("registry: decode manifest %s: %w", name, err)
	}
	if _, ok := codec.ByName(m.Encoding); !ok {
		return nil, fmt.Errorf("%w: %s: unknown encoding %q", ErrManifestMismatch, name, m.Encoding)
	}
	return &m, nil
}

func (r *Registry) readArtifact(ctx context.Context, m *Manifest) (*persistence.Artifact, error) {
	b, err := r.store.Open(ctx, m.Artifact)
	if err != nil {
		return nil, fmt.Errorf("registry: open %s: %w", m.Artifact, err)
	}
	defer b.Close()

	if m.Size != 0 && b.Size() != m.Size {
		return nil, fmt.Errorf("%w: manifest size %d, blob size %d", ErrManifestMismatch, m.Size, b.Size())
	}

	if err := r.resource.AcquireMemory(b.Size()); err != nil {
		return nil, fmt.Errorf("registry: load %s (%d bytes): %w", m.Artifact, b.Size(), err)
	}
	defer r.resource.ReleaseMemory(b.Size())

	var src io.Reader = blobstore.NewReader(ctx, b)
	a, err := persistence.Read(resource.NewRateLimitedReader(ctx, src, r.resource))
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", m.Artifact, err)
	}
	if err := m.check(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Versions returns the published versions in ascending order.
func (r *Registry) Versions(ctx context.Context) ([]uint64, error) {
	names, err := r.store.List(ctx, manifestDir)
	if err != nil {
		return nil, fmt.Errorf("registry: list manifests: %w", err)
	}

	versions := make([]uint64, 0, len(names))
	for _, name := range names {
		if v, ok := parseManifestName(name); ok {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// Prune deletes all but the newest keep versions and returns how many it
// removed. The active and the committed version are always kept.
func (r *Registry) Prune(ctx context.Context, keep int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	versions, err := r.Versions(ctx)
	if err != nil {
		return 0, err
	}

	var active uint64
	if s := r.active.Load(); s != nil {
		active = s.Manifest.Version
	}
	// Another process may have committed a newer CURRENT.
	var committed uint64
	if data, err := blobstore.ReadAll(ctx, r.store, blobstore.CurrentName); err == nil {
		committed, _ = parseManifestName(strings.TrimSpace(string(data)))
	} else if !errors.Is(err, blobstore.ErrNotFound) {
		return 0, fmt.Errorf("registry: read %s: %w", blobstore.CurrentName, err)
	}

	removed := 0
	for i, v := range versions {
		if i >= len(versions)-max(keep, 0) || v == active || v == committed {
			continue
		}
		if err := r.store.Delete(ctx, artifactName(v)); err != nil {
			return removed, fmt.Errorf("registry: delete %s: %w", artifactName(v), err)
		}
		if err := r.store.Delete(ctx, manifestName(v)); err != nil {
			return removed, fmt.Errorf("registry: delete %s: %w", manifestName(v), err)
		}
		removed++
	}

	if removed > 0 {
		r.logger.InfoContext(ctx, "versions pruned", "removed", removed, "kept", len(versions)-removed)
	}
	return removed, nil
}
