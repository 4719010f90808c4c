package registry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/pqcodec/persistence"
	"github.com/hupe1980/pqcodec/quantization"
)

const (
	artifactDir = "codecs/"
	manifestDir = "manifests/"
)

// Manifest describes one published codec artifact.
type Manifest struct {
	Version      uint64    `json:"version"`
	Artifact     string    `json:"artifact"`
	Size         int64     `json:"size"`
	Dimension    int       `json:"dimension"`
	SubvectorDim int       `json:"subvector_dim"`
	NBits        int       `json:"nbits"`
	Norm         bool      `json:"norm"`
	NormBits     int       `json:"norm_bits,omitempty"`
	Count        int       `json:"count"`
	Compression  string    `json:"compression"`
	Encoding     string    `json:"encoding"`
	CreatedAt    time.Time `json:"created_at"`
}

// Config returns the codec configuration recorded in the manifest.
func (m *Manifest) Config() quantization.Config {
	return quantization.Config{
		Dimension:        m.Dimension,
		SubvectorDim:     m.SubvectorDim,
		NBits:            m.NBits,
		NormQuantization: m.Norm,
		NormBits:         m.NormBits,
	}
}

// check compares the manifest with a decoded artifact.
func (m *Manifest) check(a *persistence.Artifact) error {
	if got := a.Codec.Config(); got != m.Config() {
		return fmt.Errorf("%w: manifest %+v, artifact %+v", ErrManifestMismatch, m.Config(), got)
	}
	if a.Count != m.Count {
		return fmt.Errorf("%w: manifest count %d, artifact count %d", ErrManifestMismatch, m.Count, a.Count)
	}
	return nil
}

func artifactName(version uint64) string {
	return fmt.Sprintf("%s%06d.pqc", artifactDir, version)
}

func manifestName(version uint64) string {
	return fmt.Sprintf("%s%06d.json", manifestDir, version)
}

// parseManifestName returns the version encoded in a manifest blob name.
func parseManifestName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, manifestDir) || !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimPrefix(name, manifestDir), ".json"), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}
