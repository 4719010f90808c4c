package persistence

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressSectionRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	random := make([]byte, 10_000)
	r.Read(random)
	repetitive := bytes.Repeat([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 2_000)

	for _, comp := range []CompressionType{CompressionLZ4, CompressionZSTD} {
		for name, data := range map[string][]byte{"random": random, "repetitive": repetitive, "empty": nil} {
			t.Run(comp.String()+"/"+name, func(t *testing.T) {
				section, err := compressSection(data, comp, 1024)
				require.NoError(t, err)

				got, err := decompressSection(section, comp, uint64(len(data)))
				require.NoError(t, err)
				assert.Equal(t, len(data), len(got))
				assert.True(t, bytes.Equal(data, got))
			})
		}
	}
}

func TestCompressSectionStoresIncompressibleRaw(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	data := make([]byte, 512)
	r.Read(data)

	section, err := compressSection(data, CompressionZSTD, 0)
	require.NoError(t, err)
	require.Len(t, section, blockHeaderSize+len(data))
	assert.Equal(t, data, section[blockHeaderSize:])
}

func TestDecompressSectionErrors(t *testing.T) {
	data := bytes.Repeat([]byte{7}, 4096)
	section, err := compressSection(data, CompressionLZ4, 1024)
	require.NoError(t, err)

	_, err = decompressSection(section, CompressionLZ4, uint64(len(data))+1)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = decompressSection(section, CompressionLZ4, uint64(len(data))-1)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = decompressSection(section[:len(section)-1], CompressionLZ4, uint64(len(data)))
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = decompressSection(section[:3], CompressionLZ4, uint64(len(data)))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestParseCompression(t *testing.T) {
	for _, c := range []CompressionType{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("brotli")
	assert.Error(t, err)
	assert.Equal(t, "unknown(9)", CompressionType(9).String())
}
