package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testManifest struct {
	Version   uint64            `json:"version"`
	Artifact  string            `json:"artifact"`
	Dimension int               `json:"dimension"`
	Norm      bool              `json:"norm"`
	Labels    map[string]string `json:"labels,omitempty"`
}

func TestCodecsInterchangeable(t *testing.T) {
	in := testManifest{
		Version:   7,
		Artifact:  "codecs/00000000000000000007.pqc",
		Dimension: 128,
		Norm:      true,
		Labels:    map[string]string{"model": "embed-v2"},
	}

	for _, enc := range []Codec{JSON{}, GoJSON{}} {
		for _, dec := range []Codec{JSON{}, GoJSON{}} {
			t.Run(enc.Name()+"->"+dec.Name(), func(t *testing.T) {
				data, err := enc.Marshal(in)
				require.NoError(t, err)

				var out testManifest
				require.NoError(t, dec.Unmarshal(data, &out))
				assert.Equal(t, in, out)
			})
		}
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}
	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestMustMarshal(t *testing.T) {
	assert.JSONEq(t, `{"version":1,"artifact":"a","dimension":2,"norm":false}`,
		string(MustMarshal(nil, testManifest{Version: 1, Artifact: "a", Dimension: 2})))
	assert.Panics(t, func() { MustMarshal(JSON{}, make(chan int)) })
}
