package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint64ToInt(t *testing.T) {
	got, err := Uint64ToInt(123)
	require.NoError(t, err)
	assert.Equal(t, 123, got)

	_, err = Uint64ToInt(math.MaxUint64)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestInt64ToInt(t *testing.T) {
	got, err := Int64ToInt(0)
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	_, err = Int64ToInt(-1)
	assert.ErrorIs(t, err, ErrOverflow)
}
