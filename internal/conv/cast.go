package conv

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverflow is returned when a value does not fit the target type.
var ErrOverflow = errors.New("integer overflow")

// Uint64ToInt converts v to int, failing on platforms where it does not fit.
func Uint64ToInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, fmt.Errorf("%w: %d does not fit in int", ErrOverflow, v)
	}
	return int(v), nil
}

// Int64ToInt converts v to int, failing on negative values and on platforms
// where it does not fit.
func Int64ToInt(v int64) (int, error) {
	if v < 0 || v > int64(math.MaxInt) {
		return 0, fmt.Errorf("%w: %d does not fit in a non-negative int", ErrOverflow, v)
	}
	return int(v), nil
}
