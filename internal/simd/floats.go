package simd

// SquaredL2 calculates the squared L2 distance. The sum is accumulated in
// float64 and narrowed once on return.
//
// SAFETY: assumes len(a) == len(b). Length checks belong to the caller.
func SquaredL2(a, b []float32) float32 {
	return float32(squaredL2Generic(a, b))
}

// SquaredL2F64 is SquaredL2 without the final narrowing. Per-subspace
// partials from it, summed in float64, differ from the single-pass sum only
// by float64 rounding.
func SquaredL2F64(a, b []float32) float64 {
	return squaredL2Generic(a, b)
}

// Dot calculates the dot product of two vectors, accumulated in float64.
//
// SAFETY: assumes len(a) == len(b).
func Dot(a, b []float32) float32 {
	return float32(dotGeneric(a, b))
}

// DotF64 is Dot without the final narrowing.
func DotF64(a, b []float32) float64 {
	return dotGeneric(a, b)
}

// ScaleInPlace multiplies all elements of a by scalar.
func ScaleInPlace(a []float32, scalar float32) {
	scaleGeneric(a, scalar)
}

// PqAdcLookup sums table[i*k + codes[i]] for i in [0, m).
//
// table must hold m*k entries and codes at least m bytes.
func PqAdcLookup(table []float64, codes []byte, m, k int) float64 {
	return pqAdcLookupGeneric(table, codes, m, k)
}

// SquaredL2Batch computes the squared L2 distance from query to each of the
// len(out) vectors stored back to back in targets, without narrowing.
func SquaredL2Batch(query, targets []float32, dim int, out []float64) {
	squaredL2BatchGeneric(query, targets, dim, out)
}

func squaredL2Generic(a, b []float32) float64 {
	b = b[:len(a)]
	var distance float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		distance += d * d
	}
	return distance
}

func dotGeneric(a, b []float32) float64 {
	b = b[:len(a)]
	var ret float64
	for i := range a {
		ret += float64(a[i]) * float64(b[i])
	}
	return ret
}

func scaleGeneric(a []float32, scalar float32) {
	for i := range a {
		a[i] *= scalar
	}
}

func pqAdcLookupGeneric(table []float64, codes []byte, m, k int) float64 {
	codes = codes[:m]
	table = table[:m*k]
	var sum float64
	for i, c := range codes {
		sum += table[i*k+int(c)]
	}
	return sum
}

func squaredL2BatchGeneric(query, targets []float32, dim int, out []float64) {
	if dim <= 0 || len(out) == 0 || len(query) < dim {
		return
	}
	q := query[:dim]
	n := min(len(out), len(targets)/dim)
	for i := 0; i < n; i++ {
		off := i * dim
		out[i] = squaredL2Generic(q, targets[off:off+dim])
	}
}
