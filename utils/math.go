package utils

// MaxInt returns the larger of two ints.
func MaxInt(a, b int) int {
	if a < b {
		return b
	}
	return a
}

// MinInt returns the smaller of two ints.
func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ClampInt bounds v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AbsF32 returns |v|.
func AbsF32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// CeilDiv returns a/b rounded up for positive operands.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}

// AbsInt returns |n|.
func AbsInt(n int) int {
	if n < 0 {
		return -1 * n
	}
	return n
}
