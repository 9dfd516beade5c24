package utils

import "math"

// Head returns the first n characters (runes) of s. If n is 0 or negative, s is returned unchanged.
func Head(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Truncate returns Head(s, maxLen) with "..." appended when s was cut.
func Truncate(s string, maxLen int) string {
	h := Head(s, maxLen)
	if len(h) == len(s) {
		return s
	}
	return h + "..."
}

// NormalizeL2 normalizes the slice in place to unit L2 norm.
// If the norm is zero, the slice is unchanged.
func NormalizeL2(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(sum))
	for i := range x {
		x[i] *= norm
	}
}
