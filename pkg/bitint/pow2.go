// Package bitint holds the power-of-two helpers used for FFT sizes and
// ring-buffer capacities. Both functions are O(1) and allocation free so
// they are safe to call from the audio callback.
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size.
// Subtracting one first keeps exact powers of 2 unchanged:
// 8-1 = 0b0111, bits.Len = 3, 1<<3 = 8.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2.
// A power of 2 has exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Mask returns size-1 for a power-of-two size, the index mask for a ring
// of that capacity. It returns 0 for any other input.
func Mask(size int) uint64 {
	if !IsPowerOfTwo(size) {
		return 0
	}
	return uint64(size - 1)
}
