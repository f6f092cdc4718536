package common

import (
	"math"
	"unsafe"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// SplitDouble splits a float64 into a high and low float32 pair such that hi + lo approximates d
// far better than a single float32 can. Shaders recombine the pair to emulate double precision
// for values such as elapsed time since an epoch.
//
// Parameters:
//   - d: the value to split
//
// Returns:
//   - hi: the float32 nearest to d
//   - lo: the residual d - hi as a float32
func SplitDouble(d float64) (hi, lo float32) {
	hi = float32(d)
	lo = float32(d - float64(hi))
	return hi, lo
}

// IsFinite reports whether v is neither NaN nor infinite.
//
// Parameters:
//   - v: the value to check
//
// Returns:
//   - bool: true if v is a finite number
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Clamp limits v to the closed range [lo, hi].
//
// Parameters:
//   - v: the value to clamp
//   - lo: lower bound
//   - hi: upper bound
//
// Returns:
//   - T: v clamped to the range
func Clamp[T float32 | float64 | int](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AlignUp rounds n up to the next multiple of align. align must be a power of two.
//
// Parameters:
//   - n: the value to round
//   - align: the power-of-two alignment
//
// Returns:
//   - int: n rounded up to a multiple of align
func AlignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
