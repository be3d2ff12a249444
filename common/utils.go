package common

import "unsafe"

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// AlignUp rounds n up to the next multiple of alignment. An alignment <= 1 returns n unchanged.
//
// Parameters:
//   - n: the value to align
//   - alignment: the required multiple, typically a power of two such as 256
//
// Returns:
//   - int: the smallest multiple of alignment that is >= n
func AlignUp(n, alignment int) int {
	if alignment <= 1 {
		return n
	}
	return (n + alignment - 1) / alignment * alignment
}

// SliceToBytes converts any slice to a byte slice for GPU transfers.
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

// BytesToSlice reinterprets a byte slice as a slice of T, the inverse of SliceToBytes.
// Trailing bytes that do not fill a whole T are dropped. The data must be suitably aligned for T,
// which holds for mapped GPU ranges and Go-allocated buffers.
// WARNING: The returned slice shares memory with the input and is only valid while the input is.
//
// Parameters:
//   - data: source bytes
//
// Returns:
//   - []T: view of the input data, or nil if it holds no whole element
func BytesToSlice[T any](data []byte) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	n := len(data) / size
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), n)
}
