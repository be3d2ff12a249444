package exr

import (
	"math"

	"github.com/x448/float16"
)

// FloatToHalf narrows an IEEE-754 binary32 value to binary16 by truncation.
//
// Values whose rebiased exponent falls below -10 flush to a signed zero, values in the
// denormal range keep their shifted mantissa, values past the half range saturate to a
// signed infinity, and NaN keeps a non-zero mantissa so it stays a NaN.
//
// Parameters:
//   - f: the single-precision value
//
// Returns:
//   - uint16: the half-precision bit pattern
func FloatToHalf(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23) & 0xff
	mant := bits & 0x007fffff

	if exp == 0xff {
		if mant == 0 {
			return sign | 0x7c00
		}
		m := uint16(mant >> 13)
		if m == 0 {
			// payload lived only in the dropped bits
			m = 0x0200
		}
		return sign | 0x7c00 | m
	}

	e := exp - 127 + 15
	if e <= 0 {
		if e < -10 {
			return sign
		}
		m := (mant | 0x00800000) >> uint32(1-e)
		return sign | uint16(m>>13)
	}
	if e > 30 {
		return sign | 0x7c00
	}
	return sign | uint16(e)<<10 | uint16(mant>>13)
}

// HalfToFloat widens a binary16 bit pattern to float32. The conversion is exact.
func HalfToFloat(h uint16) float32 {
	return float16.Frombits(h).Float32()
}
