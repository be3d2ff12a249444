// package common contains plain types shared by the capture engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"fmt"
)

// ChannelCount is the number of interleaved channels (R, G, B, A) in every PixelBuffer.
const ChannelCount = 4

// PixelFormat identifies the storage format of a GPU surface.
type PixelFormat int

const (
	// PixelFormatUnknown is the zero value and is never a valid surface format.
	PixelFormatUnknown PixelFormat = iota

	// PixelFormatRGBA8Unorm stores four 8-bit unsigned normalized channels per pixel.
	PixelFormatRGBA8Unorm

	// PixelFormatRGBA16Float stores four IEEE-754 half floats per pixel.
	PixelFormatRGBA16Float

	// PixelFormatRGBA32Float stores four IEEE-754 single floats per pixel.
	PixelFormatRGBA32Float
)

// String returns the lower-case format name used in logs and configuration files.
func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGBA8Unorm:
		return "rgba8unorm"
	case PixelFormatRGBA16Float:
		return "rgba16float"
	case PixelFormatRGBA32Float:
		return "rgba32float"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// BytesPerPixel returns the packed size of one RGBA pixel in this format.
// Unrecognized formats are rejected.
//
// Returns:
//   - int: 4 for RGBA8Unorm, 8 for RGBA16Float, 16 for RGBA32Float
//   - error: an ErrPrecondition-wrapped error for any other format
func (f PixelFormat) BytesPerPixel() (int, error) {
	switch f {
	case PixelFormatRGBA8Unorm:
		return 4, nil
	case PixelFormatRGBA16Float:
		return 8, nil
	case PixelFormatRGBA32Float:
		return 16, nil
	default:
		return 0, fmt.Errorf("%w: no pixel size known for %s", ErrPrecondition, f)
	}
}

// IsFloat reports whether samples of this format are read back as float32.
func (f PixelFormat) IsFloat() bool {
	return f == PixelFormatRGBA16Float || f == PixelFormatRGBA32Float
}

// ParsePixelFormat maps a configuration name back to a PixelFormat.
//
// Parameters:
//   - name: one of "rgba8unorm", "rgba16float", "rgba32float"
//
// Returns:
//   - PixelFormat: the matching format
//   - error: an error if the name is not recognized
func ParsePixelFormat(name string) (PixelFormat, error) {
	for _, f := range []PixelFormat{PixelFormatRGBA8Unorm, PixelFormatRGBA16Float, PixelFormatRGBA32Float} {
		if f.String() == name {
			return f, nil
		}
	}
	return PixelFormatUnknown, fmt.Errorf("unknown pixel format %q", name)
}

// BackendKind tags the readback capability of a GPU backend.
type BackendKind int

const (
	// BackendKindMapped is a backend with asynchronous, memory-mapped buffer readback (WebGPU).
	BackendKindMapped BackendKind = iota

	// BackendKindImmediate is a backend that only offers synchronous pixel transfer (OpenGL).
	BackendKindImmediate
)

// String returns the backend kind name used in logs and configuration files.
func (k BackendKind) String() string {
	switch k {
	case BackendKindMapped:
		return "mapped"
	case BackendKindImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("BackendKind(%d)", int(k))
	}
}

// Region is a rectangle of a GPU surface in pixels. The origin is the bottom-left corner,
// matching the GPU convention used for readback.
type Region struct {
	// X is the left edge of the region.
	X int
	// Y is the bottom edge of the region.
	Y int
	// Width is the horizontal extent of the region.
	Width int
	// Height is the vertical extent of the region.
	Height int
}

// String formats the region as "WxH+X+Y".
func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// ResolveRegion applies the full-target default to a possibly nil region and checks it against the target bounds.
//
// Parameters:
//   - region: the requested region, or nil for the whole target
//   - targetWidth: the width of the surface being read
//   - targetHeight: the height of the surface being read
//
// Returns:
//   - Region: the effective region
//   - error: an ErrPrecondition-wrapped error if the region is empty or leaves the target
func ResolveRegion(region *Region, targetWidth, targetHeight int) (Region, error) {
	if targetWidth <= 0 || targetHeight <= 0 {
		return Region{}, fmt.Errorf("%w: target size %dx%d", ErrPrecondition, targetWidth, targetHeight)
	}
	if region == nil {
		return Region{Width: targetWidth, Height: targetHeight}, nil
	}
	r := *region
	if r.Width <= 0 || r.Height <= 0 {
		return Region{}, fmt.Errorf("%w: region %s is empty", ErrPrecondition, r)
	}
	if r.X < 0 || r.Y < 0 || r.X+r.Width > targetWidth || r.Y+r.Height > targetHeight {
		return Region{}, fmt.Errorf("%w: region %s outside target %dx%d", ErrPrecondition, r, targetWidth, targetHeight)
	}
	return r, nil
}

// PixelBuffer is a flat, row-major, channel-interleaved (R, G, B, A) block of samples read from a GPU surface.
// Exactly one of Uint8 or Float32 is populated, matching Format. The row stride is always Width*Channels;
// any backend row padding has already been removed.
type PixelBuffer struct {
	// Width is the number of pixels per row.
	Width int
	// Height is the number of rows.
	Height int
	// Channels is the number of interleaved samples per pixel. Always ChannelCount.
	Channels int
	// Format is the format of the surface the samples were read from.
	Format PixelFormat
	// Uint8 holds the samples of an RGBA8Unorm surface.
	Uint8 []uint8
	// Float32 holds the samples of an RGBA16Float or RGBA32Float surface.
	Float32 []float32
}

// NewPixelBuffer allocates a zeroed buffer of the numeric kind matching format.
//
// Parameters:
//   - width: the number of pixels per row
//   - height: the number of rows
//   - format: the source surface format
//
// Returns:
//   - *PixelBuffer: the allocated buffer
//   - error: an error if the format is not recognized or the size is not positive
func NewPixelBuffer(width, height int, format PixelFormat) (*PixelBuffer, error) {
	if _, err := format.BytesPerPixel(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: pixel buffer size %dx%d", ErrPrecondition, width, height)
	}
	pb := &PixelBuffer{
		Width:    width,
		Height:   height,
		Channels: ChannelCount,
		Format:   format,
	}
	n := width * height * ChannelCount
	if format.IsFloat() {
		pb.Float32 = make([]float32, n)
	} else {
		pb.Uint8 = make([]uint8, n)
	}
	return pb, nil
}

// Len returns the number of samples held by the buffer.
func (p *PixelBuffer) Len() int {
	if p.Float32 != nil {
		return len(p.Float32)
	}
	return len(p.Uint8)
}

// RowStride returns the number of samples per row.
func (p *PixelBuffer) RowStride() int {
	return p.Width * p.Channels
}
