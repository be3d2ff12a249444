// Package gpu defines the device collaborator used by the capture pipeline: render-target
// creation, float-format capability queries and the two readback primitives, with a WebGPU
// implementation (mapped readback) and an OpenGL implementation (immediate readback).
package gpu

import (
	"github.com/Carmen-Shannon/oxy-capture/common"
)

// Handle is a borrowed reference to a GPU-resident 2D surface.
// Readback code only reads through a Handle; it never creates or destroys the surface behind it.
type Handle interface {
	// Label returns a human readable name used in logs and errors.
	Label() string

	// Width returns the surface width in pixels.
	Width() int

	// Height returns the surface height in pixels.
	Height() int

	// Format returns the storage format of the surface.
	Format() common.PixelFormat

	// Backend returns the readback capability of the device that owns the surface.
	Backend() common.BackendKind

	// IsRenderTarget reports whether the handle is a full render target (color texture plus
	// framebuffer) rather than a bare texture.
	IsRenderTarget() bool
}

// RenderTarget is a color texture with a paired framebuffer and optional depth buffer.
type RenderTarget interface {
	Handle

	// Texture returns the color texture attached to the render target.
	//
	// Returns:
	//   - Handle: the color texture, reporting IsRenderTarget() == false
	Texture() Handle

	// HasDepth reports whether a 16-bit depth buffer is attached.
	HasDepth() bool

	// Release frees the framebuffer, depth buffer and, when owned, the color texture.
	// Calling Release twice is a caller error.
	Release()
}

// RenderTargetDescriptor describes a render target to create.
type RenderTargetDescriptor struct {
	// Label names the target in logs and GPU debuggers.
	Label string
	// Width is the target width in pixels.
	Width int
	// Height is the target height in pixels.
	Height int
	// Format is the color texture format.
	Format common.PixelFormat
	// Depth attaches a Depth16Unorm depth buffer with no stencil.
	Depth bool
}

// Device is the GPU device collaborator.
// Every Device additionally implements exactly one of MappedReadback or ImmediateReadback,
// matching the value returned by Kind.
type Device interface {
	// Kind returns the readback capability of this device.
	//
	// Returns:
	//   - common.BackendKind: BackendKindMapped or BackendKindImmediate
	Kind() common.BackendKind

	// Name returns a short description of the device for logs.
	Name() string

	// SupportsRenderFormat reports whether the device can render into the given format.
	//
	// Parameters:
	//   - format: the color format to query
	//
	// Returns:
	//   - bool: true if a render target of this format can be created
	SupportsRenderFormat(format common.PixelFormat) bool

	// FloatRenderFeature names the backend feature that float render targets depend on,
	// used in capability errors.
	FloatRenderFeature() string

	// CreateRenderTarget allocates a color texture usable as a render attachment and as a copy source,
	// paired with a framebuffer and an optional depth buffer.
	//
	// Parameters:
	//   - desc: the render target description
	//
	// Returns:
	//   - RenderTarget: the created target, owned by the caller
	//   - error: an error if allocation fails
	CreateRenderTarget(desc RenderTargetDescriptor) (RenderTarget, error)

	// Release frees the device and everything it still owns.
	Release()
}

// MappedReadback is the readback primitive of backends that copy into host-visible buffers
// and map them asynchronously.
type MappedReadback interface {
	// RowAlignment returns the byte alignment each transfer-buffer row must start on.
	RowAlignment() int

	// OriginTopLeft reports whether transfer rows are stored top row first.
	OriginTopLeft() bool

	// CopyToTransfer copies a region of src into a new transfer buffer and submits the copy.
	//
	// Parameters:
	//   - src: the surface to copy from
	//   - region: the region to copy, bottom-left origin
	//   - bytesPerRow: the padded row pitch, a multiple of RowAlignment
	//
	// Returns:
	//   - TransferBuffer: the buffer receiving the copy; the caller must Destroy it
	//   - error: an error if the copy cannot be recorded or submitted
	CopyToTransfer(src Handle, region common.Region, bytesPerRow int) (TransferBuffer, error)
}

// TransferBuffer is a host-mappable buffer receiving a texture copy.
type TransferBuffer interface {
	// Size returns the buffer size in bytes.
	Size() int

	// MapAsync requests read access. The callback runs exactly once, from within Poll,
	// with nil on success or the mapping failure.
	MapAsync(callback func(err error)) error

	// Poll lets the device make progress and deliver pending map callbacks without blocking.
	Poll()

	// MappedRange returns the mapped bytes. Only valid between a successful map and Unmap.
	MappedRange() []byte

	// Unmap releases host access to the buffer.
	Unmap()

	// Destroy frees the buffer.
	Destroy()
}

// ImmediateReadback is the readback primitive of backends that only support synchronous pixel transfer.
type ImmediateReadback interface {
	// ReadPixelsImmediate blocks until the pixels of region are copied into dst.
	//
	// Parameters:
	//   - target: a render target of this device
	//   - region: the region to read, bottom-left origin
	//   - dst: a buffer of exactly region size whose numeric kind matches the target format
	//
	// Returns:
	//   - error: an error if the transfer fails
	ReadPixelsImmediate(target Handle, region common.Region, dst *common.PixelBuffer) error

	// WrapTexture creates a temporary render target around a bare texture so it can be read.
	// Releasing the wrapper does not free the texture.
	//
	// Parameters:
	//   - texture: a texture of this device
	//
	// Returns:
	//   - RenderTarget: the temporary wrapper
	//   - error: an error if the framebuffer cannot be created
	WrapTexture(texture Handle) (RenderTarget, error)
}
