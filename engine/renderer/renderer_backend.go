package renderer

import (
	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeGL selects the OpenGL 3.3 core rendering backend.
	BackendTypeGL

	// BackendTypeHost draws into host-memory render targets, such as those of an in-memory test device.
	BackendTypeHost
)

// String returns the backend name used in logs.
func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeGL:
		return "gl"
	case BackendTypeHost:
		return "host"
	default:
		return "unknown"
	}
}

// Frame is the drawing surface handed to each Layer during a redraw.
type Frame interface {
	// Index returns the number of the redraw, starting at 1.
	Index() uint64

	// Target returns the render target being drawn into.
	Target() gpu.RenderTarget

	// Clear fills the whole color attachment with color and resets depth.
	//
	// Parameters:
	//   - color: linear RGBA
	//
	// Returns:
	//   - error: an error if the backend fails
	Clear(color [4]float32) error

	// FillRect fills a rectangle of the color attachment with color.
	//
	// Parameters:
	//   - region: the rectangle, bottom-left origin
	//   - color: linear RGBA
	//
	// Returns:
	//   - error: ErrPrecondition if region leaves the target, or a backend error
	FillRect(region common.Region, color [4]float32) error
}

// RendererBackend is the backend interface for the Renderer.
// One implementation exists per GPU API; the Renderer picks it by RendererBackendType.
type RendererBackend interface {
	// Type returns the backend type.
	Type() RendererBackendType

	// BeginFrame starts drawing into target.
	//
	// Parameters:
	//   - target: the render target of this frame
	//   - index: the redraw number
	//
	// Returns:
	//   - Frame: the frame layers draw into
	//   - error: an error if the target does not belong to the backend's device
	BeginFrame(target gpu.RenderTarget, index uint64) (Frame, error)

	// EndFrame submits the frame. Once it returns, readback of the target observes every draw of the frame.
	//
	// Parameters:
	//   - frame: the frame returned by BeginFrame
	//
	// Returns:
	//   - error: an error if submission fails
	EndFrame(frame Frame) error

	// Present shows target on screen where the backend has a visible surface; otherwise a no-op.
	//
	// Parameters:
	//   - target: the render target to show
	//
	// Returns:
	//   - error: an error if presentation fails
	Present(target gpu.RenderTarget) error
}
