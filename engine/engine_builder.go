package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/exr"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
	"github.com/Carmen-Shannon/oxy-capture/engine/renderer"
	"github.com/Carmen-Shannon/oxy-capture/engine/sink"
	"github.com/Carmen-Shannon/oxy-capture/engine/window"
	"github.com/charmbracelet/log"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables throughput logging during exports.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithBackend selects the kind of device the engine creates. Ignored when WithDevice is used.
//
// Parameters:
//   - kind: mapped (WebGPU) or immediate (OpenGL)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithBackend(kind common.BackendKind) EngineBuilderOption {
	return func(e *engine) {
		e.backendKind = kind
	}
}

// WithDevice sets a pre-created device. The caller keeps ownership and releases it after Close.
//
// Parameters:
//   - device: the GPU device to render with
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithDevice(device gpu.Device) EngineBuilderOption {
	return func(e *engine) {
		e.device = device
		e.ownsDevice = false
	}
}

// WithWindow sets a custom configured window for the engine to use rather than allowing the device
// to create a hidden one. Window resizes resize the renderer's display target.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithResolution sets the size of the HDR frame target. Defaults to 1920x1080.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithResolution(width, height int) EngineBuilderOption {
	return func(e *engine) {
		e.width = width
		e.height = height
	}
}

// WithFormat sets the storage format of the HDR frame target. Defaults to RGBA16Float.
//
// Parameters:
//   - format: a float pixel format
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFormat(format common.PixelFormat) EngineBuilderOption {
	return func(e *engine) {
		e.format = format
	}
}

// WithPixelType sets the sample type written to the EXR files. Defaults to half.
//
// Parameters:
//   - t: exr.PixelTypeHalf or exr.PixelTypeFloat
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithPixelType(t exr.PixelType) EngineBuilderOption {
	return func(e *engine) {
		e.pixelType = t
	}
}

// WithRegion exports only a region of the frame target.
//
// Parameters:
//   - region: the region, bottom-left origin
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRegion(region common.Region) EngineBuilderOption {
	return func(e *engine) {
		e.region = &region
	}
}

// WithRenderTimeout bounds the wait for each drawn frame. Defaults to 10 seconds.
//
// Parameters:
//   - timeout: the maximum wait
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderTimeout(timeout time.Duration) EngineBuilderOption {
	return func(e *engine) {
		if timeout > 0 {
			e.renderTimeout = timeout
		}
	}
}

// WithLayer registers a layer at the given z-index key during engine construction.
// Layers are drawn in ascending key order.
//
// Parameters:
//   - key: the z-index determining draw order (lower draws first)
//   - l: the layer to register
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLayer(key int, l renderer.Layer) EngineBuilderOption {
	return func(e *engine) {
		e.layers[key] = l
	}
}

// WithRendererOptions passes extra options to the renderer, such as a backend type or frame limit.
//
// Parameters:
//   - options: renderer options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRendererOptions(options ...renderer.RendererBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.rendererOptions = append(e.rendererOptions, options...)
	}
}

// WithSink sets where exported frames are delivered. Several sinks can be combined with sink.Multi.
// The engine closes the sink on Close.
//
// Parameters:
//   - s: the sink
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSink(s sink.Sink) EngineBuilderOption {
	return func(e *engine) {
		e.sink = s
	}
}

// WithLogger sets the logger shared by every component the engine creates.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(logger *log.Logger) EngineBuilderOption {
	return func(e *engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}
