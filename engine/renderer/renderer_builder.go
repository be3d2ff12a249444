package renderer

import (
	"time"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/profiler"
	"github.com/charmbracelet/log"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithBackendType overrides the backend chosen from the device kind.
//
// Parameters:
//   - backendType: the backend to draw with
//
// Returns:
//   - RendererBuilderOption: a function that applies the backend type option to a renderer
func WithBackendType(backendType RendererBackendType) RendererBuilderOption {
	return func(r *renderer) {
		r.backendType = backendType
	}
}

// WithBackend supplies a ready-made backend instead of creating one for the device.
//
// Parameters:
//   - backend: the backend to draw with
//
// Returns:
//   - RendererBuilderOption: a function that applies the backend option to a renderer
func WithBackend(backend RendererBackend) RendererBuilderOption {
	return func(r *renderer) {
		r.backend = backend
	}
}

// WithDisplaySize sets the size of the default display target. Defaults to 1280x720.
//
// Parameters:
//   - width: the display width in pixels
//   - height: the display height in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the display size option to a renderer
func WithDisplaySize(width, height int) RendererBuilderOption {
	return func(r *renderer) {
		r.displayWidth = width
		r.displayHeight = height
	}
}

// WithDisplayFormat sets the format of the default display target. Defaults to RGBA8Unorm.
//
// Parameters:
//   - format: the display target format
//
// Returns:
//   - RendererBuilderOption: a function that applies the display format option to a renderer
func WithDisplayFormat(format common.PixelFormat) RendererBuilderOption {
	return func(r *renderer) {
		r.displayFormat = format
	}
}

// WithFrameLimit makes the render goroutine redraw continuously at most fps times per second,
// in addition to explicit Redraw requests. Values <= 0 draw only on request (the default).
//
// Parameters:
//   - fps: the continuous redraw rate
//
// Returns:
//   - RendererBuilderOption: a function that applies the frame limit option to a renderer
func WithFrameLimit(fps float64) RendererBuilderOption {
	return func(r *renderer) {
		if fps <= 0 {
			r.renderFrameLimit = 0
			return
		}
		r.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}

// WithPresent blits the display target to the window after each redraw on backends with a visible surface.
//
// Parameters:
//   - present: true to present the display target
//
// Returns:
//   - RendererBuilderOption: a function that applies the present option to a renderer
func WithPresent(present bool) RendererBuilderOption {
	return func(r *renderer) {
		r.present = present
	}
}

// WithLayer registers a layer at the given z-index key during construction.
//
// Parameters:
//   - key: the z-index of the layer
//   - l: the layer to draw
//
// Returns:
//   - RendererBuilderOption: a function that applies the layer option to a renderer
func WithLayer(key int, l Layer) RendererBuilderOption {
	return func(r *renderer) {
		r.layers[key] = l
	}
}

// WithProfiler ticks p once per redraw.
//
// Parameters:
//   - p: the profiler to tick
//
// Returns:
//   - RendererBuilderOption: a function that applies the profiler option to a renderer
func WithProfiler(p *profiler.Profiler) RendererBuilderOption {
	return func(r *renderer) {
		r.profiler = p
	}
}

// WithLogger sets the logger used for render goroutine messages.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger option to a renderer
func WithLogger(logger *log.Logger) RendererBuilderOption {
	return func(r *renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}
