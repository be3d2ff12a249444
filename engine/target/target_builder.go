package target

import (
	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/readback"
	"github.com/charmbracelet/log"
)

// FrameTargetBuilderOption is a functional option for configuring a FrameTarget.
// Use the With* functions to create options.
type FrameTargetBuilderOption func(*frameTarget)

// WithFormat sets the color format. Must be RGBA16Float (the default) or RGBA32Float.
//
// Parameters:
//   - format: the float color format
//
// Returns:
//   - FrameTargetBuilderOption: option function to apply
func WithFormat(format common.PixelFormat) FrameTargetBuilderOption {
	return func(t *frameTarget) {
		t.format = format
	}
}

// WithLabel sets the label of the render target.
//
// Parameters:
//   - label: the label shown in logs and GPU debuggers
//
// Returns:
//   - FrameTargetBuilderOption: option function to apply
func WithLabel(label string) FrameTargetBuilderOption {
	return func(t *frameTarget) {
		t.label = label
	}
}

// WithReadback shares an existing readback service instead of creating one for the device.
//
// Parameters:
//   - service: the readback service
//
// Returns:
//   - FrameTargetBuilderOption: option function to apply
func WithReadback(service readback.Service) FrameTargetBuilderOption {
	return func(t *frameTarget) {
		t.readback = service
	}
}

// WithLogger sets the logger used for resize messages and by the default readback service.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - FrameTargetBuilderOption: option function to apply
func WithLogger(logger *log.Logger) FrameTargetBuilderOption {
	return func(t *frameTarget) {
		if logger != nil {
			t.logger = logger
		}
	}
}
