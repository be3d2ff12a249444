package gpu

import (
	"io"

	"github.com/Carmen-Shannon/oxy-capture/engine/window"
	"github.com/charmbracelet/log"
)

// deviceConfig holds the options applied by NewDevice.
type deviceConfig struct {
	forceFallbackAdapter bool
	window               window.Window
	logger               *log.Logger
}

// DeviceBuilderOption is a functional option for configuring a Device.
// Use the With* functions to create options.
type DeviceBuilderOption func(*deviceConfig)

// WithForceFallbackAdapter requests the software fallback adapter on the WebGPU device.
//
// Parameters:
//   - force: true to request the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithWindow supplies the window whose GL context the OpenGL device uses.
// Without it the OpenGL device creates and owns a hidden window.
//
// Parameters:
//   - w: the window to share
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithWindow(w window.Window) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.window = w
	}
}

// WithLogger sets the logger used for device lifecycle messages.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithLogger(logger *log.Logger) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.logger = logger
	}
}

func newDeviceConfig(options []DeviceBuilderOption) *deviceConfig {
	c := &deviceConfig{
		logger: log.New(io.Discard),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}
