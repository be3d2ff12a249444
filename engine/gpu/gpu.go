package gpu

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-capture/common"
)

// NewDevice creates the GPU device for the given backend kind.
//
// Parameters:
//   - kind: BackendKindMapped for WebGPU, BackendKindImmediate for OpenGL
//   - options: device options
//
// Returns:
//   - Device: the device; it also implements MappedReadback or ImmediateReadback to match kind
//   - error: an ErrCapability-wrapped error if no suitable adapter or context is available
func NewDevice(kind common.BackendKind, options ...DeviceBuilderOption) (Device, error) {
	cfg := newDeviceConfig(options)
	switch kind {
	case common.BackendKindMapped:
		return newWGPUDevice(cfg)
	case common.BackendKindImmediate:
		return newGLDevice(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown backend %s", common.ErrCapability, kind)
	}
}

// ParseBackendKind maps a configuration name to a BackendKind.
// Both the readback names ("mapped", "immediate") and the API names ("wgpu", "webgpu", "gl", "opengl") are accepted.
//
// Parameters:
//   - name: the backend name
//
// Returns:
//   - common.BackendKind: the matching kind
//   - error: an error if the name is not recognized
func ParseBackendKind(name string) (common.BackendKind, error) {
	switch name {
	case "mapped", "wgpu", "webgpu":
		return common.BackendKindMapped, nil
	case "immediate", "gl", "opengl":
		return common.BackendKindImmediate, nil
	default:
		return 0, fmt.Errorf("unknown backend %q", name)
	}
}
