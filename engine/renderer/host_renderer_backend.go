package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
)

// HostTarget is a render target whose pixels live in host memory.
type HostTarget interface {
	gpu.RenderTarget

	// FillRect sets every pixel of region, bottom-left origin, to color.
	FillRect(region common.Region, color [4]float32)
}

// hostRendererBackend draws into HostTarget render targets on the CPU.
type hostRendererBackend struct{}

var _ RendererBackend = &hostRendererBackend{}

func newHostRendererBackend() *hostRendererBackend {
	return &hostRendererBackend{}
}

func (b *hostRendererBackend) Type() RendererBackendType {
	return BackendTypeHost
}

func (b *hostRendererBackend) BeginFrame(target gpu.RenderTarget, index uint64) (Frame, error) {
	host, ok := target.(HostTarget)
	if !ok {
		return nil, fmt.Errorf("target %q is not a host-memory render target", target.Label())
	}
	return &hostFrame{index: index, target: host}, nil
}

func (b *hostRendererBackend) EndFrame(frame Frame) error {
	return nil
}

func (b *hostRendererBackend) Present(target gpu.RenderTarget) error {
	return nil
}

// hostFrame is a Frame over a HostTarget.
type hostFrame struct {
	index  uint64
	target HostTarget
}

func (f *hostFrame) Index() uint64 {
	return f.index
}

func (f *hostFrame) Target() gpu.RenderTarget {
	return f.target
}

func (f *hostFrame) Clear(color [4]float32) error {
	f.target.FillRect(common.Region{Width: f.target.Width(), Height: f.target.Height()}, color)
	return nil
}

func (f *hostFrame) FillRect(region common.Region, color [4]float32) error {
	r, err := common.ResolveRegion(&region, f.target.Width(), f.target.Height())
	if err != nil {
		return err
	}
	f.target.FillRect(r, color)
	return nil
}
