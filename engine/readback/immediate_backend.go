package readback

import (
	"context"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
)

// immediateBackend reads synchronously, wrapping bare textures in a temporary render target.
type immediateBackend struct {
	device gpu.ImmediateReadback
}

var _ readbackBackend = &immediateBackend{}

func newImmediateBackend(device gpu.ImmediateReadback) *immediateBackend {
	return &immediateBackend{device: device}
}

func (b *immediateBackend) ReadPixels(ctx context.Context, target gpu.Handle, region common.Region) (*common.PixelBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.ReadPixelsSync(target, region)
}

func (b *immediateBackend) ReadPixelsSync(target gpu.Handle, region common.Region) (*common.PixelBuffer, error) {
	out, err := common.NewPixelBuffer(region.Width, region.Height, target.Format())
	if err != nil {
		return nil, err
	}

	source := target
	if !target.IsRenderTarget() {
		wrapper, err := b.device.WrapTexture(target)
		if err != nil {
			return nil, newError("wrap", target, region, err)
		}
		defer wrapper.Release()
		source = wrapper
	}

	if err := b.device.ReadPixelsImmediate(source, region, out); err != nil {
		return nil, newError("read", target, region, err)
	}
	return out, nil
}
