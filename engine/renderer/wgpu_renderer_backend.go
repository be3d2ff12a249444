package renderer

import (
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/x448/float16"
)

// wgpuRendererBackend is the WebGPU-specific backend interface.
type wgpuRendererBackend interface {
	RendererBackend

	// Device returns the WebGPU device the backend submits to.
	Device() *wgpu.Device

	// Queue returns the queue the backend submits to.
	Queue() *wgpu.Queue
}

// wgpuRendererBackendImpl is the implementation of the wgpuRendererBackend interface.
// Every frame operation is submitted immediately so that queue writes and render passes execute in call order.
type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue
}

var _ wgpuRendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(device gpu.WGPUDevice) wgpuRendererBackend {
	return &wgpuRendererBackendImpl{
		mu:     &sync.Mutex{},
		device: device.GPUDevice(),
		queue:  device.Queue(),
	}
}

func (b *wgpuRendererBackendImpl) Type() RendererBackendType {
	return BackendTypeWGPU
}

func (b *wgpuRendererBackendImpl) BeginFrame(target gpu.RenderTarget, index uint64) (Frame, error) {
	rt, ok := target.(gpu.WGPURenderTarget)
	if !ok {
		return nil, fmt.Errorf("target %q is not a webgpu render target", target.Label())
	}
	if rt.ColorView() == nil {
		return nil, fmt.Errorf("%w: target %q is released", common.ErrPrecondition, target.Label())
	}
	return &wgpuFrame{backend: b, index: index, target: rt}, nil
}

func (b *wgpuRendererBackendImpl) EndFrame(frame Frame) error {
	// Operations were submitted as they were recorded; queue order guarantees later copies observe them.
	return nil
}

func (b *wgpuRendererBackendImpl) Present(target gpu.RenderTarget) error {
	return nil
}

func (b *wgpuRendererBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuRendererBackendImpl) Queue() *wgpu.Queue {
	return b.queue
}

// clear runs an empty render pass with clear load ops on the color and depth attachments.
func (b *wgpuRendererBackendImpl) clear(rt gpu.WGPURenderTarget, color [4]float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}

	desc := &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    rt.ColorView(),
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: wgpu.StoreOpStore,
				ClearValue: wgpu.Color{
					R: float64(color[0]), G: float64(color[1]), B: float64(color[2]), A: float64(color[3]),
				},
			},
		},
	}
	if rt.DepthView() != nil {
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            rt.DepthView(),
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}
	pass := encoder.BeginRenderPass(desc)
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()
	return nil
}

// fillRect uploads a solid block of texels into the color texture.
func (b *wgpuRendererBackendImpl) fillRect(rt gpu.WGPURenderTarget, region common.Region, color [4]float32) error {
	data, bpp, err := solidTexels(rt.Format(), region.Width*region.Height, color)
	if err != nil {
		return err
	}
	texture := rt.ColorTexture()
	if texture == nil {
		return fmt.Errorf("%w: target %q is released", common.ErrPrecondition, rt.Label())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// WebGPU textures have a top-left origin.
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  texture,
			MipLevel: 0,
			Origin: wgpu.Origin3D{
				X: uint32(region.X),
				Y: uint32(rt.Height() - region.Y - region.Height),
			},
			Aspect: wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(region.Width * bpp),
			RowsPerImage: uint32(region.Height),
		},
		&wgpu.Extent3D{
			Width:              uint32(region.Width),
			Height:             uint32(region.Height),
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

// solidTexels encodes count copies of color in the byte layout of format.
func solidTexels(format common.PixelFormat, count int, color [4]float32) ([]byte, int, error) {
	bpp, err := format.BytesPerPixel()
	if err != nil {
		return nil, 0, err
	}
	switch format {
	case common.PixelFormatRGBA8Unorm:
		texels := make([]uint8, count*common.ChannelCount)
		for i := range texels {
			texels[i] = uint8(math.Round(float64(min(max(color[i%4], 0), 1)) * 255))
		}
		return texels, bpp, nil
	case common.PixelFormatRGBA16Float:
		texels := make([]uint16, count*common.ChannelCount)
		for i := range texels {
			texels[i] = float16.Fromfloat32(color[i%4]).Bits()
		}
		return common.SliceToBytes(texels), bpp, nil
	default:
		texels := make([]float32, count*common.ChannelCount)
		for i := range texels {
			texels[i] = color[i%4]
		}
		return common.SliceToBytes(texels), bpp, nil
	}
}

// wgpuFrame is a Frame drawing into a WebGPU render target.
type wgpuFrame struct {
	backend *wgpuRendererBackendImpl
	index   uint64
	target  gpu.WGPURenderTarget
}

func (f *wgpuFrame) Index() uint64 {
	return f.index
}

func (f *wgpuFrame) Target() gpu.RenderTarget {
	return f.target
}

func (f *wgpuFrame) Clear(color [4]float32) error {
	return f.backend.clear(f.target, color)
}

func (f *wgpuFrame) FillRect(region common.Region, color [4]float32) error {
	r, err := common.ResolveRegion(&region, f.target.Width(), f.target.Height())
	if err != nil {
		return err
	}
	return f.backend.fillRect(f.target, r, color)
}
