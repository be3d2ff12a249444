package gpu

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/charmbracelet/log"
	"github.com/cogentcore/webgpu/wgpu"
)

// copyRowAlignment is the WebGPU requirement on bytesPerRow for texture-to-buffer copies.
const copyRowAlignment = 256

// WGPUDevice is the WebGPU device, exposing the raw device and queue to the renderer backend.
type WGPUDevice interface {
	Device
	MappedReadback

	// GPUDevice returns the underlying WebGPU device.
	GPUDevice() *wgpu.Device

	// Queue returns the device queue used for submissions.
	Queue() *wgpu.Queue
}

// WGPURenderTarget is a render target created by the WebGPU device.
type WGPURenderTarget interface {
	RenderTarget

	// ColorTexture returns the color texture, or nil once released.
	ColorTexture() *wgpu.Texture

	// ColorView returns the view of the color texture used as render attachment.
	ColorView() *wgpu.TextureView

	// DepthView returns the view of the depth texture, or nil if the target has no depth.
	DepthView() *wgpu.TextureView

	// TextureFormat returns the WebGPU format of the color texture.
	TextureFormat() wgpu.TextureFormat
}

// wgpuDevice is the implementation of the WGPUDevice interface.
type wgpuDevice struct {
	mu       *sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	logger   *log.Logger
}

var _ WGPUDevice = &wgpuDevice{}

func newWGPUDevice(cfg *deviceConfig) (Device, error) {
	d := &wgpuDevice{
		mu:       &sync.Mutex{},
		instance: wgpu.CreateInstance(nil),
		logger:   cfg.logger,
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
	})
	if err != nil {
		d.instance.Release()
		return nil, fmt.Errorf("%w: request adapter: %v", common.ErrCapability, err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Capture Device",
	})
	if err != nil {
		a.Release()
		d.instance.Release()
		return nil, fmt.Errorf("%w: request device: %v", common.ErrCapability, err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	d.logger.Debug("webgpu device ready", "fallback", cfg.forceFallbackAdapter)
	return d, nil
}

func (d *wgpuDevice) Kind() common.BackendKind {
	return common.BackendKindMapped
}

func (d *wgpuDevice) Name() string {
	return "webgpu"
}

func (d *wgpuDevice) SupportsRenderFormat(format common.PixelFormat) bool {
	_, ok := wgpuTextureFormat(format)
	return ok
}

func (d *wgpuDevice) FloatRenderFeature() string {
	return "WebGPU float render attachments"
}

func (d *wgpuDevice) CreateRenderTarget(desc RenderTargetDescriptor) (RenderTarget, error) {
	format, ok := wgpuTextureFormat(desc.Format)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not renderable", common.ErrCapability, desc.Format)
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("%w: render target size %dx%d", common.ErrPrecondition, desc.Width, desc.Height)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	size := wgpu.Extent3D{
		Width:              uint32(desc.Width),
		Height:             uint32(desc.Height),
		DepthOrArrayLayers: 1,
	}
	color, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create color texture: %v", common.ErrBackend, err)
	}
	colorView, err := color.CreateView(nil)
	if err != nil {
		color.Release()
		return nil, fmt.Errorf("%w: create color view: %v", common.ErrBackend, err)
	}

	t := &wgpuRenderTarget{
		device: d,
		texture: &wgpuTexture{
			label:   desc.Label,
			width:   desc.Width,
			height:  desc.Height,
			format:  desc.Format,
			texture: color,
		},
		colorView:     colorView,
		textureFormat: format,
	}

	if desc.Depth {
		depth, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         desc.Label + " Depth",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Format:        wgpu.TextureFormatDepth16Unorm,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			t.Release()
			return nil, fmt.Errorf("%w: create depth texture: %v", common.ErrBackend, err)
		}
		t.depth = depth
		t.depthView, err = depth.CreateView(nil)
		if err != nil {
			t.Release()
			return nil, fmt.Errorf("%w: create depth view: %v", common.ErrBackend, err)
		}
	}
	return t, nil
}

func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

func (d *wgpuDevice) RowAlignment() int {
	return copyRowAlignment
}

func (d *wgpuDevice) OriginTopLeft() bool {
	return true
}

func (d *wgpuDevice) CopyToTransfer(src Handle, region common.Region, bytesPerRow int) (TransferBuffer, error) {
	tex, err := d.textureOf(src)
	if err != nil {
		return nil, err
	}
	if bytesPerRow%copyRowAlignment != 0 {
		return nil, fmt.Errorf("%w: bytesPerRow %d is not a multiple of %d", common.ErrPrecondition, bytesPerRow, copyRowAlignment)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	size := uint64(bytesPerRow) * uint64(region.Height)
	buffer, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: src.Label() + " Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create transfer buffer: %w", err)
	}

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		buffer.Release()
		return nil, fmt.Errorf("create command encoder: %w", err)
	}

	// WebGPU textures have a top-left origin; the region is measured from the bottom.
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin: wgpu.Origin3D{
				X: uint32(region.X),
				Y: uint32(src.Height() - region.Y - region.Height),
			},
			Aspect: wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: buffer,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(bytesPerRow),
				RowsPerImage: uint32(region.Height),
			},
		},
		&wgpu.Extent3D{
			Width:              uint32(region.Width),
			Height:             uint32(region.Height),
			DepthOrArrayLayers: 1,
		},
	)

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		buffer.Release()
		return nil, fmt.Errorf("finish copy: %w", err)
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()

	return &wgpuTransferBuffer{
		device: d.device,
		buffer: buffer,
		size:   size,
	}, nil
}

func (d *wgpuDevice) GPUDevice() *wgpu.Device {
	return d.device
}

func (d *wgpuDevice) Queue() *wgpu.Queue {
	return d.queue
}

// textureOf resolves a handle created by this device to its color texture.
func (d *wgpuDevice) textureOf(h Handle) (*wgpu.Texture, error) {
	switch v := h.(type) {
	case *wgpuRenderTarget:
		if v.texture == nil || v.texture.texture == nil {
			return nil, fmt.Errorf("%w: render target %q is released", common.ErrPrecondition, v.Label())
		}
		return v.texture.texture, nil
	case *wgpuTexture:
		return v.texture, nil
	default:
		return nil, fmt.Errorf("%w: handle %q does not belong to the webgpu device", common.ErrPrecondition, h.Label())
	}
}

// wgpuTextureFormat maps a pixel format to the WebGPU color format used for render targets.
func wgpuTextureFormat(format common.PixelFormat) (wgpu.TextureFormat, bool) {
	switch format {
	case common.PixelFormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm, true
	case common.PixelFormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float, true
	case common.PixelFormatRGBA32Float:
		return wgpu.TextureFormatRGBA32Float, true
	default:
		return wgpu.TextureFormatUndefined, false
	}
}

// wgpuTexture is a bare color texture handle.
type wgpuTexture struct {
	label   string
	width   int
	height  int
	format  common.PixelFormat
	texture *wgpu.Texture
}

var _ Handle = &wgpuTexture{}

func (t *wgpuTexture) Label() string               { return t.label }
func (t *wgpuTexture) Width() int                  { return t.width }
func (t *wgpuTexture) Height() int                 { return t.height }
func (t *wgpuTexture) Format() common.PixelFormat  { return t.format }
func (t *wgpuTexture) Backend() common.BackendKind { return common.BackendKindMapped }
func (t *wgpuTexture) IsRenderTarget() bool        { return false }

// wgpuRenderTarget pairs a color texture and view with an optional depth texture.
type wgpuRenderTarget struct {
	device        *wgpuDevice
	texture       *wgpuTexture
	colorView     *wgpu.TextureView
	depth         *wgpu.Texture
	depthView     *wgpu.TextureView
	textureFormat wgpu.TextureFormat
}

var _ WGPURenderTarget = &wgpuRenderTarget{}

func (t *wgpuRenderTarget) Label() string               { return t.texture.label }
func (t *wgpuRenderTarget) Width() int                  { return t.texture.width }
func (t *wgpuRenderTarget) Height() int                 { return t.texture.height }
func (t *wgpuRenderTarget) Format() common.PixelFormat  { return t.texture.format }
func (t *wgpuRenderTarget) Backend() common.BackendKind { return common.BackendKindMapped }
func (t *wgpuRenderTarget) IsRenderTarget() bool        { return true }
func (t *wgpuRenderTarget) Texture() Handle             { return t.texture }
func (t *wgpuRenderTarget) HasDepth() bool              { return t.depth != nil }

func (t *wgpuRenderTarget) ColorTexture() *wgpu.Texture {
	return t.texture.texture
}

func (t *wgpuRenderTarget) ColorView() *wgpu.TextureView {
	return t.colorView
}

func (t *wgpuRenderTarget) DepthView() *wgpu.TextureView {
	return t.depthView
}

func (t *wgpuRenderTarget) TextureFormat() wgpu.TextureFormat {
	return t.textureFormat
}

func (t *wgpuRenderTarget) Release() {
	if t.depthView != nil {
		t.depthView.Release()
		t.depthView = nil
	}
	if t.depth != nil {
		t.depth.Release()
		t.depth = nil
	}
	if t.colorView != nil {
		t.colorView.Release()
		t.colorView = nil
	}
	if t.texture.texture != nil {
		t.texture.texture.Release()
		t.texture.texture = nil
	}
}

// wgpuTransferBuffer is a MapRead | CopyDst buffer receiving a texture copy.
type wgpuTransferBuffer struct {
	device *wgpu.Device
	buffer *wgpu.Buffer
	size   uint64
	mapped bool
}

var _ TransferBuffer = &wgpuTransferBuffer{}

func (b *wgpuTransferBuffer) Size() int {
	return int(b.size)
}

func (b *wgpuTransferBuffer) MapAsync(callback func(err error)) error {
	return b.buffer.MapAsync(wgpu.MapModeRead, 0, b.size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			callback(fmt.Errorf("map async status %v", status))
			return
		}
		b.mapped = true
		callback(nil)
	})
}

func (b *wgpuTransferBuffer) Poll() {
	b.device.Poll(false, nil)
}

func (b *wgpuTransferBuffer) MappedRange() []byte {
	if !b.mapped {
		return nil
	}
	return b.buffer.GetMappedRange(0, uint(b.size))
}

func (b *wgpuTransferBuffer) Unmap() {
	if b.mapped {
		b.buffer.Unmap()
		b.mapped = false
	}
}

func (b *wgpuTransferBuffer) Destroy() {
	b.buffer.Destroy()
	b.buffer.Release()
}
