// Package gputest provides an in-memory gpu.Device for tests that exercise readback, frame targets and
// sequencing without a GPU.
//
// A mapped device stores transfer rows top row first with every row padded to the row alignment and the
// padding filled with garbage, as a WebGPU device would. An immediate device reads rows bottom row first,
// as glReadPixels does. Map callbacks are delivered from Poll after a configurable number of polls.
package gputest

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
	"github.com/x448/float16"
)

// PaddingByte fills the unused tail of every mapped transfer row.
const PaddingByte = 0xAB

// ErrInjected is the failure delivered when a test arms FailNextMap or FailNextCopy.
var ErrInjected = errors.New("injected device failure")

// Device is an in-memory gpu.Device implementing both readback primitives.
// Only the primitive matching Kind is used by readback.NewService.
type Device struct {
	kind common.BackendKind

	// Alignment is the row alignment reported by RowAlignment. Defaults to 256.
	Alignment int

	// PollsBeforeMap is the number of Poll calls that pass before a map callback fires.
	PollsBeforeMap int

	// Unsupported lists formats SupportsRenderFormat rejects.
	Unsupported map[common.PixelFormat]bool

	mu            *sync.Mutex
	failNextMap   error
	failNextCopy  error
	liveTransfers int
	maxTransfers  int
	copies        int
	immediateRead int
	wraps         int
	liveTargets   int
}

var (
	_ gpu.Device            = &Device{}
	_ gpu.MappedReadback    = &Device{}
	_ gpu.ImmediateReadback = &Device{}
)

// NewDevice creates an in-memory device of the given kind.
//
// Parameters:
//   - kind: the readback capability to emulate
//
// Returns:
//   - *Device: the device
func NewDevice(kind common.BackendKind) *Device {
	return &Device{
		kind:           kind,
		Alignment:      256,
		PollsBeforeMap: 1,
		Unsupported:    make(map[common.PixelFormat]bool),
		mu:             &sync.Mutex{},
	}
}

func (d *Device) Kind() common.BackendKind {
	return d.kind
}

func (d *Device) Name() string {
	return "gputest " + d.kind.String()
}

func (d *Device) SupportsRenderFormat(format common.PixelFormat) bool {
	if _, err := format.BytesPerPixel(); err != nil {
		return false
	}
	return !d.Unsupported[format]
}

func (d *Device) FloatRenderFeature() string {
	return "EXT_color_buffer_float"
}

func (d *Device) CreateRenderTarget(desc gpu.RenderTargetDescriptor) (gpu.RenderTarget, error) {
	if !d.SupportsRenderFormat(desc.Format) {
		return nil, fmt.Errorf("%w: %s", common.ErrCapability, desc.Format)
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("%w: render target size %dx%d", common.ErrPrecondition, desc.Width, desc.Height)
	}
	d.mu.Lock()
	d.liveTargets++
	d.mu.Unlock()
	tex := d.NewTexture(desc.Label, desc.Width, desc.Height, desc.Format)
	return &Surface{tex: tex, depth: desc.Depth, device: d}, nil
}

func (d *Device) Release() {}

// NewTexture allocates a bare texture filled with zeros.
//
// Parameters:
//   - label: the texture label
//   - width: the texture width
//   - height: the texture height
//   - format: the texture format
//
// Returns:
//   - *Texture: the texture
func (d *Device) NewTexture(label string, width, height int, format common.PixelFormat) *Texture {
	return &Texture{
		label:  label,
		width:  width,
		height: height,
		format: format,
		kind:   d.kind,
		pixels: make([][4]float32, width*height),
	}
}

// FailNextMap makes the next MapAsync deliver err (ErrInjected if nil) to its callback.
func (d *Device) FailNextMap(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNextMap = common.Coalesce[error](err, ErrInjected)
}

// FailNextCopy makes the next CopyToTransfer or ReadPixelsImmediate return err (ErrInjected if nil).
func (d *Device) FailNextCopy(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNextCopy = common.Coalesce[error](err, ErrInjected)
}

// Stats is a snapshot of the device counters.
type Stats struct {
	// Copies is the number of CopyToTransfer calls.
	Copies int
	// ImmediateReads is the number of ReadPixelsImmediate calls.
	ImmediateReads int
	// Wraps is the number of WrapTexture calls.
	Wraps int
	// LiveTransfers is the number of transfer buffers not yet destroyed.
	LiveTransfers int
	// MaxLiveTransfers is the largest number of simultaneously alive transfer buffers.
	MaxLiveTransfers int
	// LiveTargets is the number of render targets not yet released.
	LiveTargets int
}

// Stats returns the current counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Copies:           d.copies,
		ImmediateReads:   d.immediateRead,
		Wraps:            d.wraps,
		LiveTransfers:    d.liveTransfers,
		MaxLiveTransfers: d.maxTransfers,
		LiveTargets:      d.liveTargets,
	}
}

func (d *Device) RowAlignment() int {
	return d.Alignment
}

func (d *Device) OriginTopLeft() bool {
	return true
}

func (d *Device) CopyToTransfer(src gpu.Handle, region common.Region, bytesPerRow int) (gpu.TransferBuffer, error) {
	tex, err := textureOf(src)
	if err != nil {
		return nil, err
	}
	bpp, err := tex.format.BytesPerPixel()
	if err != nil {
		return nil, err
	}
	if bytesPerRow < region.Width*bpp || (d.Alignment > 1 && bytesPerRow%d.Alignment != 0) {
		return nil, fmt.Errorf("%w: bytesPerRow %d for %d pixels", common.ErrPrecondition, bytesPerRow, region.Width)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.copies++
	if err := d.failNextCopy; err != nil {
		d.failNextCopy = nil
		return nil, err
	}

	data := make([]byte, bytesPerRow*region.Height)
	for i := range data {
		data[i] = PaddingByte
	}
	// Row 0 of the transfer is the top row of the region.
	for row := 0; row < region.Height; row++ {
		y := region.Y + region.Height - 1 - row
		dst := data[row*bytesPerRow:]
		for x := 0; x < region.Width; x++ {
			encodePixel(dst[x*bpp:], tex.format, tex.At(region.X+x, y))
		}
	}

	d.liveTransfers++
	d.maxTransfers = max(d.maxTransfers, d.liveTransfers)
	return &transfer{device: d, data: data}, nil
}

func (d *Device) ReadPixelsImmediate(target gpu.Handle, region common.Region, dst *common.PixelBuffer) error {
	s, ok := target.(*Surface)
	if !ok {
		return fmt.Errorf("%w: %q is not a render target", common.ErrPrecondition, target.Label())
	}
	if s.released {
		return fmt.Errorf("%w: %q is released", common.ErrPrecondition, s.Label())
	}
	if dst.Width != region.Width || dst.Height != region.Height {
		return fmt.Errorf("%w: buffer %dx%d for region %s", common.ErrPrecondition, dst.Width, dst.Height, region)
	}

	d.mu.Lock()
	d.immediateRead++
	err := d.failNextCopy
	d.failNextCopy = nil
	d.mu.Unlock()
	if err != nil {
		return err
	}

	tex := s.tex
	for row := 0; row < region.Height; row++ {
		for x := 0; x < region.Width; x++ {
			px := tex.At(region.X+x, region.Y+row)
			i := (row*region.Width + x) * common.ChannelCount
			for c := 0; c < common.ChannelCount; c++ {
				switch tex.format {
				case common.PixelFormatRGBA8Unorm:
					dst.Uint8[i+c] = unorm8(px[c])
				case common.PixelFormatRGBA16Float:
					dst.Float32[i+c] = float16.Fromfloat32(px[c]).Float32()
				default:
					dst.Float32[i+c] = px[c]
				}
			}
		}
	}
	return nil
}

func (d *Device) WrapTexture(texture gpu.Handle) (gpu.RenderTarget, error) {
	tex, ok := texture.(*Texture)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a texture", common.ErrPrecondition, texture.Label())
	}
	d.mu.Lock()
	d.wraps++
	d.liveTargets++
	d.mu.Unlock()
	return &Surface{tex: tex, device: d, wrapper: true}, nil
}

// textureOf returns the texture behind a Surface or Texture handle.
func textureOf(h gpu.Handle) (*Texture, error) {
	switch v := h.(type) {
	case *Surface:
		if v.released {
			return nil, fmt.Errorf("%w: %q is released", common.ErrPrecondition, v.Label())
		}
		return v.tex, nil
	case *Texture:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: foreign handle %q", common.ErrPrecondition, h.Label())
	}
}

// encodePixel stores one RGBA pixel in the device byte layout of format.
func encodePixel(dst []byte, format common.PixelFormat, px [4]float32) {
	for c, v := range px {
		switch format {
		case common.PixelFormatRGBA8Unorm:
			dst[c] = unorm8(v)
		case common.PixelFormatRGBA16Float:
			h := float16.Fromfloat32(v).Bits()
			dst[2*c] = byte(h)
			dst[2*c+1] = byte(h >> 8)
		case common.PixelFormatRGBA32Float:
			b := math.Float32bits(v)
			dst[4*c] = byte(b)
			dst[4*c+1] = byte(b >> 8)
			dst[4*c+2] = byte(b >> 16)
			dst[4*c+3] = byte(b >> 24)
		}
	}
}

func unorm8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
