// Package target owns the floating-point render target an export renders into.
package target

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
	"github.com/Carmen-Shannon/oxy-capture/engine/pixel"
	"github.com/Carmen-Shannon/oxy-capture/engine/readback"
	"github.com/charmbracelet/log"
)

// FrameTarget is an HDR render target sized to the export resolution.
// It is the single owner of its GPU resources; using it after Destroy returns ErrPrecondition.
type FrameTarget interface {
	// RenderTarget returns the GPU render target for the renderer to draw into.
	//
	// Returns:
	//   - gpu.RenderTarget: the current render target, or nil after Destroy
	RenderTarget() gpu.RenderTarget

	// Width returns the target width in pixels.
	Width() int

	// Height returns the target height in pixels.
	Height() int

	// Format returns the float format of the color texture.
	Format() common.PixelFormat

	// Resize recreates the backing storage at new dimensions, keeping the format.
	// Resizing to the current dimensions is a no-op.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: ErrPrecondition for non-positive sizes or a destroyed target, or the allocation error
	Resize(width, height int) error

	// ReadPixels reads the target through the readback service. Row 0 is the bottom row.
	//
	// Parameters:
	//   - ctx: cancels the wait for the readback
	//   - region: the region to read, or nil for the full target
	//
	// Returns:
	//   - *common.PixelBuffer: the linear float samples
	//   - error: a readback error, or ErrPrecondition after Destroy
	ReadPixels(ctx context.Context, region *common.Region) (*common.PixelBuffer, error)

	// ReadPixelsFlipped reads the target and flips it so row 0 is the top row.
	//
	// Parameters:
	//   - ctx: cancels the wait for the readback
	//   - region: the region to read, or nil for the full target
	//
	// Returns:
	//   - *common.PixelBuffer: the linear float samples, top-left origin
	//   - error: a readback error, or ErrPrecondition after Destroy
	ReadPixelsFlipped(ctx context.Context, region *common.Region) (*common.PixelBuffer, error)

	// ReadPixelsSync reads the full target synchronously.
	//
	// Deprecated: use ReadPixels. Mapped backends return ErrUnsupported without touching the GPU.
	ReadPixelsSync() (*common.PixelBuffer, error)

	// ReadPixelsFlippedSync reads the full target synchronously and flips it.
	//
	// Deprecated: use ReadPixelsFlipped. Mapped backends return ErrUnsupported without touching the GPU.
	ReadPixelsFlippedSync() (*common.PixelBuffer, error)

	// Destroy releases the framebuffer, depth buffer and texture together. Later calls are no-ops.
	Destroy()
}

// frameTarget is the implementation of the FrameTarget interface.
type frameTarget struct {
	mu       *sync.Mutex
	device   gpu.Device
	readback readback.Service
	label    string
	format   common.PixelFormat
	width    int
	height   int
	rt       gpu.RenderTarget
	logger   *log.Logger
}

var _ FrameTarget = &frameTarget{}

// NewFrameTarget allocates a float render target with a Depth16 depth buffer.
//
// Parameters:
//   - device: the GPU device
//   - width: the target width in pixels
//   - height: the target height in pixels
//   - options: target options such as WithFormat
//
// Returns:
//   - FrameTarget: the target
//   - error: ErrCapability if the device cannot render to the format, ErrPrecondition for invalid
//     arguments, or the allocation error
func NewFrameTarget(device gpu.Device, width, height int, options ...FrameTargetBuilderOption) (FrameTarget, error) {
	t := &frameTarget{
		mu:     &sync.Mutex{},
		device: device,
		label:  "HDR Frame Target",
		format: common.PixelFormatRGBA16Float,
		logger: log.New(io.Discard),
	}
	for _, opt := range options {
		opt(t)
	}

	if !t.format.IsFloat() {
		return nil, fmt.Errorf("%w: frame target format must be a float format, got %s", common.ErrPrecondition, t.format)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: frame target size %dx%d", common.ErrPrecondition, width, height)
	}
	if !device.SupportsRenderFormat(t.format) {
		return nil, fmt.Errorf("%w: %s cannot render to %s (requires %s)",
			common.ErrCapability, device.Name(), t.format, device.FloatRenderFeature())
	}
	if t.readback == nil {
		rb, err := readback.NewService(device, readback.WithLogger(t.logger))
		if err != nil {
			return nil, err
		}
		t.readback = rb
	}

	if err := t.allocate(width, height); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *frameTarget) RenderTarget() gpu.RenderTarget {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rt
}

func (t *frameTarget) Width() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width
}

func (t *frameTarget) Height() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.height
}

func (t *frameTarget) Format() common.PixelFormat {
	return t.format
}

func (t *frameTarget) Resize(width, height int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rt == nil {
		return errDestroyed
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: frame target size %dx%d", common.ErrPrecondition, width, height)
	}
	if width == t.width && height == t.height {
		return nil
	}
	old := t.rt
	if err := t.allocate(width, height); err != nil {
		return err
	}
	old.Release()
	t.logger.Debug("frame target resized", "width", width, "height", height, "format", t.format)
	return nil
}

func (t *frameTarget) ReadPixels(ctx context.Context, region *common.Region) (*common.PixelBuffer, error) {
	rt, err := t.current()
	if err != nil {
		return nil, err
	}
	return t.readback.ReadPixels(ctx, rt, region)
}

func (t *frameTarget) ReadPixelsFlipped(ctx context.Context, region *common.Region) (*common.PixelBuffer, error) {
	pb, err := t.ReadPixels(ctx, region)
	if err != nil {
		return nil, err
	}
	return pixel.FlipBuffer(pb)
}

func (t *frameTarget) ReadPixelsSync() (*common.PixelBuffer, error) {
	rt, err := t.current()
	if err != nil {
		return nil, err
	}
	return t.readback.ReadPixelsSync(rt, nil)
}

func (t *frameTarget) ReadPixelsFlippedSync() (*common.PixelBuffer, error) {
	pb, err := t.ReadPixelsSync()
	if err != nil {
		return nil, err
	}
	return pixel.FlipBuffer(pb)
}

func (t *frameTarget) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rt == nil {
		return
	}
	t.rt.Release()
	t.rt = nil
}

var errDestroyed = fmt.Errorf("%w: frame target used after Destroy", common.ErrPrecondition)

func (t *frameTarget) current() (gpu.RenderTarget, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rt == nil {
		return nil, errDestroyed
	}
	return t.rt, nil
}

// allocate creates the render target at the given size. Callers hold t.mu or own t exclusively.
func (t *frameTarget) allocate(width, height int) error {
	rt, err := t.device.CreateRenderTarget(gpu.RenderTargetDescriptor{
		Label:  t.label,
		Width:  width,
		Height: height,
		Format: t.format,
		Depth:  true,
	})
	if err != nil {
		return fmt.Errorf("allocate frame target %dx%d: %w", width, height, err)
	}
	t.rt = rt
	t.width = width
	t.height = height
	return nil
}
