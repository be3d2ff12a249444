package readback

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
	"github.com/x448/float16"
)

// mappedBackend reads through a padded transfer buffer that is mapped asynchronously.
type mappedBackend struct {
	device       gpu.MappedReadback
	pollInterval time.Duration
}

var _ readbackBackend = &mappedBackend{}

func newMappedBackend(device gpu.MappedReadback, pollInterval time.Duration) *mappedBackend {
	return &mappedBackend{device: device, pollInterval: pollInterval}
}

func (b *mappedBackend) ReadPixels(ctx context.Context, target gpu.Handle, region common.Region) (*common.PixelBuffer, error) {
	format := target.Format()
	bpp, err := format.BytesPerPixel()
	if err != nil {
		return nil, err
	}
	out, err := common.NewPixelBuffer(region.Width, region.Height, format)
	if err != nil {
		return nil, err
	}
	rowBytes := region.Width * bpp
	pitch := common.AlignUp(rowBytes, b.device.RowAlignment())

	transfer, err := b.device.CopyToTransfer(target, region, pitch)
	if err != nil {
		return nil, newError("copy", target, region, err)
	}
	defer transfer.Destroy()

	mapped := make(chan error, 1)
	if err := transfer.MapAsync(func(err error) { mapped <- err }); err != nil {
		return nil, newError("map", target, region, err)
	}
	if err := b.wait(ctx, transfer, mapped); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, newError("map", target, region, err)
	}
	defer transfer.Unmap()

	data := transfer.MappedRange()
	if len(data) < pitch*region.Height {
		return nil, newError("map", target, region,
			fmt.Errorf("mapped %d bytes, want %d", len(data), pitch*region.Height))
	}

	stride := out.RowStride()
	for row := 0; row < region.Height; row++ {
		src := row
		if b.device.OriginTopLeft() {
			src = region.Height - 1 - row
		}
		decodeRow(out, row*stride, data[src*pitch:src*pitch+rowBytes])
	}
	return out, nil
}

func (b *mappedBackend) ReadPixelsSync(target gpu.Handle, region common.Region) (*common.PixelBuffer, error) {
	return nil, fmt.Errorf("%w: synchronous readback on mapped backend", common.ErrUnsupported)
}

// wait polls the device until the map callback delivers, yielding between polls.
func (b *mappedBackend) wait(ctx context.Context, transfer gpu.TransferBuffer, mapped <-chan error) error {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		transfer.Poll()
		select {
		case err := <-mapped:
			return err
		default:
		}
		select {
		case err := <-mapped:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// decodeRow widens one tightly packed row of device bytes into out starting at sample offset.
func decodeRow(out *common.PixelBuffer, offset int, src []byte) {
	switch out.Format {
	case common.PixelFormatRGBA8Unorm:
		copy(out.Uint8[offset:], src)
	case common.PixelFormatRGBA16Float:
		dst := out.Float32[offset:]
		for i := 0; i < len(src)/2; i++ {
			dst[i] = float16.Frombits(binary.LittleEndian.Uint16(src[2*i:])).Float32()
		}
	case common.PixelFormatRGBA32Float:
		copy(out.Float32[offset:], common.BytesToSlice[float32](src))
	}
}
