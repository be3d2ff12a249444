// Package pixel converts readback buffers between the GPU's bottom-left row order and the
// top-left row order image files expect.
package pixel

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-capture/common"
)

// Sample is the set of element types a PixelBuffer can hold.
type Sample interface {
	~uint8 | ~float32
}

// FlipVertical returns a copy of buf with its row order reversed: row i of the input becomes
// row height-1-i of the output. The input is not modified. Applying it twice yields the input.
//
// Parameters:
//   - buf: row-major, channel-interleaved samples
//   - width: pixels per row
//   - height: number of rows
//   - channels: samples per pixel
//
// Returns:
//   - []T: the flipped copy
//   - error: an ErrPrecondition-wrapped error if the dimensions do not describe buf
func FlipVertical[T Sample](buf []T, width, height, channels int) ([]T, error) {
	if width <= 0 || height <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: flip of %dx%dx%d", common.ErrPrecondition, width, height, channels)
	}
	stride := width * channels
	if len(buf) != stride*height {
		return nil, fmt.Errorf("%w: buffer holds %d samples, want %d", common.ErrPrecondition, len(buf), stride*height)
	}
	out := make([]T, len(buf))
	for y := 0; y < height; y++ {
		src := buf[y*stride : (y+1)*stride]
		dst := (height - 1 - y) * stride
		copy(out[dst:dst+stride], src)
	}
	return out, nil
}

// FlipBuffer flips whichever sample slice of pb is populated and returns a new buffer with the same metadata.
//
// Parameters:
//   - pb: the buffer to flip
//
// Returns:
//   - *common.PixelBuffer: the flipped copy
//   - error: an error if pb is nil or its slices disagree with its dimensions
func FlipBuffer(pb *common.PixelBuffer) (*common.PixelBuffer, error) {
	if pb == nil {
		return nil, fmt.Errorf("%w: nil pixel buffer", common.ErrPrecondition)
	}
	out := &common.PixelBuffer{
		Width:    pb.Width,
		Height:   pb.Height,
		Channels: pb.Channels,
		Format:   pb.Format,
	}
	var err error
	if pb.Float32 != nil {
		out.Float32, err = FlipVertical(pb.Float32, pb.Width, pb.Height, pb.Channels)
	} else {
		out.Uint8, err = FlipVertical(pb.Uint8, pb.Width, pb.Height, pb.Channels)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
