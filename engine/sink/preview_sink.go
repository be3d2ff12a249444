package sink

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/sequencer"
	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
)

// previewSink writes a small sRGB PNG of every frame for quick inspection.
type previewSink struct {
	dir     string
	pattern string
	width   int
	logger  *log.Logger
}

var _ Sink = &previewSink{}

// NewPreviewSink creates a sink writing PNG thumbnails to dir.
//
// Parameters:
//   - dir: the output directory
//   - options: preview sink options
//
// Returns:
//   - Sink: the preview sink
//   - error: an error if the directory cannot be created
func NewPreviewSink(dir string, options ...PreviewSinkBuilderOption) (Sink, error) {
	s := &previewSink{
		dir:     dir,
		pattern: "preview_%04d.png",
		width:   256,
		logger:  log.New(io.Discard),
	}
	for _, opt := range options {
		opt(s)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create preview dir: %w", err)
	}
	return s, nil
}

func (s *previewSink) Write(ctx context.Context, frame *sequencer.FrameResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	img, err := ToSRGB(frame.Pixels)
	if err != nil {
		return fmt.Errorf("preview frame %d: %w", frame.Frame, err)
	}
	var thumb image.Image = img
	if img.Bounds().Dx() > s.width {
		thumb = imaging.Resize(img, s.width, 0, imaging.Lanczos)
	}

	name := frameName(s.pattern, frame.Frame)
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return fmt.Errorf("preview frame %d: %w", frame.Frame, err)
	}
	path := filepath.Join(s.dir, name)
	if err := writeFileAtomic(path, func(w io.Writer) error {
		return imaging.Encode(w, thumb, format)
	}); err != nil {
		return fmt.Errorf("preview frame %d: %w", frame.Frame, err)
	}
	s.logger.Debug("preview written", "path", path)
	return nil
}

func (s *previewSink) Close() error {
	return nil
}

// ToSRGB converts a top-row-first pixel buffer to an 8-bit image. Float samples are treated as linear
// and clamped to [0, 1] before sRGB encoding; 8-bit samples are copied unchanged.
//
// Parameters:
//   - pb: the pixels, top row first
//
// Returns:
//   - *image.NRGBA: the converted image
//   - error: an error if pb is nil or empty
func ToSRGB(pb *common.PixelBuffer) (*image.NRGBA, error) {
	if pb == nil || pb.Len() == 0 {
		return nil, fmt.Errorf("%w: empty pixel buffer", common.ErrPrecondition)
	}
	img := image.NewNRGBA(image.Rect(0, 0, pb.Width, pb.Height))
	for y := 0; y < pb.Height; y++ {
		for x := 0; x < pb.Width; x++ {
			i := (y*pb.Width + x) * pb.Channels
			var c color.NRGBA
			if pb.Float32 != nil {
				c = color.NRGBA{
					R: encodeSRGB(pb.Float32[i]),
					G: encodeSRGB(pb.Float32[i+1]),
					B: encodeSRGB(pb.Float32[i+2]),
					A: unorm(pb.Float32[i+3]),
				}
			} else {
				c = color.NRGBA{R: pb.Uint8[i], G: pb.Uint8[i+1], B: pb.Uint8[i+2], A: pb.Uint8[i+3]}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img, nil
}

// encodeSRGB applies the sRGB transfer function to a linear sample.
func encodeSRGB(v float32) uint8 {
	l := clamp01(float64(v))
	if l <= 0.0031308 {
		l *= 12.92
	} else {
		l = 1.055*math.Pow(l, 1/2.4) - 0.055
	}
	return uint8(math.Round(l * 255))
}

func unorm(v float32) uint8 {
	return uint8(math.Round(clamp01(float64(v)) * 255))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, 1)
}

// previewPattern swaps the extension of an EXR pattern for .png.
func previewPattern(pattern string) string {
	return strings.TrimSuffix(pattern, filepath.Ext(pattern)) + ".png"
}
