package gputest

import (
	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
)

// Texture is an in-memory color texture. Pixels are addressed with a bottom-left origin.
type Texture struct {
	label  string
	width  int
	height int
	format common.PixelFormat
	kind   common.BackendKind
	pixels [][4]float32
}

var _ gpu.Handle = &Texture{}

func (t *Texture) Label() string               { return t.label }
func (t *Texture) Width() int                  { return t.width }
func (t *Texture) Height() int                 { return t.height }
func (t *Texture) Format() common.PixelFormat  { return t.format }
func (t *Texture) Backend() common.BackendKind { return t.kind }
func (t *Texture) IsRenderTarget() bool        { return false }

// At returns the stored value of pixel (x, y), y counted from the bottom row.
func (t *Texture) At(x, y int) [4]float32 {
	return t.pixels[y*t.width+x]
}

// Set stores the value of pixel (x, y), y counted from the bottom row.
func (t *Texture) Set(x, y int, px [4]float32) {
	t.pixels[y*t.width+x] = px
}

// Fill sets every pixel from fn, called with bottom-left-origin coordinates.
func (t *Texture) Fill(fn func(x, y int) [4]float32) {
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			t.pixels[y*t.width+x] = fn(x, y)
		}
	}
}

// Surface is an in-memory render target over a Texture.
type Surface struct {
	tex      *Texture
	device   *Device
	depth    bool
	wrapper  bool
	released bool
}

var _ gpu.RenderTarget = &Surface{}

func (s *Surface) Label() string               { return s.tex.label }
func (s *Surface) Width() int                  { return s.tex.width }
func (s *Surface) Height() int                 { return s.tex.height }
func (s *Surface) Format() common.PixelFormat  { return s.tex.format }
func (s *Surface) Backend() common.BackendKind { return s.tex.kind }
func (s *Surface) IsRenderTarget() bool        { return true }
func (s *Surface) HasDepth() bool              { return s.depth }
func (s *Surface) Texture() gpu.Handle         { return s.tex }

// Color returns the in-memory color texture for filling and inspection.
func (s *Surface) Color() *Texture {
	return s.tex
}

// Wrapper reports whether the surface was created by WrapTexture.
func (s *Surface) Wrapper() bool {
	return s.wrapper
}

// Released reports whether Release has been called.
func (s *Surface) Released() bool {
	return s.released
}

func (s *Surface) Release() {
	if s.released {
		return
	}
	s.released = true
	s.device.mu.Lock()
	s.device.liveTargets--
	s.device.mu.Unlock()
}

// FillRect sets every pixel of region, bottom-left origin, to px.
func (s *Surface) FillRect(region common.Region, px [4]float32) {
	for y := region.Y; y < region.Y+region.Height; y++ {
		for x := region.X; x < region.X+region.Width; x++ {
			s.tex.Set(x, y, px)
		}
	}
}
