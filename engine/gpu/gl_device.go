package gpu

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/window"
	"github.com/charmbracelet/log"
	"github.com/go-gl/gl/v3.3-core/gl"
)

// GLDevice is the OpenGL device, exposing the window whose context all GL calls must run on.
type GLDevice interface {
	Device
	ImmediateReadback

	// Window returns the window owning the GL context.
	Window() window.Window
}

// GLRenderTarget is a render target created by the OpenGL device.
type GLRenderTarget interface {
	RenderTarget

	// Framebuffer returns the framebuffer object name.
	Framebuffer() uint32

	// TextureID returns the color texture name.
	TextureID() uint32
}

// glDevice is the implementation of the GLDevice interface.
type glDevice struct {
	mu         *sync.Mutex
	window     window.Window
	ownsWindow bool
	renderable map[common.PixelFormat]bool
	version    string
	logger     *log.Logger
}

var _ GLDevice = &glDevice{}

func newGLDevice(cfg *deviceConfig) (Device, error) {
	w := cfg.window
	owns := false
	if w == nil {
		var err error
		w, err = window.NewWindow(window.WithTitle("oxy-capture"))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrCapability, err)
		}
		owns = true
	}

	d := &glDevice{
		mu:         &sync.Mutex{},
		window:     w,
		ownsWindow: owns,
		renderable: make(map[common.PixelFormat]bool),
		logger:     cfg.logger,
	}
	err := w.Do(func() error {
		if err := gl.Init(); err != nil {
			return fmt.Errorf("gl init: %w", err)
		}
		d.version = gl.GoStr(gl.GetString(gl.VERSION))
		for _, f := range []common.PixelFormat{common.PixelFormatRGBA8Unorm, common.PixelFormatRGBA16Float, common.PixelFormatRGBA32Float} {
			d.renderable[f] = probeRenderable(f)
		}
		return nil
	})
	if err != nil {
		if owns {
			w.Close()
		}
		return nil, fmt.Errorf("%w: %v", common.ErrCapability, err)
	}

	d.logger.Debug("opengl device ready", "version", d.version, "renderable", d.renderable)
	return d, nil
}

func (d *glDevice) Kind() common.BackendKind {
	return common.BackendKindImmediate
}

func (d *glDevice) Name() string {
	return "opengl " + d.version
}

func (d *glDevice) SupportsRenderFormat(format common.PixelFormat) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.renderable[format]
}

func (d *glDevice) FloatRenderFeature() string {
	return "EXT_color_buffer_float"
}

func (d *glDevice) CreateRenderTarget(desc RenderTargetDescriptor) (RenderTarget, error) {
	internal, pixelType, ok := glTextureFormat(desc.Format)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not renderable", common.ErrCapability, desc.Format)
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("%w: render target size %dx%d", common.ErrPrecondition, desc.Width, desc.Height)
	}

	t := &glRenderTarget{
		device: d,
		texture: &glTexture{
			label:  desc.Label,
			width:  desc.Width,
			height: desc.Height,
			format: desc.Format,
		},
		ownsTexture: true,
	}
	err := d.window.Do(func() error {
		gl.GenTextures(1, &t.texture.id)
		gl.BindTexture(gl.TEXTURE_2D, t.texture.id)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
		gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(desc.Width), int32(desc.Height), 0, gl.RGBA, pixelType, nil)
		gl.BindTexture(gl.TEXTURE_2D, 0)

		gl.GenFramebuffers(1, &t.fbo)
		gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, t.texture.id, 0)

		if desc.Depth {
			gl.GenRenderbuffers(1, &t.depth)
			gl.BindRenderbuffer(gl.RENDERBUFFER, t.depth)
			gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT16, int32(desc.Width), int32(desc.Height))
			gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
			gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, t.depth)
		}

		status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		if status != gl.FRAMEBUFFER_COMPLETE {
			t.deleteObjects()
			return fmt.Errorf("framebuffer incomplete: %#x", status)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create render target %q: %v", common.ErrBackend, desc.Label, err)
	}
	return t, nil
}

func (d *glDevice) Release() {
	if d.ownsWindow {
		if err := d.window.Close(); err != nil {
			d.logger.Warn("close gl window", "err", err)
		}
	}
}

func (d *glDevice) ReadPixelsImmediate(target Handle, region common.Region, dst *common.PixelBuffer) error {
	rt, ok := target.(*glRenderTarget)
	if !ok {
		return fmt.Errorf("%w: handle %q is not an opengl render target", common.ErrPrecondition, target.Label())
	}
	if rt.fbo == 0 {
		return fmt.Errorf("%w: render target %q is released", common.ErrPrecondition, rt.Label())
	}
	if dst.Width != region.Width || dst.Height != region.Height {
		return fmt.Errorf("%w: buffer %dx%d does not match region %s", common.ErrPrecondition, dst.Width, dst.Height, region)
	}

	return d.window.Do(func() error {
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, rt.fbo)
		gl.ReadBuffer(gl.COLOR_ATTACHMENT0)
		gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
		x, y, w, h := int32(region.X), int32(region.Y), int32(region.Width), int32(region.Height)
		if dst.Float32 != nil {
			gl.ReadPixels(x, y, w, h, gl.RGBA, gl.FLOAT, gl.Ptr(dst.Float32))
		} else {
			gl.ReadPixels(x, y, w, h, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(dst.Uint8))
		}
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
		if code := gl.GetError(); code != gl.NO_ERROR {
			return fmt.Errorf("glReadPixels: error %#x", code)
		}
		return nil
	})
}

func (d *glDevice) WrapTexture(texture Handle) (RenderTarget, error) {
	tex, ok := texture.(*glTexture)
	if !ok {
		return nil, fmt.Errorf("%w: handle %q is not an opengl texture", common.ErrPrecondition, texture.Label())
	}
	t := &glRenderTarget{
		device:  d,
		texture: tex,
	}
	err := d.window.Do(func() error {
		gl.GenFramebuffers(1, &t.fbo)
		gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, tex.id, 0)
		status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		if status != gl.FRAMEBUFFER_COMPLETE {
			t.deleteObjects()
			return fmt.Errorf("framebuffer incomplete: %#x", status)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("wrap texture %q: %w", tex.label, err)
	}
	return t, nil
}

func (d *glDevice) Window() window.Window {
	return d.window
}

// probeRenderable attaches a 1x1 texture of the format to a framebuffer and reports completeness.
// Must run on the context thread.
func probeRenderable(format common.PixelFormat) bool {
	internal, pixelType, ok := glTextureFormat(format)
	if !ok {
		return false
	}
	var tex, fbo uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, 1, 1, 0, gl.RGBA, pixelType, nil)
	gl.GenFramebuffers(1, &fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, tex, 0)
	complete := gl.CheckFramebufferStatus(gl.FRAMEBUFFER) == gl.FRAMEBUFFER_COMPLETE
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.DeleteFramebuffers(1, &fbo)
	gl.DeleteTextures(1, &tex)
	return complete
}

// glTextureFormat maps a pixel format to its GL sized internal format and upload type.
func glTextureFormat(format common.PixelFormat) (int32, uint32, bool) {
	switch format {
	case common.PixelFormatRGBA8Unorm:
		return gl.RGBA8, gl.UNSIGNED_BYTE, true
	case common.PixelFormatRGBA16Float:
		return gl.RGBA16F, gl.HALF_FLOAT, true
	case common.PixelFormatRGBA32Float:
		return gl.RGBA32F, gl.FLOAT, true
	default:
		return 0, 0, false
	}
}

// glTexture is a bare color texture handle.
type glTexture struct {
	label  string
	width  int
	height int
	format common.PixelFormat
	id     uint32
}

var _ Handle = &glTexture{}

func (t *glTexture) Label() string               { return t.label }
func (t *glTexture) Width() int                  { return t.width }
func (t *glTexture) Height() int                 { return t.height }
func (t *glTexture) Format() common.PixelFormat  { return t.format }
func (t *glTexture) Backend() common.BackendKind { return common.BackendKindImmediate }
func (t *glTexture) IsRenderTarget() bool        { return false }

// glRenderTarget is a framebuffer with a color texture and optional depth renderbuffer.
type glRenderTarget struct {
	device      *glDevice
	texture     *glTexture
	fbo         uint32
	depth       uint32
	ownsTexture bool
}

var _ GLRenderTarget = &glRenderTarget{}

func (t *glRenderTarget) Label() string               { return t.texture.label }
func (t *glRenderTarget) Width() int                  { return t.texture.width }
func (t *glRenderTarget) Height() int                 { return t.texture.height }
func (t *glRenderTarget) Format() common.PixelFormat  { return t.texture.format }
func (t *glRenderTarget) Backend() common.BackendKind { return common.BackendKindImmediate }
func (t *glRenderTarget) IsRenderTarget() bool        { return true }
func (t *glRenderTarget) Texture() Handle             { return t.texture }
func (t *glRenderTarget) HasDepth() bool              { return t.depth != 0 }
func (t *glRenderTarget) Framebuffer() uint32         { return t.fbo }
func (t *glRenderTarget) TextureID() uint32           { return t.texture.id }

func (t *glRenderTarget) Release() {
	err := t.device.window.Do(func() error {
		t.deleteObjects()
		return nil
	})
	if err != nil {
		t.device.logger.Warn("release render target", "label", t.texture.label, "err", err)
	}
}

// deleteObjects frees the GL objects of the target. Must run on the context thread.
func (t *glRenderTarget) deleteObjects() {
	if t.fbo != 0 {
		gl.DeleteFramebuffers(1, &t.fbo)
		t.fbo = 0
	}
	if t.depth != 0 {
		gl.DeleteRenderbuffers(1, &t.depth)
		t.depth = 0
	}
	if t.ownsTexture && t.texture.id != 0 {
		gl.DeleteTextures(1, &t.texture.id)
		t.texture.id = 0
	}
}
