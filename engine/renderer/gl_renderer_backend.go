package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
	"github.com/Carmen-Shannon/oxy-capture/engine/window"
	"github.com/go-gl/gl/v3.3-core/gl"
)

// glRendererBackend draws into OpenGL framebuffers. Every GL call runs on the window's context thread.
type glRendererBackend struct {
	window  window.Window
	present bool
}

var _ RendererBackend = &glRendererBackend{}

func newGLRendererBackend(device gpu.GLDevice, present bool) *glRendererBackend {
	return &glRendererBackend{
		window:  device.Window(),
		present: present,
	}
}

func (b *glRendererBackend) Type() RendererBackendType {
	return BackendTypeGL
}

func (b *glRendererBackend) BeginFrame(target gpu.RenderTarget, index uint64) (Frame, error) {
	rt, ok := target.(gpu.GLRenderTarget)
	if !ok {
		return nil, fmt.Errorf("target %q is not an opengl render target", target.Label())
	}
	if rt.Framebuffer() == 0 {
		return nil, fmt.Errorf("%w: target %q is released", common.ErrPrecondition, target.Label())
	}
	err := b.window.Do(func() error {
		gl.BindFramebuffer(gl.FRAMEBUFFER, rt.Framebuffer())
		gl.Viewport(0, 0, int32(rt.Width()), int32(rt.Height()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &glFrame{backend: b, index: index, target: rt}, nil
}

func (b *glRendererBackend) EndFrame(frame Frame) error {
	return b.window.Do(func() error {
		gl.Flush()
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		if code := gl.GetError(); code != gl.NO_ERROR {
			return fmt.Errorf("gl error %#x", code)
		}
		return nil
	})
}

func (b *glRendererBackend) Present(target gpu.RenderTarget) error {
	if !b.present {
		return nil
	}
	rt, ok := target.(gpu.GLRenderTarget)
	if !ok {
		return fmt.Errorf("target %q is not an opengl render target", target.Label())
	}
	err := b.window.Do(func() error {
		w, h := int32(rt.Width()), int32(rt.Height())
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, rt.Framebuffer())
		gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
		gl.BlitFramebuffer(0, 0, w, h, 0, 0, int32(b.window.Width()), int32(b.window.Height()), gl.COLOR_BUFFER_BIT, gl.LINEAR)
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		return nil
	})
	if err != nil {
		return err
	}
	return b.window.SwapBuffers()
}

// glFrame is a Frame drawing into an OpenGL framebuffer.
type glFrame struct {
	backend *glRendererBackend
	index   uint64
	target  gpu.GLRenderTarget
}

func (f *glFrame) Index() uint64 {
	return f.index
}

func (f *glFrame) Target() gpu.RenderTarget {
	return f.target
}

func (f *glFrame) Clear(color [4]float32) error {
	return f.backend.window.Do(func() error {
		gl.BindFramebuffer(gl.FRAMEBUFFER, f.target.Framebuffer())
		gl.ClearColor(color[0], color[1], color[2], color[3])
		gl.ClearDepth(1)
		gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
		return nil
	})
}

func (f *glFrame) FillRect(region common.Region, color [4]float32) error {
	r, err := common.ResolveRegion(&region, f.target.Width(), f.target.Height())
	if err != nil {
		return err
	}
	// GL window coordinates share the bottom-left origin of Region.
	return f.backend.window.Do(func() error {
		gl.BindFramebuffer(gl.FRAMEBUFFER, f.target.Framebuffer())
		gl.Enable(gl.SCISSOR_TEST)
		gl.Scissor(int32(r.X), int32(r.Y), int32(r.Width), int32(r.Height))
		gl.ClearColor(color[0], color[1], color[2], color[3])
		gl.Clear(gl.COLOR_BUFFER_BIT)
		gl.Disable(gl.SCISSOR_TEST)
		return nil
	})
}
