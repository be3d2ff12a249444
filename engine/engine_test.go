package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/exr"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-capture/engine/renderer"
	"github.com/Carmen-Shannon/oxy-capture/engine/sequencer"
	"github.com/Carmen-Shannon/oxy-capture/engine/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	frames map[int][]byte
	fail   error
	closed int
}

func (s *memorySink) Write(ctx context.Context, frame *sequencer.FrameResult) error {
	if s.fail != nil {
		return s.fail
	}
	s.frames[frame.Frame] = frame.EXR
	return nil
}

func (s *memorySink) Close() error {
	s.closed++
	return nil
}

func newTestEngine(t *testing.T, kind common.BackendKind, options ...EngineBuilderOption) (Engine, *gputest.Device, *memorySink) {
	t.Helper()
	d := gputest.NewDevice(kind)
	out := &memorySink{frames: make(map[int][]byte)}
	options = append([]EngineBuilderOption{
		WithDevice(d),
		WithResolution(4, 4),
		WithSink(out),
		WithRendererOptions(renderer.WithBackendType(renderer.BackendTypeHost), renderer.WithDisplaySize(2, 2)),
	}, options...)
	e, err := NewEngine(options...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, d, out
}

func TestEngine_ExportDeliversEveryFrame(t *testing.T) {
	for _, kind := range []common.BackendKind{common.BackendKindMapped, common.BackendKindImmediate} {
		t.Run(kind.String(), func(t *testing.T) {
			var intensity float32
			e, d, out := newTestEngine(t, kind,
				WithPixelType(exr.PixelTypeFloat),
				WithProfiling(true),
				WithLayer(0, renderer.FuncLayer(func(f renderer.Frame) error {
					return f.Clear([4]float32{intensity, 0, 0, 1})
				})),
			)
			e.SetUpdateCallback(func(ctx context.Context, frame int) error {
				intensity = float32(frame) / 4
				return nil
			})

			stats, err := e.Export(context.Background(), 1, 3)
			require.NoError(t, err)
			assert.Equal(t, 3, stats.Frames)
			require.Len(t, out.frames, 3)

			var total int64
			for n, data := range out.frames {
				total += int64(len(data))
				img, err := exr.Decode(data)
				require.NoError(t, err)
				assert.Equal(t, float32(n)/4, img.Samples["R"][5], "frame %d", n)
			}
			assert.Equal(t, total, stats.Bytes)
			assert.Zero(t, d.Stats().LiveTransfers)
		})
	}
}

func TestEngine_SinkFailureStopsExport(t *testing.T) {
	e, _, out := newTestEngine(t, common.BackendKindMapped)
	boom := errors.New("bucket gone")
	out.fail = boom

	updates := 0
	e.SetUpdateCallback(func(ctx context.Context, frame int) error {
		updates++
		return nil
	})
	stats, err := e.Export(context.Background(), 0, 9)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "deliver frame 0")
	assert.Zero(t, stats.Frames)
	assert.Equal(t, 1, updates)
	assert.Same(t, e.Renderer().DisplayTarget(), e.Renderer().OutputTarget())
}

func TestEngine_CaptureAndClose(t *testing.T) {
	e, d, out := newTestEngine(t, common.BackendKindImmediate, WithLayer(0, renderer.ClearLayer{Color: [4]float32{0, 0, 1, 1}}))

	res, err := e.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Width)
	assert.Empty(t, out.frames, "capture bypasses the sink")

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Equal(t, 1, out.closed)
	assert.Zero(t, d.Stats().LiveTargets)
}

func TestNewEngine_RejectsIntegerTarget(t *testing.T) {
	d := gputest.NewDevice(common.BackendKindMapped)
	_, err := NewEngine(
		WithDevice(d),
		WithFormat(common.PixelFormatRGBA8Unorm),
		WithRendererOptions(renderer.WithBackendType(renderer.BackendTypeHost)),
	)
	require.ErrorIs(t, err, common.ErrPrecondition)
	assert.Zero(t, d.Stats().LiveTargets, "partially built components are released")
}

// loopWindow serves Do on a single goroutine and fires the resize callback from that goroutine, the way the
// GLFW event poll does.
type loopWindow struct {
	mu       *sync.Mutex
	calls    chan func()
	quit     chan struct{}
	onResize func(width, height int)
}

var _ window.Window = &loopWindow{}

func newLoopWindow(t *testing.T) *loopWindow {
	w := &loopWindow{mu: &sync.Mutex{}, calls: make(chan func()), quit: make(chan struct{})}
	go func() {
		for {
			select {
			case fn := <-w.calls:
				fn()
			case <-w.quit:
				return
			}
		}
	}()
	t.Cleanup(func() { close(w.quit) })
	return w
}

func (w *loopWindow) Do(fn func() error) error {
	done := make(chan error, 1)
	select {
	case w.calls <- func() { done <- fn() }:
	case <-w.quit:
		return window.ErrClosed
	}
	return <-done
}

// framebufferResized queues a resize event on the loop goroutine without waiting for it.
func (w *loopWindow) framebufferResized(width, height int) {
	w.calls <- func() {
		w.mu.Lock()
		cb := w.onResize
		w.mu.Unlock()
		if cb != nil {
			cb(width, height)
		}
	}
}

func (w *loopWindow) SetResizeCallback(callback func(width, height int)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onResize = callback
}

func (w *loopWindow) SwapBuffers() error { return nil }
func (w *loopWindow) IsRunning() bool    { return true }
func (w *loopWindow) Close() error       { return nil }
func (w *loopWindow) Width() int         { return 0 }
func (w *loopWindow) Height() int        { return 0 }

// contextDevice creates render targets on the window's context thread.
type contextDevice struct {
	*gputest.Device
	win window.Window
}

func (d *contextDevice) CreateRenderTarget(desc gpu.RenderTargetDescriptor) (gpu.RenderTarget, error) {
	var rt gpu.RenderTarget
	err := d.win.Do(func() error {
		var err error
		rt, err = d.Device.CreateRenderTarget(desc)
		return err
	})
	return rt, err
}

func TestEngine_WindowResizeFromContextThread(t *testing.T) {
	win := newLoopWindow(t)
	d := &contextDevice{Device: gputest.NewDevice(common.BackendKindMapped), win: win}
	e, err := NewEngine(
		WithDevice(d),
		WithWindow(win),
		WithResolution(4, 4),
		WithSink(&memorySink{frames: make(map[int][]byte)}),
		WithRendererOptions(renderer.WithBackendType(renderer.BackendTypeHost), renderer.WithDisplaySize(2, 2)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	win.framebufferResized(8, 6)

	r := e.Renderer()
	require.Eventually(t, func() bool {
		display := r.DisplayTarget()
		return display.Width() == 8 && display.Height() == 6
	}, 2*time.Second, 5*time.Millisecond)

	served := make(chan struct{})
	go func() {
		_ = win.Do(func() error { return nil })
		close(served)
	}()
	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("context thread stopped serving calls after a resize")
	}
	assert.Equal(t, r.DisplayTarget(), r.OutputTarget())
}
