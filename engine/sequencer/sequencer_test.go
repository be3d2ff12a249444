package sequencer

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/exr"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-capture/engine/renderer"
	"github.com/Carmen-Shannon/oxy-capture/engine/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red   = [4]float32{1, 0, 0, 1}
	green = [4]float32{0, 1, 0, 1}
)

type fixture struct {
	renderer renderer.Renderer
	target   target.FrameTarget
	display  gpu.RenderTarget
}

func newFixture(t *testing.T, width, height int, layers ...renderer.RendererBuilderOption) *fixture {
	t.Helper()
	return newFixtureOn(t, common.BackendKindImmediate, width, height, layers...)
}

func newFixtureOn(t *testing.T, kind common.BackendKind, width, height int, layers ...renderer.RendererBuilderOption) *fixture {
	t.Helper()
	d := gputest.NewDevice(kind)
	options := append([]renderer.RendererBuilderOption{
		renderer.WithBackendType(renderer.BackendTypeHost),
		renderer.WithDisplaySize(2, 2),
	}, layers...)
	r, err := renderer.NewRenderer(d, options...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	ft, err := target.NewFrameTarget(d, width, height)
	require.NoError(t, err)
	t.Cleanup(ft.Destroy)

	return &fixture{renderer: r, target: ft, display: r.DisplayTarget()}
}

func (f *fixture) sequencer(t *testing.T, options ...SequencerBuilderOption) Sequencer {
	t.Helper()
	s, err := NewSequencer(f.renderer, f.target, options...)
	require.NoError(t, err)
	return s
}

// stalledRenderer never reports a drawn frame.
type stalledRenderer struct {
	output gpu.RenderTarget
}

func (r *stalledRenderer) OutputTarget() gpu.RenderTarget          { return r.output }
func (r *stalledRenderer) SetOutputTarget(target gpu.RenderTarget) { r.output = target }
func (r *stalledRenderer) Redraw()                                 {}
func (r *stalledRenderer) OnFrameDrawn(callback func(err error))   {}

func TestRenderFrame_EncodesSolidColor(t *testing.T) {
	f := newFixture(t, 4, 4, renderer.WithLayer(0, renderer.ClearLayer{Color: red}))
	s := f.sequencer(t)

	res, err := s.RenderFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Width)
	assert.Equal(t, 4, res.Height)
	assert.Same(t, f.display, f.renderer.OutputTarget())

	assertSolidRed4x4(t, res.EXR)
}

// assertSolidRed4x4 checks decoded samples and the raw half scanlines of a 4x4 opaque red frame.
func assertSolidRed4x4(t *testing.T, data []byte) {
	t.Helper()
	img, err := exr.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 4, img.Height)
	for i := 0; i < 16; i++ {
		assert.Equal(t, float32(1), img.Samples["R"][i])
		assert.Equal(t, float32(0), img.Samples["G"][i])
		assert.Equal(t, float32(0), img.Samples["B"][i])
		assert.Equal(t, float32(1), img.Samples["A"][i])
	}

	// Scanline payloads hold A, B, G, R runs of half samples.
	want := map[int]uint16{0: 0x3C00, 1: 0x0000, 2: 0x0000, 3: 0x3C00}
	for y, off := range img.Offsets {
		rec := data[off:]
		assert.Equal(t, uint32(y), binary.LittleEndian.Uint32(rec[0:4]))
		payload := rec[8:]
		for ch := 0; ch < 4; ch++ {
			for x := 0; x < 4; x++ {
				got := binary.LittleEndian.Uint16(payload[(ch*4+x)*2:])
				assert.Equal(t, want[ch], got, "row %d channel %d", y, ch)
			}
		}
	}
}

func TestRenderSequence_MappedReadbackEncodesSolidColor(t *testing.T) {
	f := newFixtureOn(t, common.BackendKindMapped, 4, 4, renderer.WithLayer(0, renderer.ClearLayer{Color: red}))
	s := f.sequencer(t)

	var frames []int
	for res, err := range s.RenderSequence(context.Background(), 0, 1, Hooks{}) {
		require.NoError(t, err)
		frames = append(frames, res.Frame)
		assert.Equal(t, common.PixelFormatRGBA16Float, f.target.Format())
		assertSolidRed4x4(t, res.EXR)
	}
	assert.Equal(t, []int{0, 1}, frames)
	assert.Same(t, f.display, f.renderer.OutputTarget())
}

func TestRenderSequence_HookOrderAndResults(t *testing.T) {
	f := newFixture(t, 2, 2, renderer.WithLayer(0, renderer.ClearLayer{Color: red}))
	s := f.sequencer(t)

	var calls []string
	hooks := Hooks{
		OnFrameStart: func(frame int) error {
			calls = append(calls, "start")
			return nil
		},
		OnUpdateFrame: func(ctx context.Context, frame int) error {
			calls = append(calls, "update")
			assert.True(t, s.Exporting())
			return nil
		},
		OnFrameComplete: func(frame int, raw *common.PixelBuffer) error {
			calls = append(calls, "complete")
			return nil
		},
	}

	var frames []int
	for res, err := range s.RenderSequence(context.Background(), 3, 5, hooks) {
		require.NoError(t, err)
		calls = append(calls, "result")
		frames = append(frames, res.Frame)
		assert.NotEmpty(t, res.EXR)
	}

	assert.Equal(t, []int{3, 4, 5}, frames)
	want := []string{}
	for range frames {
		want = append(want, "start", "update", "complete", "result")
	}
	assert.Equal(t, want, calls)
	assert.False(t, s.Exporting())
	assert.Same(t, f.display, f.renderer.OutputTarget())
}

func TestRenderSequence_FlipsAfterCompleteHook(t *testing.T) {
	f := newFixture(t, 3, 2,
		renderer.WithLayer(0, renderer.ClearLayer{Color: red}),
		renderer.WithLayer(1, renderer.RectLayer{Region: common.Region{X: 0, Y: 0, Width: 3, Height: 1}, Color: green}),
	)
	s := f.sequencer(t)

	var raw *common.PixelBuffer
	hooks := Hooks{OnFrameComplete: func(frame int, pb *common.PixelBuffer) error {
		raw = pb
		return nil
	}}

	var result *FrameResult
	for res, err := range s.RenderSequence(context.Background(), 0, 0, hooks) {
		require.NoError(t, err)
		result = res
	}
	require.NotNil(t, raw)
	require.NotNil(t, result)

	// The raw buffer is bottom row first; the encoded pixels are top row first.
	assert.Equal(t, []float32{0, 1, 0, 1}, raw.Float32[0:4])
	assert.Equal(t, []float32{1, 0, 0, 1}, result.Pixels.Float32[0:4])
	assert.Equal(t, []float32{0, 1, 0, 1}, result.Pixels.Float32[12:16])

	img, err := exr.Decode(result.EXR)
	require.NoError(t, err)
	assert.Equal(t, float32(0), img.Samples["G"][0])
	assert.Equal(t, float32(1), img.Samples["G"][3])
}

func TestRenderSequence_RejectsConcurrentRun(t *testing.T) {
	f := newFixture(t, 2, 2)
	s := f.sequencer(t)

	var nested error
	hooks := Hooks{OnUpdateFrame: func(ctx context.Context, frame int) error {
		for _, err := range s.RenderSequence(ctx, 0, 3, Hooks{}) {
			nested = err
		}
		return nil
	}}

	count := 0
	for _, err := range s.RenderSequence(context.Background(), 0, 1, hooks) {
		require.NoError(t, err)
		count++
	}
	assert.ErrorIs(t, nested, common.ErrConcurrency)
	assert.Equal(t, 2, count, "the active run must be unaffected")
	assert.False(t, s.Exporting())
}

func TestRenderSequence_ConcurrentRunWithEmptyRange(t *testing.T) {
	f := newFixture(t, 2, 2)
	s := f.sequencer(t)

	var nested []error
	hooks := Hooks{OnUpdateFrame: func(ctx context.Context, frame int) error {
		for _, err := range s.RenderSequence(ctx, 3, 0, Hooks{}) {
			nested = append(nested, err)
		}
		return nil
	}}

	for _, err := range s.RenderSequence(context.Background(), 0, 0, hooks) {
		require.NoError(t, err)
	}
	require.Len(t, nested, 1)
	assert.ErrorIs(t, nested[0], common.ErrConcurrency)
	assert.NotErrorIs(t, nested[0], common.ErrPrecondition)
	assert.False(t, s.Exporting())
}

func TestRenderSequence_HookFailureRestoresOutput(t *testing.T) {
	f := newFixture(t, 2, 2)
	s := f.sequencer(t)
	boom := errors.New("scene update failed")

	hooks := Hooks{OnUpdateFrame: func(ctx context.Context, frame int) error {
		if frame == 2 {
			assert.Same(t, f.target.RenderTarget(), f.renderer.OutputTarget())
			return boom
		}
		return nil
	}}

	var results int
	var last error
	for res, err := range s.RenderSequence(context.Background(), 1, 4, hooks) {
		if err != nil {
			last = err
			continue
		}
		results++
		assert.Equal(t, 1, res.Frame)
	}
	assert.Equal(t, 1, results)
	assert.ErrorIs(t, last, boom)
	assert.Contains(t, last.Error(), "frame 2")
	assert.Same(t, f.display, f.renderer.OutputTarget())
	assert.False(t, s.Exporting())
}

func TestRenderSequence_ConsumerStopRestoresOutput(t *testing.T) {
	f := newFixture(t, 2, 2)
	s := f.sequencer(t)

	updates := 0
	hooks := Hooks{OnUpdateFrame: func(ctx context.Context, frame int) error {
		updates++
		return nil
	}}
	for _, err := range s.RenderSequence(context.Background(), 0, 10, hooks) {
		require.NoError(t, err)
		break
	}

	assert.Equal(t, 1, updates)
	assert.Same(t, f.display, f.renderer.OutputTarget())
	assert.False(t, s.Exporting())
}

func TestRenderSequence_Cancellation(t *testing.T) {
	f := newFixture(t, 2, 2)
	s := f.sequencer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hooks := Hooks{OnUpdateFrame: func(ctx context.Context, frame int) error {
		if frame == 1 {
			cancel()
		}
		return nil
	}}

	var frames []int
	var last error
	for res, err := range s.RenderSequence(ctx, 0, 5, hooks) {
		if err != nil {
			last = err
			continue
		}
		frames = append(frames, res.Frame)
	}
	assert.Equal(t, []int{0}, frames)
	assert.ErrorIs(t, last, context.Canceled)
	assert.Same(t, f.display, f.renderer.OutputTarget())
}

func TestRenderSequence_PanicRestoresOutput(t *testing.T) {
	f := newFixture(t, 2, 2)
	s := f.sequencer(t)

	hooks := Hooks{OnFrameStart: func(frame int) error {
		panic("hook exploded")
	}}
	assert.Panics(t, func() {
		for range s.RenderSequence(context.Background(), 0, 1, hooks) {
		}
	})
	assert.Same(t, f.display, f.renderer.OutputTarget())
	assert.False(t, s.Exporting())
}

func TestRenderSequence_EmptyRange(t *testing.T) {
	f := newFixture(t, 2, 2)
	s := f.sequencer(t)

	var errs []error
	for _, err := range s.RenderSequence(context.Background(), 5, 4, Hooks{}) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], common.ErrPrecondition)
	assert.False(t, s.Exporting())
}

func TestRenderSequence_LayerFailureIsBackendError(t *testing.T) {
	f := newFixture(t, 2, 2, renderer.WithLayer(0, renderer.FuncLayer(func(frame renderer.Frame) error {
		return errors.New("draw failed")
	})))
	s := f.sequencer(t)

	_, err := s.RenderFrame(context.Background())
	require.ErrorIs(t, err, common.ErrBackend)
	assert.Contains(t, err.Error(), "draw failed")
	assert.Same(t, f.display, f.renderer.OutputTarget())
}

func TestRenderFrame_Timeout(t *testing.T) {
	d := gputest.NewDevice(common.BackendKindMapped)
	ft, err := target.NewFrameTarget(d, 2, 2)
	require.NoError(t, err)
	defer ft.Destroy()

	r := &stalledRenderer{}
	s, err := NewSequencer(r, ft, WithRenderTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = s.RenderFrame(context.Background())
	require.ErrorIs(t, err, common.ErrRenderTimeout)
	assert.ErrorIs(t, err, common.ErrBackend)
	assert.Nil(t, r.OutputTarget(), "output must be restored to its previous value")
}

func TestRenderSequence_Region(t *testing.T) {
	f := newFixture(t, 4, 4, renderer.WithLayer(0, renderer.ClearLayer{Color: red}))
	s := f.sequencer(t, WithRegion(common.Region{X: 1, Y: 1, Width: 2, Height: 3}), WithEncodeOptions(exr.WithPixelType(exr.PixelTypeFloat)))

	res, err := s.RenderFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Width)
	assert.Equal(t, 3, res.Height)

	h, err := exr.ReadHeader(res.EXR)
	require.NoError(t, err)
	assert.Equal(t, exr.Box2i{XMax: 1, YMax: 2}, h.DataWindow)
	assert.Equal(t, exr.PixelTypeFloat, h.Channels[0].PixelType)
}

func TestNewSequencer_Validation(t *testing.T) {
	f := newFixture(t, 4, 4)

	_, err := NewSequencer(nil, f.target)
	assert.ErrorIs(t, err, common.ErrPrecondition)

	_, err = NewSequencer(f.renderer, f.target, WithRegion(common.Region{X: 3, Y: 0, Width: 2, Height: 1}))
	assert.ErrorIs(t, err, common.ErrPrecondition)
}
