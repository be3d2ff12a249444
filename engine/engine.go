package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/exr"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
	"github.com/Carmen-Shannon/oxy-capture/engine/profiler"
	"github.com/Carmen-Shannon/oxy-capture/engine/renderer"
	"github.com/Carmen-Shannon/oxy-capture/engine/sequencer"
	"github.com/Carmen-Shannon/oxy-capture/engine/sink"
	"github.com/Carmen-Shannon/oxy-capture/engine/target"
	"github.com/Carmen-Shannon/oxy-capture/engine/window"
	"github.com/charmbracelet/log"
)

// engine implements the Engine interface.
// Owns the device, renderer, frame target and sequencer and feeds exported frames to the sink.
type engine struct {
	mu *sync.Mutex

	device      gpu.Device
	ownsDevice  bool
	backendKind common.BackendKind
	window      window.Window

	renderer  renderer.Renderer
	target    target.FrameTarget
	sequencer sequencer.Sequencer
	sink      sink.Sink

	profiler         *profiler.Profiler
	profilingEnabled bool

	updateCallback   func(ctx context.Context, frame int) error
	completeCallback func(frame int, raw *common.PixelBuffer) error

	// Pre-creation config collected from builder options
	width           int
	height          int
	format          common.PixelFormat
	pixelType       exr.PixelType
	region          *common.Region
	renderTimeout   time.Duration
	rendererOptions []renderer.RendererBuilderOption
	layers          map[int]renderer.Layer

	closeOnce sync.Once
	closeErr  error
	logger    *log.Logger
}

// ExportStats summarizes a finished or aborted export run.
type ExportStats struct {
	// Frames is the number of frames delivered to the sink.
	Frames int
	// Bytes is the total size of the delivered EXR files.
	Bytes int64
	// Elapsed is the wall time of the run.
	Elapsed time.Duration
}

// Engine is the main entry point for capture.
// It wires the GPU device, renderer, HDR frame target and frame sequencer together and delivers exported frames to a sink.
type Engine interface {
	// Device returns the GPU device the engine renders with.
	//
	// Returns:
	//   - gpu.Device: the device
	Device() gpu.Device

	// Renderer returns the renderer drawing the scene.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// FrameTarget returns the HDR target exports render into.
	//
	// Returns:
	//   - target.FrameTarget: the frame target
	FrameTarget() target.FrameTarget

	// AddLayer registers a layer with the renderer at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index determining draw order (lower draws first)
	//   - l: the layer to draw
	AddLayer(key int, l renderer.Layer)

	// RemoveLayer removes the layer at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the layer to remove
	RemoveLayer(key int)

	// SetUpdateCallback registers the function that advances the scene to a frame before it is rendered.
	//
	// Parameters:
	//   - callback: called once per exported frame with the frame number
	SetUpdateCallback(callback func(ctx context.Context, frame int) error)

	// SetFrameCompleteCallback registers the function receiving each frame's raw, bottom-row-first pixels.
	//
	// Parameters:
	//   - callback: called once per exported frame before encoding
	SetFrameCompleteCallback(callback func(frame int, raw *common.PixelBuffer) error)

	// EnableProfiler enables throughput logging for exports.
	EnableProfiler()

	// DisableProfiler disables throughput logging.
	DisableProfiler()

	// Export renders frames start..end inclusive and writes each encoded frame to the sink before rendering the next.
	//
	// Parameters:
	//   - ctx: cancels the export between frames
	//   - start: the first frame number
	//   - end: the last frame number
	//
	// Returns:
	//   - ExportStats: what was delivered, also on failure
	//   - error: the first render, readback, encode or sink failure
	Export(ctx context.Context, start, end int) (ExportStats, error)

	// Capture renders and encodes the current scene once without touching the sink.
	//
	// Parameters:
	//   - ctx: cancels the capture
	//
	// Returns:
	//   - *sequencer.FrameResult: the encoded frame
	//   - error: the first failure
	Capture(ctx context.Context) (*sequencer.FrameResult, error)

	// Close releases the sink, frame target, renderer and, if the engine created it, the device.
	// Safe to call multiple times.
	//
	// Returns:
	//   - error: the joined close errors
	Close() error
}

var _ Engine = &engine{}

// NewEngine creates a new Engine with the provided options.
// Without WithDevice a device of the configured backend kind is created and owned by the engine.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: an error if any component cannot be created; components created so far are released
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		mu:            &sync.Mutex{},
		backendKind:   common.BackendKindMapped,
		width:         1920,
		height:        1080,
		format:        common.PixelFormatRGBA16Float,
		pixelType:     exr.PixelTypeHalf,
		renderTimeout: 10 * time.Second,
		layers:        make(map[int]renderer.Layer),
		logger:        log.New(io.Discard),
	}
	for _, opt := range options {
		opt(e)
	}

	if err := e.build(); err != nil {
		e.Close()
		return nil, err
	}

	if e.window != nil {
		// The callback runs on the window's context thread, so the GL work is left to the render goroutine.
		e.window.SetResizeCallback(e.renderer.RequestResize)
	}
	return e, nil
}

// build creates the components in dependency order.
func (e *engine) build() error {
	if e.device == nil {
		device, err := gpu.NewDevice(e.backendKind, gpu.WithWindow(e.window), gpu.WithLogger(e.logger))
		if err != nil {
			return err
		}
		e.device = device
		e.ownsDevice = true
	}

	e.profiler = profiler.NewProfiler(profiler.WithLogger(e.logger), profiler.WithName("export"))

	rendererOptions := []renderer.RendererBuilderOption{renderer.WithLogger(e.logger)}
	for key, l := range e.layers {
		rendererOptions = append(rendererOptions, renderer.WithLayer(key, l))
	}
	r, err := renderer.NewRenderer(e.device, append(rendererOptions, e.rendererOptions...)...)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	e.renderer = r

	t, err := target.NewFrameTarget(e.device, e.width, e.height,
		target.WithFormat(e.format),
		target.WithLogger(e.logger),
	)
	if err != nil {
		return fmt.Errorf("create frame target: %w", err)
	}
	e.target = t

	sequencerOptions := []sequencer.SequencerBuilderOption{
		sequencer.WithEncodeOptions(exr.WithPixelType(e.pixelType)),
		sequencer.WithRenderTimeout(e.renderTimeout),
		sequencer.WithLogger(e.logger),
	}
	if e.region != nil {
		sequencerOptions = append(sequencerOptions, sequencer.WithRegion(*e.region))
	}
	s, err := sequencer.NewSequencer(e.renderer, e.target, sequencerOptions...)
	if err != nil {
		return err
	}
	e.sequencer = s
	return nil
}

func (e *engine) Device() gpu.Device {
	return e.device
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) FrameTarget() target.FrameTarget {
	return e.target
}

func (e *engine) AddLayer(key int, l renderer.Layer) {
	e.renderer.AddLayer(key, l)
}

func (e *engine) RemoveLayer(key int) {
	e.renderer.RemoveLayer(key)
}

func (e *engine) SetUpdateCallback(callback func(ctx context.Context, frame int) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateCallback = callback
}

func (e *engine) SetFrameCompleteCallback(callback func(frame int, raw *common.PixelBuffer) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completeCallback = callback
}

func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

func (e *engine) Export(ctx context.Context, start, end int) (ExportStats, error) {
	e.mu.Lock()
	hooks := sequencer.Hooks{
		OnUpdateFrame:   e.updateCallback,
		OnFrameComplete: e.completeCallback,
	}
	out := e.sink
	profiling := e.profilingEnabled
	e.mu.Unlock()

	var stats ExportStats
	began := time.Now()

	for res, err := range e.sequencer.RenderSequence(ctx, start, end, hooks) {
		if err != nil {
			stats.Elapsed = time.Since(began)
			return stats, err
		}
		if out != nil {
			if err := out.Write(ctx, res); err != nil {
				stats.Elapsed = time.Since(began)
				return stats, fmt.Errorf("deliver frame %d: %w", res.Frame, err)
			}
		}
		stats.Frames++
		stats.Bytes += int64(len(res.EXR))

		if profiling {
			e.profiler.AddBytes(len(res.EXR))
			e.profiler.Tick()
		}
	}
	stats.Elapsed = time.Since(began)

	if profiling {
		frames, bytes := e.profiler.Totals()
		e.logger.Debug("profiler totals", "frames", frames, "bytes", bytes)
	}
	e.logger.Info("export complete", "frames", stats.Frames, "bytes", stats.Bytes, "took", stats.Elapsed.Round(time.Millisecond))
	return stats, nil
}

func (e *engine) Capture(ctx context.Context) (*sequencer.FrameResult, error) {
	return e.sequencer.RenderFrame(ctx)
}

func (e *engine) Close() error {
	e.closeOnce.Do(func() {
		var errs []error
		if e.sink != nil {
			errs = append(errs, e.sink.Close())
		}
		if e.target != nil {
			e.target.Destroy()
		}
		if e.renderer != nil {
			errs = append(errs, e.renderer.Close())
		}
		if e.ownsDevice && e.device != nil {
			e.device.Release()
		}
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}
