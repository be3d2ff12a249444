package renderer

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
	"github.com/Carmen-Shannon/oxy-capture/engine/profiler"
	"github.com/charmbracelet/log"
)

// ErrClosed is delivered to pending drawn callbacks when the renderer shuts down.
var ErrClosed = errors.New("renderer closed")

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu     *sync.Mutex
	drawMu *sync.Mutex

	device      gpu.Device
	backendType RendererBackendType
	backend     RendererBackend

	display gpu.RenderTarget
	output  gpu.RenderTarget
	layers  map[int]Layer
	drawn   []func(error)

	redrawChannel chan struct{}
	quitChannel   chan struct{}
	quitOnce      sync.Once
	wg            sync.WaitGroup

	// pendingWidth and pendingHeight hold a queued resize, applied by the render goroutine.
	pendingWidth  int
	pendingHeight int

	frameCount       uint64
	renderFrameLimit time.Duration
	present          bool

	// Pre-creation config collected from builder options
	displayWidth  int
	displayHeight int
	displayFormat common.PixelFormat

	profiler *profiler.Profiler
	logger   *log.Logger
}

// Renderer draws z-ordered layers into an output render target on a dedicated render goroutine.
//
// By default the output is the renderer's own display target. Exports redirect the output to their frame target,
// request a redraw, wait for the drawn signal and then restore the previous output.
type Renderer interface {
	// OutputTarget returns the render target the next redraw draws into.
	//
	// Returns:
	//   - gpu.RenderTarget: the current output target
	OutputTarget() gpu.RenderTarget

	// SetOutputTarget redirects subsequent redraws. A nil target restores the display target.
	//
	// Parameters:
	//   - target: the render target to draw into, or nil
	SetOutputTarget(target gpu.RenderTarget)

	// DisplayTarget returns the renderer's own default target.
	//
	// Returns:
	//   - gpu.RenderTarget: the display target
	DisplayTarget() gpu.RenderTarget

	// Redraw requests a redraw. Requests made while a redraw is pending are coalesced.
	Redraw()

	// OnFrameDrawn registers a one-shot callback invoked exactly once, after the next redraw that starts after
	// this call has been submitted, with that redraw's error. Pending callbacks receive ErrClosed on Close.
	//
	// Parameters:
	//   - callback: the function to invoke
	OnFrameDrawn(callback func(err error))

	// AddLayer registers a layer at the given z-index key, replacing any layer with the same key.
	// Layers are drawn in ascending key order.
	//
	// Parameters:
	//   - key: the z-index of the layer
	//   - l: the layer to draw
	AddLayer(key int, l Layer)

	// RemoveLayer unregisters the layer at key.
	//
	// Parameters:
	//   - key: the z-index of the layer to remove
	RemoveLayer(key int)

	// Layers returns a copy of the registered layers.
	//
	// Returns:
	//   - map[int]Layer: the layers keyed by z-index
	Layers() map[int]Layer

	// Resize recreates the display target at a new size.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: an error if the new target cannot be created
	Resize(width, height int) error

	// RequestResize queues a display resize and returns immediately. The render goroutine recreates the display
	// target before its next redraw, so this is safe to call from the window's context thread.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	RequestResize(width, height int)

	// FrameCount returns the number of redraws started so far.
	FrameCount() uint64

	// BackendType returns the backend the renderer draws with.
	BackendType() RendererBackendType

	// Close stops the render goroutine and releases the display target.
	//
	// Returns:
	//   - error: always nil; present for io.Closer compatibility
	Close() error
}

var _ Renderer = &renderer{}

// NewRenderer creates a renderer for device and starts its render goroutine.
// The backend type defaults to WGPU for mapped devices and GL for immediate devices.
//
// Parameters:
//   - device: the GPU device targets belong to
//   - options: renderer options
//
// Returns:
//   - Renderer: the running renderer
//   - error: an error if the backend or display target cannot be created
func NewRenderer(device gpu.Device, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		drawMu:        &sync.Mutex{},
		device:        device,
		backendType:   BackendTypeWGPU,
		layers:        make(map[int]Layer),
		redrawChannel: make(chan struct{}, 1),
		quitChannel:   make(chan struct{}),
		displayWidth:  1280,
		displayHeight: 720,
		displayFormat: common.PixelFormatRGBA8Unorm,
		logger:        log.New(io.Discard),
	}
	if device.Kind() == common.BackendKindImmediate {
		r.backendType = BackendTypeGL
	}
	for _, opt := range options {
		opt(r)
	}

	if r.backend == nil {
		backend, err := r.newBackend()
		if err != nil {
			return nil, err
		}
		r.backend = backend
	}

	display, err := r.createDisplay(r.displayWidth, r.displayHeight)
	if err != nil {
		return nil, err
	}
	r.display = display
	r.output = display

	r.wg.Add(1)
	go r.handleRender()

	r.logger.Debug("renderer started", "backend", r.backend.Type(), "display", fmt.Sprintf("%dx%d", r.displayWidth, r.displayHeight))
	return r, nil
}

func (r *renderer) newBackend() (RendererBackend, error) {
	switch r.backendType {
	case BackendTypeWGPU:
		dev, ok := r.device.(gpu.WGPUDevice)
		if !ok {
			return nil, fmt.Errorf("wgpu renderer backend needs a webgpu device, got %s", r.device.Name())
		}
		return newWGPURendererBackend(dev), nil
	case BackendTypeGL:
		dev, ok := r.device.(gpu.GLDevice)
		if !ok {
			return nil, fmt.Errorf("gl renderer backend needs an opengl device, got %s", r.device.Name())
		}
		return newGLRendererBackend(dev, r.present), nil
	case BackendTypeHost:
		return newHostRendererBackend(), nil
	default:
		return nil, fmt.Errorf("unknown renderer backend type %d", r.backendType)
	}
}

func (r *renderer) createDisplay(width, height int) (gpu.RenderTarget, error) {
	display, err := r.device.CreateRenderTarget(gpu.RenderTargetDescriptor{
		Label:  "Display Target",
		Width:  width,
		Height: height,
		Format: r.displayFormat,
		Depth:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("create display target: %w", err)
	}
	return display, nil
}

func (r *renderer) OutputTarget() gpu.RenderTarget {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.output
}

func (r *renderer) SetOutputTarget(target gpu.RenderTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if target == nil {
		target = r.display
	}
	r.output = target
}

func (r *renderer) DisplayTarget() gpu.RenderTarget {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.display
}

func (r *renderer) Redraw() {
	select {
	case r.redrawChannel <- struct{}{}:
	default:
	}
}

func (r *renderer) OnFrameDrawn(callback func(err error)) {
	r.mu.Lock()
	select {
	case <-r.quitChannel:
		r.mu.Unlock()
		callback(ErrClosed)
		return
	default:
	}
	r.drawn = append(r.drawn, callback)
	r.mu.Unlock()
}

func (r *renderer) AddLayer(key int, l Layer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layers[key] = l
}

func (r *renderer) RemoveLayer(key int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.layers, key)
}

func (r *renderer) Layers() map[int]Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make(map[int]Layer, len(r.layers))
	for k, v := range r.layers {
		cp[k] = v
	}
	return cp
}

func (r *renderer) Resize(width, height int) error {
	r.drawMu.Lock()
	defer r.drawMu.Unlock()
	return r.resizeDisplay(width, height)
}

func (r *renderer) RequestResize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.mu.Lock()
	r.pendingWidth = width
	r.pendingHeight = height
	r.mu.Unlock()
	r.Redraw()
}

// resizeDisplay swaps in a new display target. The caller holds drawMu.
func (r *renderer) resizeDisplay(width, height int) error {
	display, err := r.createDisplay(width, height)
	if err != nil {
		return err
	}
	r.mu.Lock()
	old := r.display
	r.display = display
	if r.output == old {
		r.output = display
	}
	r.mu.Unlock()
	old.Release()
	return nil
}

func (r *renderer) FrameCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameCount
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backend.Type()
}

func (r *renderer) Close() error {
	r.quitOnce.Do(func() {
		r.mu.Lock()
		close(r.quitChannel)
		r.mu.Unlock()
		r.wg.Wait()

		r.mu.Lock()
		pending := r.drawn
		r.drawn = nil
		display := r.display
		r.mu.Unlock()
		for _, cb := range pending {
			cb(ErrClosed)
		}
		display.Release()
	})
	return nil
}

// handleRender serves redraw requests, plus a fixed-rate redraw when a frame limit is configured.
func (r *renderer) handleRender() {
	defer r.wg.Done()

	var tick <-chan time.Time
	if r.renderFrameLimit > 0 {
		ticker := time.NewTicker(r.renderFrameLimit)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-r.quitChannel:
			return
		case <-r.redrawChannel:
		case <-tick:
		}
		r.drawFrame()
	}
}

// drawFrame applies any queued resize, renders every layer into the current output target and then fires the
// drawn callbacks.
func (r *renderer) drawFrame() {
	r.drawMu.Lock()
	defer r.drawMu.Unlock()

	r.mu.Lock()
	width, height := r.pendingWidth, r.pendingHeight
	r.pendingWidth, r.pendingHeight = 0, 0
	r.mu.Unlock()
	if width > 0 && height > 0 {
		if err := r.resizeDisplay(width, height); err != nil {
			r.logger.Warn("display resize failed", "width", width, "height", height, "err", err)
		}
	}

	r.mu.Lock()
	r.frameCount++
	index := r.frameCount
	target := r.output
	display := r.display
	callbacks := r.drawn
	r.drawn = nil
	keys := make([]int, 0, len(r.layers))
	for k := range r.layers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	layers := make([]Layer, 0, len(keys))
	for _, k := range keys {
		layers = append(layers, r.layers[k])
	}
	r.mu.Unlock()

	err := r.renderLayers(target, index, keys, layers)
	if err != nil {
		r.logger.Warn("redraw failed", "frame", index, "target", target.Label(), "err", err)
	} else if target == display {
		if perr := r.backend.Present(target); perr != nil {
			r.logger.Warn("present failed", "frame", index, "err", perr)
		}
	}

	if r.profiler != nil {
		r.profiler.Tick()
	}
	for _, cb := range callbacks {
		cb(err)
	}
}

func (r *renderer) renderLayers(target gpu.RenderTarget, index uint64, keys []int, layers []Layer) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("render goroutine recovered from panic: %v", rec)
		}
	}()

	frame, err := r.backend.BeginFrame(target, index)
	if err != nil {
		return fmt.Errorf("begin frame %d: %w", index, err)
	}
	for i, l := range layers {
		if err := l.Draw(frame); err != nil {
			if endErr := r.backend.EndFrame(frame); endErr != nil {
				r.logger.Warn("end frame after layer failure", "frame", index, "err", endErr)
			}
			return fmt.Errorf("layer %d: %w", keys[i], err)
		}
	}
	if err := r.backend.EndFrame(frame); err != nil {
		return fmt.Errorf("end frame %d: %w", index, err)
	}
	return nil
}
