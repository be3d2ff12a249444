// Package sequencer drives export runs: per frame it updates the scene, renders into the frame target,
// reads the pixels back, flips them to a top-left origin and encodes them as OpenEXR.
package sequencer

import (
	"context"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/exr"
	"github.com/Carmen-Shannon/oxy-capture/engine/gpu"
	"github.com/Carmen-Shannon/oxy-capture/engine/pixel"
	"github.com/Carmen-Shannon/oxy-capture/engine/target"
	"github.com/charmbracelet/log"
)

// Renderer is the renderer collaborator driven by the sequencer.
type Renderer interface {
	// OutputTarget returns the render target the next redraw draws into.
	OutputTarget() gpu.RenderTarget

	// SetOutputTarget redirects subsequent redraws to target.
	SetOutputTarget(target gpu.RenderTarget)

	// Redraw requests a redraw.
	Redraw()

	// OnFrameDrawn registers a one-shot callback invoked exactly once after the next redraw completes.
	OnFrameDrawn(callback func(err error))
}

// Hooks are the optional caller callbacks of an export run. A non-nil error from any hook aborts the run.
type Hooks struct {
	// OnFrameStart is called first for every frame.
	OnFrameStart func(frame int) error

	// OnUpdateFrame mutates the scene for frame before it is rendered. It may block; ctx is the run's context.
	OnUpdateFrame func(ctx context.Context, frame int) error

	// OnFrameComplete receives the raw pixels of frame, bottom row first, before they are flipped and encoded.
	OnFrameComplete func(frame int, raw *common.PixelBuffer) error
}

// FrameResult is one encoded frame of an export run.
type FrameResult struct {
	// Frame is the frame number.
	Frame int
	// Width is the image width in pixels.
	Width int
	// Height is the image height in pixels.
	Height int
	// EXR is the complete OpenEXR file.
	EXR []byte
	// Pixels are the linear samples handed to the encoder, top row first.
	Pixels *common.PixelBuffer
}

// Sequencer renders frames into a FrameTarget and encodes them.
// It owns the renderer's output configuration for the duration of a run; callers must not mutate it concurrently.
type Sequencer interface {
	// RenderSequence returns an iterator over the encoded frames start..end, inclusive.
	//
	// The run starts when iteration begins. If another run is active, the iterator yields a single
	// ErrConcurrency error and leaves the active run untouched. Every frame is fully encoded and handed to the
	// consumer before the next frame's update hook runs. The first failure is yielded as the final element.
	// The renderer's output is restored on every exit: completion, failure, ctx cancellation, the consumer
	// stopping early, or a panic.
	//
	// Parameters:
	//   - ctx: cancels the run; checked before each frame's render step and during suspensions
	//   - start: the first frame number
	//   - end: the last frame number
	//   - hooks: the optional per-frame callbacks
	//
	// Returns:
	//   - iter.Seq2[*FrameResult, error]: the frames, or a single terminal error
	RenderSequence(ctx context.Context, start, end int, hooks Hooks) iter.Seq2[*FrameResult, error]

	// RenderFrame renders, reads and encodes the current scene once, without run bookkeeping.
	// The renderer's output is restored before it returns.
	//
	// Parameters:
	//   - ctx: cancels the capture
	//
	// Returns:
	//   - *FrameResult: the encoded frame, numbered 0
	//   - error: the first failure
	RenderFrame(ctx context.Context) (*FrameResult, error)

	// Exporting reports whether a run is active.
	Exporting() bool
}

// sequencer is the implementation of the Sequencer interface.
type sequencer struct {
	mu        *sync.Mutex
	exporting bool

	renderer Renderer
	target   target.FrameTarget

	region        *common.Region
	encodeOptions []exr.EncodeOption
	renderTimeout time.Duration
	logger        *log.Logger
}

var _ Sequencer = &sequencer{}

// NewSequencer creates a sequencer rendering through r into t.
//
// Parameters:
//   - r: the renderer collaborator
//   - t: the frame target exports render into
//   - options: sequencer options
//
// Returns:
//   - Sequencer: the sequencer, idle
//   - error: ErrPrecondition if a collaborator is missing or the configured region leaves the target
func NewSequencer(r Renderer, t target.FrameTarget, options ...SequencerBuilderOption) (Sequencer, error) {
	if r == nil || t == nil {
		return nil, fmt.Errorf("%w: sequencer needs a renderer and a frame target", common.ErrPrecondition)
	}
	s := &sequencer{
		mu:            &sync.Mutex{},
		renderer:      r,
		target:        t,
		renderTimeout: 10 * time.Second,
		logger:        log.New(io.Discard),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.region != nil {
		if _, err := common.ResolveRegion(s.region, t.Width(), t.Height()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *sequencer) Exporting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exporting
}

func (s *sequencer) RenderSequence(ctx context.Context, start, end int, hooks Hooks) iter.Seq2[*FrameResult, error] {
	return func(yield func(*FrameResult, error) bool) {
		if err := s.begin(); err != nil {
			yield(nil, err)
			return
		}
		defer s.finish()
		if end < start {
			yield(nil, fmt.Errorf("%w: frame range %d..%d is empty", common.ErrPrecondition, start, end))
			return
		}

		release := s.acquireOutput()
		defer release()

		runStart := time.Now()
		s.logger.Info("export started", "start", start, "end", end, "target", fmt.Sprintf("%dx%d", s.target.Width(), s.target.Height()), "format", s.target.Format())
		for n := start; n <= end; n++ {
			result, err := s.frame(ctx, n, hooks)
			if err != nil {
				s.logger.Error("export aborted", "frame", n, "err", err)
				yield(nil, err)
				return
			}
			if !yield(result, nil) {
				s.logger.Info("export stopped by consumer", "frame", n)
				return
			}
		}
		s.logger.Info("export finished", "frames", end-start+1, "took", time.Since(runStart))
	}
}

func (s *sequencer) RenderFrame(ctx context.Context) (*FrameResult, error) {
	release := s.acquireOutput()
	defer release()
	return s.frame(ctx, 0, Hooks{})
}

// begin moves the sequencer from Idle to Exporting.
func (s *sequencer) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exporting {
		return common.ErrConcurrency
	}
	s.exporting = true
	return nil
}

// finish moves the sequencer back to Idle. Deferred before acquireOutput so it runs after restoration.
func (s *sequencer) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exporting = false
}

// acquireOutput saves the renderer's output target and returns the function restoring it.
func (s *sequencer) acquireOutput() (release func()) {
	saved := s.renderer.OutputTarget()
	return func() {
		s.renderer.SetOutputTarget(saved)
	}
}

// frame runs the whole pipeline for frame n. Its suspension points are the update hook, the drawn signal and
// the readback.
func (s *sequencer) frame(ctx context.Context, n int, hooks Hooks) (*FrameResult, error) {
	if hooks.OnFrameStart != nil {
		if err := hooks.OnFrameStart(n); err != nil {
			return nil, fmt.Errorf("frame %d: start hook: %w", n, err)
		}
	}
	if hooks.OnUpdateFrame != nil {
		if err := hooks.OnUpdateFrame(ctx, n); err != nil {
			return nil, fmt.Errorf("frame %d: update hook: %w", n, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("frame %d: %w", n, err)
	}
	if err := s.render(ctx); err != nil {
		return nil, fmt.Errorf("frame %d: %w", n, err)
	}

	raw, err := s.target.ReadPixels(ctx, s.region)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", n, err)
	}
	if hooks.OnFrameComplete != nil {
		if err := hooks.OnFrameComplete(n, raw); err != nil {
			return nil, fmt.Errorf("frame %d: complete hook: %w", n, err)
		}
	}

	flipped, err := pixel.FlipBuffer(raw)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", n, err)
	}
	encoded, err := exr.Encode(flipped.Float32, flipped.Width, flipped.Height, s.encodeOptions...)
	if err != nil {
		return nil, fmt.Errorf("frame %d: encode: %w", n, err)
	}

	s.logger.Debug("frame encoded", "frame", n, "bytes", len(encoded))
	return &FrameResult{
		Frame:  n,
		Width:  flipped.Width,
		Height: flipped.Height,
		EXR:    encoded,
		Pixels: flipped,
	}, nil
}

// render points the renderer at the frame target, requests a redraw and waits for the drawn signal.
func (s *sequencer) render(ctx context.Context) error {
	rt := s.target.RenderTarget()
	if rt == nil {
		return fmt.Errorf("%w: frame target is destroyed", common.ErrPrecondition)
	}
	s.renderer.SetOutputTarget(rt)

	drawn := make(chan error, 1)
	s.renderer.OnFrameDrawn(func(err error) { drawn <- err })
	s.renderer.Redraw()

	timer := time.NewTimer(s.renderTimeout)
	defer timer.Stop()
	select {
	case err := <-drawn:
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrBackend, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w after %s", common.ErrRenderTimeout, s.renderTimeout)
	}
}
