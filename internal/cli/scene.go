package cli

import (
	"context"
	"sync"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/renderer"
)

// calibrationScene draws a mid-grey background, a row of over-range HDR swatches and a square
// that moves one step per frame so frame order is visible in the output.
type calibrationScene struct {
	mu    *sync.Mutex
	frame int
}

func newCalibrationScene() *calibrationScene {
	return &calibrationScene{mu: &sync.Mutex{}}
}

// swatches are linear intensities; values above 1 only survive in float targets.
var swatches = []float32{0.5, 1, 2, 4, 8, 16}

// Update advances the scene to frame.
func (s *calibrationScene) Update(ctx context.Context, frame int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
	return nil
}

// layers returns the scene's layers keyed by draw order.
func (s *calibrationScene) layers() map[int]renderer.Layer {
	return map[int]renderer.Layer{
		0: renderer.ClearLayer{Color: [4]float32{0.18, 0.18, 0.18, 1}},
		1: renderer.FuncLayer(s.drawSwatches),
		2: renderer.FuncLayer(s.drawMarker),
	}
}

func (s *calibrationScene) drawSwatches(f renderer.Frame) error {
	t := f.Target()
	w, h := t.Width()/len(swatches), t.Height()/4
	if w == 0 || h == 0 {
		return nil
	}
	for i, v := range swatches {
		region := common.Region{X: i * w, Y: 0, Width: w, Height: h}
		if err := f.FillRect(region, [4]float32{v, v, v, 1}); err != nil {
			return err
		}
	}
	return nil
}

func (s *calibrationScene) drawMarker(f renderer.Frame) error {
	s.mu.Lock()
	frame := s.frame
	s.mu.Unlock()

	t := f.Target()
	size := t.Height() / 8
	if size == 0 {
		return nil
	}
	span := t.Width() - size
	if span <= 0 {
		return nil
	}
	x := (frame * size) % span
	if x < 0 {
		x += span
	}
	y := t.Height() / 2
	if y+size > t.Height() {
		y = t.Height() - size
	}
	return f.FillRect(common.Region{X: x, Y: y, Width: size, Height: size}, [4]float32{1, 0.25, 0, 1})
}
