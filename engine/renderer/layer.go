package renderer

import (
	"github.com/Carmen-Shannon/oxy-capture/common"
)

// Layer draws part of a frame. Layers are drawn in ascending key order on every redraw.
type Layer interface {
	// Draw encodes the layer's drawing into frame.
	//
	// Parameters:
	//   - frame: the frame being drawn
	//
	// Returns:
	//   - error: an error aborts the redraw and is delivered to the drawn callbacks
	Draw(frame Frame) error
}

// FuncLayer adapts a function to the Layer interface.
type FuncLayer func(frame Frame) error

// Draw calls f(frame).
func (f FuncLayer) Draw(frame Frame) error {
	return f(frame)
}

// ClearLayer clears the whole target to a constant linear color.
type ClearLayer struct {
	Color [4]float32
}

// Draw clears the frame.
func (l ClearLayer) Draw(frame Frame) error {
	return frame.Clear(l.Color)
}

// RectLayer fills a fixed rectangle with a constant linear color.
type RectLayer struct {
	Region common.Region
	Color  [4]float32
}

// Draw fills the rectangle.
func (l RectLayer) Draw(frame Frame) error {
	return frame.FillRect(l.Region, l.Color)
}
