// Package sink delivers encoded export frames to their destinations.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-capture/engine/sequencer"
)

// Sink receives every frame of an export run, in frame order.
type Sink interface {
	// Write delivers one encoded frame.
	//
	// Parameters:
	//   - ctx: cancels the delivery
	//   - frame: the encoded frame
	//
	// Returns:
	//   - error: an error if the frame could not be delivered
	Write(ctx context.Context, frame *sequencer.FrameResult) error

	// Close flushes and releases the sink.
	//
	// Returns:
	//   - error: an error if buffered output could not be flushed
	Close() error
}

// multiSink writes every frame to each of its sinks in order.
type multiSink struct {
	sinks []Sink
}

var _ Sink = &multiSink{}

// Multi returns a Sink fanning frames out to sinks. Nil sinks are skipped.
// Write stops at the first failing sink; Close closes every sink and joins their errors.
//
// Parameters:
//   - sinks: the destinations
//
// Returns:
//   - Sink: the fan-out sink
func Multi(sinks ...Sink) Sink {
	m := &multiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *multiSink) Write(ctx context.Context, frame *sequencer.FrameResult) error {
	for _, s := range m.sinks {
		if err := s.Write(ctx, frame); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// frameName expands pattern with the frame number, e.g. frame_%04d.exr.
func frameName(pattern string, frame int) string {
	return fmt.Sprintf(pattern, frame)
}
