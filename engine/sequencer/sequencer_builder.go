package sequencer

import (
	"time"

	"github.com/Carmen-Shannon/oxy-capture/common"
	"github.com/Carmen-Shannon/oxy-capture/engine/exr"
	"github.com/charmbracelet/log"
)

// SequencerBuilderOption is a functional option for configuring a Sequencer.
// Use the With* functions to create options.
type SequencerBuilderOption func(*sequencer)

// WithEncodeOptions sets the options passed to the OpenEXR encoder for every frame.
//
// Parameters:
//   - options: encoder options such as exr.WithPixelType
//
// Returns:
//   - SequencerBuilderOption: option function to apply
func WithEncodeOptions(options ...exr.EncodeOption) SequencerBuilderOption {
	return func(s *sequencer) {
		s.encodeOptions = options
	}
}

// WithRenderTimeout bounds the wait for the renderer's drawn signal. Defaults to 10 seconds.
//
// Parameters:
//   - timeout: the maximum wait; values <= 0 keep the default
//
// Returns:
//   - SequencerBuilderOption: option function to apply
func WithRenderTimeout(timeout time.Duration) SequencerBuilderOption {
	return func(s *sequencer) {
		if timeout > 0 {
			s.renderTimeout = timeout
		}
	}
}

// WithRegion exports only a region of the frame target instead of the whole target.
//
// Parameters:
//   - region: the region, bottom-left origin
//
// Returns:
//   - SequencerBuilderOption: option function to apply
func WithRegion(region common.Region) SequencerBuilderOption {
	return func(s *sequencer) {
		s.region = &region
	}
}

// WithLogger sets the logger used for run progress.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - SequencerBuilderOption: option function to apply
func WithLogger(logger *log.Logger) SequencerBuilderOption {
	return func(s *sequencer) {
		if logger != nil {
			s.logger = logger
		}
	}
}
