package readback

import (
	"time"

	"github.com/charmbracelet/log"
)

// ReadbackBuilderOption is a functional option for configuring a Service.
// Use the With* functions to create options.
type ReadbackBuilderOption func(*service)

// WithPollInterval sets how long the mapped backend yields between device polls while waiting for a mapping.
//
// Parameters:
//   - interval: the pause between polls; values <= 0 keep the default of one millisecond
//
// Returns:
//   - ReadbackBuilderOption: option function to apply
func WithPollInterval(interval time.Duration) ReadbackBuilderOption {
	return func(s *service) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// WithLogger sets the logger used for per-read debug messages.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - ReadbackBuilderOption: option function to apply
func WithLogger(logger *log.Logger) ReadbackBuilderOption {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
