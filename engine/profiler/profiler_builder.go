package profiler

import (
	"time"

	"github.com/charmbracelet/log"
)

// ProfilerBuilderOption is a functional option for configuring a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithLogger sets the logger statistics are written to.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithLogger(logger *log.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithInterval sets how often statistics are logged.
//
// Parameters:
//   - interval: the reporting interval; values <= 0 keep the default of one second
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithInterval(interval time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if interval > 0 {
			p.updateInterval = interval
		}
	}
}

// WithName sets the message the statistics are logged under.
//
// Parameters:
//   - name: the log message
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithName(name string) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.name = name
	}
}
