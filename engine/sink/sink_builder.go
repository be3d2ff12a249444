package sink

import (
	"time"

	"github.com/charmbracelet/log"
)

// FileSinkBuilderOption is a functional option for configuring a file sink.
type FileSinkBuilderOption func(*fileSink)

// WithFilePattern sets the file name pattern; it must contain one integer verb for the frame number.
//
// Parameters:
//   - pattern: the pattern, e.g. shot_%05d.exr
//
// Returns:
//   - FileSinkBuilderOption: option function to apply
func WithFilePattern(pattern string) FileSinkBuilderOption {
	return func(s *fileSink) {
		if pattern != "" {
			s.pattern = pattern
		}
	}
}

// WithFileLogger sets the logger used by a file sink.
func WithFileLogger(logger *log.Logger) FileSinkBuilderOption {
	return func(s *fileSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// MinIOSinkBuilderOption is a functional option for configuring an object sink.
type MinIOSinkBuilderOption func(*minioSink)

// WithPrefix sets the key prefix objects are stored under. Defaults to "exports".
//
// Parameters:
//   - prefix: the key prefix
//
// Returns:
//   - MinIOSinkBuilderOption: option function to apply
func WithPrefix(prefix string) MinIOSinkBuilderOption {
	return func(s *minioSink) {
		s.prefix = prefix
	}
}

// WithRunID overrides the generated run ID.
//
// Parameters:
//   - id: the run ID used as the second key segment
//
// Returns:
//   - MinIOSinkBuilderOption: option function to apply
func WithRunID(id string) MinIOSinkBuilderOption {
	return func(s *minioSink) {
		if id != "" {
			s.runID = id
		}
	}
}

// WithRegion sets the region used when the bucket has to be created.
func WithRegion(region string) MinIOSinkBuilderOption {
	return func(s *minioSink) {
		if region != "" {
			s.region = region
		}
	}
}

// WithObjectPattern sets the object name pattern.
func WithObjectPattern(pattern string) MinIOSinkBuilderOption {
	return func(s *minioSink) {
		if pattern != "" {
			s.pattern = pattern
		}
	}
}

// WithPutTimeout bounds every upload. Defaults to 15 seconds.
func WithPutTimeout(timeout time.Duration) MinIOSinkBuilderOption {
	return func(s *minioSink) {
		if timeout > 0 {
			s.putTimeout = timeout
		}
	}
}

// WithMinIOLogger sets the logger used by an object sink.
func WithMinIOLogger(logger *log.Logger) MinIOSinkBuilderOption {
	return func(s *minioSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// PreviewSinkBuilderOption is a functional option for configuring a preview sink.
type PreviewSinkBuilderOption func(*previewSink)

// WithPreviewWidth sets the maximum thumbnail width; narrower frames keep their size. Defaults to 256.
//
// Parameters:
//   - width: the maximum width in pixels
//
// Returns:
//   - PreviewSinkBuilderOption: option function to apply
func WithPreviewWidth(width int) PreviewSinkBuilderOption {
	return func(s *previewSink) {
		if width > 0 {
			s.width = width
		}
	}
}

// WithPreviewPattern names thumbnails after an export pattern, with the extension replaced by .png.
//
// Parameters:
//   - pattern: the export pattern, e.g. frame_%04d.exr
//
// Returns:
//   - PreviewSinkBuilderOption: option function to apply
func WithPreviewPattern(pattern string) PreviewSinkBuilderOption {
	return func(s *previewSink) {
		if pattern != "" {
			s.pattern = previewPattern(pattern)
		}
	}
}

// WithPreviewLogger sets the logger used by a preview sink.
func WithPreviewLogger(logger *log.Logger) PreviewSinkBuilderOption {
	return func(s *previewSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}
