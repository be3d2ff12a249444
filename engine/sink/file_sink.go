package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-capture/engine/sequencer"
	"github.com/charmbracelet/log"
)

// DefaultPattern names exported frames when no pattern is configured.
const DefaultPattern = "frame_%04d.exr"

// fileSink writes each frame to its own file in a directory.
type fileSink struct {
	dir     string
	pattern string
	logger  *log.Logger
}

var _ Sink = &fileSink{}

// NewFileSink creates a sink writing frames to dir, creating the directory if needed.
// Files are written to a temporary name and renamed into place, so a reader never sees a partial frame.
//
// Parameters:
//   - dir: the output directory
//   - options: file sink options
//
// Returns:
//   - Sink: the file sink
//   - error: an error if the directory cannot be created or the pattern has no frame verb
func NewFileSink(dir string, options ...FileSinkBuilderOption) (Sink, error) {
	s := &fileSink{
		dir:     dir,
		pattern: DefaultPattern,
		logger:  log.New(io.Discard),
	}
	for _, opt := range options {
		opt(s)
	}
	if !strings.Contains(s.pattern, "%") {
		return nil, fmt.Errorf("file pattern %q has no frame number verb", s.pattern)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return s, nil
}

func (s *fileSink) Write(ctx context.Context, frame *sequencer.FrameResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.dir, frameName(s.pattern, frame.Frame))
	if err := writeFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(frame.EXR)
		return err
	}); err != nil {
		return fmt.Errorf("write frame %d: %w", frame.Frame, err)
	}
	s.logger.Debug("frame written", "path", path, "bytes", len(frame.EXR))
	return nil
}

func (s *fileSink) Close() error {
	return nil
}

// writeFileAtomic writes through a temporary file in the destination directory and renames it over path.
func writeFileAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
