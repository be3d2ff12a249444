package profiler

import (
	"bytes"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestTick_ReportsAfterInterval(t *testing.T) {
	var buf bytes.Buffer
	p := NewProfiler(WithLogger(log.New(&buf)), WithInterval(time.Hour), WithName("export"))

	assert.False(t, p.Tick())
	assert.Empty(t, buf.String())

	p.lastTime = time.Now().Add(-2 * time.Hour)
	p.AddBytes(1024)
	assert.True(t, p.Tick())
	assert.Contains(t, buf.String(), "export")
	assert.Contains(t, buf.String(), "fps=")

	frames, total := p.Totals()
	assert.Equal(t, 2, frames)
	assert.Equal(t, int64(1024), total)
}
