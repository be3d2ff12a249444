package profiler

import (
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Profiler tracks frame throughput and memory statistics for long export runs.
// Outputs stats to its logger at a configurable interval. Safe for concurrent use.
type Profiler struct {
	mu             *sync.Mutex
	name           string
	logger         *log.Logger
	frameCount     int
	byteCount      int64
	totalFrames    int
	totalBytes     int64
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second; the default logger discards output.
//
// Parameters:
//   - options: profiler options
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		name:           "profiler",
		logger:         log.New(io.Discard),
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// AddBytes records n bytes of encoded output for the throughput figure of the next report.
//
// Parameters:
//   - n: the number of bytes produced
func (p *Profiler) AddBytes(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byteCount += int64(n)
	p.totalBytes += int64(n)
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: frames/s, output MB/s, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	p.totalFrames++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()
	outMB := float64(p.byteCount) / 1024 / 1024 / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	// Alloc: live heap. TotalAlloc: cumulative, tracks churn. Sys: process footprint.
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses.
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.logger.Info(p.name,
		"fps", round2(fps),
		"out_mb_s", round2(outMB),
		"heap_mb", round2(allocMB),
		"alloc_mb_s", round2(allocRateMB),
		"gc", gcCount,
		"gc_last_us", lastPauseUs,
		"gc_max_us", maxPauseUs,
		"sys_mb", round2(sysMB),
	)

	p.frameCount = 0
	p.byteCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Totals returns the number of frames and bytes recorded since the profiler was created.
//
// Returns:
//   - int: total frames ticked
//   - int64: total bytes added
func (p *Profiler) Totals() (int, int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalFrames, p.totalBytes
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
