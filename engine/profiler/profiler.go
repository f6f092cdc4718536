package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-sky/engine/logger"
	"github.com/Carmen-Shannon/oxy-sky/engine/render_system"
)

// Report is the summary of one profiling interval.
type Report struct {
	Frames  int
	Elapsed time.Duration
	FPS     float64
	// Totals sums the render statistics of every frame in the interval.
	Totals render_system.FrameStats

	HeapMB      float64
	SysMB       float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
}

// Profiler tracks frame rate, render statistics and memory statistics.
// Logs a Report at a configurable interval.
type Profiler struct {
	logger         logger.Logger
	now            func() time.Time
	frameCount     int
	totals         render_system.FrameStats
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Report
}

// ProfilerBuilderOption is a functional option for configuring a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithLogger sets the logger reports are written to.
func WithLogger(l logger.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.logger = l
	}
}

// WithInterval sets how often a report is produced. Values <= 0 keep the 1 second default.
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// NewProfiler creates a new Profiler. Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		now:            time.Now,
		updateInterval: time.Second,
	}
	for _, option := range options {
		option(p)
	}
	p.logger = logger.OrNop(p.logger)
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame with that frame's render statistics.
// Logs a report when the update interval has elapsed.
//
// Parameters:
//   - stats: the render statistics of the frame
//
// Returns:
//   - bool: true if a report was produced this tick, false otherwise
func (p *Profiler) Tick(stats render_system.FrameStats) bool {
	p.frameCount++
	p.totals = p.totals.Add(stats)
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	r := Report{
		Frames:  p.frameCount,
		Elapsed: elapsed,
		FPS:     float64(p.frameCount) / elapsed.Seconds(),
		Totals:  p.totals,
		HeapMB:  float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:   float64(p.memStats.Sys) / 1024 / 1024,
		GCCount: p.memStats.NumGC,
	}
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	r.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	if gcCount := p.memStats.NumGC; gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses
		r.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		start := p.lastGCCount
		if gcCount-start > 256 {
			start = gcCount - 256
		}
		for i := start; i < gcCount; i++ {
			r.MaxPauseUs = max(r.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.logger.Infof("profiler: FPS %.2f | draws %d | uploads %d | evictions %d | skipped %d | draw errors %d | heap %.2f MB | alloc %.2f MB/s | GC %d (last %d µs, max %d µs) | sys %.2f MB",
		r.FPS, r.Totals.DrawCalls, r.Totals.Uploads, r.Totals.Evictions, r.Totals.SkippedPoints, r.Totals.DrawErrors,
		r.HeapMB, r.AllocRateMB, r.GCCount, r.LastPauseUs, r.MaxPauseUs, r.SysMB)
	if r.Totals.DrawErrors > 0 {
		p.logger.Warnf("profiler: %d draw errors in the last %s", r.Totals.DrawErrors, elapsed.Round(time.Millisecond))
	}

	p.last = r
	p.frameCount = 0
	p.totals = render_system.FrameStats{}
	p.lastTime = currentTime
	p.lastGCCount = p.memStats.NumGC
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Last returns the most recent report.
func (p *Profiler) Last() Report {
	return p.last
}
