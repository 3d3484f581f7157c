package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
)

// StatsReporter is implemented by devices that count executed work, such as the headless
// device.
type StatsReporter interface {
	Stats() gpu.Stats
}

// Sample is one profiling interval.
type Sample struct {
	FPS          float64
	HeapMB       float64
	AllocRateMBs float64
	SysMB        float64
	GCCount      uint32
	LastPauseUs  uint64
	MaxPauseUs   uint64

	// Draws and Dispatches are per frame averages over the interval. Zero for devices
	// that do not report statistics.
	Draws      float64
	Dispatches float64
}

// Profiler tracks frame rate, memory and GPU work statistics.
// Logs a Sample at a fixed interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	lastStats      gpu.Stats

	now func() time.Time
}

// NewProfiler creates a Profiler with a one second interval.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		now:            time.Now,
	}
}

// Tick should be called once per frame. Logs a Sample when the interval has elapsed.
//
// Parameters:
//   - device: the frame's device; its statistics are included when it reports any
//
// Returns:
//   - *Sample: the logged sample, or nil when the interval has not elapsed
func (p *Profiler) Tick(device gpu.Device) *Sample {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return nil
	}

	s := &Sample{FPS: float64(p.frameCount) / elapsed.Seconds()}

	runtime.ReadMemStats(&p.memStats)
	s.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	s.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	s.AllocRateMBs = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	s.GCCount = p.memStats.NumGC
	if s.GCCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses.
		s.LastPauseUs = p.memStats.PauseNs[(s.GCCount-1)%256] / 1000
		start := p.lastGCCount
		if s.GCCount-start > 256 {
			start = s.GCCount - 256
		}
		for i := start; i < s.GCCount; i++ {
			s.MaxPauseUs = max(s.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	if rep, ok := device.(StatsReporter); ok {
		stats := rep.Stats()
		frames := float64(p.frameCount)
		s.Draws = float64(stats.Draws-p.lastStats.Draws) / frames
		s.Dispatches = float64(stats.Dispatches-p.lastStats.Dispatches) / frames
		p.lastStats = stats
	}

	logger.Info("profiler",
		"fps", s.FPS,
		"heap_mb", s.HeapMB,
		"alloc_mb_s", s.AllocRateMBs,
		"gc", s.GCCount,
		"gc_last_us", s.LastPauseUs,
		"gc_max_us", s.MaxPauseUs,
		"sys_mb", s.SysMB,
		"draws", s.Draws,
		"dispatches", s.Dispatches,
	)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return s
}
