package profiler

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/logger"
)

const mb = 1 << 20

// Report is the summary of one profiling interval.
type Report struct {
	FPS float64

	// HeapMB is the live heap, SysMB the memory obtained from the OS.
	HeapMB float64
	SysMB  float64

	// AllocRateMB is the allocation churn in MB per second over the interval.
	AllocRateMB float64

	GCCount     uint32
	GCLastPause time.Duration
	GCMaxPause  time.Duration

	// Phases holds the average time per frame of each recorded phase, in first-recorded order.
	Phases []Phase
}

// Phase is the per-frame average of one named phase.
type Phase struct {
	Name    string
	Average time.Duration
}

func (r Report) attrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.Float64("fps", r.FPS),
		slog.Float64("heap_mb", r.HeapMB),
		slog.Float64("alloc_rate_mb_s", r.AllocRateMB),
		slog.Any("gc", r.GCCount),
		slog.Duration("gc_last", r.GCLastPause),
		slog.Duration("gc_max", r.GCMaxPause),
		slog.Float64("sys_mb", r.SysMB),
	}
	for _, ph := range r.Phases {
		attrs = append(attrs, slog.Duration(ph.Name+"_avg", ph.Average))
	}
	return attrs
}

// Profiler accumulates frame counts and phase timings and reports them through the package
// logger once per interval. It is not safe for concurrent use; the render loop owns it.
type Profiler struct {
	interval   time.Duration
	start      time.Time
	frames     int
	phases     map[string]time.Duration
	phaseOrder []string

	mem         runtime.MemStats
	lastGC      uint32
	lastAlloced uint64
}

// NewProfiler creates a Profiler reporting once per second.
func NewProfiler() *Profiler {
	return &Profiler{
		interval: time.Second,
		start:    time.Now(),
		phases:   make(map[string]time.Duration),
	}
}

// SetInterval changes how often Tick reports. Non-positive values are ignored.
func (p *Profiler) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

// Record adds the duration of one phase of the current frame.
//
// Parameters:
//   - phase: the phase name, e.g. "inputs" or "frame"
//   - d: the time spent in the phase
func (p *Profiler) Record(phase string, d time.Duration) {
	if _, ok := p.phases[phase]; !ok {
		p.phaseOrder = append(p.phaseOrder, phase)
	}
	p.phases[phase] += d
}

// Average returns the mean duration per frame of a phase in the current interval.
//
// Parameters:
//   - phase: the phase name
//
// Returns:
//   - time.Duration: the average, zero before the first frame of the interval
func (p *Profiler) Average(phase string) time.Duration {
	if p.frames == 0 {
		return 0
	}
	return p.phases[phase] / time.Duration(p.frames)
}

// Tick counts one frame. Once the interval has elapsed it logs a Report and starts a new
// interval.
//
// Returns:
//   - Report: the report of the finished interval
//   - bool: true if an interval finished on this tick
func (p *Profiler) Tick() (Report, bool) {
	p.frames++
	now := time.Now()
	elapsed := now.Sub(p.start)
	if elapsed < p.interval {
		return Report{}, false
	}

	r := p.report(elapsed)
	logger.Logger().LogAttrs(context.Background(), slog.LevelInfo, "profiler", r.attrs()...)

	p.frames = 0
	p.start = now
	for phase := range p.phases {
		p.phases[phase] = 0
	}
	return r, true
}

func (p *Profiler) report(elapsed time.Duration) Report {
	runtime.ReadMemStats(&p.mem)
	r := Report{
		FPS:         float64(p.frames) / elapsed.Seconds(),
		HeapMB:      float64(p.mem.Alloc) / mb,
		SysMB:       float64(p.mem.Sys) / mb,
		AllocRateMB: float64(p.mem.TotalAlloc-p.lastAlloced) / mb / elapsed.Seconds(),
		GCCount:     p.mem.NumGC,
	}
	r.GCLastPause, r.GCMaxPause = p.gcPauses()
	for _, phase := range p.phaseOrder {
		r.Phases = append(r.Phases, Phase{Name: phase, Average: p.Average(phase)})
	}
	p.lastGC = p.mem.NumGC
	p.lastAlloced = p.mem.TotalAlloc
	return r
}

// gcPauses returns the latest pause and the longest pause since the previous report.
// PauseNs is a ring of the last 256 pauses.
func (p *Profiler) gcPauses() (last, longest time.Duration) {
	n := p.mem.NumGC
	if n == 0 {
		return 0, 0
	}
	pause := func(i uint32) time.Duration {
		return time.Duration(p.mem.PauseNs[i%uint32(len(p.mem.PauseNs))])
	}
	from := max(p.lastGC, n-min(n, uint32(len(p.mem.PauseNs))))
	for i := from; i < n; i++ {
		longest = max(longest, pause(i))
	}
	return pause(n - 1), longest
}
