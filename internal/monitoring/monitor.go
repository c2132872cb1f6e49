// Package monitoring tracks frame and render timings for the HUD readout.
// Counters are atomics so the ebiten update loop and the scheduler's event
// consumers can report without contending on a lock.
package monitoring

import (
	"sync"
	"sync/atomic"
	"time"
)

// Monitor collects performance metrics for the viewer.
type Monitor struct {
	// Frame metrics (the ebiten loop)
	frameCount atomic.Uint64
	frameTime  atomic.Uint64 // nanoseconds, last frame

	// Render metrics (the scheduler)
	blocksComposited atomic.Uint64
	rendersFinished  atomic.Uint64

	mutex          sync.RWMutex
	avgFrameTime   float64 // nanoseconds
	lastRenderTime time.Duration
	startTime      time.Time
}

// NewMonitor creates a monitor with its uptime clock started.
func NewMonitor() *Monitor {
	return &Monitor{startTime: time.Now()}
}

// FrameTimer measures one ebiten update/draw cycle.
type FrameTimer struct {
	monitor   *Monitor
	startTime time.Time
}

// StartFrame begins frame timing.
func (m *Monitor) StartFrame() *FrameTimer {
	return &FrameTimer{monitor: m, startTime: time.Now()}
}

// EndFrame completes frame timing and folds the sample into the running
// average.
func (ft *FrameTimer) EndFrame() {
	frameTime := time.Since(ft.startTime)
	ft.monitor.frameTime.Store(uint64(frameTime.Nanoseconds()))
	count := ft.monitor.frameCount.Add(1)

	ft.monitor.mutex.Lock()
	ft.monitor.avgFrameTime += (float64(frameTime.Nanoseconds()) - ft.monitor.avgFrameTime) / float64(count)
	ft.monitor.mutex.Unlock()
}

// BlockComposited records one block landing in the frame buffer.
func (m *Monitor) BlockComposited() {
	m.blocksComposited.Add(1)
}

// RenderFinished records a completed frame and its wall-clock duration.
func (m *Monitor) RenderFinished(d time.Duration) {
	m.rendersFinished.Add(1)
	m.mutex.Lock()
	m.lastRenderTime = d
	m.mutex.Unlock()
}

// Stats is a point-in-time snapshot for display.
type Stats struct {
	FrameCount       uint64
	AvgFrameMs       float64
	BlocksComposited uint64
	RendersFinished  uint64
	LastRenderTime   time.Duration
	Uptime           time.Duration
}

// Snapshot returns the current metrics.
func (m *Monitor) Snapshot() Stats {
	m.mutex.RLock()
	avg := m.avgFrameTime
	last := m.lastRenderTime
	m.mutex.RUnlock()

	return Stats{
		FrameCount:       m.frameCount.Load(),
		AvgFrameMs:       avg / 1e6,
		BlocksComposited: m.blocksComposited.Load(),
		RendersFinished:  m.rendersFinished.Load(),
		LastRenderTime:   last,
		Uptime:           time.Since(m.startTime),
	}
}
