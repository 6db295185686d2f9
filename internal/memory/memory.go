package memory

import (
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"asset-browser/internal/logging"
	"asset-browser/internal/metrics"
)

// Config holds the watermark thresholds for the monitor.
type Config struct {
	// MemoryLimitBytes is the soft limit; 0 falls back to GOMEMLIMIT.
	MemoryLimitBytes int64

	// HighWaterMark is the usage ratio at which throttling starts.
	HighWaterMark float64

	// CriticalWaterMark is the usage ratio at which work pauses entirely.
	CriticalWaterMark float64

	// CheckInterval is how often the heap is sampled.
	CheckInterval time.Duration
}

// DefaultConfig returns the watermarks used by the thumbnail warmer. Image
// decode buffers live outside the Go heap accounting, so the critical mark
// leaves headroom below the hard limit.
func DefaultConfig() Config {
	return Config{
		MemoryLimitBytes:  0,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage against a soft limit and exposes pause/resume
// backpressure to bulk thumbnail work.
type Monitor struct {
	config Config
	limit  int64

	stopChan chan struct{}

	mu         sync.RWMutex
	allocBytes uint64
	isPaused   bool
	// resumeChan is closed (and replaced) when usage drops back below the
	// high water mark; waiters block on the instance they captured.
	resumeChan chan struct{}
}

// NewMonitor creates a monitor. With no explicit limit it adopts GOMEMLIMIT;
// with neither, backpressure is disabled and every Wait returns immediately.
func NewMonitor(config Config) *Monitor {
	limit := config.MemoryLimitBytes
	if limit == 0 {
		if goLimit := debug.SetMemoryLimit(-1); goLimit > 0 && goLimit < 1<<62 {
			limit = goLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %d bytes (%.1f MB)",
				limit, float64(limit)/(1024*1024))
		}
	}
	if limit == 0 {
		logging.Warn("Memory monitor: no memory limit configured, backpressure disabled")
	}

	return &Monitor{
		config:     config,
		limit:      limit,
		stopChan:   make(chan struct{}),
		resumeChan: make(chan struct{}),
	}
}

// Start launches the sampling loop. A monitor without a limit stays inert.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.run()
}

// Stop ends sampling and releases any goroutine blocked in WaitIfPaused.
func (m *Monitor) Stop() {
	close(m.stopChan)
}

func (m *Monitor) run() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sample()
		case <-m.stopChan:
			return
		}
	}
}

// sample reads the heap and flips the paused flag across the watermarks.
// The gap between critical and high gives hysteresis so the state doesn't
// flap at the boundary.
func (m *Monitor) sample() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.allocBytes = stats.Alloc
	usage := float64(stats.Alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case usage >= m.config.CriticalWaterMark && !m.isPaused:
		logging.Warn("Memory critical (%.1f%% of limit), pausing thumbnail work", usage*100)
		m.isPaused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case usage < m.config.HighWaterMark && m.isPaused:
		logging.Info("Memory recovered (%.1f%% of limit), resuming", usage*100)
		m.isPaused = false
		metrics.MemoryPaused.Set(0)
		close(m.resumeChan)
		m.resumeChan = make(chan struct{})
	}
}

// WaitIfPaused blocks while the monitor is paused. It returns true when it
// is safe to proceed and false when the monitor was stopped mid-wait.
func (m *Monitor) WaitIfPaused() bool {
	m.mu.RLock()
	if !m.isPaused {
		m.mu.RUnlock()
		return true
	}
	resume := m.resumeChan
	m.mu.RUnlock()

	select {
	case <-resume:
		return true
	case <-m.stopChan:
		return false
	}
}

// ShouldThrottle reports whether usage is above the high water mark.
func (m *Monitor) ShouldThrottle() bool {
	if m.limit == 0 {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.allocBytes) >= float64(m.limit)*m.config.HighWaterMark
}

// IsPaused reports whether work should be paused entirely.
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// GetUsage returns heap usage as a ratio of the limit, 0 without a limit.
func (m *Monitor) GetUsage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.allocBytes) / float64(m.limit)
}

// GetStats returns the last sampled allocation, the limit, and their ratio.
func (m *Monitor) GetStats() (current, limit int64, usage float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	current = math.MaxInt64
	if m.allocBytes <= math.MaxInt64 {
		current = int64(m.allocBytes)
	}
	if m.limit > 0 {
		usage = float64(m.allocBytes) / float64(m.limit)
	}
	return current, m.limit, usage
}

// ForceGC triggers an immediate collection.
func (m *Monitor) ForceGC() {
	runtime.GC()
}
