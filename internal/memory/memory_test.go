package memory

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	if config.HighWaterMark != 0.7 {
		t.Errorf("HighWaterMark = %v, want 0.7", config.HighWaterMark)
	}
	if config.CriticalWaterMark != 0.85 {
		t.Errorf("CriticalWaterMark = %v, want 0.85", config.CriticalWaterMark)
	}
	if config.CheckInterval != 5*time.Second {
		t.Errorf("CheckInterval = %v, want 5s", config.CheckInterval)
	}
}

func TestMonitorNoLimit(t *testing.T) {
	t.Parallel()

	m := NewMonitor(Config{MemoryLimitBytes: 0, CheckInterval: time.Second})
	// GOMEMLIMIT may be set by the environment; only assert when it isn't.
	if m.limit == 0 {
		if m.ShouldThrottle() {
			t.Error("ShouldThrottle() should be false without a limit")
		}
		if m.GetUsage() != 0 {
			t.Errorf("GetUsage() = %v, want 0 without a limit", m.GetUsage())
		}
	}
}

func TestWaitIfPausedNotPaused(t *testing.T) {
	t.Parallel()

	m := NewMonitor(Config{
		MemoryLimitBytes:  1 << 40, // effectively unreachable
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Second,
	})

	done := make(chan bool, 1)
	go func() { done <- m.WaitIfPaused() }()

	select {
	case ok := <-done:
		if !ok {
			t.Error("WaitIfPaused() = false, want true when not paused")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused() blocked while not paused")
	}
}

func TestWaitIfPausedStopped(t *testing.T) {
	t.Parallel()

	m := NewMonitor(Config{
		MemoryLimitBytes:  1 << 40,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Second,
	})
	m.mu.Lock()
	m.isPaused = true
	m.mu.Unlock()

	done := make(chan bool, 1)
	go func() { done <- m.WaitIfPaused() }()

	m.Stop()

	select {
	case ok := <-done:
		if ok {
			t.Error("WaitIfPaused() = true, want false after Stop")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused() did not return after Stop")
	}
}
