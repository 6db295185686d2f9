package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	available := runtime.GOMAXPROCS(0)

	if got := Count(1.0, 0); got != available {
		t.Errorf("Count(1.0, 0) = %d, want %d", got, available)
	}

	if got := Count(1.0, 1); got != 1 {
		t.Errorf("Count(1.0, 1) = %d, want 1 (capped)", got)
	}

	// A tiny multiplier still yields at least one worker
	if got := Count(0.0001, 0); got != 1 {
		t.Errorf("Count(0.0001, 0) = %d, want 1", got)
	}
}

func TestCountOverride(t *testing.T) {
	t.Setenv("THUMBNAIL_WORKERS", "3")

	if got := Count(1.0, 0); got != 3 {
		t.Errorf("Count() = %d, want 3 from THUMBNAIL_WORKERS", got)
	}
	if got := Count(1.0, 2); got != 2 {
		t.Errorf("Count() = %d, want 2 (override capped by limit)", got)
	}
}

func TestCountOverrideInvalid(t *testing.T) {
	t.Setenv("THUMBNAIL_WORKERS", "not-a-number")

	available := runtime.GOMAXPROCS(0)
	if got := Count(1.0, 0); got != available {
		t.Errorf("Count() = %d, want %d (invalid override ignored)", got, available)
	}
}

func TestHelpers(t *testing.T) {
	if ForCPU(0) > ForIO(0) {
		t.Error("ForIO should be >= ForCPU")
	}
	if ForMixed(0) < ForCPU(0) {
		t.Error("ForMixed should be >= ForCPU")
	}
}
