package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns the worker count for a task with the given CPU multiplier,
// capped at limit (0 = uncapped). GOMAXPROCS reflects container CPU limits
// on Go 1.19+, so the result respects cgroup quotas.
//
// The THUMBNAIL_WORKERS environment variable overrides the computed count
// (still subject to limit).
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("THUMBNAIL_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return capped(count, limit)
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	return capped(workers, limit)
}

func capped(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for mixed decode/encode + disk tasks (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}
