package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"asset-browser/internal/logging"
)

// DefaultMemoryRatio is the share of the container memory limit given to
// the Go heap. The remainder covers decode buffers and goroutine stacks,
// which GOMEMLIMIT does not account for.
const DefaultMemoryRatio = 0.85

// ConfigResult reports what ConfigureFromEnv decided.
type ConfigResult struct {
	// Configured is true when a GOMEMLIMIT was put in place.
	Configured bool

	// Source is "GOMEMLIMIT", "MEMORY_LIMIT", or "none".
	Source string

	// ContainerLimit is the container memory limit in bytes, 0 if unknown.
	ContainerLimit int64

	// GoMemLimit is the effective GOMEMLIMIT in bytes, 0 if unset.
	GoMemLimit int64

	// Ratio is the heap share applied to the container limit.
	Ratio float64
}

// ConfigureFromEnv derives GOMEMLIMIT from the container memory limit.
// Call early in main, before significant allocations.
//
// An explicit GOMEMLIMIT wins; otherwise MEMORY_LIMIT (bytes, typically
// injected via the Kubernetes Downward API) times MEMORY_RATIO is applied.
func ConfigureFromEnv() ConfigResult {
	if value := os.Getenv("GOMEMLIMIT"); value != "" {
		result := ConfigResult{Source: "GOMEMLIMIT"}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", value)
		return result
	}

	containerLimit, ok := envBytes("MEMORY_LIMIT")
	if !ok {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT left unconfigured")
		return ConfigResult{Source: "none"}
	}

	ratio := envRatio("MEMORY_RATIO", DefaultMemoryRatio)
	goLimit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(goLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		formatBytes(goLimit), ratio*100, formatBytes(containerLimit))

	return ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: containerLimit,
		GoMemLimit:     goLimit,
		Ratio:          ratio,
	}
}

// envBytes reads an integer byte count from the environment.
func envBytes(key string) (int64, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Failed to parse %s %q: %v", key, value, err)
		return 0, false
	}
	return parsed, true
}

// envRatio reads a ratio in (0, 1] from the environment, falling back on
// parse failures or out-of-range values.
func envRatio(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 || parsed > 1.0 {
		logging.Warn("Invalid %s %q, using default %.2f", key, value, fallback)
		return fallback
	}
	return parsed
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
