package handlers

import (
	"net/http"
	"runtime"
	"time"

	"asset-browser/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

var serverStart = time.Now()

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	Scanning     bool   `json:"scanning"`
	ScanState    string `json:"scanState"`
	LastScan     string `json:"lastScan,omitempty"`
	TotalAssets  int    `json:"totalAssets"`
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports overall service health. The catalog being unreachable
// degrades the status but the endpoint still answers 200; only a dead
// process fails the probe entirely.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := h.scanner.Status()

	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(serverStart).Round(time.Second).String(),
		Scanning:     h.scanner.IsRunning(),
		ScanState:    string(status.State),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if last := h.scanner.LastScanTime(); !last.IsZero() {
		response.LastScan = last.Format(time.RFC3339)
	}

	count, err := h.catalog.CountAssets(r.Context())
	if err != nil {
		response.Status = statusDegraded
	} else {
		response.TotalAssets = count
	}

	writeJSON(w, response)
}

// Liveness answers 200 whenever the process is up.
func (h *Handlers) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// Readiness answers 200 once the catalog is reachable.
func (h *Handlers) Readiness(w http.ResponseWriter, r *http.Request) {
	if _, err := h.catalog.CountAssets(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{"status": "not_ready"})
		return
	}
	writeJSONStatus(w, "ready")
}

// Version serves GET /version.
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, startup.GetBuildInfo())
}
