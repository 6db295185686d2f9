package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"asset-browser/internal/logging"
	"asset-browser/internal/scan"
)

// scanRequest is the POST /api/scan body. An empty path falls back to the
// configured asset root, then the last scanned folder.
type scanRequest struct {
	Path      string `json:"path"`
	Recursive *bool  `json:"recursive"`
}

// StartScan serves POST /api/scan: kicks off a background scan. Responds
// 409 when a scan is already running.
func (h *Handlers) StartScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	}

	path := req.Path
	if path == "" {
		path = h.assetRoot
	}
	if path == "" {
		last, err := h.catalog.GetLastRootFolder(r.Context())
		if err != nil || last == "" {
			writeJSONError(w, "no scan path configured", http.StatusBadRequest)
			return
		}
		path = last
	}

	if h.scanner.IsRunning() {
		writeJSONError(w, "scan already in progress", http.StatusConflict)
		return
	}

	recursive := true
	if req.Recursive != nil {
		recursive = *req.Recursive
	}

	go func() {
		result := h.scanner.ScanFolder(context.Background(), path, scan.ScanOptions{Recursive: recursive})
		if len(result.Errors) > 0 {
			logging.Warn("Background scan of %s finished with %d errors", path, len(result.Errors))
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "started", "path": path})
}

// StopScan serves POST /api/scan/stop: cooperative cancellation.
func (h *Handlers) StopScan(w http.ResponseWriter, r *http.Request) {
	if !h.scanner.IsRunning() {
		writeJSONError(w, "no scan running", http.StatusConflict)
		return
	}
	h.scanner.Stop()
	writeJSONStatus(w, "stopping")
}

// ScanStatus serves GET /api/scan/status.
func (h *Handlers) ScanStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.scanner.Status())
}

// Sweep serves POST /api/sweep: removes records whose files vanished.
func (h *Handlers) Sweep(w http.ResponseWriter, r *http.Request) {
	removed, err := h.catalog.SweepMissing(r.Context())
	if err != nil {
		writeJSONError(w, "sweep failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int64{"removed": removed})
}

// CacheSize serves GET /api/cache/size.
func (h *Handlers) CacheSize(w http.ResponseWriter, r *http.Request) {
	bytes, human, err := h.cache.CacheSize()
	if err != nil {
		writeJSONError(w, "cache size failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"bytes": bytes, "size": human})
}

// ClearCache serves POST /api/cache/clear.
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.cache.ClearCache()
	if err != nil {
		writeJSONError(w, "cache clear failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"deleted": deleted})
}
