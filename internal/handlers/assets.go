package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"

	"asset-browser/internal/catalog"
)

const defaultSearchLimit = 100

// ListAssets serves GET /api/assets. With ?folder= it returns the folder's
// subtree; with ?q= it searches by file name; with neither it returns the
// newest assets (bounded by ?limit=).
func (h *Handlers) ListAssets(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("folder")
	query := r.URL.Query().Get("q")

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSONError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	var (
		assets []catalog.AssetRecord
		err    error
	)
	switch {
	case folder != "":
		assets, err = h.catalog.GetAssetsInFolder(r.Context(), folder)
	case query != "":
		assets, err = h.catalog.SearchAssets(r.Context(), query, limit)
	default:
		assets, err = h.catalog.GetAllAssets(r.Context(), limit, 0)
	}
	if err != nil {
		writeJSONError(w, "asset query failed", http.StatusInternalServerError)
		return
	}
	if assets == nil {
		assets = []catalog.AssetRecord{}
	}
	writeJSON(w, assets)
}

// GetAsset serves GET /api/assets/{id}.
func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := assetID(w, r)
	if !ok {
		return
	}

	asset, err := h.catalog.GetAssetByID(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, asset)
}

// GetThumbnail serves GET /api/assets/{id}/thumbnail: the thumbnail JPEG
// bytes for the asset, 404 when the asset has no thumbnail file.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := assetID(w, r)
	if !ok {
		return
	}

	asset, err := h.catalog.GetAssetByID(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	if asset.ThumbPath == "" {
		writeJSONError(w, "no thumbnail", http.StatusNotFound)
		return
	}
	if _, err := os.Stat(asset.ThumbPath); err != nil {
		writeJSONError(w, "thumbnail file missing", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "max-age=3600")
	http.ServeFile(w, r, asset.ThumbPath)
}

// metadataPatch is the PATCH body for metadata edits; absent fields are
// left untouched, present-but-empty fields clear.
type metadataPatch struct {
	Comment *string `json:"comment"`
	Tags    *string `json:"tags"`
}

// UpdateMetadata serves PATCH /api/assets/{id}/metadata.
func (h *Handlers) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := assetID(w, r)
	if !ok {
		return
	}

	var patch metadataPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if patch.Comment == nil && patch.Tags == nil {
		writeJSONError(w, "nothing to update", http.StatusBadRequest)
		return
	}

	asset, err := h.catalog.GetAssetByID(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	if _, err := h.catalog.UpdateMetadata(r.Context(), asset.FilePath, patch.Comment, patch.Tags); err != nil {
		writeJSONError(w, "update failed", http.StatusInternalServerError)
		return
	}

	updated, err := h.catalog.GetAssetByID(r.Context(), id)
	if err != nil {
		writeJSONError(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, updated)
}

// QuickScanFolder serves GET /api/folders?path= — the shallow read-only
// directory preview.
func (h *Handlers) QuickScanFolder(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = h.assetRoot
	}
	if path == "" {
		writeJSONError(w, "path required", http.StatusBadRequest)
		return
	}

	records, err := h.scanner.QuickScan(r.Context(), path)
	if err != nil {
		writeJSONError(w, "folder not readable", http.StatusNotFound)
		return
	}
	writeJSON(w, records)
}

// Stats serves GET /api/stats.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.GetStatistics(r.Context())
	if err != nil {
		writeJSONError(w, "statistics failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func assetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, "invalid asset id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
