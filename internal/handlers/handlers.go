package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"asset-browser/internal/catalog"
	"asset-browser/internal/scan"
	"asset-browser/internal/startup"
	"asset-browser/internal/thumbs"
)

// Handlers carries the API's dependencies.
type Handlers struct {
	catalog   *catalog.Catalog
	cache     *thumbs.Cache
	scanner   *scan.Scanner
	assetRoot string
}

// New creates the API handler set.
func New(cat *catalog.Catalog, cache *thumbs.Cache, scanner *scan.Scanner, config *startup.Config) *Handlers {
	return &Handlers{
		catalog:   cat,
		cache:     cache,
		scanner:   scanner,
		assetRoot: config.AssetRoot,
	}
}

// Register attaches all API routes to the router.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.Liveness).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.Readiness).Methods(http.MethodGet)
	r.HandleFunc("/version", h.Version).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/assets", h.ListAssets).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id:[0-9]+}", h.GetAsset).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id:[0-9]+}/thumbnail", h.GetThumbnail).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id:[0-9]+}/metadata", h.UpdateMetadata).Methods(http.MethodPatch)
	api.HandleFunc("/folders", h.QuickScanFolder).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)
	api.HandleFunc("/scan", h.StartScan).Methods(http.MethodPost)
	api.HandleFunc("/scan/stop", h.StopScan).Methods(http.MethodPost)
	api.HandleFunc("/scan/status", h.ScanStatus).Methods(http.MethodGet)
	api.HandleFunc("/sweep", h.Sweep).Methods(http.MethodPost)
	api.HandleFunc("/cache/size", h.CacheSize).Methods(http.MethodGet)
	api.HandleFunc("/cache/clear", h.ClearCache).Methods(http.MethodPost)
}
