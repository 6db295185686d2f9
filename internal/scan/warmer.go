package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"asset-browser/internal/catalog"
	"asset-browser/internal/logging"
	"asset-browser/internal/match"
	"asset-browser/internal/memory"
	"asset-browser/internal/metrics"
	"asset-browser/internal/thumbs"
	"asset-browser/internal/workers"
)

// WarmResult is the outcome of one warmer pass.
type WarmResult struct {
	Total     int           `json:"total"`
	Generated int           `json:"generated"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Warmer regenerates missing or stale thumbnails for cataloged assets in
// parallel. It defers to the scan engine: a pass is refused while a scan
// is running.
type Warmer struct {
	catalog   *catalog.Catalog
	cache     *thumbs.Cache
	scanner   *Scanner
	monitor   *memory.Monitor
	thumbSize int

	// Force regenerates every thumbnail regardless of cache freshness.
	// Set before Run.
	Force bool

	running atomic.Bool
}

// NewWarmer creates a thumbnail warmer. scanner and monitor may be nil;
// a nil scanner disables the scan-deference check, a nil monitor disables
// memory backpressure.
func NewWarmer(cat *catalog.Catalog, cache *thumbs.Cache, scanner *Scanner, monitor *memory.Monitor, thumbSize int) *Warmer {
	return &Warmer{
		catalog:   cat,
		cache:     cache,
		scanner:   scanner,
		monitor:   monitor,
		thumbSize: thumbSize,
	}
}

// IsRunning reports whether a warmer pass is in flight.
func (w *Warmer) IsRunning() bool {
	return w.running.Load()
}

// Run performs one warmer pass over the whole catalog. Worker count is
// sized for mixed decode/disk work; each worker waits out memory pressure
// between jobs. Returns an error only when the pass could not start or
// the catalog could not be enumerated; per-asset failures are counted.
func (w *Warmer) Run(ctx context.Context) (*WarmResult, error) {
	if w.scanner != nil && w.scanner.IsRunning() {
		return nil, fmt.Errorf("scan in progress, warmer deferred")
	}
	if !w.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("warmer already running")
	}
	defer w.running.Store(false)

	metrics.WarmerRunning.Set(1)
	defer metrics.WarmerRunning.Set(0)

	start := time.Now()

	assets, err := w.catalog.GetAllAssets(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate catalog: %w", err)
	}

	result := &WarmResult{Total: len(assets)}
	if len(assets) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	workerCount := workers.ForMixed(len(assets))
	logging.Info("Warmer pass: %d assets, %d workers", len(assets), workerCount)

	jobs := make(chan catalog.AssetRecord)
	var generated, skipped, failed atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for asset := range jobs {
				if w.monitor != nil {
					w.monitor.WaitIfPaused()
				}
				switch w.warmOne(ctx, &asset) {
				case "generated":
					generated.Add(1)
				case "failed":
					failed.Add(1)
				default:
					skipped.Add(1)
				}
			}
		}()
	}

	for _, asset := range assets {
		if ctx.Err() != nil {
			break
		}
		jobs <- asset
	}
	close(jobs)
	wg.Wait()

	result.Generated = int(generated.Load())
	result.Skipped = int(skipped.Load())
	result.Failed = int(failed.Load())
	result.Duration = time.Since(start)

	logging.Info("Warmer pass done: %d generated, %d skipped, %d failed in %v",
		result.Generated, result.Skipped, result.Failed, result.Duration)
	return result, nil
}

// warmOne brings one asset's thumbnail up to date and returns its status
// ("generated", "skipped", or "failed").
func (w *Warmer) warmOne(ctx context.Context, asset *catalog.AssetRecord) string {
	status := w.refreshThumbnail(asset)
	metrics.WarmerFilesTotal.WithLabelValues(status).Inc()
	if status == "generated" {
		if _, err := w.catalog.UpdateThumbPath(ctx, asset.FilePath, asset.ThumbPath); err != nil {
			logging.Warn("Warmer could not update thumb path for %s: %v", asset.FilePath, err)
			return "failed"
		}
	}
	return status
}

func (w *Warmer) refreshThumbnail(asset *catalog.AssetRecord) string {
	imagePath, ok := match.FindMatchingImage(asset.FilePath)
	if !ok {
		// No sibling image: make sure the placeholder exists and is what
		// the record points at.
		placeholder, err := w.cache.GeneratePlaceholder(filepath.Ext(asset.FileName), w.thumbSize)
		if err != nil {
			logging.Warn("Warmer placeholder failed for %s: %v", asset.FilePath, err)
			return "failed"
		}
		if asset.ThumbPath != placeholder {
			asset.ThumbPath = placeholder
			return "generated"
		}
		return "skipped"
	}

	cachePath := w.cache.ThumbPath(imagePath)
	fresh := false
	if cacheInfo, err := os.Stat(cachePath); err == nil {
		if srcInfo, srcErr := os.Stat(imagePath); srcErr == nil &&
			!cacheInfo.ModTime().Before(srcInfo.ModTime()) {
			fresh = true
		}
	}
	if fresh && asset.ThumbPath == cachePath && !w.Force {
		return "skipped"
	}

	thumbPath, err := w.cache.GenerateThumbnail(imagePath, w.thumbSize, w.Force)
	if err != nil {
		logging.Warn("Warmer thumbnail failed for %s: %v", asset.FilePath, err)
		return "failed"
	}
	asset.ThumbPath = thumbPath
	return "generated"
}
