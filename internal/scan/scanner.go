package scan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"asset-browser/internal/assettypes"
	"asset-browser/internal/catalog"
	"asset-browser/internal/filesystem"
	"asset-browser/internal/logging"
	"asset-browser/internal/match"
	"asset-browser/internal/metrics"
	"asset-browser/internal/thumbs"
)

// State identifies where a scan run is in its lifecycle.
type State string

const (
	StateIdle        State = "idle"
	StateWalking     State = "walking"
	StateReconciling State = "reconciling"
	StateCommitting  State = "committing"
	StateDone        State = "done"
	StateCancelled   State = "cancelled"
	StateFailed      State = "failed"
)

// ScanOptions controls one ScanFolder invocation.
type ScanOptions struct {
	// Recursive walks the full subtree; false lists only the immediate
	// directory.
	Recursive bool
	// OnProgress is invoked once per reconciled file with a strictly
	// increasing index. It must not block; slow consumers stall the scan.
	OnProgress func(path string, index, total int)
	// ShouldStop is polled at cancellation checkpoints (once per directory
	// while walking, once per file while reconciling).
	ShouldStop func() bool
	// ForceThumbs reprocesses every file and regenerates thumbnails even
	// when the cached copy is fresh.
	ForceThumbs bool
}

// ScanResult is the outcome of one scan run.
type ScanResult struct {
	TotalFiles          int           `json:"totalFiles"`
	NewAssets           int           `json:"newAssets"`
	UpdatedAssets       int           `json:"updatedAssets"`
	SkippedAssets       int           `json:"skippedAssets"`
	ThumbnailsGenerated int           `json:"thumbnailsGenerated"`
	Errors              []string      `json:"errors,omitempty"`
	Duration            time.Duration `json:"duration"`
}

// Status is a point-in-time snapshot of the engine for the API.
type Status struct {
	State         State     `json:"state"`
	Running       bool      `json:"running"`
	CurrentIndex  int       `json:"currentIndex"`
	TotalFiles    int       `json:"totalFiles"`
	NewAssets     int       `json:"newAssets"`
	UpdatedAssets int       `json:"updatedAssets"`
	SkippedAssets int       `json:"skippedAssets"`
	LastScanTime  time.Time `json:"lastScanTime"`
}

// Scanner reconciles folders on disk against the catalog.
type Scanner struct {
	catalog   *catalog.Catalog
	cache     *thumbs.Cache
	thumbSize int

	mu           sync.Mutex
	running      bool
	stopChan     chan struct{}
	state        State
	currentIndex int
	totalFiles   int
	newCount     int
	updatedCount int
	skippedCount int
	lastScanTime time.Time
}

// NewScanner creates a scan engine over the given catalog and thumbnail
// cache. thumbSize is the bounding box for generated thumbnails.
func NewScanner(cat *catalog.Catalog, cache *thumbs.Cache, thumbSize int) *Scanner {
	return &Scanner{
		catalog:   cat,
		cache:     cache,
		thumbSize: thumbSize,
		state:     StateIdle,
	}
}

// IsRunning reports whether a scan is in flight.
func (s *Scanner) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot of the engine's current state and counters.
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:         s.state,
		Running:       s.running,
		CurrentIndex:  s.currentIndex,
		TotalFiles:    s.totalFiles,
		NewAssets:     s.newCount,
		UpdatedAssets: s.updatedCount,
		SkippedAssets: s.skippedCount,
		LastScanTime:  s.lastScanTime,
	}
}

// LastScanTime returns when the last scan finished (zero if never).
func (s *Scanner) LastScanTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScanTime
}

// Stop requests cancellation of the in-flight scan, if any. The scan
// stops at its next checkpoint and commits what it has accumulated.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && s.stopChan != nil {
		select {
		case <-s.stopChan:
			// already stopping
		default:
			close(s.stopChan)
		}
	}
}

// tryStart claims the single scan slot. Returns the run's stop channel,
// or false when a scan is already in flight.
func (s *Scanner) tryStart() (chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, false
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.state = StateWalking
	s.currentIndex = 0
	s.totalFiles = 0
	s.newCount = 0
	s.updatedCount = 0
	s.skippedCount = 0
	return s.stopChan, true
}

func (s *Scanner) finish(final State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.state = final
	s.lastScanTime = time.Now()
}

func (s *Scanner) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Scanner) setProgress(index, total int) {
	s.mu.Lock()
	s.currentIndex = index
	s.totalFiles = total
	s.mu.Unlock()
}

func (s *Scanner) addClassified(class string) {
	s.mu.Lock()
	switch class {
	case "new":
		s.newCount++
	case "updated":
		s.updatedCount++
	case "skipped":
		s.skippedCount++
	}
	s.mu.Unlock()
	metrics.ScanFilesTotal.WithLabelValues(class).Inc()
}

// ScanFolder walks folderPath, reconciles every model file against the
// catalog, and commits changed records in one batch. Only one scan runs
// at a time; a concurrent call returns immediately with an error entry.
// Cancellation (via ctx, opts.ShouldStop, or Stop) is cooperative: the
// scan stops at the next checkpoint and already-accumulated work commits.
func (s *Scanner) ScanFolder(ctx context.Context, folderPath string, opts ScanOptions) *ScanResult {
	result := &ScanResult{}
	start := time.Now()

	stopChan, ok := s.tryStart()
	if !ok {
		result.Errors = append(result.Errors, "scan already in progress")
		return result
	}

	runID := uuid.New().String()[:8]
	logging.Info("[scan %s] Starting scan of %s (recursive=%v)", runID, folderPath, opts.Recursive)

	metrics.ScanRunsTotal.Inc()
	metrics.ScanRunning.Set(1)
	defer metrics.ScanRunning.Set(0)

	stopped := func() bool {
		if opts.ShouldStop != nil && opts.ShouldStop() {
			return true
		}
		select {
		case <-stopChan:
			return true
		case <-ctx.Done():
			return true
		default:
			return false
		}
	}

	// Phase 1: walk.
	files, cancelled, walkErr := s.walk(folderPath, opts.Recursive, stopped)
	if walkErr != nil {
		result.Errors = append(result.Errors, walkErr.Error())
		metrics.ScanErrors.Inc()
		s.finish(StateFailed)
		result.Duration = time.Since(start)
		logging.Error("[scan %s] Walk failed: %v", runID, walkErr)
		return result
	}
	result.TotalFiles = len(files)
	if cancelled {
		s.finish(StateCancelled)
		result.Duration = time.Since(start)
		logging.Info("[scan %s] Cancelled during walk after %d files", runID, len(files))
		return result
	}
	logging.Info("[scan %s] Walk found %d model files", runID, len(files))

	// Phase 2: reconcile.
	s.setState(StateReconciling)
	batch, reconcileCancelled := s.reconcile(ctx, files, opts, stopped, result)

	// Phase 3: commit. A cancelled scan still commits its partial batch.
	s.setState(StateCommitting)
	if len(batch) > 0 {
		if _, err := s.catalog.UpsertAssetsBatch(ctx, batch); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("commit failed, %d records not saved: %v", len(batch), err))
			metrics.ScanErrors.Inc()
			s.finish(StateFailed)
			result.Duration = time.Since(start)
			logging.Error("[scan %s] Commit failed: %v", runID, err)
			return result
		}
		logging.Info("[scan %s] Committed %d records", runID, len(batch))
	}

	if err := s.catalog.SaveLastRootFolder(ctx, folderPath); err != nil {
		logging.Warn("[scan %s] Could not save last root folder: %v", runID, err)
	}

	final := StateDone
	if reconcileCancelled {
		final = StateCancelled
	}
	s.finish(final)

	result.Duration = time.Since(start)
	metrics.ScanLastRunTimestamp.SetToCurrentTime()
	metrics.ScanLastRunDuration.Set(result.Duration.Seconds())

	logging.Info("[scan %s] Finished (%s): %d total, %d new, %d updated, %d skipped, %d thumbnails, %d errors in %v",
		runID, final, result.TotalFiles, result.NewAssets, result.UpdatedAssets,
		result.SkippedAssets, result.ThumbnailsGenerated, len(result.Errors), result.Duration)
	return result
}

// walk collects model file paths under folderPath. The stop predicate is
// checked once per directory.
func (s *Scanner) walk(folderPath string, recursive bool, stopped func() bool) (files []string, cancelled bool, err error) {
	info, statErr := os.Stat(folderPath)
	if statErr != nil {
		return nil, false, fmt.Errorf("cannot access folder %s: %w", folderPath, statErr)
	}
	if !info.IsDir() {
		return nil, false, fmt.Errorf("not a directory: %s", folderPath)
	}

	if !recursive {
		entries, readErr := filesystem.ReadDirWithRetry(folderPath, filesystem.DefaultRetryConfig())
		if readErr != nil {
			return nil, false, fmt.Errorf("cannot list folder %s: %w", folderPath, readErr)
		}
		for _, entry := range entries {
			if entry.IsDir() || !assettypes.IsModelFile(entry.Name()) {
				continue
			}
			files = append(files, filepath.Join(folderPath, entry.Name()))
		}
		return files, false, nil
	}

	errStop := errors.New("stopped")
	walkErr := filepath.WalkDir(folderPath, func(path string, d fs.DirEntry, entryErr error) error {
		if entryErr != nil {
			if path == folderPath {
				return entryErr
			}
			logging.Debug("Skipping unreadable entry %s: %v", path, entryErr)
			return nil
		}
		if d.IsDir() {
			if stopped() {
				return errStop
			}
			if path != folderPath && assettypes.ShouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if assettypes.IsModelFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(walkErr, errStop) {
		return files, true, nil
	}
	if walkErr != nil {
		return nil, false, fmt.Errorf("walk of %s failed: %w", folderPath, walkErr)
	}
	return files, false, nil
}

// reconcile classifies each discovered file against the catalog and builds
// the batch of records to commit. Per-file errors are recorded and skipped.
func (s *Scanner) reconcile(ctx context.Context, files []string, opts ScanOptions, stopped func() bool, result *ScanResult) (batch []catalog.AssetRecord, cancelled bool) {
	ix := match.NewIndex()
	fsConfig := filesystem.DefaultRetryConfig()
	total := len(files)

	for i, path := range files {
		if stopped() {
			return batch, true
		}

		s.setProgress(i+1, total)
		if opts.OnProgress != nil {
			opts.OnProgress(path, i+1, total)
		}

		info, err := filesystem.StatWithRetry(path, fsConfig)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("stat %s: %v", path, err))
			metrics.ScanErrors.Inc()
			continue
		}
		diskMtime := float64(info.ModTime().UnixNano()) / 1e9

		existing, err := s.catalog.GetAssetByPath(ctx, path)
		known := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			result.Errors = append(result.Errors, fmt.Sprintf("lookup %s: %v", path, err))
			metrics.ScanErrors.Inc()
			continue
		}

		if known && existing.Mtime >= diskMtime && !opts.ForceThumbs {
			result.SkippedAssets++
			s.addClassified("skipped")
			continue
		}

		thumbPath := s.resolveThumbnail(ix, path, opts.ForceThumbs, result)

		batch = append(batch, catalog.AssetRecord{
			FilePath:  path,
			FileName:  filepath.Base(path),
			ThumbPath: thumbPath,
			FileSize:  catalog.FormatFileSize(info.Size()),
			Mtime:     diskMtime,
		})

		if known {
			result.UpdatedAssets++
			s.addClassified("updated")
		} else {
			result.NewAssets++
			s.addClassified("new")
		}
	}
	return batch, false
}

// resolveThumbnail produces the thumbnail path for a model file: a real
// thumbnail when a sibling image matches, otherwise a per-extension
// placeholder (also the fallback when generation fails).
func (s *Scanner) resolveThumbnail(ix *match.Index, modelPath string, force bool, result *ScanResult) string {
	if imagePath, ok := ix.FindMatchingImage(modelPath); ok {
		thumbPath, err := s.cache.GenerateThumbnail(imagePath, s.thumbSize, force)
		if err == nil {
			result.ThumbnailsGenerated++
			return thumbPath
		}
		result.Errors = append(result.Errors, fmt.Sprintf("thumbnail %s: %v", modelPath, err))
		metrics.ScanErrors.Inc()
	}

	placeholder, err := s.cache.GeneratePlaceholder(filepath.Ext(modelPath), s.thumbSize)
	if err != nil {
		logging.Warn("Placeholder generation failed for %s: %v", modelPath, err)
		return ""
	}
	return placeholder
}
