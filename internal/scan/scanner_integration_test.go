package scan

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"asset-browser/internal/catalog"
	"asset-browser/internal/thumbs"
)

// End-to-end scan tests over a real catalog, cache, and filesystem.

func setupTestScanner(t *testing.T) (*Scanner, *catalog.Catalog, *thumbs.Cache) {
	t.Helper()

	cat, err := catalog.New(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}
	t.Cleanup(func() { _ = cat.Close() })

	cache := thumbs.NewCache(filepath.Join(t.TempDir(), "thumbs"))
	return NewScanner(cat, cache, 128), cat, cache
}

func writeModelFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("model data"), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func writeImageFile(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
}

func TestScanFolderEndToEnd(t *testing.T) {
	scanner, cat, _ := setupTestScanner(t)
	ctx := context.Background()

	root := t.TempDir()
	writeModelFile(t, filepath.Join(root, "hero.fbx"))
	writeImageFile(t, filepath.Join(root, "hero.png"))
	writeModelFile(t, filepath.Join(root, "vehicle.fbx"))

	result := scanner.ScanFolder(ctx, root, ScanOptions{Recursive: true})

	if len(result.Errors) != 0 {
		t.Fatalf("Unexpected scan errors: %v", result.Errors)
	}
	if result.TotalFiles != 2 {
		t.Errorf("Expected 2 model files, got %d", result.TotalFiles)
	}
	if result.NewAssets != 2 {
		t.Errorf("Expected 2 new assets, got %d", result.NewAssets)
	}
	if result.ThumbnailsGenerated != 1 {
		t.Errorf("Expected 1 real thumbnail, got %d", result.ThumbnailsGenerated)
	}

	// hero got a real thumbnail, vehicle got a placeholder.
	hero, err := cat.GetAssetByPath(ctx, filepath.Join(root, "hero.fbx"))
	if err != nil {
		t.Fatalf("hero.fbx not cataloged: %v", err)
	}
	if hero.ThumbPath == "" || strings.Contains(filepath.Base(hero.ThumbPath), "placeholder") {
		t.Errorf("Expected real thumbnail for hero.fbx, got %s", hero.ThumbPath)
	}
	if _, err := os.Stat(hero.ThumbPath); err != nil {
		t.Errorf("Thumbnail file missing: %v", err)
	}
	if hero.FileSize == "" {
		t.Error("Expected humanized file size")
	}

	vehicle, err := cat.GetAssetByPath(ctx, filepath.Join(root, "vehicle.fbx"))
	if err != nil {
		t.Fatalf("vehicle.fbx not cataloged: %v", err)
	}
	if filepath.Base(vehicle.ThumbPath) != "placeholder_fbx.jpg" {
		t.Errorf("Expected fbx placeholder for vehicle.fbx, got %s", vehicle.ThumbPath)
	}

	// Last root folder is remembered.
	last, err := cat.GetLastRootFolder(ctx)
	if err != nil {
		t.Fatalf("GetLastRootFolder failed: %v", err)
	}
	if last != root {
		t.Errorf("Expected last root %s, got %s", root, last)
	}

	if scanner.LastScanTime().IsZero() {
		t.Error("Expected LastScanTime to be set")
	}
	if status := scanner.Status(); status.State != StateDone || status.Running {
		t.Errorf("Expected done/idle status, got %+v", status)
	}
}

func TestScanFolderSkipsUnchanged(t *testing.T) {
	scanner, cat, _ := setupTestScanner(t)
	ctx := context.Background()

	root := t.TempDir()
	path := filepath.Join(root, "hero.fbx")
	writeModelFile(t, path)

	first := scanner.ScanFolder(ctx, root, ScanOptions{Recursive: true})
	if first.NewAssets != 1 {
		t.Fatalf("Expected 1 new asset, got %d", first.NewAssets)
	}

	// Unchanged file: second scan skips it.
	second := scanner.ScanFolder(ctx, root, ScanOptions{Recursive: true})
	if second.SkippedAssets != 1 || second.NewAssets != 0 || second.UpdatedAssets != 0 {
		t.Errorf("Expected pure skip, got new=%d updated=%d skipped=%d",
			second.NewAssets, second.UpdatedAssets, second.SkippedAssets)
	}

	// Touch the file into the future: third scan updates it.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
	third := scanner.ScanFolder(ctx, root, ScanOptions{Recursive: true})
	if third.UpdatedAssets != 1 {
		t.Errorf("Expected 1 updated asset, got %d", third.UpdatedAssets)
	}

	// The update preserved the row; still one asset total.
	count, _ := cat.CountAssets(ctx)
	if count != 1 {
		t.Errorf("Expected 1 asset, got %d", count)
	}
}

func TestScanFolderPreservesComment(t *testing.T) {
	scanner, cat, _ := setupTestScanner(t)
	ctx := context.Background()

	root := t.TempDir()
	path := filepath.Join(root, "hero.fbx")
	writeModelFile(t, path)

	scanner.ScanFolder(ctx, root, ScanOptions{Recursive: true})

	comment := "main character"
	if _, err := cat.UpdateMetadata(ctx, path, &comment, nil); err != nil {
		t.Fatalf("UpdateMetadata failed: %v", err)
	}

	// Force a reconcile (not a skip) by bumping the mtime.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
	result := scanner.ScanFolder(ctx, root, ScanOptions{Recursive: true})
	if result.UpdatedAssets != 1 {
		t.Fatalf("Expected 1 updated, got %d", result.UpdatedAssets)
	}

	got, _ := cat.GetAssetByPath(ctx, path)
	if got.Comment != "main character" {
		t.Errorf("Rescan clobbered comment: got %q", got.Comment)
	}
}

func TestScanFolderSkipsHiddenDirs(t *testing.T) {
	scanner, _, _ := setupTestScanner(t)
	ctx := context.Background()

	root := t.TempDir()
	writeModelFile(t, filepath.Join(root, "keep.fbx"))
	writeModelFile(t, filepath.Join(root, ".git", "skip.fbx"))
	writeModelFile(t, filepath.Join(root, "node_modules", "skip.obj"))
	writeModelFile(t, filepath.Join(root, "__cache__", "skip.blend"))
	writeModelFile(t, filepath.Join(root, "sub", "keep.obj"))

	result := scanner.ScanFolder(ctx, root, ScanOptions{Recursive: true})
	if result.TotalFiles != 2 {
		t.Errorf("Expected 2 files (hidden dirs skipped), got %d", result.TotalFiles)
	}
}

func TestScanFolderNonRecursive(t *testing.T) {
	scanner, _, _ := setupTestScanner(t)
	ctx := context.Background()

	root := t.TempDir()
	writeModelFile(t, filepath.Join(root, "top.fbx"))
	writeModelFile(t, filepath.Join(root, "sub", "nested.fbx"))

	result := scanner.ScanFolder(ctx, root, ScanOptions{Recursive: false})
	if result.TotalFiles != 1 {
		t.Errorf("Expected 1 top-level file, got %d", result.TotalFiles)
	}
}

func TestScanFolderMissingTarget(t *testing.T) {
	scanner, _, _ := setupTestScanner(t)

	result := scanner.ScanFolder(context.Background(), "/nonexistent/folder", ScanOptions{Recursive: true})
	if len(result.Errors) == 0 {
		t.Fatal("Expected error entry for missing folder")
	}
	if status := scanner.Status(); status.State != StateFailed {
		t.Errorf("Expected failed state, got %s", status.State)
	}
}

func TestScanFolderSingleFlight(t *testing.T) {
	scanner, _, _ := setupTestScanner(t)
	ctx := context.Background()

	root := t.TempDir()
	for i := 0; i < 20; i++ {
		writeModelFile(t, filepath.Join(root, "model"+string(rune('a'+i))+".fbx"))
	}

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	var wg sync.WaitGroup
	wg.Add(1)
	var firstResult *ScanResult
	go func() {
		defer wg.Done()
		firstResult = scanner.ScanFolder(ctx, root, ScanOptions{
			Recursive: true,
			OnProgress: func(path string, index, total int) {
				once.Do(func() {
					close(started)
					<-release
				})
			},
		})
	}()

	<-started
	second := scanner.ScanFolder(ctx, root, ScanOptions{Recursive: true})
	close(release)
	wg.Wait()

	if len(second.Errors) != 1 || !strings.Contains(second.Errors[0], "already in progress") {
		t.Errorf("Expected 'already in progress' error, got %v", second.Errors)
	}
	if len(firstResult.Errors) != 0 {
		t.Errorf("First scan should be unaffected, got errors: %v", firstResult.Errors)
	}
}

func TestScanFolderCancellation(t *testing.T) {
	scanner, cat, _ := setupTestScanner(t)
	ctx := context.Background()

	root := t.TempDir()
	for i := 0; i < 10; i++ {
		writeModelFile(t, filepath.Join(root, "model"+string(rune('a'+i))+".fbx"))
	}

	// Stop after the third file; the partial batch still commits.
	seen := 0
	result := scanner.ScanFolder(ctx, root, ScanOptions{
		Recursive: true,
		OnProgress: func(path string, index, total int) {
			seen = index
		},
		ShouldStop: func() bool { return seen >= 3 },
	})

	if result.NewAssets == 0 {
		t.Error("Expected partial progress before cancellation")
	}
	if result.NewAssets >= 10 {
		t.Errorf("Expected cancellation before completion, got %d new", result.NewAssets)
	}
	if status := scanner.Status(); status.State != StateCancelled {
		t.Errorf("Expected cancelled state, got %s", status.State)
	}

	// Partial work is persisted.
	count, _ := cat.CountAssets(ctx)
	if count != result.NewAssets {
		t.Errorf("Committed %d but result says %d", count, result.NewAssets)
	}

	// A fresh scan can start after cancellation.
	again := scanner.ScanFolder(ctx, root, ScanOptions{Recursive: true})
	if len(again.Errors) != 0 {
		t.Errorf("Post-cancel scan failed: %v", again.Errors)
	}
}

func TestScanFolderContextCancellation(t *testing.T) {
	scanner, _, _ := setupTestScanner(t)

	root := t.TempDir()
	writeModelFile(t, filepath.Join(root, "hero.fbx"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := scanner.ScanFolder(ctx, root, ScanOptions{Recursive: true})
	if status := scanner.Status(); status.State != StateCancelled {
		t.Errorf("Expected cancelled state, got %s (result: %+v)", status.State, result)
	}
}

func TestScanProgressStrictlyIncreasing(t *testing.T) {
	scanner, _, _ := setupTestScanner(t)
	ctx := context.Background()

	root := t.TempDir()
	for i := 0; i < 5; i++ {
		writeModelFile(t, filepath.Join(root, "model"+string(rune('a'+i))+".fbx"))
	}

	var indices []int
	var total int
	scanner.ScanFolder(ctx, root, ScanOptions{
		Recursive: true,
		OnProgress: func(path string, index, t int) {
			indices = append(indices, index)
			total = t
		},
	})

	if len(indices) != 5 || total != 5 {
		t.Fatalf("Expected 5 progress calls with total 5, got %d calls, total %d", len(indices), total)
	}
	for i, idx := range indices {
		if idx != i+1 {
			t.Errorf("Progress index %d at position %d, expected %d", idx, i, i+1)
		}
	}
}

func TestQuickScan(t *testing.T) {
	scanner, cat, _ := setupTestScanner(t)
	ctx := context.Background()

	root := t.TempDir()
	writeModelFile(t, filepath.Join(root, "beta.fbx"))
	writeModelFile(t, filepath.Join(root, "Alpha.obj"))
	writeImageFile(t, filepath.Join(root, "beta.png"))
	writeModelFile(t, filepath.Join(root, "sub", "nested.fbx"))

	// Catalog one of them first, with a comment.
	known := catalog.AssetRecord{
		FilePath: filepath.Join(root, "Alpha.obj"),
		FileName: "Alpha.obj",
		Comment:  "known asset",
		Mtime:    100,
	}
	if _, err := cat.UpsertAsset(ctx, &known); err != nil {
		t.Fatalf("UpsertAsset failed: %v", err)
	}

	records, err := scanner.QuickScan(ctx, root)
	if err != nil {
		t.Fatalf("QuickScan failed: %v", err)
	}

	// Immediate directory only, sorted case-insensitively.
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].FileName != "Alpha.obj" || records[1].FileName != "beta.fbx" {
		t.Errorf("Unexpected order: %s, %s", records[0].FileName, records[1].FileName)
	}

	// Known file comes back as its stored record.
	if records[0].ID == 0 || records[0].Comment != "known asset" {
		t.Errorf("Expected stored record for Alpha.obj, got %+v", records[0])
	}

	// Unknown file is ephemeral: zero ID, raw sibling image as thumb.
	if records[1].ID != 0 {
		t.Errorf("Expected ephemeral record for beta.fbx, got ID %d", records[1].ID)
	}
	if records[1].ThumbPath != filepath.Join(root, "beta.png") {
		t.Errorf("Expected raw matched image path, got %s", records[1].ThumbPath)
	}

	// Read-only: nothing new was persisted.
	count, _ := cat.CountAssets(ctx)
	if count != 1 {
		t.Errorf("QuickScan wrote to the store: %d assets", count)
	}
}

func TestQuickScanMissingFolder(t *testing.T) {
	scanner, _, _ := setupTestScanner(t)

	if _, err := scanner.QuickScan(context.Background(), "/nonexistent/folder"); err == nil {
		t.Error("Expected error for missing folder")
	}
}
