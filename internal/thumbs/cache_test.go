package thumbs

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
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

func decodeJPEG(t *testing.T, path string) image.Image {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("Failed to decode %s: %v", path, err)
	}
	return img
}

func TestGenerateThumbnail(t *testing.T) {
	srcDir := t.TempDir()
	cache := NewCache(filepath.Join(t.TempDir(), "thumbs"))

	srcPath := filepath.Join(srcDir, "hero.png")
	writeTestPNG(t, srcPath, 800, 400)

	thumbPath, err := cache.GenerateThumbnail(srcPath, 256, false)
	if err != nil {
		t.Fatalf("GenerateThumbnail failed: %v", err)
	}

	if !strings.HasSuffix(thumbPath, ".jpg") {
		t.Errorf("Expected .jpg thumbnail, got %s", thumbPath)
	}
	if filepath.Dir(thumbPath) != cache.Dir() {
		t.Errorf("Thumbnail outside cache dir: %s", thumbPath)
	}

	// Aspect ratio preserved within the bounding box.
	img := decodeJPEG(t, thumbPath)
	bounds := img.Bounds()
	if bounds.Dx() != 256 || bounds.Dy() != 128 {
		t.Errorf("Expected 256x128 thumbnail, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestGenerateThumbnailNoUpscale(t *testing.T) {
	srcDir := t.TempDir()
	cache := NewCache(filepath.Join(t.TempDir(), "thumbs"))

	srcPath := filepath.Join(srcDir, "small.png")
	writeTestPNG(t, srcPath, 64, 48)

	thumbPath, err := cache.GenerateThumbnail(srcPath, 256, false)
	if err != nil {
		t.Fatalf("GenerateThumbnail failed: %v", err)
	}

	bounds := decodeJPEG(t, thumbPath).Bounds()
	if bounds.Dx() != 64 || bounds.Dy() != 48 {
		t.Errorf("Small image was upscaled to %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestGenerateThumbnailCacheReuse(t *testing.T) {
	srcDir := t.TempDir()
	cache := NewCache(filepath.Join(t.TempDir(), "thumbs"))

	srcPath := filepath.Join(srcDir, "hero.png")
	writeTestPNG(t, srcPath, 200, 200)

	thumbPath, err := cache.GenerateThumbnail(srcPath, 128, false)
	if err != nil {
		t.Fatalf("First generation failed: %v", err)
	}

	info1, err := os.Stat(thumbPath)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	// Fresh source, fresh cache file: second call must not rewrite.
	thumbPath2, err := cache.GenerateThumbnail(srcPath, 128, false)
	if err != nil {
		t.Fatalf("Second generation failed: %v", err)
	}
	if thumbPath2 != thumbPath {
		t.Errorf("Cache path changed across calls: %s vs %s", thumbPath, thumbPath2)
	}
	info2, _ := os.Stat(thumbPath)
	if !info2.ModTime().Equal(info1.ModTime()) {
		t.Error("Fresh cache entry was regenerated")
	}

	// force bypasses the staleness check.
	time.Sleep(10 * time.Millisecond)
	if _, err := cache.GenerateThumbnail(srcPath, 128, true); err != nil {
		t.Fatalf("Forced generation failed: %v", err)
	}
}

func TestGenerateThumbnailStaleSource(t *testing.T) {
	srcDir := t.TempDir()
	cache := NewCache(filepath.Join(t.TempDir(), "thumbs"))

	srcPath := filepath.Join(srcDir, "hero.png")
	writeTestPNG(t, srcPath, 100, 100)

	thumbPath, err := cache.GenerateThumbnail(srcPath, 128, false)
	if err != nil {
		t.Fatalf("GenerateThumbnail failed: %v", err)
	}

	// Rewrite the source with a future mtime; the cache entry is stale.
	writeTestPNG(t, srcPath, 150, 150)
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(srcPath, future, future); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	if _, err := cache.GenerateThumbnail(srcPath, 128, false); err != nil {
		t.Fatalf("Regeneration failed: %v", err)
	}
	bounds := decodeJPEG(t, thumbPath).Bounds()
	if bounds.Dx() != 128 {
		t.Errorf("Stale thumbnail was not regenerated, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestGenerateThumbnailErrors(t *testing.T) {
	cache := NewCache(filepath.Join(t.TempDir(), "thumbs"))

	if _, err := cache.GenerateThumbnail("/nonexistent/hero.png", 128, false); err == nil {
		t.Error("Expected error for missing source")
	}

	// Undecodable source.
	srcDir := t.TempDir()
	badPath := filepath.Join(srcDir, "broken.png")
	if err := os.WriteFile(badPath, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := cache.GenerateThumbnail(badPath, 128, false); err == nil {
		t.Error("Expected error for undecodable image")
	}
}

func TestThumbPathIsContentAddressed(t *testing.T) {
	t.Parallel()

	cache := NewCache("/cache")

	a := cache.ThumbPath("/assets/hero.png")
	b := cache.ThumbPath("/assets/hero.png")
	if a != b {
		t.Errorf("Same source produced different cache paths: %s vs %s", a, b)
	}

	other := cache.ThumbPath("/assets/other.png")
	if a == other {
		t.Error("Different sources collided on cache path")
	}
}

func TestGeneratePlaceholder(t *testing.T) {
	cache := NewCache(filepath.Join(t.TempDir(), "thumbs"))

	path, err := cache.GeneratePlaceholder(".fbx", 256)
	if err != nil {
		t.Fatalf("GeneratePlaceholder failed: %v", err)
	}
	if filepath.Base(path) != "placeholder_fbx.jpg" {
		t.Errorf("Expected name-stable placeholder file, got %s", filepath.Base(path))
	}

	bounds := decodeJPEG(t, path).Bounds()
	if bounds.Dx() != 256 || bounds.Dy() != 256 {
		t.Errorf("Expected 256x256 placeholder, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	// Reused on second call.
	info1, _ := os.Stat(path)
	path2, err := cache.GeneratePlaceholder("fbx", 256)
	if err != nil {
		t.Fatalf("Second GeneratePlaceholder failed: %v", err)
	}
	if path2 != path {
		t.Errorf("Placeholder path changed: %s vs %s", path, path2)
	}
	info2, _ := os.Stat(path)
	if !info2.ModTime().Equal(info1.ModTime()) {
		t.Error("Existing placeholder was regenerated")
	}

	// Unknown extensions get the fallback card, still name-stable.
	path3, err := cache.GeneratePlaceholder(".xyz", 256)
	if err != nil {
		t.Fatalf("GeneratePlaceholder for unknown ext failed: %v", err)
	}
	if filepath.Base(path3) != "placeholder_xyz.jpg" {
		t.Errorf("Unexpected placeholder name: %s", filepath.Base(path3))
	}

	// Empty extension collapses to the unknown card.
	path4, err := cache.GeneratePlaceholder("", 256)
	if err != nil {
		t.Fatalf("GeneratePlaceholder for empty ext failed: %v", err)
	}
	if filepath.Base(path4) != "placeholder_unknown.jpg" {
		t.Errorf("Unexpected placeholder name: %s", filepath.Base(path4))
	}
}

func TestClearCache(t *testing.T) {
	srcDir := t.TempDir()
	cache := NewCache(filepath.Join(t.TempDir(), "thumbs"))

	for _, name := range []string{"a.png", "b.png"} {
		p := filepath.Join(srcDir, name)
		writeTestPNG(t, p, 50, 50)
		if _, err := cache.GenerateThumbnail(p, 64, false); err != nil {
			t.Fatalf("GenerateThumbnail failed: %v", err)
		}
	}

	deleted, err := cache.ClearCache()
	if err != nil {
		t.Fatalf("ClearCache failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}

	entries, _ := os.ReadDir(cache.Dir())
	if len(entries) != 0 {
		t.Errorf("Expected empty cache dir, found %d entries", len(entries))
	}

	// Clearing a never-created cache is a no-op.
	empty := NewCache(filepath.Join(t.TempDir(), "never-created"))
	deleted, err = empty.ClearCache()
	if err != nil || deleted != 0 {
		t.Errorf("Expected clean no-op, got deleted=%d err=%v", deleted, err)
	}
}

func TestCacheSize(t *testing.T) {
	srcDir := t.TempDir()
	cache := NewCache(filepath.Join(t.TempDir(), "thumbs"))

	// Empty (nonexistent) cache.
	size, human, err := cache.CacheSize()
	if err != nil {
		t.Fatalf("CacheSize on empty cache failed: %v", err)
	}
	if size != 0 {
		t.Errorf("Expected 0 bytes, got %d", size)
	}
	if human == "" {
		t.Error("Expected human-readable size string")
	}

	p := filepath.Join(srcDir, "a.png")
	writeTestPNG(t, p, 50, 50)
	if _, err := cache.GenerateThumbnail(p, 64, false); err != nil {
		t.Fatalf("GenerateThumbnail failed: %v", err)
	}

	size, human, err = cache.CacheSize()
	if err != nil {
		t.Fatalf("CacheSize failed: %v", err)
	}
	if size <= 0 {
		t.Errorf("Expected positive cache size, got %d", size)
	}
	if human == "" {
		t.Error("Expected human-readable size string")
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	srcDir := t.TempDir()
	cache := NewCache(filepath.Join(t.TempDir(), "thumbs"))

	p := filepath.Join(srcDir, "a.png")
	writeTestPNG(t, p, 50, 50)
	if _, err := cache.GenerateThumbnail(p, 64, false); err != nil {
		t.Fatalf("GenerateThumbnail failed: %v", err)
	}

	entries, err := os.ReadDir(cache.Dir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("Temp file left behind: %s", entry.Name())
		}
	}
}
