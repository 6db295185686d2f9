package thumbs

import (
	"crypto/md5"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/ftrvxmtrx/tga"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"asset-browser/internal/logging"
	"asset-browser/internal/metrics"
)

const jpegQuality = 85

// maxDecodeDimension rejects absurd images before the full decode buys
// all their pixels.
const maxDecodeDimension = 20000

// Cache generates and stores thumbnail JPEGs under a single directory.
// The directory is created lazily on first write. Cache methods are safe
// for concurrent use; concurrent generation of the same source is
// harmless (last rename wins, both produce identical content).
type Cache struct {
	dir string
}

// NewCache returns a cache rooted at dir. The directory is not created
// until the first thumbnail is written.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string {
	return c.dir
}

// ThumbPath returns the cache file path a source image resolves to,
// whether or not it exists yet.
func (c *Cache) ThumbPath(imagePath string) string {
	hash := md5.Sum([]byte(imagePath))
	return filepath.Join(c.dir, fmt.Sprintf("%x.jpg", hash))
}

// GenerateThumbnail produces (or reuses) the thumbnail for imagePath and
// returns the cache file path. The cached file is reused when it exists,
// force is false, and its mtime is at least the source's; otherwise the
// source is re-decoded. Failures are returned to the caller, which treats
// the thumbnail as absent.
func (c *Cache) GenerateThumbnail(imagePath string, size int, force bool) (string, error) {
	cachePath := c.ThumbPath(imagePath)

	srcInfo, err := os.Stat(imagePath)
	if err != nil {
		return "", fmt.Errorf("source not accessible: %w", err)
	}

	if !force {
		if cacheInfo, statErr := os.Stat(cachePath); statErr == nil &&
			!cacheInfo.ModTime().Before(srcInfo.ModTime()) {
			metrics.ThumbnailCacheHits.Inc()
			logging.Debug("Thumbnail cache hit: %s", imagePath)
			return cachePath, nil
		}
	}
	metrics.ThumbnailCacheMisses.Inc()

	start := time.Now()
	err = c.generate(imagePath, cachePath, size)
	metrics.ThumbnailGenerationDuration.WithLabelValues("image").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("image", "error").Inc()
		return "", err
	}

	metrics.ThumbnailGenerationsTotal.WithLabelValues("image", "success").Inc()
	logging.Debug("Thumbnail generated: %s -> %s", imagePath, cachePath)
	return cachePath, nil
}

func (c *Cache) generate(imagePath, cachePath string, size int) error {
	if err := c.checkDimensions(imagePath); err != nil {
		return err
	}

	img, err := decodeImage(imagePath)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", imagePath, err)
	}

	// Fit never upscales: an image already smaller than size x size
	// passes through at its own dimensions.
	thumb := imaging.Fit(img, size, size, imaging.Lanczos)

	return c.writeJPEG(cachePath, flattenOnWhite(thumb))
}

// checkDimensions reads only the image header and rejects decode bombs.
func (c *Cache) checkDimensions(imagePath string) error {
	if strings.EqualFold(filepath.Ext(imagePath), ".tga") {
		// TGA has no registered magic; the decoder bounds-checks on its own.
		return nil
	}

	f, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", imagePath, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		// Unknown header; let the full decode produce the real error.
		return nil
	}
	if cfg.Width > maxDecodeDimension || cfg.Height > maxDecodeDimension {
		return fmt.Errorf("image %s too large to decode (%dx%d)", imagePath, cfg.Width, cfg.Height)
	}
	return nil
}

// decodeImage decodes a source image. TGA is routed to its own decoder;
// everything else goes through imaging (JPEG/PNG/GIF/BMP/TIFF) with
// EXIF auto-orientation.
func decodeImage(imagePath string) (image.Image, error) {
	if strings.EqualFold(filepath.Ext(imagePath), ".tga") {
		f, err := os.Open(imagePath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return tga.Decode(f)
	}
	return imaging.Open(imagePath, imaging.AutoOrientation(true))
}

// flattenOnWhite composites the image over a white background so that
// transparent PNG/TGA regions come out white in the JPEG instead of black.
func flattenOnWhite(img image.Image) image.Image {
	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)
	return flat
}

// writeJPEG encodes img to path via a temp file and rename, creating the
// cache directory if needed.
func (c *Cache) writeJPEG(path string, img image.Image) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".thumb-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move thumbnail into place: %w", err)
	}
	return nil
}

// ClearCache removes every file in the cache directory, best-effort:
// individual delete failures are logged and skipped. Returns the number
// of files deleted.
func (c *Cache) ClearCache() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list cache dir: %w", err)
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logging.Warn("Failed to delete %s: %v", path, err)
			continue
		}
		deleted++
	}

	metrics.ThumbnailCacheSize.Set(0)
	metrics.ThumbnailCacheCount.Set(0)
	logging.Info("Cleared %d files from thumbnail cache", deleted)
	return deleted, nil
}

// CacheSize returns the cache's total size in bytes plus a human-readable
// rendering, and refreshes the cache gauges.
func (c *Cache) CacheSize() (int64, string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, humanize.Bytes(0), nil
		}
		return 0, "", fmt.Errorf("failed to list cache dir: %w", err)
	}

	var total int64
	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
		count++
	}

	metrics.ThumbnailCacheSize.Set(float64(total))
	metrics.ThumbnailCacheCount.Set(float64(count))
	return total, humanize.Bytes(uint64(total)), nil
}
