package thumbs

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"asset-browser/internal/logging"
	"asset-browser/internal/metrics"
)

// Badge colors per model extension; formats without an entry fall back
// to gray.
var placeholderColors = map[string]color.NRGBA{
	"fbx":   {0xE0, 0x6C, 0x75, 0xFF},
	"obj":   {0xE5, 0xC0, 0x7B, 0xFF},
	"max":   {0xC6, 0x78, 0xDD, 0xFF},
	"abc":   {0x98, 0xC3, 0x79, 0xFF},
	"blend": {0xFF, 0xA5, 0x00, 0xFF},
	"gltf":  {0x61, 0xAF, 0xEF, 0xFF},
	"glb":   {0x56, 0xB6, 0xC2, 0xFF},
}

var (
	placeholderFallback = color.NRGBA{0x64, 0x64, 0x64, 0xFF}
	canvasColor         = color.NRGBA{0x2A, 0x2A, 0x2A, 0xFF}
	cardColor           = color.NRGBA{0x32, 0x32, 0x32, 0xFF}
	cardOutlineColor    = color.NRGBA{0x3C, 0x3C, 0x3C, 0xFF}
)

// PlaceholderPath returns the cache file a placeholder for ext resolves
// to. ext is normalized (lowercased, no leading dot).
func (c *Cache) PlaceholderPath(ext string) string {
	return filepath.Join(c.dir, "placeholder_"+normalizeExt(ext)+".jpg")
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return "unknown"
	}
	return ext
}

// GeneratePlaceholder renders (or reuses) the card image shown for models
// with no matching preview: a rounded card on a dark canvas with a colored
// badge and the uppercased extension label. One file per extension,
// name-stable, so repeated calls are free after the first.
func (c *Cache) GeneratePlaceholder(ext string, size int) (string, error) {
	path := c.PlaceholderPath(ext)

	if _, err := os.Stat(path); err == nil {
		metrics.ThumbnailCacheHits.Inc()
		return path, nil
	}
	metrics.ThumbnailCacheMisses.Inc()

	start := time.Now()
	err := c.drawPlaceholder(path, normalizeExt(ext), size)
	metrics.ThumbnailGenerationDuration.WithLabelValues("placeholder").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("placeholder", "error").Inc()
		return "", err
	}

	metrics.ThumbnailGenerationsTotal.WithLabelValues("placeholder", "success").Inc()
	logging.Debug("Placeholder generated: %s", path)
	return path, nil
}

func (c *Cache) drawPlaceholder(path, ext string, size int) error {
	dc := gg.NewContext(size, size)
	s := float64(size)

	dc.SetColor(canvasColor)
	dc.Clear()

	// Card with a subtle outline, inset from the canvas edge.
	inset := s * 0.08
	cardW := s - 2*inset
	radius := s * 0.06
	dc.SetColor(cardColor)
	dc.DrawRoundedRectangle(inset, inset, cardW, cardW, radius)
	dc.Fill()
	dc.SetColor(cardOutlineColor)
	dc.SetLineWidth(2)
	dc.DrawRoundedRectangle(inset, inset, cardW, cardW, radius)
	dc.Stroke()

	badge, ok := placeholderColors[ext]
	if !ok {
		badge = placeholderFallback
	}

	// Centered badge.
	badgeW := s * 0.5
	badgeH := s * 0.28
	cx, cy := s/2, s/2
	dc.SetColor(badge)
	dc.DrawRoundedRectangle(cx-badgeW/2, cy-badgeH/2, badgeW, badgeH, badgeH*0.2)
	dc.Fill()

	face, err := placeholderFace(s * 0.14)
	if err != nil {
		return fmt.Errorf("failed to load placeholder font: %w", err)
	}
	dc.SetFontFace(face)

	label := strings.ToUpper(ext)
	dc.SetColor(color.White)
	dc.DrawStringAnchored(label, cx, cy, 0.5, 0.35)

	return c.writeJPEG(path, dc.Image())
}

func placeholderFace(size float64) (font.Face, error) {
	parsed, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(parsed, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}
