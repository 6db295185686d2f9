package catalog

import (
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// AssetRecord is one cataloged model file. FilePath is the natural key;
// ID is the store-assigned surrogate key. FileSize is a human-formatted
// display string, not a byte count. Comment and Tags are user-owned
// sticky fields.
type AssetRecord struct {
	ID        int64   `json:"id"`
	FilePath  string  `json:"filePath"`
	FileName  string  `json:"fileName"`
	ThumbPath string  `json:"thumbPath"`
	FileSize  string  `json:"fileSize"`
	Mtime     float64 `json:"mtime"`
	Comment   string  `json:"comment"`
	Tags      string  `json:"tags"`
}

// Extension returns the asset's lowercased file extension.
func (a *AssetRecord) Extension() string {
	return strings.ToLower(filepath.Ext(a.FileName))
}

// Statistics summarizes catalog content.
type Statistics struct {
	TotalAssets     int            `json:"totalAssets"`
	AssetsWithThumb int            `json:"assetsWithThumbnail"`
	ByExtension     map[string]int `json:"byExtension"`
}

// FormatFileSize renders a byte count as the display string stored in
// AssetRecord.FileSize (e.g. "1.5 MB").
func FormatFileSize(bytes int64) string {
	if bytes < 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(bytes))
}
