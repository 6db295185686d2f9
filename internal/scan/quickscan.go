package scan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"asset-browser/internal/assettypes"
	"asset-browser/internal/catalog"
	"asset-browser/internal/filesystem"
	"asset-browser/internal/logging"
	"asset-browser/internal/match"
)

// QuickScan is the instant, read-only preview of a directory: model files
// in the immediate directory only, sorted case-insensitively. Files the
// catalog already knows come back as their stored records; unknown files
// come back as ephemeral records whose ThumbPath is the raw matched
// sibling image path (no thumbnail generation) and whose ID is zero.
// QuickScan never writes to the store or the cache.
func (s *Scanner) QuickScan(ctx context.Context, folderPath string) ([]catalog.AssetRecord, error) {
	entries, err := filesystem.ReadDirWithRetry(folderPath, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("cannot list folder %s: %w", folderPath, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !assettypes.IsModelFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})

	ix := match.NewIndex()
	records := make([]catalog.AssetRecord, 0, len(names))

	for _, name := range names {
		path := filepath.Join(folderPath, name)

		stored, err := s.catalog.GetAssetByPath(ctx, path)
		if err == nil {
			records = append(records, *stored)
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			logging.Debug("Quick scan lookup failed for %s: %v", path, err)
		}

		record := catalog.AssetRecord{
			FilePath: path,
			FileName: name,
		}
		if info, statErr := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig()); statErr == nil {
			record.FileSize = catalog.FormatFileSize(info.Size())
			record.Mtime = float64(info.ModTime().UnixNano()) / 1e9
		}
		if imagePath, ok := ix.FindMatchingImage(path); ok {
			record.ThumbPath = imagePath
		}
		records = append(records, record)
	}

	return records, nil
}
