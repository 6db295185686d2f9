package catalog

import (
	"context"
	"time"

	"asset-browser/internal/logging"
	"asset-browser/internal/metrics"
)

// GetStatistics returns catalog-wide counts: total assets, assets with a
// thumbnail, and a per-extension breakdown.
func (c *Catalog) GetStatistics(ctx context.Context) (*Statistics, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("statistics", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats := &Statistics{ByExtension: make(map[string]int)}

	err = c.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(CASE WHEN thumb_path != '' THEN 1 END)
		FROM assets
	`).Scan(&stats.TotalAssets, &stats.AssetsWithThumb)
	if err != nil {
		return nil, err
	}

	// Extension breakdown is derived from file_name; SQLite has no
	// lower(suffix) index so this is a full scan, acceptable for a
	// statistics endpoint.
	rows, err := c.db.QueryContext(ctx, "SELECT file_name FROM assets")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, err
		}
		record := AssetRecord{FileName: name}
		ext := record.Extension()
		if ext == "" {
			ext = "(none)"
		}
		stats.ByExtension[ext]++
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// GetStats implements metrics.StatsProvider so the background collector
// can publish catalog gauges.
func (c *Catalog) GetStats() metrics.Stats {
	stats, err := c.GetStatistics(context.Background())
	if err != nil {
		logging.Debug("Stats collection failed: %v", err)
		return metrics.Stats{}
	}
	return metrics.Stats{
		TotalAssets:     stats.TotalAssets,
		AssetsWithThumb: stats.AssetsWithThumb,
		ByExtension:     stats.ByExtension,
	}
}
