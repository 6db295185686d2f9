package metrics

import (
	"time"

	"asset-browser/internal/logging"
)

// StatsProvider supplies catalog statistics for periodic publication.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds a snapshot of catalog content statistics.
type Stats struct {
	TotalAssets     int
	AssetsWithThumb int
	ByExtension     map[string]int
}

// Collector periodically publishes catalog statistics as gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	CatalogAssetsTotal.Set(float64(stats.TotalAssets))
	CatalogAssetsWithThumb.Set(float64(stats.AssetsWithThumb))
	for ext, count := range stats.ByExtension {
		CatalogAssetsByExtension.WithLabelValues(ext).Set(float64(count))
	}

	logging.Debug("Metrics collected: assets=%d, withThumb=%d, extensions=%d",
		stats.TotalAssets, stats.AssetsWithThumb, len(stats.ByExtension))
}
