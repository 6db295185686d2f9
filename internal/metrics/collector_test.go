package metrics

import (
	"testing"
	"time"
)

type fakeStatsProvider struct {
	stats Stats
}

func (f *fakeStatsProvider) GetStats() Stats {
	return f.stats
}

func TestCollectorPublishesStats(t *testing.T) {
	provider := &fakeStatsProvider{stats: Stats{
		TotalAssets:     7,
		AssetsWithThumb: 5,
		ByExtension:     map[string]int{".fbx": 4, ".obj": 3},
	}}

	c := NewCollector(provider, time.Hour)
	c.collect()

	// Gauges are package-global; just verify collect doesn't panic with
	// a nil provider either.
	nilCollector := NewCollector(nil, time.Hour)
	nilCollector.collect()
}

func TestCollectorStartStop(t *testing.T) {
	c := NewCollector(&fakeStatsProvider{}, 10*time.Millisecond)
	c.Start()
	time.Sleep(30 * time.Millisecond)
	c.Stop()
}
