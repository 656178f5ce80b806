package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// ChannelStats is one sample of a buffered channel.
type ChannelStats struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Length   int    `json:"length"`
}

// Usage returns the filled share of the buffer in percent.
func (c ChannelStats) Usage() int {
	if c.Capacity == 0 {
		return 0
	}
	return c.Length * 100 / c.Capacity
}

// MonitoringStats aggregates the runtime view exposed to admins.
type MonitoringStats struct {
	AllocMemMb uint64         `json:"allocMemMb"`
	NumGC      uint32         `json:"numGc"`
	Goroutines int            `json:"goroutines"`
	Channels   []ChannelStats `json:"channels"`
	SampledAt  time.Time      `json:"sampledAt"`
}

// MonitoringManager keeps the latest sample. Writers are the capacity worker,
// readers are HTTP handlers.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats MonitoringStats
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{
		log:         log,
		latestStats: MonitoringStats{Channels: make([]ChannelStats, 0)},
	}
}

// RecordChannels stores the channel samples and refreshes the Go runtime metrics.
func (mm *MonitoringManager) RecordChannels(channels []ChannelStats) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.latestStats = MonitoringStats{
		AllocMemMb: m.Alloc / 1024 / 1024,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
		Channels:   append([]ChannelStats(nil), channels...),
		SampledAt:  time.Now().UTC(),
	}
	mm.log.Debug("Monitoring stats updated",
		"mem_mb", mm.latestStats.AllocMemMb,
		"goroutines", mm.latestStats.Goroutines,
		"channels", len(channels))
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	latest := mm.latestStats
	latest.Channels = append([]ChannelStats(nil), mm.latestStats.Channels...)
	return latest
}
