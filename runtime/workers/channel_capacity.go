package workers

import (
	"context"
	"log/slog"
	"nexus-mail/observability"
	"reflect"
	"time"
)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelCapacityWorker periodically samples the length and capacity of buffered channels.
// Reading len(channel) and cap(channel) is non-blocking, so this won't interfere
// with the goroutines using them.
type ChannelCapacityWorker struct {
	log                  *slog.Logger
	channels             []NamedChannel
	monitor              *observability.MonitoringManager
	metricInterval       time.Duration
	lowCapacityThreshold int
}

func NewChannelCapacityWorker(log *slog.Logger,
	channels []NamedChannel, monitor *observability.MonitoringManager,
	metricInterval time.Duration, lowCapacityThreshold int) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log:                  log,
		channels:             channels,
		monitor:              monitor,
		metricInterval:       metricInterval,
		lowCapacityThreshold: lowCapacityThreshold,
	}
}

func (w ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping channel capacity sampling")
			return nil
		case <-ticker.C:
			samples := w.Sample()
			for _, sample := range samples {
				if sample.Usage() >= w.lowCapacityThreshold {
					w.log.Warn("Channel buffer under pressure",
						"name", sample.Name, "length", sample.Length, "capacity", sample.Capacity)
				}
			}
			w.monitor.RecordChannels(samples)
		}
	}
}

// Sample reads every registered channel once. Values that are not channels are skipped.
func (w ChannelCapacityWorker) Sample() []observability.ChannelStats {
	samples := make([]observability.ChannelStats, 0, len(w.channels))
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		samples = append(samples, observability.ChannelStats{
			Name:     nc.Name,
			Capacity: v.Cap(),
			Length:   v.Len(),
		})
	}
	return samples
}
