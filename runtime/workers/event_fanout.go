package workers

import (
	"context"
	"log/slog"
	"nexus-mail/contract"
	"nexus-mail/domain/event"
	"sync"
	"time"
)

// EventFanout delivers committed domain events to the sinks registered for
// their topic.
//
// Delivery is best effort: no ordering across sinks, no retries, no
// durability. A full buffer drops the event instead of blocking the service
// that published it. Each sink gets sinkTimeout to consume an event.
type EventFanout struct {
	log         *slog.Logger
	events      chan event.DomainEvent
	registry    contract.IRegistry
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, registry contract.IRegistry, bufferSize int, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:         log,
		events:      make(chan event.DomainEvent, bufferSize),
		registry:    registry,
		sinkTimeout: sinkTimeout,
	}
}

// Publish satisfies contract.EventPublisher and never blocks.
func (w *EventFanout) Publish(e event.DomainEvent) {
	select {
	case w.events <- e:
	default:
		w.log.Warn("Event buffer full, dropping event", "topic", e.Topic())
	}
}

// Buffer exposes the pending events channel for capacity sampling.
func (w *EventFanout) Buffer() NamedChannel {
	return NamedChannel{Name: "event_fanout", Channel: w.events}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// Fanout waits for every sink of the event topic, each bounded by sinkTimeout.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	sinks := w.registry.GetSinks(evt.Topic())
	var wg sync.WaitGroup
	for _, sink := range sinks {
		wg.Add(1)
		go func(sink contract.EventSink) {
			defer wg.Done()
			sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
			defer cancel()
			if err := sink.Consume(sinkCtx, evt); err != nil {
				w.log.Debug("Sink failed to consume event", "topic", evt.Topic(), "error", err)
			}
		}(sink)
	}
	wg.Wait()
}
