package runtime

import (
	"context"
	"nexus-mail/domain/event"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	name string
}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func TestRegistry_Subscribe_One_Topic_One_Subscriber(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	subscriberID := uuid.NewString()
	topic := uuid.NewString()
	sink := Sink{name: "tab"}

	// Given nobody listens
	req.Empty(registry.GetSinks(topic))
	req.Zero(registry.topicCount())

	// When a subscriber joins a topic
	registry.Subscribe(subscriberID, topic, sink)

	// Then
	req.Equal(1, registry.topicCount())
	req.Len(registry.GetSinks(topic), 1)
	req.Contains(registry.GetSinks(topic), sink)
}

func TestRegistry_Subscribe_One_Topic_Multiple_Subscribers(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	topic := uuid.NewString()
	sink1 := Sink{name: "first tab"}
	sink2 := Sink{name: "second tab"}

	// When subscribers join the same topic
	registry.Subscribe(uuid.NewString(), topic, sink1)
	registry.Subscribe(uuid.NewString(), topic, sink2)

	// Then both receive the topic
	sinks := registry.GetSinks(topic)
	req.Len(sinks, 2)
	req.ElementsMatch([]any{sink1, sink2}, []any{sinks[0], sinks[1]})
}

func TestRegistry_GetSinks_Includes_Wildcard_Subscribers(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	topic := uuid.NewString()
	sessionSink := Sink{name: "session"}
	monitorSink := Sink{name: "monitor"}

	// Given one subscriber on a session and one on every topic
	registry.Subscribe(uuid.NewString(), topic, sessionSink)
	registry.Subscribe(uuid.NewString(), event.AllTopics, monitorSink)

	// Then the session topic reaches both
	req.Len(registry.GetSinks(topic), 2)
	// And the mailbox topic reaches the monitor only
	req.Equal([]any{monitorSink}, toAny(registry.GetSinks(event.MailboxTopic)))
}

func TestRegistry_Unsubscribe_Removes_Empty_Topic(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	topic := uuid.NewString()
	first, second := uuid.NewString(), uuid.NewString()

	registry.Subscribe(first, topic, Sink{name: "first"})
	registry.Subscribe(second, topic, Sink{name: "second"})

	// When the first leaves
	registry.Unsubscribe(first, topic)

	// Then the topic survives with one subscriber
	req.Len(registry.GetSinks(topic), 1)
	req.Equal(1, registry.topicCount())

	// When the last one leaves
	registry.Unsubscribe(second, topic)

	// Then the topic is gone
	req.Empty(registry.GetSinks(topic))
	req.Zero(registry.topicCount())
}

func TestRegistry_Unsubscribe_Unknown_Is_Noop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Unsubscribe(uuid.NewString(), uuid.NewString())

	req.Zero(registry.topicCount())
}

func toAny[T any](in []T) []any {
	out := make([]any, 0, len(in))
	for _, v := range in {
		out = append(out, v)
	}
	return out
}
