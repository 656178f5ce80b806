//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"nexus-mail/domain/event"
	"reflect"
)

// EventSink receives committed domain events. A slow sink only delays itself.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IRegistry interface {
	GetSinks(topic string) []EventSink
	Subscribe(subscriberID, topic string, sink EventSink)
	Unsubscribe(subscriberID, topic string)
}

// EventPublisher must not block the caller: services publish right after commit.
type EventPublisher interface {
	Publish(e event.DomainEvent)
}

// Moderator rewrites member chat text before it is stored.
type Moderator interface {
	Censor(original string) string
}

// Worker runs until ctx is done. Returning nil means it finished for good.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Stop()
}

// GetWorkerName returns the type name of the worker, for logs.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
