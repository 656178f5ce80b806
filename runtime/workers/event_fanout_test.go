package workers

import (
	"context"
	"log/slog"
	"nexus-mail/contract"
	"nexus-mail/domain/event"
	"nexus-mail/mocks"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestEventFanout_Fanout(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	mockSink1 := mocks.NewMockEventSink(ctrl)
	mockSink2 := mocks.NewMockEventSink(ctrl)

	fanout := NewEventFanout(log, mockRegistry, 10, time.Second)
	evt := event.MessageSent{ID: uuid.New(), SenderID: "admin-1", RecipientTarget: "everyone", At: time.Now()}

	// Given two sinks listen to the mailbox
	mockRegistry.EXPECT().GetSinks(event.MailboxTopic).
		Return([]contract.EventSink{mockSink1, mockSink2}).Times(1)
	// Then each one consumes the event once
	mockSink1.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)
	mockSink2.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	// When the event is fanned out
	fanout.Fanout(context.Background(), evt)
}

func TestEventFanout_SinkTimeout(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	slowSink := mocks.NewMockEventSink(ctrl)

	sinkTimeout := 20 * time.Millisecond
	fanout := NewEventFanout(log, mockRegistry, 10, sinkTimeout)
	evt := event.SessionClosed{SessionID: uuid.New(), ClosedBy: "admin-1", At: time.Now()}

	mockRegistry.EXPECT().GetSinks(evt.SessionID.String()).
		Return([]contract.EventSink{slowSink}).Times(1)
	// Given a sink that never finishes on its own
	slowSink.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, evt event.DomainEvent) error {
			<-ctx.Done()
			return ctx.Err()
		}).Times(1)

	// When the event is fanned out
	start := time.Now()
	fanout.Fanout(context.Background(), evt)

	// Then the fanout gives up after the sink timeout
	req.Less(time.Since(start), time.Second)
}

func TestEventFanout_Publish_Drops_When_Buffer_Full(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRegistry := mocks.NewMockIRegistry(ctrl)

	// Given a buffer of one and no running loop
	fanout := NewEventFanout(log, mockRegistry, 1, time.Second)

	// When two events are published
	fanout.Publish(event.MessageRecalled{ID: uuid.New(), ActorID: "admin-1"})
	fanout.Publish(event.MessageRecalled{ID: uuid.New(), ActorID: "admin-1"})

	// Then only the first is kept and the caller never blocked
	req.Len(fanout.events, 1)
}

func TestEventFanout_Run_Delivers_Published_Events(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	mockSink := mocks.NewMockEventSink(ctrl)

	fanout := NewEventFanout(log, mockRegistry, 10, time.Second)
	evt := event.MessageRecalled{ID: uuid.New(), ActorID: "admin-1", At: time.Now()}
	delivered := make(chan struct{})

	mockRegistry.EXPECT().GetSinks(event.MailboxTopic).
		Return([]contract.EventSink{mockSink}).Times(1)
	mockSink.EXPECT().Consume(gomock.Any(), evt).
		DoAndReturn(func(ctx context.Context, e event.DomainEvent) error {
			close(delivered)
			return nil
		}).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- fanout.Run(ctx) }()

	// When an event is published
	fanout.Publish(evt)

	select {
	case <-delivered:
	case <-time.After(time.Second):
		req.Fail("Event was not delivered")
	}

	// Then cancelling stops the loop cleanly
	cancel()
	req.NoError(<-runErr)
}
