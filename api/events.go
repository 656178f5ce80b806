package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"nexus-mail/domain"
	"nexus-mail/domain/event"

	"github.com/google/uuid"
)

// streamSink buffers the events of one connected client until the HTTP
// handler writes them out.
type streamSink struct {
	events chan event.DomainEvent
}

func newStreamSink(bufferSize int) *streamSink {
	return &streamSink{events: make(chan event.DomainEvent, bufferSize)}
}

// Consume is called by the fanout. A client that does not drain its buffer
// loses events once the sink timeout expires.
func (s *streamSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) sessionEvents(w http.ResponseWriter, r *http.Request) {
	session, err := s.accessibleSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.stream(w, r, session.ID.String(), func(event.DomainEvent) bool { return true })
}

// mailboxEvents only forwards what the actor is allowed to see.
func (s *Server) mailboxEvents(w http.ResponseWriter, r *http.Request) {
	actorID := actor(r).ID
	s.stream(w, r, event.MailboxTopic, func(e event.DomainEvent) bool {
		return visibleMailboxEvent(e, actorID)
	})
}

func visibleMailboxEvent(e event.DomainEvent, actorID string) bool {
	switch evt := e.(type) {
	case event.MessageSent:
		return domain.VisibleTo(evt.RecipientTarget, actorID)
	case event.MessageRecalled:
		return domain.VisibleTo(evt.RecipientTarget, actorID)
	default:
		return true
	}
}

// stream subscribes the connection to topic and writes server-sent events
// until the client goes away.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, topic string, keep func(event.DomainEvent) bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeMessage(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := newStreamSink(s.connectionBufferSize)
	subscriberID := uuid.NewString()
	s.registry.Subscribe(subscriberID, topic, sink)
	defer s.registry.Unsubscribe(subscriberID, topic)

	for {
		select {
		case <-r.Context().Done():
			s.log.Debug("Stream client disconnected", "subscriber", subscriberID, "topic", topic)
			return
		case evt := <-sink.events:
			if !keep(evt) {
				continue
			}
			if err := writeEvent(w, evt); err != nil {
				s.log.Error("Failed to push event to stream", "subscriber", subscriberID, "topic", topic, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, evt event.DomainEvent) error {
	name, payload := eventPayload(evt)
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

func eventPayload(evt event.DomainEvent) (string, any) {
	switch e := evt.(type) {
	case event.MessageSent:
		return "message.sent", map[string]any{
			"id": e.ID, "senderId": e.SenderID, "recipientTarget": e.RecipientTarget, "subject": e.Subject, "at": e.At,
		}
	case event.MessageRecalled:
		return "message.recalled", map[string]any{"id": e.ID, "at": e.At}
	case event.ChatMessageAppended:
		return "chat.message", e.Message
	case event.SessionClosed:
		return "session.closed", map[string]any{"sessionId": e.SessionID, "closedBy": e.ClosedBy, "at": e.At}
	default:
		return "unknown", map[string]any{"topic": evt.Topic()}
	}
}
