package event

import (
	"nexus-mail/domain"
	"time"

	"github.com/google/uuid"
)

const (
	// MailboxTopic receives every mailbox event.
	MailboxTopic = "mailbox"
	// AllTopics subscribers receive every event, whatever its topic.
	AllTopics = "*"
)

// DomainEvent is published after a mutation has been committed.
type DomainEvent interface {
	Topic() string
	OccurredAt() time.Time
}

type MessageSent struct {
	ID              uuid.UUID
	SenderID        string
	RecipientTarget string
	Subject         string
	At              time.Time
}

func (m MessageSent) Topic() string         { return MailboxTopic }
func (m MessageSent) OccurredAt() time.Time { return m.At }

type MessageRecalled struct {
	ID              uuid.UUID
	ActorID         string
	RecipientTarget string
	At              time.Time
}

func (m MessageRecalled) Topic() string         { return MailboxTopic }
func (m MessageRecalled) OccurredAt() time.Time { return m.At }

type ChatMessageAppended struct {
	Message domain.ChatMessage
}

func (c ChatMessageAppended) Topic() string         { return c.Message.SessionID.String() }
func (c ChatMessageAppended) OccurredAt() time.Time { return c.Message.Timestamp }

type SessionClosed struct {
	SessionID uuid.UUID
	ClosedBy  string
	At        time.Time
}

func (s SessionClosed) Topic() string         { return s.SessionID.String() }
func (s SessionClosed) OccurredAt() time.Time { return s.At }
