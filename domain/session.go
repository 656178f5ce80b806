package domain

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// ChatSession is one support conversation between a member and the admin pool.
type ChatSession struct {
	ID                  uuid.UUID     `json:"id"`
	UserID              string        `json:"userId"`
	LastMessagePreview  string        `json:"lastMessagePreview"`
	LastMessageAt       time.Time     `json:"lastMessageAt"`
	UnreadCountForAdmin int           `json:"unreadCountForAdmin"`
	Status              SessionStatus `json:"status"`
	CreatedAt           time.Time     `json:"createdAt"`
	ClosedAt            *time.Time    `json:"closedAt,omitempty"`
	// NextSeq is the position the next appended message will take.
	NextSeq uint64 `json:"nextSeq"`
}

func (s ChatSession) IsActive() bool {
	return s.Status == SessionActive
}

type ChatKind string

const (
	ChatText   ChatKind = "text"
	ChatImage  ChatKind = "image"
	ChatSystem ChatKind = "system"
)

// ChatMessage never changes after being appended, except for IsRead.
type ChatMessage struct {
	ID            uuid.UUID `json:"id"`
	SessionID     uuid.UUID `json:"sessionId"`
	SenderID      string    `json:"senderId"`
	SenderRole    Role      `json:"senderRole"`
	Content       string    `json:"content"`
	Kind          ChatKind  `json:"kind"`
	AttachmentRef string    `json:"attachmentRef,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	IsRead        bool      `json:"isRead"`
	Seq           uint64    `json:"seq"`
}

// Preview is the text shown in the admin session list.
func (m ChatMessage) Preview() string {
	if m.Kind == ChatImage {
		if m.Content != "" {
			return "[image] " + m.Content
		}
		return "[image]"
	}
	return m.Content
}

// Attachment holds the bytes behind an image chat message.
type Attachment struct {
	Ref       string    `json:"ref"`
	SessionID uuid.UUID `json:"sessionId"`
	MimeType  string    `json:"mimeType"`
	Size      int       `json:"size"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
