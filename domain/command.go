package domain

import (
	"time"
)

// SendMessageCommand carries everything needed to create a mailbox message.
type SendMessageCommand struct {
	SenderID        string      `validate:"required"`
	RecipientTarget string      `validate:"required"`
	Subject         string      `validate:"required"`
	Content         string      `validate:"required"`
	Kind            MessageKind `validate:"required,oneof=system personal broadcast"`
	Priority        Priority    `validate:"required,oneof=low normal high"`
	Tags            []string    `validate:"dive,required"`
	ScheduledFor    *time.Time
}

type SaveTemplateCommand struct {
	Name     string   `validate:"required"`
	Subject  string   `validate:"required"`
	Content  string   `validate:"required"`
	Priority Priority `validate:"required,oneof=low normal high"`
}

type AppendChatCommand struct {
	SenderID      string   `validate:"required"`
	Content       string   `validate:"required_unless=Kind image"`
	Kind          ChatKind `validate:"required,oneof=text image system"`
	AttachmentRef string   `validate:"required_if=Kind image"`
}
