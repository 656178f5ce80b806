// Package domain contains core concepts of the messaging system.
// This file defines mailbox Messages and the visibility rule.
// Read and starred flags belong to a viewer, not to the record.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Everyone is the broadcast recipient target.
const Everyone = "everyone"

type MessageKind string

const (
	KindSystem    MessageKind = "system"
	KindPersonal  MessageKind = "personal"
	KindBroadcast MessageKind = "broadcast"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

type Filter string

const (
	FilterAll     Filter = "all"
	FilterUnread  Filter = "unread"
	FilterStarred Filter = "starred"
	FilterSystem  Filter = "system"
)

func (f Filter) Valid() bool {
	switch f {
	case FilterAll, FilterUnread, FilterStarred, FilterSystem:
		return true
	}
	return false
}

// Message is the projection of a stored message for one viewer.
type Message struct {
	ID              uuid.UUID   `json:"id"`
	SenderID        string      `json:"senderId"`
	RecipientTarget string      `json:"recipientTarget"`
	Subject         string      `json:"subject"`
	Content         string      `json:"content"`
	Kind            MessageKind `json:"kind"`
	Priority        Priority    `json:"priority"`
	IsRead          bool        `json:"isRead"`
	IsStarred       bool        `json:"isStarred"`
	CreatedAt       time.Time   `json:"createdAt"`
	Tags            []string    `json:"tags,omitempty"`
	ScheduledFor    *time.Time  `json:"scheduledFor,omitempty"`
}

// VisibleTo reports whether a recipient target addresses the given actor.
func VisibleTo(recipientTarget, actorID string) bool {
	return recipientTarget == actorID || recipientTarget == Everyone
}

// IsSystem is true for kinds shown under the system filter.
func (k MessageKind) IsSystem() bool {
	return k == KindSystem || k == KindBroadcast
}

// MailboxStats feeds the admin dashboard.
type MailboxStats struct {
	Total          int `json:"total"`
	Broadcasts     int `json:"broadcasts"`
	System         int `json:"system"`
	Personal       int `json:"personal"`
	Deliveries     int `json:"deliveries"`
	ReadDeliveries int `json:"readDeliveries"`
	ReadRate       int `json:"readRate"`
	ActiveUsers    int `json:"activeUsers"`
}
