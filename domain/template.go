package domain

import (
	"time"

	"github.com/google/uuid"
)

// Template is a reusable draft. Using it copies its fields into a new Message.
type Template struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Content   string    `json:"content"`
	Priority  Priority  `json:"priority"`
	CreatedAt time.Time `json:"createdAt"`
}
