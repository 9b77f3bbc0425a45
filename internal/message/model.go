package message

import (
	"time"

	"github.com/google/uuid"
)

// Message is one chat line in a group
type Message struct {
	ID        uuid.UUID `json:"id"`
	GroupID   uuid.UUID `json:"group_id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SendMessageRequest represents the request body for posting a message
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}
