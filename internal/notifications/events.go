// Package notifications provides real-time notification delivery to listing owners.
package notifications

import (
	"context"
	"time"
)

// Event types delivered over the notification stream.
const (
	EventNewMessage = "new_message"
)

// Event is one notification payload. FromUser is the acting user, never the
// recipient.
type Event struct {
	Type      string    `json:"type"`
	FlatID    uint      `json:"flat_id"`
	MessageID uint      `json:"message_id,omitempty"`
	FromUser  uint      `json:"from_user"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier publishes events toward a user's notification stream.
type Notifier interface {
	NotifyUser(ctx context.Context, userID uint, event Event) error
}
