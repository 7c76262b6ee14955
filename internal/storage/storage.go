package storage

import (
	"context"
	"time"
)

// Message is the envelope for one persisted chat message. It is immutable
// once saved; copies of it travel over the fan-out bus and down to clients.
// JSON field names are part of the wire format the clients consume.
type Message struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	From      string    `json:"from" gorm:"column:from_id;type:varchar(64);index;not null"`
	To        string    `json:"to" gorm:"column:to_id;type:varchar(64);index;not null"`
	Content   string    `json:"content" gorm:"not null"`
	CreatedAt time.Time `json:"date"`
}

// TableName overrides the gorm table name.
func (Message) TableName() string {
	return "messages"
}

// Store persists chat messages and serves conversation history. The store
// assigns the message identifier and timestamp; callers treat the returned
// Message as the canonical envelope.
type Store interface {
	// SaveMessage persists a message and returns the envelope with its
	// assigned identifier and creation timestamp.
	SaveMessage(ctx context.Context, from, to, content string) (*Message, error)

	// ListHistory returns messages exchanged between two users in either
	// direction, oldest first, with 1-based page numbering.
	ListHistory(ctx context.Context, userA, userB string, page, pageSize int) ([]*Message, error)

	// Close releases the underlying database connection.
	Close() error
}
