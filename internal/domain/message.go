package domain

import "time"

// InboundMessage is one message received from the chat network.
type InboundMessage struct {
	ChatID    int64
	MessageID int
	SenderID  int64
	Text      string
	Media     *MediaRef // nil when the message carries no attachment
	Timestamp time.Time
}

// MediaRef points at an attachment owned by the chat network. The core only
// borrows it for the duration of one classify-and-fetch cycle.
type MediaRef struct {
	FileID       string // ephemeral handle used to download the bytes
	FileUniqueID string // stable across chats and bots; used as identity
	FileName     string
	MimeType     string
	Size         int64
}

// HasMedia reports whether the message carries an attachment.
func (m InboundMessage) HasMedia() bool { return m.Media != nil }
