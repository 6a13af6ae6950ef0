package domain

import (
	"context"
	"fmt"
)

// ChatRef addresses a chat, channel, or user. Exactly one of ID or Username
// is set: numeric ids address channels directly (negative by convention),
// textual handles address public chats.
type ChatRef struct {
	ID       int64
	Username string
}

func (r ChatRef) String() string {
	if r.Username != "" {
		return "@" + r.Username
	}
	return fmt.Sprintf("%d", r.ID)
}

// ChatClient is the slice of the chat protocol the core needs. The real wire
// protocol, authentication, and update delivery live behind this interface.
type ChatClient interface {
	// SendText delivers a plain status message to a chat.
	SendText(ctx context.Context, chatID int64, text string) error

	// DeleteMessage removes a message from a chat. Best effort: the loop
	// calls it unconditionally after processing.
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error

	// DownloadFile fetches attachment bytes to destPath and returns the
	// final path on disk.
	DownloadFile(ctx context.Context, fileID, destPath string) (string, error)

	// FetchMessage resolves a (chat, message id) coordinate into the
	// referenced message, including any media it carries.
	FetchMessage(ctx context.Context, chat ChatRef, messageID int) (*InboundMessage, error)
}
