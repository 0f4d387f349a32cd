// Package telegram provides read access to chat channels through a
// user-session gateway. The bot API used for notifications cannot read
// arbitrary channel history or run platform-wide search, so those
// operations go through a separately hosted gateway sidecar.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors mapped from gateway responses.
var (
	// ErrNotFound means the username or channel does not resolve.
	ErrNotFound = errors.New("telegram: channel not found")

	// ErrAccessDenied means the channel is private or the session is
	// banned from it.
	ErrAccessDenied = errors.New("telegram: access denied")
)

// RateLimitError is returned when the platform demands a pause before the
// next request of the same kind.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("telegram: rate limited, retry after %s", e.RetryAfter)
}

// ChannelInfo is channel metadata as reported by the platform.
type ChannelInfo struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	MemberCount int        `json:"member_count"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// Message is a single channel message.
type Message struct {
	ID       int64     `json:"id"`
	SenderID string    `json:"sender_id"`
	Text     string    `json:"text"`
	Date     time.Time `json:"date"`
}

// ChatClient is the read side of the chat platform.
type ChatClient interface {
	// ResolveChannel looks channel metadata up by username.
	ResolveChannel(ctx context.Context, username string) (*ChannelInfo, error)

	// Messages fetches up to limit recent messages, newest first.
	Messages(ctx context.Context, channelID string, limit int) ([]Message, error)

	// SearchChannels runs platform-wide channel search for a query.
	SearchChannels(ctx context.Context, query string, limit int) ([]ChannelInfo, error)

	// Join subscribes the session to a channel. Joining a channel the
	// session is already in is not an error.
	Join(ctx context.Context, username string) error
}
