package domain

import "time"

// ChatMessage is a crawled chat message that carried a token mention.
// Archived append-only in ClickHouse.
type ChatMessage struct {
	MessageID       int64
	ChatID          string
	ChatTitle       string
	SenderID        string
	Text            string
	Timestamp       time.Time
	HasTokenMention bool
	TokenNames      []string // extracted candidate names, sorted
}
