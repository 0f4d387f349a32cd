package clickhouse

import (
	"context"
	"fmt"

	"cryptspider/internal/domain"
	"cryptspider/internal/storage"
)

// MessageStore implements storage.MessageStore using ClickHouse.
// The archive is append-only; MergeTree does not enforce uniqueness and
// the crawler tolerates the occasional re-archived message.
type MessageStore struct {
	conn *Conn
}

// NewMessageStore creates a new MessageStore.
func NewMessageStore(conn *Conn) *MessageStore {
	return &MessageStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MessageStore = (*MessageStore)(nil)

// InsertBulk archives a batch of messages.
func (s *MessageStore) InsertBulk(ctx context.Context, msgs []*domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO chat_messages (
			message_id, chat_id, chat_title, sender_id, text, timestamp,
			has_token_mention, token_names
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, m := range msgs {
		mention := uint8(0)
		if m.HasTokenMention {
			mention = 1
		}
		err = batch.Append(
			m.MessageID, m.ChatID, m.ChatTitle, m.SenderID, m.Text,
			m.Timestamp, mention, m.TokenNames,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}
