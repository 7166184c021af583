package store

import (
	"database/sql"
	"errors"
)

// upsertConversation inserts the conversation or, when it exists, merges the
// incoming values into it in one statement: a NULL display name keeps the
// stored one, and last_message_at always takes the incoming timestamp.
func (s *Store) upsertConversation(jid string, chatType ChatType, displayName *string, lastMessageAt, now int64) error {
	_, err := s.db.Exec(`
		INSERT INTO conversations (jid, chat_type, display_name, last_message_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			display_name = COALESCE(excluded.display_name, conversations.display_name),
			last_message_at = excluded.last_message_at`,
		jid, string(chatType), nullString(displayName), lastMessageAt, now)
	return err
}

// Conversation returns the conversation with the given JID, or nil when the
// store has no such row.
func (s *Store) Conversation(jid string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	c, err := s.conversation(jid)
	if err != nil {
		return nil, s.fail("get conversation", err)
	}
	return c, nil
}

func (s *Store) conversation(jid string) (*Conversation, error) {
	var (
		c           Conversation
		chatType    string
		displayName sql.NullString
		lastMessage sql.NullInt64
	)
	err := s.db.QueryRow(`
		SELECT jid, chat_type, display_name, last_message_at, created_at
		FROM conversations
		WHERE jid = ?`, jid).
		Scan(&c.JID, &chatType, &displayName, &lastMessage, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.ChatType = ChatType(chatType)
	c.DisplayName = stringPtr(displayName)
	c.LastMessageAt = lastMessage.Int64
	return &c, nil
}
