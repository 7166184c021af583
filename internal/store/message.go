package store

import (
	"database/sql"
	"time"

	"go.uber.org/zap"
)

const messageColumns = `message_id, conversation_jid, sender_jid, sender_e164, sender_name, body,
	timestamp, is_from_me, reply_to_id, media_path, media_type, location_lat, location_lon,
	raw_message, account_id, created_at`

// StoreMessage ingests one message. The conversation is upserted first, then
// the message row is written (replacing any row with the same conversation and
// message id), then group participants are recorded if not already known.
// Each step is its own statement; the first failure is returned and later
// steps are skipped.
func (s *Store) StoreMessage(in *Incoming) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return ErrNotInitialized
	}

	m := &in.Message
	chatType := in.ChatType
	if chatType == "" {
		chatType = ChatDirect
	}
	now := time.Now().UnixMilli()

	if err := s.upsertConversation(m.ConversationJID, chatType, in.DisplayName, m.Timestamp, now); err != nil {
		return s.fail("upsert conversation", err)
	}

	if err := s.replaceMessage(m, now); err != nil {
		return s.fail("insert message", err)
	}

	if chatType == ChatGroup && len(in.Participants) > 0 {
		if err := s.insertParticipants(m.ConversationJID, in.Participants, now); err != nil {
			return s.fail("insert participants", err)
		}
	}

	s.logger.Debug("message stored",
		zap.String("conversation_jid", m.ConversationJID),
		zap.String("message_id", m.MessageID),
		zap.Int64("timestamp", m.Timestamp),
	)
	return nil
}

func (s *Store) replaceMessage(m *Message, now int64) error {
	var lat, lon any
	if m.Location != nil {
		lat, lon = m.Location.Lat, m.Location.Lon
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MessageID, m.ConversationJID, m.SenderJID, nullString(m.SenderE164), nullString(m.SenderName),
		nullString(m.Body), m.Timestamp, m.IsFromMe, nullString(m.ReplyToID), nullString(m.MediaPath),
		nullString(m.MediaType), lat, lon, m.RawMessage, m.AccountID, now)
	return err
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (Message, error) {
	var (
		m                      Message
		senderE164, senderName sql.NullString
		body, replyTo          sql.NullString
		mediaPath, mediaType   sql.NullString
		lat, lon               sql.NullFloat64
	)
	err := row.Scan(&m.MessageID, &m.ConversationJID, &m.SenderJID, &senderE164, &senderName, &body,
		&m.Timestamp, &m.IsFromMe, &replyTo, &mediaPath, &mediaType, &lat, &lon,
		&m.RawMessage, &m.AccountID, &m.CreatedAt)
	if err != nil {
		return m, err
	}
	m.SenderE164 = stringPtr(senderE164)
	m.SenderName = stringPtr(senderName)
	m.Body = stringPtr(body)
	m.ReplyToID = stringPtr(replyTo)
	m.MediaPath = stringPtr(mediaPath)
	m.MediaType = stringPtr(mediaType)
	if lat.Valid && lon.Valid {
		m.Location = &Location{Lat: lat.Float64, Lon: lon.Float64}
	}
	return m, nil
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
