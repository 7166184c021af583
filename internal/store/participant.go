package store

import "database/sql"

// insertParticipants records group members. A member already known for the
// conversation is left untouched.
func (s *Store) insertParticipants(conversationJID string, participants []Participant, now int64) error {
	for _, p := range participants {
		joinedAt := p.JoinedAt
		if joinedAt == 0 {
			joinedAt = now
		}
		if _, err := s.db.Exec(`
			INSERT OR IGNORE INTO participants (conversation_jid, participant_jid, participant_e164, joined_at)
			VALUES (?, ?, ?, ?)`,
			conversationJID, p.JID, nullString(p.E164), joinedAt); err != nil {
			return err
		}
	}
	return nil
}

// Participants returns the recorded members of a conversation in join order.
func (s *Store) Participants(conversationJID string) ([]Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}

	rows, err := s.db.Query(`
		SELECT participant_jid, participant_e164, joined_at
		FROM participants
		WHERE conversation_jid = ?
		ORDER BY joined_at ASC, rowid ASC`, conversationJID)
	if err != nil {
		return nil, s.fail("list participants", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Participant
	for rows.Next() {
		var (
			p    Participant
			e164 sql.NullString
		)
		if err := rows.Scan(&p.JID, &e164, &p.JoinedAt); err != nil {
			return nil, s.fail("scan participant", err)
		}
		p.E164 = stringPtr(e164)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list participants", err)
	}
	return out, nil
}
