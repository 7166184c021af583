package store

import "database/sql"

// GetStats returns message and conversation totals and the timestamp range of
// all stored messages.
func (s *Store) GetStats() (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}

	var (
		st             Stats
		oldest, newest sql.NullInt64
	)
	if err := s.db.QueryRow(`SELECT COUNT(*), MIN(timestamp), MAX(timestamp) FROM messages`).
		Scan(&st.TotalMessages, &oldest, &newest); err != nil {
		return nil, s.fail("message stats", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&st.TotalConversations); err != nil {
		return nil, s.fail("conversation stats", err)
	}
	if oldest.Valid {
		st.OldestMessage = &oldest.Int64
	}
	if newest.Valid {
		st.NewestMessage = &newest.Int64
	}
	return &st, nil
}
