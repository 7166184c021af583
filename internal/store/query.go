package store

import (
	"strings"
	"time"
)

// zonedLayouts are ISO-8601 date-times carrying Z or a UTC offset, with or
// without a colon in the offset and with or without seconds.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
}

// localLayouts are ISO-8601 date-times without a zone; they are read in local
// time. Fractional seconds are accepted after the seconds field.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseBound converts an ISO-8601 date or date-time into epoch milliseconds.
// A bare date is midnight UTC, a date-time with an offset or Z is honored, and
// a date-time without one is local time.
func ParseBound(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UnixMilli(), true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t.UnixMilli(), true
		}
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t.UnixMilli(), true
	}
	return 0, false
}

// QueryMessages returns every message matching the filter, oldest first. With
// a limit, the earliest matching messages are returned.
func (s *Store) QueryMessages(f Filter) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.queryMessages(f)
}

func (s *Store) queryMessages(f Filter) ([]Message, error) {
	var (
		conds []string
		args  []any
	)
	if f.From != "" {
		from, ok := ParseBound(f.From)
		if !ok {
			return nil, s.invalid("from", f.From)
		}
		conds = append(conds, "timestamp >= ?")
		args = append(args, from)
	}
	if f.To != "" {
		to, ok := ParseBound(f.To)
		if !ok {
			return nil, s.invalid("to", f.To)
		}
		conds = append(conds, "timestamp <= ?")
		args = append(args, to)
	}
	if f.ConversationJID != "" {
		conds = append(conds, "conversation_jid = ?")
		args = append(args, f.ConversationJID)
	}
	if f.AccountID != "" {
		conds = append(conds, "account_id = ?")
		args = append(args, f.AccountID)
	}

	q := `SELECT ` + messageColumns + ` FROM messages`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY timestamp ASC, rowid ASC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, s.fail("query messages", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, s.fail("scan message", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("query messages", err)
	}
	return msgs, nil
}
