// Package render writes query results, exports and statistics in the output
// formats the CLI offers.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/wpparchive/internal/store"
)

// Format is an output encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatText  Format = "text"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatJSONL, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want csv, json, jsonl or text)", s)
	}
}

// messageRow is the JSON shape of a message. The raw payload is embedded as
// JSON when it is JSON, and base64 otherwise.
type messageRow struct {
	MessageID       string          `json:"message_id"`
	ConversationJID string          `json:"conversation_jid"`
	SenderJID       string          `json:"sender_jid"`
	SenderE164      *string         `json:"sender_e164"`
	SenderName      *string         `json:"sender_name"`
	Body            *string         `json:"body"`
	Timestamp       int64           `json:"timestamp"`
	IsFromMe        bool            `json:"is_from_me"`
	ReplyToID       *string         `json:"reply_to_id"`
	MediaPath       *string         `json:"media_path"`
	MediaType       *string         `json:"media_type"`
	Location        *store.Location `json:"location"`
	RawMessage      json.RawMessage `json:"raw_message"`
	AccountID       string          `json:"account_id"`
	CreatedAt       int64           `json:"created_at"`
}

type groupRow struct {
	ConversationID string       `json:"conversation_id"`
	ChatType       string       `json:"chat_type"`
	DisplayName    *string      `json:"display_name"`
	Messages       []messageRow `json:"messages"`
}

func toRow(m store.Message) messageRow {
	return messageRow{
		MessageID:       m.MessageID,
		ConversationJID: m.ConversationJID,
		SenderJID:       m.SenderJID,
		SenderE164:      m.SenderE164,
		SenderName:      m.SenderName,
		Body:            m.Body,
		Timestamp:       m.Timestamp,
		IsFromMe:        m.IsFromMe,
		ReplyToID:       m.ReplyToID,
		MediaPath:       m.MediaPath,
		MediaType:       m.MediaType,
		Location:        m.Location,
		RawMessage:      rawJSON(m.RawMessage),
		AccountID:       m.AccountID,
		CreatedAt:       m.CreatedAt,
	}
}

func toRows(msgs []store.Message) []messageRow {
	rows := make([]messageRow, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, toRow(m))
	}
	return rows
}

func rawJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	encoded, _ := json.Marshal(raw)
	return json.RawMessage(encoded)
}

// Messages writes query results. Text is rendered as CSV.
func Messages(w io.Writer, f Format, msgs []store.Message) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, toRows(msgs))
	case FormatJSONL:
		enc := json.NewEncoder(w)
		for _, m := range msgs {
			if err := enc.Encode(toRow(m)); err != nil {
				return err
			}
		}
		return nil
	default:
		cw := csv.NewWriter(w)
		if err := cw.Write(messageHeader); err != nil {
			return err
		}
		for _, m := range msgs {
			if err := cw.Write(messageRecord(m)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
}

// Conversations writes an export. JSONL emits one conversation per line; CSV
// flattens the groups into message rows prefixed with conversation metadata.
func Conversations(w io.Writer, f Format, groups []store.ConversationExport) error {
	switch f {
	case FormatJSON, FormatJSONL:
		rows := make([]groupRow, 0, len(groups))
		for _, g := range groups {
			rows = append(rows, groupRow{
				ConversationID: g.ConversationID,
				ChatType:       string(g.ChatType),
				DisplayName:    g.DisplayName,
				Messages:       toRows(g.Messages),
			})
		}
		if f == FormatJSON {
			return writeJSON(w, rows)
		}
		enc := json.NewEncoder(w)
		for _, r := range rows {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	default:
		cw := csv.NewWriter(w)
		if err := cw.Write(append([]string{"chat_type", "display_name"}, messageHeader...)); err != nil {
			return err
		}
		for _, g := range groups {
			prefix := []string{string(g.ChatType), deref(g.DisplayName)}
			for _, m := range g.Messages {
				if err := cw.Write(append(prefix[:2:2], messageRecord(m)...)); err != nil {
					return err
				}
			}
		}
		cw.Flush()
		return cw.Error()
	}
}

// Stats writes store statistics, as aligned text or JSON.
func Stats(w io.Writer, f Format, s *store.Stats) error {
	if f == FormatJSON || f == FormatJSONL {
		return json.NewEncoder(w).Encode(s)
	}
	_, err := fmt.Fprintf(w, "Messages:      %d\nConversations: %d\nOldest:        %s\nNewest:        %s\n",
		s.TotalMessages, s.TotalConversations, boundText(s.OldestMessage), boundText(s.NewestMessage))
	return err
}

type conversationInfo struct {
	*store.Conversation
	Participants []store.Participant `json:"participants"`
}

// ConversationInfo writes one conversation and its recorded members. CSV lists
// the members only.
func ConversationInfo(w io.Writer, f Format, c *store.Conversation, members []store.Participant) error {
	if members == nil {
		members = []store.Participant{}
	}
	switch f {
	case FormatJSON:
		return writeJSON(w, conversationInfo{Conversation: c, Participants: members})
	case FormatJSONL:
		return json.NewEncoder(w).Encode(conversationInfo{Conversation: c, Participants: members})
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"participant_jid", "participant_e164", "joined_at", "joined_at_iso"}); err != nil {
			return err
		}
		for _, p := range members {
			if err := cw.Write([]string{p.JID, deref(p.E164), strconv.FormatInt(p.JoinedAt, 10), FormatMillis(p.JoinedAt)}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}

	name := deref(c.DisplayName)
	if name == "" {
		name = "-"
	}
	last := "-"
	if c.LastMessageAt > 0 {
		last = FormatMillis(c.LastMessageAt)
	}
	if _, err := fmt.Fprintf(w, "JID:          %s\nType:         %s\nName:         %s\nLast message: %s\nCreated:      %s\nMembers:      %d\n",
		c.JID, c.ChatType, name, last, FormatMillis(c.CreatedAt), len(members)); err != nil {
		return err
	}
	for _, p := range members {
		e164 := deref(p.E164)
		if e164 == "" {
			e164 = "-"
		}
		if _, err := fmt.Fprintf(w, "  %s  %s\n", p.JID, e164); err != nil {
			return err
		}
	}
	return nil
}

var messageHeader = []string{
	"message_id", "conversation_jid", "sender_jid", "sender_e164", "sender_name", "body",
	"timestamp", "timestamp_iso", "is_from_me", "reply_to_id", "media_path", "media_type",
	"location_lat", "location_lon", "account_id", "created_at",
}

func messageRecord(m store.Message) []string {
	lat, lon := "", ""
	if m.Location != nil {
		lat = strconv.FormatFloat(m.Location.Lat, 'f', -1, 64)
		lon = strconv.FormatFloat(m.Location.Lon, 'f', -1, 64)
	}
	return []string{
		m.MessageID,
		m.ConversationJID,
		m.SenderJID,
		deref(m.SenderE164),
		deref(m.SenderName),
		deref(m.Body),
		strconv.FormatInt(m.Timestamp, 10),
		FormatMillis(m.Timestamp),
		strconv.FormatBool(m.IsFromMe),
		deref(m.ReplyToID),
		deref(m.MediaPath),
		deref(m.MediaType),
		lat,
		lon,
		m.AccountID,
		strconv.FormatInt(m.CreatedAt, 10),
	}
}

// FormatMillis renders epoch milliseconds as RFC3339 in UTC.
func FormatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}

func boundText(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return FormatMillis(*ms)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
