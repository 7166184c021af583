package store

// ChatType is the kind of a conversation.
type ChatType string

const (
	ChatDirect ChatType = "direct"
	ChatGroup  ChatType = "group"
)

// Conversation is a row of the conversations table.
type Conversation struct {
	JID           string   `json:"jid"`
	ChatType      ChatType `json:"chat_type"`
	DisplayName   *string  `json:"display_name"`
	LastMessageAt int64    `json:"last_message_at"`
	CreatedAt     int64    `json:"created_at"`
}

// Location is a latitude/longitude pair. A message carries both or neither.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Message is a row of the messages table, keyed by (ConversationJID, MessageID).
// Timestamps are epoch milliseconds.
type Message struct {
	MessageID       string    `json:"message_id"`
	ConversationJID string    `json:"conversation_jid"`
	SenderJID       string    `json:"sender_jid"`
	SenderE164      *string   `json:"sender_e164"`
	SenderName      *string   `json:"sender_name"`
	Body            *string   `json:"body"`
	Timestamp       int64     `json:"timestamp"`
	IsFromMe        bool      `json:"is_from_me"`
	ReplyToID       *string   `json:"reply_to_id"`
	MediaPath       *string   `json:"media_path"`
	MediaType       *string   `json:"media_type"`
	Location        *Location `json:"location"`
	RawMessage      []byte    `json:"raw_message"`
	AccountID       string    `json:"account_id"`
	CreatedAt       int64     `json:"created_at"`
}

// Participant is a member of a group conversation.
type Participant struct {
	JID      string  `json:"participant_jid"`
	E164     *string `json:"participant_e164"`
	JoinedAt int64   `json:"joined_at"`
}

// Incoming is one ingestion unit: a message plus what the store needs to know
// about its conversation. Message.CreatedAt is ignored and set by the store.
type Incoming struct {
	Message      Message
	ChatType     ChatType
	DisplayName  *string
	Participants []Participant
}

// Filter narrows QueryMessages and ExportMessages. Zero fields impose no
// constraint. From and To are inclusive ISO-8601 bounds on the message
// timestamp.
type Filter struct {
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`
	ConversationJID string `json:"conversation_jid,omitempty"`
	AccountID       string `json:"account_id,omitempty"`
	Limit           int    `json:"limit,omitempty"`
}

// ConversationExport is one conversation's slice of an export, messages in
// ascending timestamp order.
type ConversationExport struct {
	ConversationID string    `json:"conversation_id"`
	ChatType       ChatType  `json:"chat_type"`
	DisplayName    *string   `json:"display_name"`
	Messages       []Message `json:"messages"`
}

// Stats summarizes the whole store. The bounds are nil when it holds no
// messages.
type Stats struct {
	TotalMessages      int64  `json:"total_messages"`
	TotalConversations int64  `json:"total_conversations"`
	OldestMessage      *int64 `json:"oldest_message"`
	NewestMessage      *int64 `json:"newest_message"`
}
