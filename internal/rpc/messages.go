package rpc

import (
	"github.com/matheus3301/wpparchive/internal/archive"
	"github.com/matheus3301/wpparchive/internal/store"
)

type QueryMessagesRequest struct {
	Filter store.Filter `json:"filter"`
}

type QueryMessagesResponse struct {
	Messages []store.Message `json:"messages"`
}

type ExportMessagesRequest struct {
	Filter store.Filter `json:"filter"`
}

type ExportMessagesResponse struct {
	Conversations []store.ConversationExport `json:"conversations"`
}

type GetStatsRequest struct{}

type GetStatsResponse struct {
	Stats store.Stats `json:"stats"`
}

type GetConversationRequest struct {
	JID string `json:"jid"`
}

// GetConversationResponse carries a nil Conversation when the JID is unknown.
type GetConversationResponse struct {
	Conversation *store.Conversation `json:"conversation"`
}

type ListParticipantsRequest struct {
	JID string `json:"jid"`
}

type ListParticipantsResponse struct {
	Participants []store.Participant `json:"participants"`
}

type StatusRequest struct{}

// StatusResponse describes the running daemon.
type StatusResponse struct {
	Account     string           `json:"account"`
	State       string           `json:"state"`
	StateSince  int64            `json:"state_since"`
	PhoneNumber string           `json:"phone_number,omitempty"`
	UptimeMs    int64            `json:"uptime_ms"`
	StorePath   string           `json:"store_path"`
	Archive     archive.Counters `json:"archive"`
}
