package wa

import (
	"context"

	"github.com/matheus3301/wpparchive/internal/bus"
	"github.com/matheus3301/wpparchive/internal/status"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// Bus event kinds published by the handler.
const (
	KindMessage      = "wa.message"
	KindHistoryBatch = "wa.history_batch"
	KindConnected    = "wa.connected"
	KindDisconnected = "wa.disconnected"
	KindLoggedOut    = "wa.logged_out"
)

// EventHandler processes whatsmeow events, drives the state machine,
// and publishes parsed domain events on the bus. It does NOT write to the
// store; the archive engine subscribes to the bus independently.
type EventHandler struct {
	bus       *bus.Bus
	machine   *status.Machine
	adapter   *Adapter
	accountID string
	logger    *zap.Logger
}

// NewEventHandler creates a new event handler. adapter may be nil, in which
// case LID JIDs are kept as received.
func NewEventHandler(b *bus.Bus, machine *status.Machine, adapter *Adapter, accountID string, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		bus:       b,
		machine:   machine,
		adapter:   adapter,
		accountID: accountID,
		logger:    logger,
	}
}

// Handle is the main whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		current := h.machine.Current()
		if current == status.AuthRequired || current == status.Reconnecting {
			_ = h.machine.Transition(status.Connecting)
		}
		_ = h.machine.TransitionIfNot(status.Archiving)
		h.bus.Publish(bus.NewEvent(KindConnected, nil))
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		_ = h.machine.TransitionIfNot(status.Reconnecting)
		h.bus.Publish(bus.NewEvent(KindDisconnected, nil))
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.OfflineSyncCompleted:
		if h.machine.Current() == status.Backfilling {
			_ = h.machine.Transition(status.Archiving)
		}
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		_ = h.machine.Transition(status.AuthRequired)
		h.bus.Publish(bus.NewEvent(KindLoggedOut, evt.Reason.String()))
	}
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	if !IsArchivable(evt.Message) {
		return
	}
	if h.machine.Current() == status.Backfilling {
		_ = h.machine.Transition(status.Archiving)
	}

	parsed := ParseLiveMessage(evt)
	parsed.ChatJID = h.resolveJID(parsed.ChatJID)
	parsed.SenderJID = h.resolveJID(parsed.SenderJID)
	h.bus.Publish(bus.NewEvent(KindMessage, parsed.ToInbound(h.accountID)))
}

func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}
	if h.machine.Current() == status.Archiving {
		_ = h.machine.Transition(status.Backfilling)
	}

	self := h.adapter.Self()
	var batch []*Inbound
	for _, conv := range data.GetConversations() {
		chatJID := h.resolveJID(conv.GetID())
		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || !IsArchivable(wmsg.GetMessage()) {
				continue
			}
			parsed := ParseHistoryMessage(chatJID, wmsg, self)
			parsed.SenderJID = h.resolveJID(parsed.SenderJID)
			in := parsed.ToInbound(h.accountID)
			if name := conv.GetName(); name != "" && IsGroupJID(chatJID) {
				in.Incoming.DisplayName = &name
			}
			batch = append(batch, in)
		}
	}

	h.logger.Debug("history sync received",
		zap.String("type", data.GetSyncType().String()),
		zap.Int("conversations", len(data.GetConversations())),
		zap.Int("messages", len(batch)),
	)
	if len(batch) > 0 {
		h.bus.Publish(bus.NewEvent(KindHistoryBatch, batch))
	}
}

// resolveJID strips the device suffix and maps LIDs to phone-number JIDs
// when the adapter knows the mapping.
func (h *EventHandler) resolveJID(jid string) string {
	normalized := NormalizeJID(jid)
	if h.adapter == nil || normalized == "" {
		return normalized
	}
	parsed, err := types.ParseJID(normalized)
	if err != nil {
		return normalized
	}
	return h.adapter.ResolveLID(context.Background(), parsed).String()
}
