package wa

import (
	"github.com/matheus3301/wpparchive/internal/store"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// ParsedMessage is a normalized message ready for ingestion.
type ParsedMessage struct {
	ChatJID     string
	MsgID       string
	SenderJID   string
	SenderName  string
	Body        string
	MessageType string
	FromMe      bool
	Timestamp   int64
	ReplyToID   string
	Location    *store.Location
	Raw         []byte
	Media       whatsmeow.DownloadableMessage
	MimeType    string
}

// Inbound is the payload of wa.message and wa.history_batch events: the row
// to archive plus the attachment handle, if any, for the media downloader.
type Inbound struct {
	Incoming *store.Incoming
	Media    whatsmeow.DownloadableMessage
	MimeType string
}

// ParseLiveMessage normalizes a live whatsmeow message event. whatsmeow has
// already unwrapped evt.Message; the raw payload keeps the wrappers.
func ParseLiveMessage(evt *events.Message) *ParsedMessage {
	raw := evt.RawMessage
	if raw == nil {
		raw = evt.Message
	}
	p := parseContent(Unwrap(evt.Message), raw)
	p.ChatJID = NormalizeJID(evt.Info.Chat.String())
	p.MsgID = evt.Info.ID
	p.SenderJID = NormalizeJID(evt.Info.Sender.String())
	p.SenderName = evt.Info.PushName
	p.FromMe = evt.Info.IsFromMe
	p.Timestamp = evt.Info.Timestamp.UnixMilli()
	return p
}

// ParseHistoryMessage normalizes a history sync message. self is the
// account's own JID, used as the sender of outgoing direct messages whose
// key carries no participant.
func ParseHistoryMessage(chatJID string, wmsg *waWeb.WebMessageInfo, self string) *ParsedMessage {
	key := wmsg.GetKey()
	p := parseContent(Unwrap(wmsg.GetMessage()), wmsg.GetMessage())
	p.ChatJID = NormalizeJID(chatJID)
	p.MsgID = key.GetID()
	p.FromMe = key.GetFromMe()
	p.SenderName = wmsg.GetPushName()
	p.Timestamp = int64(wmsg.GetMessageTimestamp()) * 1000

	switch {
	case key.GetParticipant() != "":
		p.SenderJID = NormalizeJID(key.GetParticipant())
	case wmsg.GetParticipant() != "":
		p.SenderJID = NormalizeJID(wmsg.GetParticipant())
	case p.FromMe:
		p.SenderJID = NormalizeJID(self)
	default:
		p.SenderJID = p.ChatJID
	}
	return p
}

// parseContent reads the fields from the unwrapped content and stores raw,
// the payload as received, verbatim.
func parseContent(content, raw *waE2E.Message) *ParsedMessage {
	p := &ParsedMessage{
		Body:        extractTextBody(content),
		MessageType: detectMessageType(content),
		ReplyToID:   extractReplyTo(content),
		Location:    extractLocation(content),
		Raw:         marshalRaw(raw),
	}
	p.Media, p.MimeType = extractMedia(content)
	return p
}

// Unwrap strips the envelopes WhatsApp puts around message content
// (disappearing, view-once, device-sent, edits and the like) and returns the
// inner message. msg itself is never modified.
func Unwrap(msg *waE2E.Message) *waE2E.Message {
	if !isWrapped(msg) {
		return msg
	}
	clone, ok := proto.Clone(msg).(*waE2E.Message)
	if !ok {
		return msg
	}
	return (&events.Message{RawMessage: clone}).UnwrapRaw().Message
}

func isWrapped(msg *waE2E.Message) bool {
	return msg.GetDeviceSentMessage().GetMessage() != nil ||
		msg.GetBotInvokeMessage().GetMessage() != nil ||
		msg.GetEphemeralMessage().GetMessage() != nil ||
		msg.GetViewOnceMessage().GetMessage() != nil ||
		msg.GetViewOnceMessageV2().GetMessage() != nil ||
		msg.GetViewOnceMessageV2Extension().GetMessage() != nil ||
		msg.GetLottieStickerMessage().GetMessage() != nil ||
		msg.GetDocumentWithCaptionMessage().GetMessage() != nil ||
		msg.GetEditedMessage().GetMessage() != nil
}

// ToIncoming converts a ParsedMessage to a store ingestion unit.
func (p *ParsedMessage) ToIncoming(accountID string) *store.Incoming {
	chatType := store.ChatDirect
	if IsGroupJID(p.ChatJID) {
		chatType = store.ChatGroup
	}
	var mediaType *string
	if p.Media != nil {
		mediaType = optional(p.MessageType)
	}
	return &store.Incoming{
		Message: store.Message{
			MessageID:       p.MsgID,
			ConversationJID: p.ChatJID,
			SenderJID:       p.SenderJID,
			SenderE164:      E164(p.SenderJID),
			SenderName:      optional(p.SenderName),
			Body:            optional(p.Body),
			Timestamp:       p.Timestamp,
			IsFromMe:        p.FromMe,
			ReplyToID:       optional(p.ReplyToID),
			MediaType:       mediaType,
			Location:        p.Location,
			RawMessage:      p.Raw,
			AccountID:       accountID,
		},
		ChatType: chatType,
	}
}

// ToInbound wraps ToIncoming with the media handle.
func (p *ParsedMessage) ToInbound(accountID string) *Inbound {
	return &Inbound{
		Incoming: p.ToIncoming(accountID),
		Media:    p.Media,
		MimeType: p.MimeType,
	}
}

// IsArchivable reports whether a message carries user content once unwrapped.
// Protocol messages (revokes, edits, key distribution) and reactions are
// skipped.
func IsArchivable(msg *waE2E.Message) bool {
	msg = Unwrap(msg)
	if msg == nil {
		return false
	}
	if msg.GetProtocolMessage() != nil || msg.GetReactionMessage() != nil {
		return false
	}
	return detectMessageType(msg) != "unknown"
}

// NormalizeJID strips device and agent suffixes so that every device of a
// user maps to one JID. Unparseable input is returned unchanged.
func NormalizeJID(jid string) string {
	if jid == "" {
		return ""
	}
	parsed, err := types.ParseJID(jid)
	if err != nil || parsed.Server == "" {
		return jid
	}
	return parsed.ToNonAD().String()
}

// IsGroupJID reports whether jid names a group conversation.
func IsGroupJID(jid string) bool {
	parsed, err := types.ParseJID(jid)
	if err != nil {
		return false
	}
	return parsed.Server == types.GroupServer
}

// E164 returns "+<number>" for phone-number JIDs and nil otherwise.
func E164(jid string) *string {
	parsed, err := types.ParseJID(jid)
	if err != nil || parsed.Server != types.DefaultUserServer || parsed.User == "" {
		return nil
	}
	e := "+" + parsed.User
	return &e
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	switch {
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetCaption()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetCaption()
	}
	return ""
}

func detectMessageType(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetContactMessage() != nil:
		return "contact"
	case msg.GetLocationMessage() != nil || msg.GetLiveLocationMessage() != nil:
		return "location"
	default:
		return "unknown"
	}
}

func extractMedia(msg *waE2E.Message) (whatsmeow.DownloadableMessage, string) {
	if msg == nil {
		return nil, ""
	}
	switch {
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage(), msg.GetImageMessage().GetMimetype()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage(), msg.GetVideoMessage().GetMimetype()
	case msg.GetAudioMessage() != nil:
		return msg.GetAudioMessage(), msg.GetAudioMessage().GetMimetype()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage(), msg.GetDocumentMessage().GetMimetype()
	case msg.GetStickerMessage() != nil:
		return msg.GetStickerMessage(), msg.GetStickerMessage().GetMimetype()
	}
	return nil, ""
}

func extractReplyTo(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	var ctx *waE2E.ContextInfo
	switch {
	case msg.GetExtendedTextMessage() != nil:
		ctx = msg.GetExtendedTextMessage().GetContextInfo()
	case msg.GetImageMessage() != nil:
		ctx = msg.GetImageMessage().GetContextInfo()
	case msg.GetVideoMessage() != nil:
		ctx = msg.GetVideoMessage().GetContextInfo()
	case msg.GetAudioMessage() != nil:
		ctx = msg.GetAudioMessage().GetContextInfo()
	case msg.GetDocumentMessage() != nil:
		ctx = msg.GetDocumentMessage().GetContextInfo()
	case msg.GetStickerMessage() != nil:
		ctx = msg.GetStickerMessage().GetContextInfo()
	case msg.GetLocationMessage() != nil:
		ctx = msg.GetLocationMessage().GetContextInfo()
	}
	return ctx.GetStanzaID()
}

func extractLocation(msg *waE2E.Message) *store.Location {
	if msg == nil {
		return nil
	}
	if loc := msg.GetLocationMessage(); loc != nil {
		return &store.Location{Lat: loc.GetDegreesLatitude(), Lon: loc.GetDegreesLongitude()}
	}
	if loc := msg.GetLiveLocationMessage(); loc != nil {
		return &store.Location{Lat: loc.GetDegreesLatitude(), Lon: loc.GetDegreesLongitude()}
	}
	return nil
}

// marshalRaw keeps the full protobuf payload as JSON so fields the archive
// does not model are still recoverable.
func marshalRaw(msg *waE2E.Message) []byte {
	if msg == nil {
		return nil
	}
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return nil
	}
	return raw
}
