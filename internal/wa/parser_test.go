package wa

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/wpparchive/internal/store"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestExtractTextBody(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil message", nil, ""},
		{"conversation", &waE2E.Message{Conversation: proto.String("hello")}, "hello"},
		{"extended text", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("extended")}}, "extended"},
		{"image (no caption)", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, ""},
		{"image caption", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("sunset")}}, "sunset"},
		{"video caption", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{Caption: proto.String("clip")}}, "clip"},
		{"document caption", &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{Caption: proto.String("invoice")}}, "invoice"},
		{"empty conversation", &waE2E.Message{Conversation: proto.String("")}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractTextBody(tt.msg)
			if got != tt.want {
				t.Errorf("extractTextBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectMessageType(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil", nil, "unknown"},
		{"text conversation", &waE2E.Message{Conversation: proto.String("hi")}, "text"},
		{"extended text", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("hi")}}, "text"},
		{"image", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, "image"},
		{"video", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{}}, "video"},
		{"audio", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{}}, "audio"},
		{"document", &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{}}, "document"},
		{"sticker", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{}}, "sticker"},
		{"contact", &waE2E.Message{ContactMessage: &waE2E.ContactMessage{}}, "contact"},
		{"location", &waE2E.Message{LocationMessage: &waE2E.LocationMessage{}}, "location"},
		{"live location", &waE2E.Message{LiveLocationMessage: &waE2E.LiveLocationMessage{}}, "location"},
		{"empty message", &waE2E.Message{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectMessageType(tt.msg)
			if got != tt.want {
				t.Errorf("detectMessageType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsArchivable(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want bool
	}{
		{"nil", nil, false},
		{"text", &waE2E.Message{Conversation: proto.String("hi")}, true},
		{"image", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, true},
		{"protocol", &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{}}, false},
		{"reaction", &waE2E.Message{ReactionMessage: &waE2E.ReactionMessage{Text: proto.String("👍")}}, false},
		{"empty", &waE2E.Message{}, false},
		{"ephemeral text", &waE2E.Message{EphemeralMessage: &waE2E.FutureProofMessage{
			Message: &waE2E.Message{Conversation: proto.String("disappearing hello")},
		}}, true},
		{"view once image", &waE2E.Message{ViewOnceMessageV2: &waE2E.FutureProofMessage{
			Message: &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}},
		}}, true},
		{"ephemeral reaction", &waE2E.Message{EphemeralMessage: &waE2E.FutureProofMessage{
			Message: &waE2E.Message{ReactionMessage: &waE2E.ReactionMessage{Text: proto.String("👍")}},
		}}, false},
		{"empty ephemeral", &waE2E.Message{EphemeralMessage: &waE2E.FutureProofMessage{}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsArchivable(tt.msg); got != tt.want {
				t.Errorf("IsArchivable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLiveMessage(t *testing.T) {
	ts := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	evt := &events.Message{
		Info: types.MessageInfo{
			PushName:  "Alice",
			Timestamp: ts,
			MessageSource: types.MessageSource{
				Chat:     types.JID{User: "chat", Server: "s.whatsapp.net"},
				Sender:   types.JID{User: "sender", Server: "s.whatsapp.net"},
				IsFromMe: true,
			},
			ID: "MSG123",
		},
		Message: &waE2E.Message{Conversation: proto.String("hello world")},
	}

	parsed := ParseLiveMessage(evt)

	if parsed.ChatJID != "chat@s.whatsapp.net" {
		t.Errorf("ChatJID = %q, want chat@s.whatsapp.net", parsed.ChatJID)
	}
	if parsed.MsgID != "MSG123" {
		t.Errorf("MsgID = %q, want MSG123", parsed.MsgID)
	}
	if parsed.SenderJID != "sender@s.whatsapp.net" {
		t.Errorf("SenderJID = %q, want sender@s.whatsapp.net", parsed.SenderJID)
	}
	if parsed.SenderName != "Alice" {
		t.Errorf("SenderName = %q, want Alice", parsed.SenderName)
	}
	if parsed.Body != "hello world" {
		t.Errorf("Body = %q, want hello world", parsed.Body)
	}
	if parsed.MessageType != "text" {
		t.Errorf("MessageType = %q, want text", parsed.MessageType)
	}
	if !parsed.FromMe {
		t.Error("FromMe = false, want true")
	}
	if parsed.Timestamp != ts.UnixMilli() {
		t.Errorf("Timestamp = %d, want %d", parsed.Timestamp, ts.UnixMilli())
	}
	if len(parsed.Raw) == 0 {
		t.Error("Raw is empty, want protojson payload")
	}
}

func TestParseLiveMessageReplyAndLocation(t *testing.T) {
	evt := &events.Message{
		Info: types.MessageInfo{
			ID:        "LOC1",
			Timestamp: time.Now(),
			MessageSource: types.MessageSource{
				Chat:   types.JID{User: "120363000000", Server: types.GroupServer},
				Sender: types.JID{User: "5511900000000", Server: types.DefaultUserServer},
			},
		},
		Message: &waE2E.Message{LocationMessage: &waE2E.LocationMessage{
			DegreesLatitude:  proto.Float64(-23.55),
			DegreesLongitude: proto.Float64(-46.63),
			ContextInfo:      &waE2E.ContextInfo{StanzaID: proto.String("ORIG1")},
		}},
	}

	parsed := ParseLiveMessage(evt)
	if parsed.ReplyToID != "ORIG1" {
		t.Errorf("ReplyToID = %q, want ORIG1", parsed.ReplyToID)
	}
	if parsed.Location == nil || parsed.Location.Lat != -23.55 || parsed.Location.Lon != -46.63 {
		t.Errorf("Location = %+v, want -23.55/-46.63", parsed.Location)
	}
	if parsed.Media != nil {
		t.Error("location message should carry no media")
	}
}

func TestParseHistoryMessageSender(t *testing.T) {
	ts := uint64(1_700_000_000)
	tests := []struct {
		name        string
		chat        string
		participant string
		fromMe      bool
		want        string
	}{
		{"group participant", "g@g.us", "5511900000000:3@s.whatsapp.net", false, "5511900000000@s.whatsapp.net"},
		{"incoming direct", "5511911111111@s.whatsapp.net", "", false, "5511911111111@s.whatsapp.net"},
		{"outgoing direct", "5511911111111@s.whatsapp.net", "", true, "5511922222222@s.whatsapp.net"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := &waCommon.MessageKey{
				ID:     proto.String("h1"),
				FromMe: proto.Bool(tt.fromMe),
			}
			if tt.participant != "" {
				key.Participant = proto.String(tt.participant)
			}
			wmsg := &waWeb.WebMessageInfo{
				Key:              key,
				MessageTimestamp: &ts,
				PushName:         proto.String("Bob"),
				Message:          &waE2E.Message{Conversation: proto.String("x")},
			}
			parsed := ParseHistoryMessage(tt.chat, wmsg, "5511922222222:7@s.whatsapp.net")
			if parsed.SenderJID != tt.want {
				t.Errorf("SenderJID = %q, want %q", parsed.SenderJID, tt.want)
			}
			if parsed.Timestamp != 1_700_000_000_000 {
				t.Errorf("Timestamp = %d, want epoch millis", parsed.Timestamp)
			}
			if parsed.SenderName != "Bob" {
				t.Errorf("SenderName = %q, want Bob", parsed.SenderName)
			}
		})
	}
}

func TestToIncoming(t *testing.T) {
	p := &ParsedMessage{
		ChatJID:     "120363000000@g.us",
		MsgID:       "m1",
		SenderJID:   "5511900000000@s.whatsapp.net",
		SenderName:  "Bob",
		Body:        "",
		MessageType: "image",
		FromMe:      false,
		Timestamp:   42000,
		Media:       &waE2E.ImageMessage{},
		MimeType:    "image/jpeg",
	}

	in := p.ToIncoming("work")
	msg := in.Message

	if in.ChatType != store.ChatGroup {
		t.Errorf("ChatType = %s, want group", in.ChatType)
	}
	if msg.ConversationJID != "120363000000@g.us" || msg.MessageID != "m1" || msg.AccountID != "work" {
		t.Errorf("message = %+v", msg)
	}
	if msg.SenderE164 == nil || *msg.SenderE164 != "+5511900000000" {
		t.Errorf("SenderE164 = %v", msg.SenderE164)
	}
	if msg.Body != nil {
		t.Errorf("Body = %q, want nil", *msg.Body)
	}
	if msg.ReplyToID != nil {
		t.Errorf("ReplyToID = %q, want nil", *msg.ReplyToID)
	}
	if msg.MediaType == nil || *msg.MediaType != "image" {
		t.Errorf("MediaType = %v, want image", msg.MediaType)
	}
	if msg.Timestamp != 42000 {
		t.Errorf("Timestamp = %d, want 42000", msg.Timestamp)
	}

	inbound := p.ToInbound("work")
	if inbound.Media == nil || inbound.MimeType != "image/jpeg" {
		t.Errorf("inbound media = %v/%q", inbound.Media, inbound.MimeType)
	}
}

func TestToIncomingTextHasNoMediaType(t *testing.T) {
	p := &ParsedMessage{ChatJID: "a@s.whatsapp.net", MsgID: "m", MessageType: "text", Body: "hi"}
	in := p.ToIncoming("main")
	if in.Message.MediaType != nil {
		t.Errorf("MediaType = %q, want nil", *in.Message.MediaType)
	}
	if in.ChatType != store.ChatDirect {
		t.Errorf("ChatType = %s, want direct", in.ChatType)
	}
}

func TestUnwrap(t *testing.T) {
	if Unwrap(nil) != nil {
		t.Error("Unwrap(nil) should be nil")
	}

	plain := &waE2E.Message{Conversation: proto.String("plain")}
	if Unwrap(plain) != plain {
		t.Error("unwrapped message should be returned as is")
	}

	wrapped := &waE2E.Message{
		MessageContextInfo: &waE2E.MessageContextInfo{MessageSecret: []byte("secret")},
		DeviceSentMessage: &waE2E.DeviceSentMessage{
			DestinationJID: proto.String("5511900000000@s.whatsapp.net"),
			Message: &waE2E.Message{EphemeralMessage: &waE2E.FutureProofMessage{
				Message: &waE2E.Message{Conversation: proto.String("sent from phone")},
			}},
		},
	}
	before := proto.Clone(wrapped)

	inner := Unwrap(wrapped)
	if inner.GetConversation() != "sent from phone" {
		t.Errorf("inner = %v, want conversation", inner)
	}
	if string(inner.GetMessageContextInfo().GetMessageSecret()) != "secret" {
		t.Error("inner message should inherit the outer context info")
	}
	if !proto.Equal(wrapped, before) {
		t.Error("Unwrap modified its input")
	}
}

// TestParseHistoryMessageUnwrapsEphemeral covers chats with disappearing
// messages turned on, where every history message arrives wrapped.
func TestParseHistoryMessageUnwrapsEphemeral(t *testing.T) {
	wmsg := &waWeb.WebMessageInfo{
		Key: &waCommon.MessageKey{
			RemoteJID: proto.String("5511900000000@s.whatsapp.net"),
			ID:        proto.String("EPH1"),
		},
		MessageTimestamp: proto.Uint64(1736942400),
		Message: &waE2E.Message{EphemeralMessage: &waE2E.FutureProofMessage{
			Message: &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
				Text:        proto.String("disappearing hello"),
				ContextInfo: &waE2E.ContextInfo{StanzaID: proto.String("ORIG9")},
			}},
		}},
	}

	p := ParseHistoryMessage("5511900000000@s.whatsapp.net", wmsg, "5511911111111@s.whatsapp.net")
	if p.Body != "disappearing hello" {
		t.Errorf("Body = %q, want disappearing hello", p.Body)
	}
	if p.MessageType != "text" {
		t.Errorf("MessageType = %q, want text", p.MessageType)
	}
	if p.ReplyToID != "ORIG9" {
		t.Errorf("ReplyToID = %q, want ORIG9", p.ReplyToID)
	}
	if !strings.Contains(string(p.Raw), `"ephemeralMessage"`) {
		t.Errorf("Raw = %s, want the ephemeral wrapper kept", p.Raw)
	}
}

func TestParseHistoryMessageUnwrapsViewOnce(t *testing.T) {
	wmsg := &waWeb.WebMessageInfo{
		Key: &waCommon.MessageKey{
			RemoteJID: proto.String("5511900000000@s.whatsapp.net"),
			ID:        proto.String("VO1"),
		},
		MessageTimestamp: proto.Uint64(1736942400),
		Message: &waE2E.Message{ViewOnceMessageV2: &waE2E.FutureProofMessage{
			Message: &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
				Caption:  proto.String("look once"),
				Mimetype: proto.String("image/jpeg"),
			}},
		}},
	}

	p := ParseHistoryMessage("5511900000000@s.whatsapp.net", wmsg, "")
	if p.MessageType != "image" {
		t.Errorf("MessageType = %q, want image", p.MessageType)
	}
	if p.Body != "look once" {
		t.Errorf("Body = %q, want look once", p.Body)
	}
	if p.Media == nil || p.MimeType != "image/jpeg" {
		t.Errorf("Media = %v (%q), want the image attachment", p.Media, p.MimeType)
	}
	if !strings.Contains(string(p.Raw), `"viewOnceMessageV2"`) {
		t.Errorf("Raw = %s, want the view-once wrapper kept", p.Raw)
	}
}

func TestParseLiveMessageKeepsRawPayload(t *testing.T) {
	raw := &waE2E.Message{EphemeralMessage: &waE2E.FutureProofMessage{
		Message: &waE2E.Message{Conversation: proto.String("live ephemeral")},
	}}
	evt := (&events.Message{
		Info: types.MessageInfo{
			ID:        "LIVE1",
			Timestamp: time.Now(),
			MessageSource: types.MessageSource{
				Chat:   types.JID{User: "5511900000000", Server: types.DefaultUserServer},
				Sender: types.JID{User: "5511900000000", Server: types.DefaultUserServer},
			},
		},
		RawMessage: raw,
	}).UnwrapRaw()

	p := ParseLiveMessage(evt)
	if p.Body != "live ephemeral" {
		t.Errorf("Body = %q, want live ephemeral", p.Body)
	}
	if !strings.Contains(string(p.Raw), `"ephemeralMessage"`) {
		t.Errorf("Raw = %s, want the received payload", p.Raw)
	}
}

func TestMarshalRawIsJSON(t *testing.T) {
	raw := marshalRaw(&waE2E.Message{Conversation: proto.String("hello")})
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("raw payload is not JSON: %v", err)
	}
	if decoded["conversation"] != "hello" {
		t.Errorf("decoded = %v, want conversation=hello", decoded)
	}
	if marshalRaw(nil) != nil {
		t.Error("marshalRaw(nil) should be nil")
	}
}

// TestNormalizeJID verifies that device/agent suffixes are stripped so the
// same contact does not produce two conversations.
func TestNormalizeJID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"558592403672@s.whatsapp.net", "558592403672@s.whatsapp.net"},
		{"558592403672:0@s.whatsapp.net", "558592403672@s.whatsapp.net"},
		{"558592403672:5@s.whatsapp.net", "558592403672@s.whatsapp.net"},
		{"120363123456@g.us", "120363123456@g.us"},
		{"", ""},
		{"invalid", "invalid"},
		{"3917077286968@lid", "3917077286968@lid"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeJID(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeJID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestE164(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"558592403672@s.whatsapp.net", "+558592403672"},
		{"3917077286968@lid", ""},
		{"120363123456@g.us", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got := E164(tt.input)
		switch {
		case tt.want == "" && got != nil:
			t.Errorf("E164(%q) = %q, want nil", tt.input, *got)
		case tt.want != "" && (got == nil || *got != tt.want):
			t.Errorf("E164(%q) = %v, want %s", tt.input, got, tt.want)
		}
	}
}

func TestIsGroupJID(t *testing.T) {
	if !IsGroupJID("120363123456@g.us") {
		t.Error("g.us JID should be a group")
	}
	if IsGroupJID("558592403672@s.whatsapp.net") {
		t.Error("user JID should not be a group")
	}
}

// TestParseLiveMessageStripsDeviceSuffix verifies that live messages from
// device-specific JIDs are normalized to the canonical user JID.
func TestParseLiveMessageStripsDeviceSuffix(t *testing.T) {
	evt := &events.Message{
		Info: types.MessageInfo{
			ID:        "M1",
			Timestamp: time.Now(),
			MessageSource: types.MessageSource{
				Chat:   types.JID{User: "558592403672", Server: "s.whatsapp.net", Device: 1},
				Sender: types.JID{User: "558592403672", Server: "s.whatsapp.net", Device: 3},
			},
		},
		Message: &waE2E.Message{Conversation: proto.String("hi")},
	}

	parsed := ParseLiveMessage(evt)
	if parsed.ChatJID != "558592403672@s.whatsapp.net" {
		t.Errorf("ChatJID = %q, want 558592403672@s.whatsapp.net (device suffix not stripped)", parsed.ChatJID)
	}
	if parsed.SenderJID != "558592403672@s.whatsapp.net" {
		t.Errorf("SenderJID = %q, want 558592403672@s.whatsapp.net (device suffix not stripped)", parsed.SenderJID)
	}
}

func TestParseLiveMessageImageType(t *testing.T) {
	evt := &events.Message{
		Info: types.MessageInfo{
			ID:        "IMG1",
			Timestamp: time.Now(),
			MessageSource: types.MessageSource{
				Chat:   types.JID{User: "c", Server: "s"},
				Sender: types.JID{User: "s", Server: "s"},
			},
		},
		Message: &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Mimetype: proto.String("image/jpeg")}},
	}

	parsed := ParseLiveMessage(evt)
	if parsed.MessageType != "image" {
		t.Errorf("MessageType = %q, want image", parsed.MessageType)
	}
	if parsed.Body != "" {
		t.Errorf("Body = %q, want empty for image", parsed.Body)
	}
	if parsed.Media == nil || parsed.MimeType != "image/jpeg" {
		t.Errorf("media = %v/%q, want image handle", parsed.Media, parsed.MimeType)
	}
}

func TestMediaExt(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"application/pdf", ".pdf"},
		{"image/png", ".png"},
		{"application/x-unheard-of", ".bin"},
		{"", ".bin"},
	}
	for _, tt := range tests {
		if got := mediaExt(tt.mime); got != tt.want {
			t.Errorf("mediaExt(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestSafeName(t *testing.T) {
	if got := safeName("120363@g.us"); got != "120363@g.us" {
		t.Errorf("safeName = %q", got)
	}
	if got := safeName("a/b:c"); got != "a_b_c" {
		t.Errorf("safeName = %q, want a_b_c", got)
	}
}
