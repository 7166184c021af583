package wa

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/matheus3301/wpparchive/internal/account"
	"github.com/matheus3301/wpparchive/internal/bus"
	"github.com/matheus3301/wpparchive/internal/logging"
	"github.com/matheus3301/wpparchive/internal/store"
	"go.mau.fi/whatsmeow"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotConnected is returned by lookups that need a live client.
var ErrNotConnected = errors.New("whatsapp client not available")

// Group is the metadata of a group conversation.
type Group struct {
	Name         string
	Participants []store.Participant
}

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	bus       *bus.Bus
	logger    *zap.Logger
	account   string
	mediaDir  string

	groupsMu sync.Mutex
	groups   map[string]*Group
}

// NewAdapter creates a new WhatsApp adapter for the given account.
func NewAdapter(ctx context.Context, accountName string, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	// Set device name shown on the phone's linked devices list.
	wastore.SetOSInfo("wpparchive", [3]uint32{0, 1, 0})

	dbPath := account.SessionDBPath(accountName)
	waLogger := logging.WALogger(logger)

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		waLogger.Sub("store"),
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, waLogger.Sub("client"))

	return &Adapter{
		client:    client,
		container: container,
		bus:       b,
		logger:    logger,
		account:   accountName,
		mediaDir:  account.MediaDir(accountName),
		groups:    make(map[string]*Group),
	}, nil
}

// Client returns the underlying whatsmeow client.
func (a *Adapter) Client() *whatsmeow.Client {
	return a.client
}

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client != nil && a.client.Store.ID != nil
}

// Connect initiates the WhatsApp connection.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp")
	return a.client.Connect()
}

// Disconnect terminates the WhatsApp connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// Close releases the session database.
func (a *Adapter) Close() error {
	if a.container == nil {
		return nil
	}
	return a.container.Close()
}

// Logout invalidates the session and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// GetQRChannel returns the QR channel for pairing. Must be called before Connect.
func (a *Adapter) GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	if a.IsLoggedIn() {
		return nil, fmt.Errorf("already logged in")
	}
	ch, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get QR channel: %w", err)
	}
	return ch, nil
}

// Self returns the account's own phone-number JID without device suffix, or
// an empty string before pairing.
func (a *Adapter) Self() string {
	if a == nil || a.client == nil || a.client.Store == nil || a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.ToNonAD().String()
}

// PhoneNumber returns the phone number from the device store, or empty string.
func (a *Adapter) PhoneNumber() string {
	if a == nil || a.client == nil || a.client.Store == nil || a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}

// ResolveLID resolves a LID JID to its phone number JID using the device store mapping.
// Returns the original JID if it's not a LID or if resolution fails.
func (a *Adapter) ResolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if a == nil || a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return jid
	}
	pn, err := a.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}

// GroupInfo returns the name and members of a group. Results are cached for
// the adapter's lifetime.
func (a *Adapter) GroupInfo(ctx context.Context, jid string) (*Group, error) {
	a.groupsMu.Lock()
	if g, ok := a.groups[jid]; ok {
		a.groupsMu.Unlock()
		return g, nil
	}
	a.groupsMu.Unlock()

	if a.client == nil {
		return nil, ErrNotConnected
	}
	parsed, err := types.ParseJID(jid)
	if err != nil {
		return nil, fmt.Errorf("parse JID: %w", err)
	}
	info, err := a.client.GetGroupInfo(ctx, parsed)
	if err != nil {
		return nil, fmt.Errorf("get group info: %w", err)
	}

	g := &Group{Name: info.Name}
	for _, p := range info.Participants {
		member := p.JID
		if member.Server == types.HiddenUserServer && !p.PhoneNumber.IsEmpty() {
			member = p.PhoneNumber
		}
		member = a.ResolveLID(ctx, member.ToNonAD())
		g.Participants = append(g.Participants, store.Participant{
			JID:  member.String(),
			E164: E164(member.String()),
		})
	}

	a.groupsMu.Lock()
	a.groups[jid] = g
	a.groupsMu.Unlock()
	return g, nil
}

// SaveMedia downloads the attachment of an inbound message into the account's
// media directory and returns the written path.
func (a *Adapter) SaveMedia(ctx context.Context, in *Inbound) (string, error) {
	if in.Media == nil {
		return "", nil
	}
	if a.client == nil {
		return "", ErrNotConnected
	}
	data, err := a.client.Download(ctx, in.Media)
	if err != nil {
		return "", fmt.Errorf("download media: %w", err)
	}

	msg := in.Incoming.Message
	dir := filepath.Join(a.mediaDir, safeName(msg.ConversationJID))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	path := filepath.Join(dir, safeName(msg.MessageID)+mediaExt(in.MimeType))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write media: %w", err)
	}
	return path, nil
}

// mediaExt maps a MIME type to a file extension, ignoring parameters such as
// "; codecs=opus".
func mediaExt(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	exts, err := mime.ExtensionsByType(strings.TrimSpace(base))
	if err != nil || len(exts) == 0 {
		return ".bin"
	}
	return exts[0]
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, s)
}
