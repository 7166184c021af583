package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matheus3301/wpparchive/internal/bus"
	"github.com/matheus3301/wpparchive/internal/store"
	"github.com/matheus3301/wpparchive/internal/wa"
	"go.uber.org/zap"
)

// queueSize is the engine's bus buffer. Publishers wait once it is full.
const queueSize = 256

// Writer is the part of the history store the engine writes through.
type Writer interface {
	StoreMessage(in *store.Incoming) error
}

// GroupLookup resolves group names and members.
type GroupLookup interface {
	GroupInfo(ctx context.Context, jid string) (*wa.Group, error)
}

// MediaSaver persists message attachments and returns their location.
type MediaSaver interface {
	SaveMedia(ctx context.Context, in *wa.Inbound) (string, error)
}

// Counters is a snapshot of what the engine did since it was created.
type Counters struct {
	Stored       int64  `json:"stored"`
	Failed       int64  `json:"failed"`
	MediaSaved   int64  `json:"media_saved"`
	MediaFailed  int64  `json:"media_failed"`
	LastStoredAt int64  `json:"last_stored_at"`
	LastError    string `json:"last_error,omitempty"`
}

// Engine archives inbound WhatsApp messages. It subscribes to "wa.*" events
// on the bus and writes each message through the store, one at a time.
type Engine struct {
	store  Writer
	bus    *bus.Bus
	groups GroupLookup
	media  MediaSaver
	logger *zap.Logger

	// mu serializes writes; the store itself makes no ordering promise
	// between concurrent callers.
	mu sync.Mutex

	groupsMu   sync.Mutex
	seenGroups map[string]bool

	stored, failed          atomic.Int64
	mediaSaved, mediaFailed atomic.Int64
	lastStoredAt            atomic.Int64
	lastError               atomic.Value // string

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new archive engine. groups and media may be nil to skip
// group enrichment and attachment download.
func NewEngine(w Writer, b *bus.Bus, groups GroupLookup, media MediaSaver, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:      w,
		bus:        b,
		groups:     groups,
		media:      media,
		logger:     logger.Named("archive"),
		seenGroups: make(map[string]bool),
	}
}

// Start subscribes to inbound WhatsApp events on the bus. The subscription is
// reliable: a burst larger than the queue slows the publisher down rather
// than losing messages.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.SubscribeReliable("wa.", queueSize)

	go func() {
		defer close(e.done)
		for {
			select {
			case evt := <-ch:
				e.handleEvent(ctx, evt)
			case <-ctx.Done():
				unsub()
				e.drain(context.WithoutCancel(ctx), ch)
				return
			}
		}
	}()
}

// drain archives the events already queued when the engine stops.
func (e *Engine) drain(ctx context.Context, ch <-chan bus.Event) {
	n := 0
	for {
		select {
		case evt := <-ch:
			e.handleEvent(ctx, evt)
			n++
		default:
			if n > 0 {
				e.logger.Info("drained queued events", zap.Int("events", n))
			}
			return
		}
	}
}

// Stop stops the engine. Events queued before Stop are archived before it
// returns.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

// Counters returns a snapshot of the engine's counters.
func (e *Engine) Counters() Counters {
	return Counters{
		Stored:       e.stored.Load(),
		Failed:       e.failed.Load(),
		MediaSaved:   e.mediaSaved.Load(),
		MediaFailed:  e.mediaFailed.Load(),
		LastStoredAt: e.lastStoredAt.Load(),
		LastError:    e.lastErrorText(),
	}
}

func (e *Engine) lastErrorText() string {
	s, _ := e.lastError.Load().(string)
	return s
}

func (e *Engine) handleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case wa.KindMessage:
		in, ok := evt.Payload.(*wa.Inbound)
		if !ok {
			return
		}
		_ = e.Ingest(ctx, in)
	case wa.KindHistoryBatch:
		batch, ok := evt.Payload.([]*wa.Inbound)
		if !ok {
			return
		}
		n, err := e.IngestBatch(ctx, batch)
		if err != nil {
			e.logger.Warn("history batch partially archived", zap.Int("stored", n), zap.Int("count", len(batch)), zap.Error(err))
		} else {
			e.logger.Info("history batch archived", zap.Int("messages", n))
		}
	}
}

// Ingest archives a single message. Storing the same message twice replaces
// the first copy.
func (e *Engine) Ingest(ctx context.Context, in *wa.Inbound) error {
	if in == nil || in.Incoming == nil {
		return nil
	}
	e.enrichGroup(ctx, in.Incoming)
	e.saveMedia(ctx, in)

	msg := &in.Incoming.Message

	e.mu.Lock()
	err := e.store.StoreMessage(in.Incoming)
	e.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("archive %s/%s: %w", msg.ConversationJID, msg.MessageID, err)
		e.failed.Add(1)
		e.lastError.Store(err.Error())
		e.logger.Error("failed to archive message", zap.Error(err),
			zap.String("conversation", msg.ConversationJID), zap.String("msg_id", msg.MessageID))
		return err
	}

	e.stored.Add(1)
	e.lastStoredAt.Store(time.Now().UnixMilli())
	return nil
}

// IngestBatch archives every message of a history batch, continuing past
// failures. It returns how many were stored and the joined failures.
func (e *Engine) IngestBatch(ctx context.Context, batch []*wa.Inbound) (int, error) {
	var errs []error
	stored := 0
	for _, in := range batch {
		if err := e.Ingest(ctx, in); err != nil {
			errs = append(errs, err)
			continue
		}
		stored++
	}
	return stored, errors.Join(errs...)
}

// enrichGroup attaches the group name and member list the first time a group
// is seen during this run.
func (e *Engine) enrichGroup(ctx context.Context, in *store.Incoming) {
	if in.ChatType != store.ChatGroup || e.groups == nil {
		return
	}
	jid := in.Message.ConversationJID

	e.groupsMu.Lock()
	seen := e.seenGroups[jid]
	e.seenGroups[jid] = true
	e.groupsMu.Unlock()
	if seen {
		return
	}

	g, err := e.groups.GroupInfo(ctx, jid)
	if err != nil {
		e.logger.Warn("group lookup failed", zap.String("conversation", jid), zap.Error(err))
		return
	}
	if in.DisplayName == nil && g.Name != "" {
		name := g.Name
		in.DisplayName = &name
	}
	in.Participants = append(in.Participants, g.Participants...)
}

func (e *Engine) saveMedia(ctx context.Context, in *wa.Inbound) {
	if e.media == nil || in.Media == nil {
		return
	}
	path, err := e.media.SaveMedia(ctx, in)
	if err != nil {
		e.mediaFailed.Add(1)
		e.logger.Warn("media download failed",
			zap.String("msg_id", in.Incoming.Message.MessageID), zap.Error(err))
		return
	}
	if path != "" {
		e.mediaSaved.Add(1)
		in.Incoming.Message.MediaPath = &path
	}
}
