package bus

import (
	"strings"
	"sync"
)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
//
// Subscriptions come in two kinds. A plain subscription is for observers: when
// its buffer is full the event is dropped for that subscriber. A reliable
// subscription is for consumers that must see every event, such as the
// archive engine: Publish waits for buffer room instead.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	namespace string
	ch        chan Event
	reliable  bool
	// done is closed on unsubscribe and releases publishers waiting on a
	// reliable subscription.
	done chan struct{}
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish sends an event to all subscribers whose namespace is a prefix of
// event.Kind. It blocks while a matching reliable subscriber's buffer is full.
func (b *Bus) Publish(evt Event) {
	// Deliver outside the lock so a waiting publisher never holds up
	// Subscribe, unsubscribe, or a subscriber that publishes in turn.
	b.mu.RLock()
	targets := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		if sub.reliable {
			select {
			case sub.ch <- evt:
			case <-sub.done:
			}
			continue
		}
		select {
		case sub.ch <- evt:
		case <-sub.done:
		default:
		}
	}
}

// Subscribe returns a channel that receives events matching the given
// namespace prefix. bufSize controls the channel buffer; events arriving while
// it is full are dropped. Returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	return b.subscribe(namespace, bufSize, false)
}

// SubscribeReliable is like Subscribe, but no event is dropped: publishers
// wait until the subscriber has room. The subscriber must keep reading until
// it unsubscribes.
func (b *Bus) SubscribeReliable(namespace string, bufSize int) (<-chan Event, func()) {
	return b.subscribe(namespace, bufSize, true)
}

func (b *Bus) subscribe(namespace string, bufSize int, reliable bool) (<-chan Event, func()) {
	sub := &subscription{
		namespace: namespace,
		ch:        make(chan Event, bufSize),
		reliable:  reliable,
		done:      make(chan struct{}),
	}
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.done)
		})
	}
}
