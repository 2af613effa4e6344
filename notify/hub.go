// CLAUDE:SUMMARY Subscriber registry with non-blocking fan-out: saturated subscribers are dropped, never waited on.
package notify

import (
	"log/slog"
	"sync"

	"github.com/skitzo2000/MD-easy/idgen"
)

// subscriberBuffer is the per-subscriber delivery queue depth. A viewer that
// falls this many events behind is considered dead and dropped.
const subscriberBuffer = 16

// Subscriber is one connected viewer's delivery channel. Obtained from
// Hub.Subscribe; released with Hub.Unsubscribe. The Events channel closes
// when the subscriber is removed, whether by Unsubscribe or by the hub
// dropping a saturated queue.
type Subscriber struct {
	id     string
	events chan RefreshEvent
}

// ID returns the subscriber's opaque identifier, useful in logs.
func (s *Subscriber) ID() string { return s.id }

// Events is the receive side of the delivery queue.
func (s *Subscriber) Events() <-chan RefreshEvent { return s.events }

// Hub owns the version ledger and the set of live subscribers. All methods
// are safe for concurrent use. The zero value is not usable; call NewHub.
type Hub struct {
	ledger Ledger
	logger *slog.Logger
	newID  idgen.Generator
	buffer int

	mu        sync.Mutex
	subs      map[string]*Subscriber
	published uint64
	dropped   uint64
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub's logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) { h.logger = logger }
}

// WithBuffer overrides the per-subscriber queue depth.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithIDGenerator overrides subscriber ID generation.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(h *Hub) { h.newID = gen }
}

// NewHub creates an empty hub at version zero.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		logger: slog.Default(),
		newID:  idgen.Prefixed("sub_", idgen.NanoID(10)),
		buffer: subscriberBuffer,
		subs:   make(map[string]*Subscriber),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new delivery channel. Never fails. The subscriber
// receives every event published after registration, in order, until it is
// unsubscribed or dropped.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		id:     h.newID(),
		events: make(chan RefreshEvent, h.buffer),
	}
	h.mu.Lock()
	h.subs[sub.id] = sub
	n := len(h.subs)
	h.mu.Unlock()
	h.logger.Debug("subscriber registered", "subscriber", sub.id, "total", n)
	return sub
}

// Unsubscribe removes sub and closes its channel. Idempotent: calling it
// twice, or on a subscriber the hub already dropped, is a no-op.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	_, present := h.subs[sub.id]
	if present {
		delete(h.subs, sub.id)
		close(sub.events)
	}
	n := len(h.subs)
	h.mu.Unlock()
	if present {
		h.logger.Debug("subscriber removed", "subscriber", sub.id, "total", n)
	}
}

// Notify advances the ledger and fans the resulting event out to every live
// subscriber. Delivery is non-blocking: a subscriber whose queue is full is
// dropped as disconnected rather than delaying the others. The new version
// is returned regardless of delivery outcomes.
func (h *Hub) Notify(reason string, nav *Navigation) uint64 {
	h.mu.Lock()
	ev := h.ledger.Advance(reason, nav)
	h.published++
	var droppedIDs []string
	for id, sub := range h.subs {
		select {
		case sub.events <- ev:
		default:
			delete(h.subs, id)
			close(sub.events)
			h.dropped++
			droppedIDs = append(droppedIDs, id)
		}
	}
	n := len(h.subs)
	h.mu.Unlock()

	for _, id := range droppedIDs {
		h.logger.Warn("subscriber queue saturated, dropped", "subscriber", id)
	}
	h.logger.Info("refresh published", "version", ev.Version, "reason", reason, "subscribers", n)
	return ev.Version
}

// Current returns the latest version and navigation directive without
// publishing anything. Late or reconnecting viewers use it to catch up.
func (h *Hub) Current() (uint64, *Navigation) {
	return h.ledger.Current()
}

// Stats is a point-in-time snapshot of hub activity.
type Stats struct {
	Version     uint64 `json:"version"`
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
}

// Stats returns current counters.
func (h *Hub) Stats() Stats {
	version, _ := h.ledger.Current()
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Version:     version,
		Subscribers: len(h.subs),
		Published:   h.published,
		Dropped:     h.dropped,
	}
}
