// Package events implements the engine's event/snapshot surface
// (component C7): a bounded, drop-oldest, multi-consumer stream of
// domain events. Fan-out is modeled on the Sink/Broadcaster idiom from
// github.com/docker/go-events (a dependency of the pack's moby-moby
// repo) — each subscriber is a Sink added to a shared Broadcaster —
// but admission is drop-oldest rather than blocking or unbounded
// buffering, which the upstream Queue/Channel sinks do not provide
// (see DESIGN.md), so the per-subscriber ring is hand-rolled here.
package events

import (
	"sync"
	"time"

	goevents "github.com/docker/go-events"
	"github.com/google/uuid"

	"github.com/routelab/ripsim/internal/fabric"
)

// Kind enumerates the domain event types the engine emits.
type Kind string

const (
	LinkUp                 Kind = "LinkUp"
	LinkDown               Kind = "LinkDown"
	CostChange             Kind = "CostChange"
	NodeDown               Kind = "NodeDown"
	RouteChanged           Kind = "RouteChanged"
	RouteTimedOut          Kind = "RouteTimedOut"
	PoisonReverseSent      Kind = "PoisonReverseSent"
	MessageSent            Kind = "MessageSent"
	Converged              Kind = "Converged"
	Restarted              Kind = "Restarted"
	PeriodicUpdatesToggled Kind = "PeriodicUpdatesToggled"
	DisplayHintsSet        Kind = "DisplayHintsSet"
)

// Event is a single domain occurrence. Not every field is populated
// for every Kind; Router/Neighbor/Destination are router ids of the
// relevant parties and Reason carries a short human summary. Width
// and Height are only set on DisplayHintsSet, carrying the --width/
// --height CLI flags through to the front-end; the engine never reads
// them itself.
type Event struct {
	ID          uuid.UUID
	Kind        Kind
	At          time.Time
	Router      fabric.RouterID
	Neighbor    fabric.RouterID
	Destination fabric.RouterID
	Cost        int
	Reason      string
	Width       int
	Height      int
}

// Default bounded capacity per subscriber, matching spec.md's "bounded
// ... channel" with a generous size for a simulator polled a few
// times a second.
const DefaultCapacity = 256

// ringSink is a drop-oldest Sink: Write never blocks and, on a full
// channel, evicts the oldest buffered event before enqueuing the new
// one.
type ringSink struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
	onDrop func()
}

func newRingSink(capacity int, onDrop func()) *ringSink {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ringSink{ch: make(chan Event, capacity), onDrop: onDrop}
}

// Write implements goevents.Sink.
func (r *ringSink) Write(ev goevents.Event) error {
	e, ok := ev.(Event)
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return goevents.ErrSinkClosed
	}
	for {
		select {
		case r.ch <- e:
			return nil
		default:
			select {
			case <-r.ch:
				if r.onDrop != nil {
					r.onDrop()
				}
			default:
			}
		}
	}
}

// Close implements goevents.Sink.
func (r *ringSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	close(r.ch)
	return nil
}

// Hub is the single bounded, multi-consumer event surface the
// coordinator publishes onto and that a logger, a UI, or a test can
// subscribe to independently.
type Hub struct {
	broadcaster *goevents.Broadcaster
	mu          sync.Mutex
	sinks       []*ringSink
	capacity    int
	onDrop      func()
}

// Option configures a Hub.
type Option func(*Hub)

// WithCapacity sets the per-subscriber buffered capacity.
func WithCapacity(n int) Option {
	return func(h *Hub) { h.capacity = n }
}

// WithDropCallback registers a callback invoked whenever the hub
// evicts an event to admit a newer one (for overflow metrics).
func WithDropCallback(f func()) Option {
	return func(h *Hub) { h.onDrop = f }
}

// NewHub constructs an empty Hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{capacity: DefaultCapacity}
	for _, o := range opts {
		o(h)
	}
	h.broadcaster = goevents.NewBroadcaster()
	return h
}

// Subscribe registers a new consumer and returns a channel of events
// destined for it. Unsubscribe must be called when the consumer is
// done to release the sink.
func (h *Hub) Subscribe() <-chan Event {
	sink := newRingSink(h.capacity, h.onDrop)
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
	h.broadcaster.Add(sink)
	return sink.ch
}

// Unsubscribe detaches a previously subscribed channel.
func (h *Hub) Unsubscribe(ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.sinks {
		if (<-chan Event)(s.ch) == ch {
			h.broadcaster.Remove(s)
			s.Close()
			h.sinks = append(h.sinks[:i], h.sinks[i+1:]...)
			return
		}
	}
}

// Publish fans an event out to every current subscriber. Never blocks
// the caller beyond the brief per-subscriber lock used to apply
// drop-oldest admission.
func (h *Hub) Publish(e Event) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_ = h.broadcaster.Write(e)
}

// Close tears down every subscriber sink. Further Publish calls are
// no-ops.
func (h *Hub) Close() error {
	return h.broadcaster.Close()
}
