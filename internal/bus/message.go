// Package bus implements the simulated message bus (component C2): a
// single logical queue of in-flight distance-vector advertisements,
// delivered to their destination only after the sending link's
// propagation delay has elapsed. The bus itself does not look at link
// status or loss: the sending router checks both before calling Send
// and never hands the bus a message it decided to drop. Per-link FIFO
// is not guaranteed —
// messages are self-describing vectors, not incremental deltas, so
// reordering is harmless (spec.md §4.2).
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/routelab/ripsim/internal/fabric"
)

// Kind distinguishes why a message was sent.
type Kind int

const (
	Regular Kind = iota
	PoisonReverse
	Triggered
)

func (k Kind) String() string {
	switch k {
	case Regular:
		return "REGULAR"
	case PoisonReverse:
		return "POISON_REVERSE"
	case Triggered:
		return "TRIGGERED"
	default:
		return "UNKNOWN"
	}
}

// Message is a single distance-vector advertisement in flight between
// two neighbors.
type Message struct {
	ID          uuid.UUID
	Source      fabric.RouterID
	Destination fabric.RouterID
	Vector      map[fabric.RouterID]int
	PoisonSet   map[fabric.RouterID]struct{}
	SentAt      time.Time
	Kind        Kind
}

// Bus is the in-flight message queue. Sends are non-blocking from the
// caller's perspective: each Send schedules a delayed delivery on its
// own goroutine and returns immediately; Ready() yields messages once
// their link's propagation delay has elapsed.
type Bus struct {
	clock clockwork.Clock
	ready chan Message
}

// New constructs a Bus backed by clock, a real clock in production and
// a clockwork.FakeClock in tests (spec.md §9, testable timer-driven
// properties). bufferSize bounds the ready channel so a stalled
// delivery-task consumer applies backpressure rather than growing
// unbounded.
func New(clock clockwork.Clock, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &Bus{clock: clock, ready: make(chan Message, bufferSize)}
}

// Send enqueues msg for delivery after delay, modeling the wire
// (spec.md §5, suspension point (c)). Send does not check link status
// or loss; that is the caller's decision. If ctx is cancelled before
// the delay elapses or before the ready channel accepts the message,
// the message is discarded.
func (b *Bus) Send(ctx context.Context, msg Message, delay time.Duration) {
	go func() {
		timer := b.clock.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			return
		}
		select {
		case b.ready <- msg:
		case <-ctx.Done():
		}
	}()
}

// Ready returns the channel of messages whose propagation delay has
// elapsed and that are ready for the delivery task to hand to their
// destination router.
func (b *Bus) Ready() <-chan Message {
	return b.ready
}
