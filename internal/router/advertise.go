package router

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/routelab/ripsim/internal/bus"
	"github.com/routelab/ripsim/internal/cost"
	"github.com/routelab/ripsim/internal/events"
	"github.com/routelab/ripsim/internal/fabric"
)

// sendCtx returns the context of the router's current Run call, or
// context.Background() if called before Run (e.g. from a test driving
// sendAdvertisements directly).
func (r *Router) sendCtx() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// buildAdvertisement implements spec.md §4.3 "Advertisement
// construction" for a single target neighbor: split horizon with
// poison reverse, hold-down suppression, and GARBAGE omission. Caller
// must hold r.mu.
func (r *Router) buildAdvertisement(neighbor fabric.RouterID, now time.Time) (map[fabric.RouterID]int, map[fabric.RouterID]struct{}) {
	vector := make(map[fabric.RouterID]int)
	poisonSet := make(map[fabric.RouterID]struct{})

	for d, e := range r.tbl.entries {
		if e.Status == Garbage {
			continue
		}
		if r.tbl.isHeldDown(d, now) {
			continue
		}
		if e.NextHop == neighbor && d != r.id {
			vector[d] = cost.Infinity
			poisonSet[d] = struct{}{}
			continue
		}
		vector[d] = e.Cost
	}
	return vector, poisonSet
}

// sendAdvertisements builds and sends a per-neighbor advertisement to
// every operational neighbor, as used by both periodic and triggered
// updates.
func (r *Router) sendAdvertisements(now time.Time, kind bus.Kind) {
	neighbors := r.links.NeighborsOf(r.id)
	for _, l := range neighbors {
		if !l.IsOperational() {
			continue
		}
		n, ok := fabric.NewKey(l.Router1, l.Router2).Other(r.id)
		if !ok {
			continue
		}

		r.mu.Lock()
		vector, poisonSet := r.buildAdvertisement(n, now)
		r.mu.Unlock()

		msgKind := kind
		if len(poisonSet) > 0 && kind == bus.Regular {
			msgKind = bus.PoisonReverse
		}

		msg := bus.Message{
			ID:          uuid.New(),
			Source:      r.id,
			Destination: n,
			Vector:      vector,
			PoisonSet:   poisonSet,
			SentAt:      now,
			Kind:        msgKind,
		}

		dropped := r.links.ShouldDrop(fabric.NewKey(r.id, n), r.rng)
		if dropped {
			continue
		}
		r.bus.Send(r.sendCtx(), msg, l.PropagationDelay)

		r.gstats.RecordMessage(len(poisonSet) > 0)
		r.emit(events.Event{Kind: events.MessageSent, Neighbor: n})
		if len(poisonSet) > 0 {
			for d := range poisonSet {
				r.emit(events.Event{Kind: events.PoisonReverseSent, Neighbor: n, Destination: d})
			}
		}
	}
}

// triggeredUpdate implements spec.md §4.3 "Triggered update": rate
// limited by MinTriggeredInterval. The dirty flag is cleared only after
// a send, so a suppressed attempt is retried on the next loop tick once
// the floor has elapsed.
func (r *Router) triggeredUpdate(now time.Time) {
	r.mu.Lock()
	tooSoon := now.Sub(r.lastTriggered) < r.timers.MinTriggeredInterval
	r.mu.Unlock()
	if tooSoon {
		return
	}

	r.sendAdvertisements(now, bus.Triggered)

	r.mu.Lock()
	r.lastTriggered = now
	r.dirty = false
	r.mu.Unlock()
}

// periodicUpdate implements spec.md §4.3 "Periodic update".
func (r *Router) periodicUpdate(now time.Time) {
	if !r.gstats.PeriodicUpdatesEnabled() {
		r.mu.Lock()
		r.lastPeriodic = now
		r.mu.Unlock()
		return
	}

	r.sendAdvertisements(now, bus.Regular)

	r.mu.Lock()
	r.lastPeriodic = now
	r.periodicInterval = r.rng.Jitter(r.timers.PeriodicUpdateBase, r.timers.PeriodicJitterFrac)
	r.mu.Unlock()
}
