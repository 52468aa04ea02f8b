package router

import (
	"time"

	"github.com/routelab/ripsim/internal/cost"
	"github.com/routelab/ripsim/internal/events"
)

// sweep implements spec.md §4.3 "Timer sweep", called at least every
// 100ms: VALID entries that outlive their timeout become INVALID
// (and enter hold-down); INVALID entries that outlive garbage
// collection become GARBAGE.
func (r *Router) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for d, e := range r.tbl.entries {
		if d == r.id {
			continue
		}
		switch e.Status {
		case Valid:
			if !e.TimeoutTime.IsZero() && now.After(e.TimeoutTime) {
				e.Status = Invalid
				e.Cost = cost.Infinity
				e.GarbageTime = now.Add(r.timers.GarbageCollection)
				r.tbl.putHoldDown(d, now.Add(r.timers.HoldDownDuration))
				changed = true
				r.emit(events.Event{Kind: events.RouteTimedOut, Destination: d, Cost: cost.Infinity, Reason: "TimedOut"})
			}
		case Invalid:
			if !e.GarbageTime.IsZero() && now.After(e.GarbageTime) {
				e.Status = Garbage
				changed = true
				r.emit(events.Event{Kind: events.RouteChanged, Destination: d, Cost: cost.Infinity, Reason: "GarbageCollected"})
			}
		}
	}

	if changed {
		r.markDirty(now)
	}
}
