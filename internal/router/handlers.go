package router

import (
	"time"

	"github.com/routelab/ripsim/internal/cost"
	"github.com/routelab/ripsim/internal/events"
	"github.com/routelab/ripsim/internal/fabric"
)

// HandleLinkFailure implements spec.md §4.3 "Link failure handler",
// called by the coordinator when the link to neighbor transitions
// DOWN: every destination routed through neighbor becomes unreachable
// and enters hold-down.
func (r *Router) HandleLinkFailure(neighbor fabric.RouterID, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for d, e := range r.tbl.entries {
		if d == r.id {
			continue
		}
		if e.NextHop != neighbor {
			continue
		}
		e.Cost = cost.Infinity
		e.Status = Invalid
		e.GarbageTime = now.Add(r.timers.GarbageCollection)
		r.tbl.putHoldDown(d, now.Add(r.timers.HoldDownDuration))
		changed = true
		r.emit(events.Event{Kind: events.RouteChanged, Destination: d, Neighbor: neighbor, Cost: cost.Infinity, Reason: "LinkFailure"})
	}

	if changed {
		r.markDirty(now)
	}
}

// HandleLinkRecovery implements spec.md §4.3 "Link recovery handler":
// rewrite the direct-neighbor row only; other destinations reconverge
// via the subsequent exchange, not eagerly (spec.md §4.3 note, §9
// Open Question 2 — this handler is also used unmodified for
// cost-change events, per spec.md §4.4, preserving the original's
// choice not to eagerly recompute transit destinations; see
// DESIGN.md).
func (r *Router) HandleLinkRecovery(neighbor fabric.RouterID, newCost int, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.tbl.getOrCreate(neighbor)
	e.Cost = newCost
	e.NextHop = neighbor
	e.Status = Valid
	e.TimeoutTime = now.Add(r.timers.RouteTimeout)
	e.GarbageTime = time.Time{}
	e.LastUpdateTime = now

	r.markDirty(now)
	r.emit(events.Event{Kind: events.RouteChanged, Destination: neighbor, Neighbor: neighbor, Cost: newCost, Reason: "LinkRecovered"})
}

// NeighborLastSeen returns the last time a message from neighbor was
// processed, supplementing spec.md with the original Python reference
// implementation's neighbor-liveness bookkeeping (SPEC_FULL.md,
// "Supplemented features"). It is observability-only and never
// influences route computation.
func (r *Router) NeighborLastSeen(neighbor fabric.RouterID) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.neighborLastSeen[neighbor]
	return t, ok
}

// Snapshot returns a JSON-friendly copy of every route row, matching
// spec.md §6.
func (r *Router) Snapshot() map[fabric.RouterID]Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tbl.snapshot()
}
