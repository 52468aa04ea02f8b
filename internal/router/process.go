package router

import (
	"log/slog"
	"time"

	"github.com/routelab/ripsim/internal/bus"
	"github.com/routelab/ripsim/internal/cost"
	"github.com/routelab/ripsim/internal/events"
)

// handleMessage implements spec.md §4.3 "Processing a received
// message M from neighbor N": same-next-hop refresh/poison, adoption
// of strictly better routes from other neighbors (subject to
// hold-down), and the additional neighbor-liveness refresh for N's own
// row regardless of which branch fired.
func (r *Router) handleMessage(msg bus.Message, now time.Time) {
	n := msg.Source

	if !r.links.IsOperational(r.id, n) {
		slog.Debug("router: dropping message, link to sender is down", "router", r.id, "from", n)
		return
	}
	link, ok := r.links.GetBetween(r.id, n)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.neighborLastSeen[n] = now

	changed := false
	for d, advertised := range msg.Vector {
		if d == r.id {
			continue
		}
		newCost := cost.Add(advertised, link.Cost)
		e := r.tbl.getOrCreate(d)

		switch {
		case e.NextHop == n:
			e.LastUpdateTime = now
			e.TimeoutTime = now.Add(r.timers.RouteTimeout)
			if newCost != e.Cost {
				if !cost.Reachable(newCost) {
					e.Status = Invalid
					e.Cost = cost.Infinity
					e.GarbageTime = now.Add(r.timers.GarbageCollection)
					r.tbl.putHoldDown(d, now.Add(r.timers.HoldDownDuration))
					r.emit(events.Event{Kind: events.RouteChanged, Destination: d, Cost: newCost, Reason: "PoisonedByNextHop"})
				} else {
					reason := "BetterRoute"
					if newCost > e.Cost {
						reason = "RefreshedWorseButReachable"
					}
					e.Status = Valid
					e.Cost = newCost
					e.GarbageTime = time.Time{}
					r.emit(events.Event{Kind: events.RouteChanged, Destination: d, Cost: newCost, Reason: reason})
				}
				changed = true
			}

		case newCost < e.Cost && cost.Reachable(newCost):
			if r.tbl.isHeldDown(d, now) {
				slog.Debug("router: rejecting route during hold-down", "router", r.id, "dest", d, "from", n)
				break
			}
			e.Cost = newCost
			e.NextHop = n
			e.Status = Valid
			e.TimeoutTime = now.Add(r.timers.RouteTimeout)
			e.GarbageTime = time.Time{}
			e.LastUpdateTime = now
			changed = true
			r.emit(events.Event{Kind: events.RouteChanged, Destination: d, Cost: newCost, Reason: "NewRoute"})

		default:
			// Equal or worse cost from a different neighbor: ignore.
		}

		if d == n {
			e.LastUpdateTime = now
			e.TimeoutTime = now.Add(r.timers.RouteTimeout)
		}
	}

	if changed {
		r.markDirty(now)
	}
}
