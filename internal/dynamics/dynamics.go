// Package dynamics implements the randomized network-dynamics
// generator (component C4): link failures with scheduled recovery,
// cost changes, and whole-node outages, all driven by the shared
// seeded random source so a run is reproducible given --seed (spec.md
// §4.4, §9).
package dynamics

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/routelab/ripsim/internal/events"
	"github.com/routelab/ripsim/internal/fabric"
	"github.com/routelab/ripsim/internal/simrand"
)

// Endpoint is the subset of the router engine the dynamics driver
// needs to notify about topology changes it causes.
type Endpoint interface {
	HandleLinkFailure(neighbor fabric.RouterID, now time.Time)
	HandleLinkRecovery(neighbor fabric.RouterID, newCost int, now time.Time)
}

// faultKind enumerates the weighted fault choices from spec.md §4.4.
type faultKind int

const (
	faultLinkFailure faultKind = iota
	faultCostChange
	faultNodeFailure
)

var faultWeights = []float64{0.4, 0.5, 0.1} // link_failure, cost_change, node_failure

const (
	initialGrace    = 20 * time.Second
	minFaultDelay   = 10 * time.Second
	maxFaultDelay   = 20 * time.Second
	minRecoveryWait = 15 * time.Second
	maxRecoveryWait = 25 * time.Second
	minNewCost      = 1
	maxNewCost      = 10
)

// Driver periodically mutates the link fabric and notifies affected
// routers, simulating an operator or the environment perturbing the
// network.
type Driver struct {
	links   *fabric.Store
	routers map[fabric.RouterID]Endpoint
	hub     *events.Hub
	rng     *simrand.Source
	clock   clockwork.Clock
}

// New constructs a Driver over the given link store and router
// endpoints.
func New(links *fabric.Store, routers map[fabric.RouterID]Endpoint, hub *events.Hub, rng *simrand.Source, clock clockwork.Clock) *Driver {
	return &Driver{links: links, routers: routers, hub: hub, rng: rng, clock: clock}
}

// Run drives the dynamics loop until ctx is cancelled, per spec.md
// §4.4: an initial grace period, then repeated weighted fault
// injection at uniform random intervals.
func (d *Driver) Run(ctx context.Context) {
	if !d.sleep(ctx, initialGrace) {
		return
	}
	for {
		wait := d.rng.UniformDuration(minFaultDelay, maxFaultDelay)
		if !d.sleep(ctx, wait) {
			return
		}
		d.safeCall(func() { d.injectFault(ctx) })
	}
}

func (d *Driver) sleep(ctx context.Context, dur time.Duration) bool {
	timer := d.clock.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Driver) safeCall(f func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dynamics: recovered from task fault", "panic", r)
		}
	}()
	f()
}

func (d *Driver) injectFault(ctx context.Context) {
	switch faultKind(d.rng.WeightedChoice(faultWeights)) {
	case faultLinkFailure:
		d.doLinkFailure(ctx)
	case faultCostChange:
		d.doCostChange()
	case faultNodeFailure:
		d.doNodeFailure(ctx)
	}
}

// upLinkKeys returns every currently-UP link key in sorted order, for
// deterministic indexing by the seeded RNG.
func (d *Driver) upLinkKeys() []fabric.Key {
	keys := d.links.Keys()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].A != keys[j].A {
			return keys[i].A < keys[j].A
		}
		return keys[i].B < keys[j].B
	})
	var up []fabric.Key
	for _, k := range keys {
		if l, ok := d.links.Get(k); ok && l.IsOperational() {
			up = append(up, k)
		}
	}
	return up
}

func (d *Driver) pickUpLink() (fabric.Key, fabric.Link, bool) {
	up := d.upLinkKeys()
	if len(up) == 0 {
		return fabric.Key{}, fabric.Link{}, false
	}
	k := up[d.rng.Intn(len(up))]
	l, ok := d.links.Get(k)
	return k, l, ok
}

// doLinkFailure implements spec.md §4.4 "link_failure": flip a random
// UP link DOWN, notify both endpoints, and schedule an independent
// recovery.
func (d *Driver) doLinkFailure(ctx context.Context) {
	k, l, ok := d.pickUpLink()
	if !ok {
		return
	}
	d.failLink(ctx, k, l)
}

func (d *Driver) failLink(ctx context.Context, k fabric.Key, l fabric.Link) {
	now := d.clock.Now()
	d.links.SetStatus(k, fabric.Down, now)
	d.hub.Publish(events.Event{Kind: events.LinkDown, Router: k.A, Neighbor: k.B})

	if r, ok := d.routers[k.A]; ok {
		r.HandleLinkFailure(k.B, now)
	}
	if r, ok := d.routers[k.B]; ok {
		r.HandleLinkFailure(k.A, now)
	}

	recoverAfter := d.rng.UniformDuration(minRecoveryWait, maxRecoveryWait)
	go func() {
		if !d.sleep(ctx, recoverAfter) {
			return
		}
		d.safeCall(func() { d.recoverLink(k, l.Cost) })
	}()
}

func (d *Driver) recoverLink(k fabric.Key, originalCost int) {
	now := d.clock.Now()
	d.links.SetCost(k, originalCost)
	d.links.SetStatus(k, fabric.Up, now)
	d.hub.Publish(events.Event{Kind: events.LinkUp, Router: k.A, Neighbor: k.B})

	if r, ok := d.routers[k.A]; ok {
		r.HandleLinkRecovery(k.B, originalCost, now)
	}
	if r, ok := d.routers[k.B]; ok {
		r.HandleLinkRecovery(k.A, originalCost, now)
	}
}

// doCostChange implements spec.md §4.4 "cost_change": no DOWN
// transition, handled via the same link-recovery path both endpoints
// already use to refresh a direct-neighbor row.
func (d *Driver) doCostChange() {
	k, l, ok := d.pickUpLink()
	if !ok {
		return
	}
	newCost := d.rng.UniformInt(minNewCost, maxNewCost)
	if newCost == l.Cost {
		return
	}
	now := d.clock.Now()
	d.links.SetCost(k, newCost)
	d.hub.Publish(events.Event{Kind: events.CostChange, Router: k.A, Neighbor: k.B, Cost: newCost})

	if r, ok := d.routers[k.A]; ok {
		r.HandleLinkRecovery(k.B, newCost, now)
	}
	if r, ok := d.routers[k.B]; ok {
		r.HandleLinkRecovery(k.A, newCost, now)
	}
}

// doNodeFailure implements spec.md §4.4 "node_failure": every UP
// incident link of a randomly chosen router (with at least one
// neighbor) fails independently, each with its own scheduled
// recovery.
func (d *Driver) doNodeFailure(ctx context.Context) {
	candidates := d.routersWithNeighbors()
	if len(candidates) == 0 {
		return
	}
	r := candidates[d.rng.Intn(len(candidates))]
	d.hub.Publish(events.Event{Kind: events.NodeDown, Router: r})

	for _, l := range d.links.NeighborsOf(r) {
		if !l.IsOperational() {
			continue
		}
		d.failLink(ctx, fabric.NewKey(l.Router1, l.Router2), l)
	}
}

func (d *Driver) routersWithNeighbors() []fabric.RouterID {
	seen := make(map[fabric.RouterID]bool)
	for _, k := range d.links.Keys() {
		seen[k.A] = true
		seen[k.B] = true
	}
	out := make([]fabric.RouterID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
