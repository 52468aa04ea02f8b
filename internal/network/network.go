// Package network implements the network coordinator (component C6):
// it owns the link fabric and the set of per-router tasks, wires the
// message bus, dynamics driver, and convergence monitor together, and
// exposes the snapshot and control surface the CLI, HTTP API, and
// tests drive (spec.md §4.6).
package network

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/routelab/ripsim/internal/bus"
	"github.com/routelab/ripsim/internal/convergence"
	"github.com/routelab/ripsim/internal/dynamics"
	"github.com/routelab/ripsim/internal/events"
	"github.com/routelab/ripsim/internal/fabric"
	"github.com/routelab/ripsim/internal/metrics"
	"github.com/routelab/ripsim/internal/router"
	"github.com/routelab/ripsim/internal/simrand"
	"github.com/routelab/ripsim/internal/stats"
	"github.com/routelab/ripsim/internal/topology"
)

// Option configures a Network at construction time.
type Option func(*Network)

// WithClock overrides the production wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(n *Network) { n.clock = c }
}

// WithSeed overrides the engine-wide seeded random source.
func WithSeed(seed int64) Option {
	return func(n *Network) { n.rng = simrand.New(seed) }
}

// WithMetrics attaches a Prometheus metrics sink; without this option
// the coordinator still runs, just unobserved.
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Network) { n.metrics = m }
}

// WithEventCapacity overrides the event hub's per-subscriber buffer
// size.
func WithEventCapacity(n int) Option {
	return func(net *Network) { net.eventCapacity = n }
}

// WithDisplayDims attaches the display-only --width/--height hints
// (spec.md §7) the coordinator never interprets itself but republishes
// on the event stream for a front-end to consume.
func WithDisplayDims(width, height int) Option {
	return func(n *Network) { n.displayWidth, n.displayHeight = width, height }
}

// Network is the coordinator: the one place that knows about every
// router, every link, and every background task. All exported methods
// are safe for concurrent use.
type Network struct {
	clock         clockwork.Clock
	rng           *simrand.Source
	metrics       *metrics.Metrics
	eventCapacity int
	displayWidth  int
	displayHeight int

	links  *fabric.Store
	bus    *bus.Bus
	hub    *events.Hub
	gstats *stats.Stats

	mu      sync.RWMutex
	routers map[fabric.RouterID]*router.Router
	ids     []fabric.RouterID

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Network from a topology document but does not yet
// start any task; call Start for that.
func New(doc topology.Document, opts ...Option) (*Network, error) {
	if err := topology.Validate(doc); err != nil {
		return nil, err
	}
	links, ids := topology.Build(doc)

	n := &Network{
		clock:  clockwork.NewRealClock(),
		rng:    simrand.New(0),
		gstats: stats.New(),
		hub:    events.NewHub(),
	}
	for _, o := range opts {
		o(n)
	}
	hubOpts := []events.Option{events.WithDropCallback(n.recordEventDrop)}
	if n.eventCapacity > 0 {
		hubOpts = append(hubOpts, events.WithCapacity(n.eventCapacity))
	}
	n.hub = events.NewHub(hubOpts...)

	n.links = fabric.NewStore()
	for _, l := range links {
		if err := n.links.Add(l); err != nil {
			return nil, err
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	n.ids = ids

	n.bus = bus.New(n.clock, 4096)
	n.routers = make(map[fabric.RouterID]*router.Router, len(ids))
	for _, id := range ids {
		n.routers[id] = router.New(id, n.links, n.bus, n.hub, n.gstats, n.rng, n.clock)
	}

	now := n.clock.Now()
	for _, r := range n.routers {
		r.Initialize(n.ids, now)
	}

	return n, nil
}

// Start launches the per-router tasks, the delivery task, the
// dynamics driver, and the convergence monitor, all bound to a single
// internal context cancelled by Stop.
func (n *Network) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	if n.displayWidth > 0 || n.displayHeight > 0 {
		n.hub.Publish(events.Event{Kind: events.DisplayHintsSet, Width: n.displayWidth, Height: n.displayHeight})
	}

	n.mu.RLock()
	endpoints := make(map[fabric.RouterID]dynamics.Endpoint, len(n.routers))
	for id, r := range n.routers {
		endpoints[id] = r
	}
	n.mu.RUnlock()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.runDelivery(ctx)
	}()

	n.mu.RLock()
	for _, r := range n.routers {
		r := r
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			r.Run(ctx)
		}()
	}
	n.mu.RUnlock()

	driver := dynamics.New(n.links, endpoints, n.hub, n.rng, n.clock)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		driver.Run(ctx)
	}()

	mon := convergence.New(n.gstats, n.hub, n.clock)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		mon.Run(ctx)
	}()

	if n.metrics != nil {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.runMetricsExporter(ctx)
		}()

		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.runMetricsRelay(ctx)
		}()
	}
}

// runMetricsRelay subscribes to the event hub and translates
// message/route-change events into the counter-shaped metrics that a
// polled snapshot can't express cheaply.
func (n *Network) runMetricsRelay(ctx context.Context) {
	ch := n.hub.Subscribe()
	defer n.hub.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			switch e.Kind {
			case events.MessageSent:
				n.metrics.MessagesTotal.WithLabelValues("regular").Inc()
			case events.PoisonReverseSent:
				n.metrics.MessagesTotal.WithLabelValues("poison_reverse").Inc()
			case events.RouteChanged, events.RouteTimedOut:
				n.metrics.RouteChangesTotal.WithLabelValues(string(e.Router)).Inc()
			}
		}
	}
}

// Stop cancels every background task and waits for them to return.
func (n *Network) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
	_ = n.hub.Close()
}

func (n *Network) recordEventDrop() {
	n.gstats.RecordEventDrop()
	if n.metrics != nil {
		n.metrics.EventDropsTotal.Inc()
	}
}

// runDelivery implements the delivery task referenced throughout
// spec.md §4.2/§4.6: pull ready messages off the bus and hand each to
// its destination router, dropping silently if the router is unknown
// (e.g. removed mid-run, which this engine never does, but the check
// is cheap and matches the original's defensive posture).
func (n *Network) runDelivery(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-n.bus.Ready():
			if !ok {
				return
			}
			n.mu.RLock()
			r, ok := n.routers[msg.Destination]
			n.mu.RUnlock()
			if !ok {
				slog.Debug("network: dropping message for unknown router", "destination", msg.Destination)
				continue
			}
			r.Deliver(msg)
		}
	}
}

func (n *Network) runMetricsExporter(ctx context.Context) {
	ticker := n.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			n.exportMetrics()
		}
	}
}

func (n *Network) exportMetrics() {
	n.metrics.ConvergenceState.Set(float64(n.gstats.ConvergenceState()))

	up := 0
	for _, l := range n.links.All() {
		if l.IsOperational() {
			up++
		}
	}
	n.metrics.LinksUp.Set(float64(up))

	n.mu.RLock()
	defer n.mu.RUnlock()
	for id, r := range n.routers {
		counts := map[string]int{}
		for _, row := range r.Snapshot() {
			counts[row.Status]++
		}
		for status, c := range counts {
			n.metrics.Routes.WithLabelValues(string(id), status).Set(float64(c))
		}
	}
}

// SnapshotTables returns every router's routing table, keyed by router
// id, matching spec.md §6's snapshot_tables().
func (n *Network) SnapshotTables() map[fabric.RouterID]map[fabric.RouterID]router.Row {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[fabric.RouterID]map[fabric.RouterID]router.Row, len(n.routers))
	for id, r := range n.routers {
		out[id] = r.Snapshot()
	}
	return out
}

// LinkView is the JSON-friendly snapshot shape for a single link.
type LinkView struct {
	Router1 fabric.RouterID `json:"router1"`
	Router2 fabric.RouterID `json:"router2"`
	Cost    int             `json:"cost"`
	Status  string          `json:"status"`
}

// SnapshotLinks returns every link's current state, matching spec.md
// §6's snapshot_links().
func (n *Network) SnapshotLinks() []LinkView {
	all := n.links.All()
	out := make([]LinkView, 0, len(all))
	for _, l := range all {
		out = append(out, LinkView{Router1: l.Router1, Router2: l.Router2, Cost: l.Cost, Status: l.Status.String()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Router1 != out[j].Router1 {
			return out[i].Router1 < out[j].Router1
		}
		return out[i].Router2 < out[j].Router2
	})
	return out
}

// SnapshotStats returns the network-wide counters, matching spec.md
// §6's snapshot_stats().
func (n *Network) SnapshotStats() stats.View {
	return n.gstats.Snapshot()
}

// TogglePeriodicUpdates flips the global periodic-update flag and
// emits a PeriodicUpdatesToggled event, matching spec.md §6's
// toggle_periodic_updates().
func (n *Network) TogglePeriodicUpdates() bool {
	enabled := n.gstats.TogglePeriodicUpdates()
	n.hub.Publish(events.Event{Kind: events.PeriodicUpdatesToggled, Reason: fmt.Sprintf("enabled=%t", enabled)})
	return enabled
}

// Restart implements spec.md §4.6 "restart()": re-initialize every
// router's table, force every link UP, and reset the shared stats,
// without tearing down and relaunching any background task.
func (n *Network) Restart() {
	now := n.clock.Now()
	n.links.ResetAll()
	n.gstats.Reset(now)

	n.mu.RLock()
	for _, r := range n.routers {
		r.Initialize(n.ids, now)
	}
	n.mu.RUnlock()

	n.hub.Publish(events.Event{Kind: events.Restarted, Reason: "OperatorRequested"})
}

// Subscribe registers a new event consumer, matching spec.md §6's
// event-stream surface.
func (n *Network) Subscribe() <-chan events.Event {
	return n.hub.Subscribe()
}

// Unsubscribe detaches a previously subscribed event consumer.
func (n *Network) Unsubscribe(ch <-chan events.Event) {
	n.hub.Unsubscribe(ch)
}

// RouterIDs returns every router id in the topology, in sorted order.
func (n *Network) RouterIDs() []fabric.RouterID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]fabric.RouterID(nil), n.ids...)
}

// NeighborLastSeen exposes a single router's last-seen-from-neighbor
// observability map entry, supplementing spec.md per SPEC_FULL.md.
func (n *Network) NeighborLastSeen(id, neighbor fabric.RouterID) (time.Time, bool) {
	n.mu.RLock()
	r, ok := n.routers[id]
	n.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	return r.NeighborLastSeen(neighbor)
}
