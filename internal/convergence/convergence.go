// Package convergence implements the convergence monitor (component
// C5): it periodically checks whether the network has gone quiet long
// enough to declare CONVERGED, per spec.md §4.5.
package convergence

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/routelab/ripsim/internal/events"
	"github.com/routelab/ripsim/internal/stats"
)

const (
	// CheckInterval is how often the monitor samples quiescence.
	CheckInterval = 5 * time.Second
	// QuietThreshold is how long the network must go without a route
	// change before being declared converged.
	QuietThreshold = 45 * time.Second
)

// Monitor periodically compares the time since the last route change
// against QuietThreshold and flips the shared Stats to CONVERGED.
type Monitor struct {
	gstats *stats.Stats
	hub    *events.Hub
	clock  clockwork.Clock
}

// New constructs a Monitor over the shared stats and event hub.
func New(gstats *stats.Stats, hub *events.Hub, clock clockwork.Clock) *Monitor {
	return &Monitor{gstats: gstats, hub: hub, clock: clock}
}

// Run drives the monitor's check loop until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.safeCall(func() { m.check(m.clock.Now()) })
		}
	}
}

func (m *Monitor) safeCall(f func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("convergence: recovered from task fault", "panic", r)
		}
	}()
	f()
}

// check implements spec.md §4.5: while CONVERGING, a quiet period past
// QuietThreshold flips the network to CONVERGED and emits a Converged
// event. DIVERGING is not reachable from here; it is reserved for a
// future non-terminating-loop detector (spec.md §9, Open Question 3 —
// unresolved, see DESIGN.md).
func (m *Monitor) check(now time.Time) {
	if m.gstats.ConvergenceState() != stats.Converging {
		return
	}
	last := m.gstats.LastRouteChangeTime()
	if last.IsZero() {
		return
	}
	if now.Sub(last) > QuietThreshold {
		m.gstats.SetConverged(now)
		m.hub.Publish(events.Event{Kind: events.Converged, Reason: "QuietPeriodElapsed"})
	}
}
