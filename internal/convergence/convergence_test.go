package convergence

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/routelab/ripsim/internal/events"
	"github.com/routelab/ripsim/internal/stats"
)

func TestMonitor_DeclaresConvergedAfterQuietPeriod(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gstats := stats.New()
	gstats.RecordRouteChange(clock.Now())

	hub := events.NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	m := New(gstats, hub, clock)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	clock.BlockUntil(1)
	clock.Advance(QuietThreshold + CheckInterval)
	clock.BlockUntil(1)

	require.Eventually(t, func() bool {
		return gstats.ConvergenceState() == stats.Converged
	}, time.Second, time.Millisecond)

	select {
	case e := <-ch:
		require.Equal(t, events.Converged, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected Converged event")
	}
}

func TestMonitor_StaysConvergingBeforeThreshold(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gstats := stats.New()
	gstats.RecordRouteChange(clock.Now())
	hub := events.NewHub()
	m := New(gstats, hub, clock)

	m.check(clock.Now().Add(QuietThreshold - time.Second))
	require.Equal(t, stats.Converging, gstats.ConvergenceState())
}

func TestMonitor_NoOpWhenAlreadyConverged(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gstats := stats.New()
	gstats.RecordRouteChange(clock.Now())
	gstats.SetConverged(clock.Now())
	hub := events.NewHub()
	m := New(gstats, hub, clock)

	m.check(clock.Now().Add(QuietThreshold * 2))
	require.Equal(t, stats.Converged, gstats.ConvergenceState())
}
