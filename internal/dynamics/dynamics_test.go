package dynamics

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/routelab/ripsim/internal/events"
	"github.com/routelab/ripsim/internal/fabric"
	"github.com/routelab/ripsim/internal/simrand"
)

type recordingEndpoint struct {
	failures  []fabric.RouterID
	recovered []fabric.RouterID
}

func (e *recordingEndpoint) HandleLinkFailure(neighbor fabric.RouterID, now time.Time) {
	e.failures = append(e.failures, neighbor)
}

func (e *recordingEndpoint) HandleLinkRecovery(neighbor fabric.RouterID, newCost int, now time.Time) {
	e.recovered = append(e.recovered, neighbor)
}

func newTestStore(t *testing.T) *fabric.Store {
	t.Helper()
	s := fabric.NewStore()
	require.NoError(t, s.Add(fabric.Link{Router1: "A", Router2: "B", Cost: 2, Status: fabric.Up}))
	require.NoError(t, s.Add(fabric.Link{Router1: "B", Router2: "C", Cost: 3, Status: fabric.Up}))
	return s
}

func TestDriver_LinkFailureTakesLinkDownAndNotifiesBothEndpoints(t *testing.T) {
	links := newTestStore(t)
	a := &recordingEndpoint{}
	b := &recordingEndpoint{}
	c := &recordingEndpoint{}
	routers := map[fabric.RouterID]Endpoint{"A": a, "B": b, "C": c}

	hub := events.NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	clock := clockwork.NewFakeClock()
	rng := simrand.New(1)
	d := New(links, routers, hub, rng, clock)

	k, l, ok := d.pickUpLink()
	require.True(t, ok)

	d.failLink(context.Background(), k, l)

	other, _ := k.Other(k.A)
	_ = other
	gotDown, ok := links.Get(k)
	require.True(t, ok)
	require.Equal(t, fabric.Down, gotDown.Status)

	require.Len(t, routers[k.A].(*recordingEndpoint).failures, 1)
	require.Len(t, routers[k.B].(*recordingEndpoint).failures, 1)

	select {
	case e := <-ch:
		require.Equal(t, events.LinkDown, e.Kind)
	default:
		t.Fatal("expected LinkDown event")
	}
}

func TestDriver_NoUpLinksIsNoop(t *testing.T) {
	links := fabric.NewStore()
	require.NoError(t, links.Add(fabric.Link{Router1: "A", Router2: "B", Cost: 1, Status: fabric.Down}))

	hub := events.NewHub()
	clock := clockwork.NewFakeClock()
	rng := simrand.New(2)
	d := New(links, map[fabric.RouterID]Endpoint{}, hub, rng, clock)

	_, _, ok := d.pickUpLink()
	require.False(t, ok)
	d.doLinkFailure(context.Background())
	d.doCostChange()
}

func TestDriver_CostChangeDoesNotTakeLinkDown(t *testing.T) {
	links := newTestStore(t)
	a := &recordingEndpoint{}
	b := &recordingEndpoint{}
	routers := map[fabric.RouterID]Endpoint{"A": a, "B": b, "C": &recordingEndpoint{}}

	hub := events.NewHub()
	clock := clockwork.NewFakeClock()
	rng := simrand.New(3)
	d := New(links, routers, hub, rng, clock)

	d.doCostChange()

	k := fabric.NewKey("A", "B")
	l, ok := links.Get(k)
	require.True(t, ok)
	require.Equal(t, fabric.Up, l.Status)
}

func TestDriver_RoutersWithNeighborsIncludesDownLinkEndpoints(t *testing.T) {
	links := newTestStore(t)
	links.SetStatus(fabric.NewKey("A", "B"), fabric.Down, time.Time{})

	hub := events.NewHub()
	clock := clockwork.NewFakeClock()
	rng := simrand.New(4)
	d := New(links, map[fabric.RouterID]Endpoint{}, hub, rng, clock)

	got := d.routersWithNeighbors()
	require.ElementsMatch(t, []fabric.RouterID{"A", "B", "C"}, got)
}

func TestDriver_RunRespectsContextCancellation(t *testing.T) {
	links := newTestStore(t)
	hub := events.NewHub()
	clock := clockwork.NewFakeClock()
	rng := simrand.New(5)
	d := New(links, map[fabric.RouterID]Endpoint{}, hub, rng, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	clock.BlockUntil(1)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
