package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/routelab/ripsim/internal/cost"
	"github.com/routelab/ripsim/internal/fabric"
)

func TestTable_InitializePlaceholdersEveryNonSelfDestination(t *testing.T) {
	tbl := newTable("B")
	now := time.Now()
	tbl.initialize([]fabric.RouterID{"A", "B", "C"}, nil, now, 90*time.Second)

	self, ok := tbl.get("B")
	require.True(t, ok)
	require.Equal(t, 0, self.Cost)
	require.Equal(t, Valid, self.Status)
	require.Equal(t, fabric.RouterID("B"), self.NextHop)

	a, ok := tbl.get("A")
	require.True(t, ok)
	require.Equal(t, cost.Infinity, a.Cost)
	require.Equal(t, Invalid, a.Status)
}

func TestTable_InitializeOverwritesWithOperationalNeighbors(t *testing.T) {
	tbl := newTable("B")
	now := time.Now()
	neighbors := []fabric.Link{
		{Router1: "B", Router2: "A", Cost: 3, Status: fabric.Up},
		{Router1: "B", Router2: "C", Cost: 7, Status: fabric.Down},
	}
	tbl.initialize([]fabric.RouterID{"A", "B", "C"}, neighbors, now, 90*time.Second)

	a, _ := tbl.get("A")
	require.Equal(t, 3, a.Cost)
	require.Equal(t, Valid, a.Status)
	require.False(t, a.TimeoutTime.IsZero())

	c, _ := tbl.get("C")
	require.Equal(t, cost.Infinity, c.Cost)
	require.Equal(t, Invalid, c.Status)
}

func TestTable_HoldDown(t *testing.T) {
	tbl := newTable("A")
	now := time.Now()
	tbl.putHoldDown("B", now.Add(time.Second))

	require.True(t, tbl.isHeldDown("B", now))
	require.False(t, tbl.isHeldDown("B", now.Add(2*time.Second)))
	require.False(t, tbl.isHeldDown("C", now))
}

func TestTable_GetOrCreate(t *testing.T) {
	tbl := newTable("A")
	e := tbl.getOrCreate("Z")
	require.Equal(t, fabric.RouterID("Z"), e.Destination)
	require.Equal(t, cost.Infinity, e.Cost)

	again := tbl.getOrCreate("Z")
	require.Same(t, e, again)
}

func TestStatus_String(t *testing.T) {
	require.Equal(t, "VALID", Valid.String())
	require.Equal(t, "INVALID", Invalid.String())
	require.Equal(t, "GARBAGE", Garbage.String())
}
