package fabric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/routelab/ripsim/internal/simrand"
)

func TestNewKey_CanonicalRegardlessOfOrder(t *testing.T) {
	require.Equal(t, NewKey("A", "B"), NewKey("B", "A"))
}

func TestKey_Other(t *testing.T) {
	k := NewKey("A", "B")
	other, ok := k.Other("A")
	require.True(t, ok)
	require.Equal(t, RouterID("B"), other)

	other, ok = k.Other("B")
	require.True(t, ok)
	require.Equal(t, RouterID("A"), other)

	_, ok = k.Other("C")
	require.False(t, ok)
}

func TestStore_AddRejectsDuplicateUnorderedPair(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(Link{Router1: "A", Router2: "B", Cost: 1, Status: Up}))
	err := s.Add(Link{Router1: "B", Router2: "A", Cost: 2, Status: Up})
	require.Error(t, err)
}

func TestStore_GetBetweenIsOrderIndependent(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(Link{Router1: "A", Router2: "B", Cost: 1, Status: Up}))

	l1, ok := s.GetBetween("A", "B")
	require.True(t, ok)
	l2, ok := s.GetBetween("B", "A")
	require.True(t, ok)
	require.Equal(t, l1, l2)
}

func TestStore_NeighborsOfIncludesDownLinks(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(Link{Router1: "A", Router2: "B", Cost: 1, Status: Up}))
	require.NoError(t, s.Add(Link{Router1: "A", Router2: "C", Cost: 1, Status: Down}))

	neighbors := s.NeighborsOf("A")
	require.Len(t, neighbors, 2)
}

func TestStore_IsOperational(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(Link{Router1: "A", Router2: "B", Cost: 1, Status: Up}))
	require.True(t, s.IsOperational("A", "B"))

	s.SetStatus(NewKey("A", "B"), Down, time.Now())
	require.False(t, s.IsOperational("A", "B"))
	require.False(t, s.IsOperational("A", "Z"))
}

func TestStore_SetStatusRecordsFailureTime(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(Link{Router1: "A", Router2: "B", Cost: 1, Status: Up}))
	now := time.Now()
	s.SetStatus(NewKey("A", "B"), Down, now)

	l, ok := s.Get(NewKey("A", "B"))
	require.True(t, ok)
	require.Equal(t, now, l.LastFailureTime)
}

func TestStore_ResetAllForcesEveryLinkUp(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(Link{Router1: "A", Router2: "B", Cost: 1, Status: Down}))
	require.NoError(t, s.Add(Link{Router1: "B", Router2: "C", Cost: 1, Status: Down}))

	s.ResetAll()
	for _, l := range s.All() {
		require.True(t, l.IsOperational())
		require.True(t, l.LastFailureTime.IsZero())
	}
}

func TestStore_ShouldDrop_MissingLinkIsTotalLoss(t *testing.T) {
	s := NewStore()
	rng := simrand.New(1)
	require.True(t, s.ShouldDrop(NewKey("X", "Y"), rng))
}

func TestStore_ShouldDrop_RoughlyMatchesLossRate(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(Link{Router1: "A", Router2: "B", Cost: 1, Status: Up, LossRate: 0.5}))
	rng := simrand.New(2)

	drops := 0
	const n = 4000
	for i := 0; i < n; i++ {
		if s.ShouldDrop(NewKey("A", "B"), rng) {
			drops++
		}
	}
	frac := float64(drops) / n
	require.InDelta(t, 0.5, frac, 0.05)
}

func TestStore_SetCost(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(Link{Router1: "A", Router2: "B", Cost: 1, Status: Up}))
	s.SetCost(NewKey("A", "B"), 7)
	l, _ := s.Get(NewKey("A", "B"))
	require.Equal(t, 7, l.Cost)
}
