package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToConvergingWithPeriodicEnabled(t *testing.T) {
	s := New()
	require.Equal(t, Converging, s.ConvergenceState())
	require.True(t, s.PeriodicUpdatesEnabled())
}

func TestRecordMessage_CountsPoisonReverseSeparately(t *testing.T) {
	s := New()
	s.RecordMessage(false)
	s.RecordMessage(true)

	view := s.Snapshot()
	require.Equal(t, uint64(2), view.TotalMessages)
	require.Equal(t, uint64(1), view.PoisonReverseMessages)
}

func TestRecordRouteChange_ReopensConvergence(t *testing.T) {
	s := New()
	now := time.Now()
	s.SetConverged(now)
	require.Equal(t, Converged, s.ConvergenceState())

	s.RecordRouteChange(now.Add(time.Second))
	require.Equal(t, Converging, s.ConvergenceState())
	require.Equal(t, now.Add(time.Second), s.LastRouteChangeTime())
}

func TestTogglePeriodicUpdates_Flips(t *testing.T) {
	s := New()
	require.False(t, s.TogglePeriodicUpdates())
	require.True(t, s.TogglePeriodicUpdates())
}

func TestReset_RestoresFreshStartValues(t *testing.T) {
	s := New()
	now := time.Now()
	s.RecordMessage(true)
	s.RecordRouteChange(now)
	s.SetConverged(now)

	s.Reset(now)
	view := s.Snapshot()
	require.Equal(t, uint64(0), view.TotalMessages)
	require.Equal(t, uint64(0), view.PoisonReverseMessages)
	require.Equal(t, uint64(0), view.TotalRouteChanges)
	require.Equal(t, "CONVERGING", view.ConvergenceState)
	require.True(t, view.ConvergenceDetectedAt.IsZero())
}

func TestSnapshot_GenerationIncreasesMonotonically(t *testing.T) {
	s := New()
	v1 := s.Snapshot()
	s.RecordMessage(false)
	v2 := s.Snapshot()
	require.Greater(t, v2.Generation, v1.Generation)
}

func TestConvergenceState_String(t *testing.T) {
	require.Equal(t, "CONVERGING", Converging.String())
	require.Equal(t, "CONVERGED", Converged.String())
	require.Equal(t, "DIVERGING", Diverging.String())
}
