// Package stats holds the network-wide counters and convergence state
// from spec.md §3 ("NetworkStats"). It has no dependency on the
// router, fabric, or bus packages so that all of them — plus the
// convergence monitor — can share one Stats instance without an
// import cycle.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// ConvergenceState is the network-wide quiescence state tracked by
// the convergence monitor (component C5).
type ConvergenceState int32

const (
	Converging ConvergenceState = iota
	Converged
	Diverging
)

func (c ConvergenceState) String() string {
	switch c {
	case Converging:
		return "CONVERGING"
	case Converged:
		return "CONVERGED"
	case Diverging:
		return "DIVERGING"
	default:
		return "UNKNOWN"
	}
}

// Stats is the engine's set of monotonic counters and convergence
// state, safe for concurrent use by every router task, the
// convergence monitor, and snapshot readers. Per spec.md §5, exact
// cross-field consistency is not required, only eventual agreement,
// so individual fields are updated independently rather than under one
// global lock.
type Stats struct {
	totalMessages     atomic.Uint64
	poisonReverseMsgs atomic.Uint64
	totalRouteChanges atomic.Uint64
	eventDrops        atomic.Uint64
	generation        atomic.Uint64
	periodicEnabled   atomic.Bool
	convergenceState  atomic.Int32

	mu                    sync.Mutex
	lastRouteChangeTime   time.Time
	convergenceDetectedAt time.Time
}

// New returns a Stats with periodic updates enabled, matching the
// engine's default startup posture.
func New() *Stats {
	s := &Stats{}
	s.periodicEnabled.Store(true)
	s.convergenceState.Store(int32(Converging))
	return s
}

// RecordMessage bumps total_messages and, for poison-reverse sends,
// poison_reverse_messages.
func (s *Stats) RecordMessage(poison bool) {
	s.totalMessages.Add(1)
	if poison {
		s.poisonReverseMsgs.Add(1)
	}
	s.bumpGeneration()
}

// RecordRouteChange bumps total_route_changes, updates
// last_route_change_time, and flips convergence_state back to
// CONVERGING, per spec.md §4.3 "On any route change".
func (s *Stats) RecordRouteChange(now time.Time) {
	s.totalRouteChanges.Add(1)
	s.mu.Lock()
	s.lastRouteChangeTime = now
	s.mu.Unlock()
	s.convergenceState.Store(int32(Converging))
	s.bumpGeneration()
}

// RecordEventDrop bumps the event-channel-overflow counter (spec.md
// §7, "Event-channel overflow").
func (s *Stats) RecordEventDrop() {
	s.eventDrops.Add(1)
}

func (s *Stats) bumpGeneration() {
	s.generation.Add(1)
}

// LastRouteChangeTime returns the last time any router's table
// changed.
func (s *Stats) LastRouteChangeTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRouteChangeTime
}

// ConvergenceState returns the current global convergence state.
func (s *Stats) ConvergenceState() ConvergenceState {
	return ConvergenceState(s.convergenceState.Load())
}

// SetConverged transitions the network to CONVERGED, called by the
// convergence monitor once it observes sustained quiescence.
func (s *Stats) SetConverged(now time.Time) {
	s.convergenceState.Store(int32(Converged))
	s.mu.Lock()
	s.convergenceDetectedAt = now
	s.mu.Unlock()
	s.bumpGeneration()
}

// PeriodicUpdatesEnabled reports the user-toggleable flag.
func (s *Stats) PeriodicUpdatesEnabled() bool {
	return s.periodicEnabled.Load()
}

// TogglePeriodicUpdates flips the flag and returns its new value.
func (s *Stats) TogglePeriodicUpdates() bool {
	for {
		old := s.periodicEnabled.Load()
		if s.periodicEnabled.CompareAndSwap(old, !old) {
			s.bumpGeneration()
			return !old
		}
	}
}

// Reset restores fresh-start values for restart(), per spec.md §4.6.
func (s *Stats) Reset(now time.Time) {
	s.totalMessages.Store(0)
	s.poisonReverseMsgs.Store(0)
	s.totalRouteChanges.Store(0)
	s.convergenceState.Store(int32(Converging))
	s.mu.Lock()
	s.lastRouteChangeTime = now
	s.convergenceDetectedAt = time.Time{}
	s.mu.Unlock()
	s.bumpGeneration()
}

// View is the exported, JSON-friendly snapshot of Stats, matching
// spec.md §3's NetworkStats field list, plus the generation counter
// supplemented from the original Python reference implementation (see
// SPEC_FULL.md) so a poller can cheaply detect "nothing changed".
type View struct {
	TotalMessages          uint64    `json:"total_messages"`
	PoisonReverseMessages  uint64    `json:"poison_reverse_messages"`
	TotalRouteChanges      uint64    `json:"total_route_changes"`
	LastRouteChangeTime    time.Time `json:"last_route_change_time"`
	ConvergenceState       string    `json:"convergence_state"`
	ConvergenceDetectedAt  time.Time `json:"convergence_detected_at"`
	PeriodicUpdatesEnabled bool      `json:"periodic_updates_enabled"`
	EventDrops             uint64    `json:"event_drops"`
	Generation             uint64    `json:"generation"`
}

// Snapshot returns a point-in-time, immutable copy of the stats.
func (s *Stats) Snapshot() View {
	s.mu.Lock()
	last := s.lastRouteChangeTime
	detected := s.convergenceDetectedAt
	s.mu.Unlock()
	return View{
		TotalMessages:          s.totalMessages.Load(),
		PoisonReverseMessages:  s.poisonReverseMsgs.Load(),
		TotalRouteChanges:      s.totalRouteChanges.Load(),
		LastRouteChangeTime:    last,
		ConvergenceState:       s.ConvergenceState().String(),
		ConvergenceDetectedAt:  detected,
		PeriodicUpdatesEnabled: s.PeriodicUpdatesEnabled(),
		EventDrops:             s.eventDrops.Load(),
		Generation:             s.generation.Load(),
	}
}
