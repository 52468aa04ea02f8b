package router

import "time"

// Timing constants from spec.md §4.3. Default values; a test harness
// may construct a Router with overrides via the WithTimers option for
// faster convergence in unit tests that still want real timers rather
// than a fake clock.
const (
	PeriodicUpdateBase   = 15 * time.Second
	PeriodicJitterFrac   = 0.1
	MinTriggeredInterval = 2500 * time.Millisecond
	RouteTimeout         = 90 * time.Second
	GarbageCollection    = 60 * time.Second
	HoldDownDuration     = 90 * time.Second
	StartupJitterMin     = 1 * time.Second
	StartupJitterMax     = 5 * time.Second
	SweepInterval        = 100 * time.Millisecond
)

// Timers bundles the tunable intervals so a Router can be constructed
// with scaled-down values for fast integration tests. A zero Timers is
// all zero intervals; the production defaults above come from
// DefaultTimers, which New uses unless WithTimers overrides it.
type Timers struct {
	PeriodicUpdateBase   time.Duration
	PeriodicJitterFrac   float64
	MinTriggeredInterval time.Duration
	RouteTimeout         time.Duration
	GarbageCollection    time.Duration
	HoldDownDuration     time.Duration
	StartupJitterMin     time.Duration
	StartupJitterMax     time.Duration
	SweepInterval        time.Duration
}

// DefaultTimers returns the spec.md §4.3 defaults.
func DefaultTimers() Timers {
	return Timers{
		PeriodicUpdateBase:   PeriodicUpdateBase,
		PeriodicJitterFrac:   PeriodicJitterFrac,
		MinTriggeredInterval: MinTriggeredInterval,
		RouteTimeout:         RouteTimeout,
		GarbageCollection:    GarbageCollection,
		HoldDownDuration:     HoldDownDuration,
		StartupJitterMin:     StartupJitterMin,
		StartupJitterMax:     StartupJitterMax,
		SweepInterval:        SweepInterval,
	}
}
