package router

import (
	"time"

	"github.com/routelab/ripsim/internal/cost"
	"github.com/routelab/ripsim/internal/fabric"
)

// Status is the three-state route lifecycle from spec.md §3: a total,
// enumerable tagged variant (spec.md §9, "State machine expression").
type Status int

const (
	Valid Status = iota
	Invalid
	Garbage
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "VALID"
	case Invalid:
		return "INVALID"
	case Garbage:
		return "GARBAGE"
	default:
		return "UNKNOWN"
	}
}

// Entry is a single row in a router's routing table, keyed by
// destination in the owning Table.
type Entry struct {
	Destination    fabric.RouterID
	Cost           int
	NextHop        fabric.RouterID // self for the self row; empty until a route is learned; kept when the route becomes unreachable
	Status         Status
	LastUpdateTime time.Time
	TimeoutTime    time.Time
	GarbageTime    time.Time
}

// Row is the exported, JSON-friendly snapshot shape for a single
// route, matching spec.md §6's snapshot contract.
type Row struct {
	Destination    fabric.RouterID `json:"destination"`
	Cost           int             `json:"cost"`
	NextHop        string          `json:"next_hop"`
	Status         string          `json:"status"`
	LastUpdateTime time.Time       `json:"last_update_time"`
}

func (e Entry) toRow() Row {
	nh := string(e.NextHop)
	return Row{
		Destination:    e.Destination,
		Cost:           e.Cost,
		NextHop:        nh,
		Status:         e.Status.String(),
		LastUpdateTime: e.LastUpdateTime,
	}
}

// table is the per-router routing table plus hold-down set, guarded
// by a mutex since it is written by the router's own task and read
// concurrently by coordinator snapshots.
type table struct {
	self    fabric.RouterID
	entries map[fabric.RouterID]*Entry
	holdown map[fabric.RouterID]time.Time
}

func newTable(self fabric.RouterID) *table {
	return &table{
		self:    self,
		entries: make(map[fabric.RouterID]*Entry),
		holdown: make(map[fabric.RouterID]time.Time),
	}
}

// initialize implements spec.md §4.3 "Initialization": every known
// router gets an unreachable placeholder except self, then every
// operational neighbor overwrites its direct row. routeTimeout is the
// caller's configured Timers.RouteTimeout, not the package default, so
// a Router constructed with WithTimers for faster tests gets consistent
// expiry behavior.
func (t *table) initialize(allRouters []fabric.RouterID, neighbors []fabric.Link, now time.Time, routeTimeout time.Duration) {
	t.entries = make(map[fabric.RouterID]*Entry, len(allRouters))
	t.holdown = make(map[fabric.RouterID]time.Time)

	for _, d := range allRouters {
		if d == t.self {
			t.entries[d] = &Entry{
				Destination:    d,
				Cost:           0,
				NextHop:        t.self,
				Status:         Valid,
				LastUpdateTime: now,
			}
			continue
		}
		t.entries[d] = &Entry{
			Destination:    d,
			Cost:           cost.Infinity,
			NextHop:        "",
			Status:         Invalid,
			LastUpdateTime: now,
		}
	}

	for _, l := range neighbors {
		if !l.IsOperational() {
			continue
		}
		n, ok := fabric.NewKey(l.Router1, l.Router2).Other(t.self)
		if !ok {
			continue
		}
		t.entries[n] = &Entry{
			Destination:    n,
			Cost:           l.Cost,
			NextHop:        n,
			Status:         Valid,
			LastUpdateTime: now,
			TimeoutTime:    now.Add(routeTimeout),
		}
	}
}

func (t *table) get(d fabric.RouterID) (*Entry, bool) {
	e, ok := t.entries[d]
	return e, ok
}

func (t *table) getOrCreate(d fabric.RouterID) *Entry {
	e, ok := t.entries[d]
	if !ok {
		e = &Entry{Destination: d, Cost: cost.Infinity, NextHop: "", Status: Invalid}
		t.entries[d] = e
	}
	return e
}

func (t *table) destinations() []fabric.RouterID {
	out := make([]fabric.RouterID, 0, len(t.entries))
	for d := range t.entries {
		out = append(out, d)
	}
	return out
}

func (t *table) isHeldDown(d fabric.RouterID, now time.Time) bool {
	expiry, ok := t.holdown[d]
	if !ok {
		return false
	}
	if now.Before(expiry) {
		return true
	}
	delete(t.holdown, d)
	return false
}

func (t *table) putHoldDown(d fabric.RouterID, until time.Time) {
	t.holdown[d] = until
}

// snapshot returns a JSON-friendly copy of every row, self row
// included, in the exact shape spec.md §6 specifies for the
// coordinator's snapshot API. Garbage entries are included since
// they are a legitimate (if transient) lifecycle state an operator
// inspecting the table should be able to see; they are never included
// in advertisements (see buildAdvertisement).
func (t *table) snapshot() map[fabric.RouterID]Row {
	out := make(map[fabric.RouterID]Row, len(t.entries))
	for d, e := range t.entries {
		out[d] = e.toRow()
	}
	return out
}
