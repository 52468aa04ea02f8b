// Package topology loads the static link-fabric description
// (component C11) the coordinator builds its fabric.Store and router
// set from (spec.md §6, "topology file").
package topology

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/routelab/ripsim/internal/cost"
	"github.com/routelab/ripsim/internal/fabric"
)

const (
	defaultPropagationDelay = 10 * time.Millisecond
	defaultLossRate         = 0.0
)

// LinkSpec is one edge in the topology file's JSON representation.
type LinkSpec struct {
	Router1  string   `json:"router1"`
	Router2  string   `json:"router2"`
	Cost     int      `json:"cost"`
	Delay    *float64 `json:"delay,omitempty"`
	LossRate *float64 `json:"loss_rate,omitempty"`
}

// Document is the top-level topology file shape.
type Document struct {
	Links []LinkSpec `json:"links"`
}

// Decode parses a topology document from r and validates it. Omitted
// delay and loss_rate fields stay nil; Build applies their defaults.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("topology: decode: %w", err)
	}
	if err := Validate(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Validate checks the structural invariants of a topology document:
// both endpoints named, no self-loops, cost in [1, cost.Infinity], a
// non-negative delay, a loss_rate in [0,1], and no duplicate unordered
// edge.
func Validate(doc Document) error {
	seen := make(map[fabric.Key]bool, len(doc.Links))
	for _, l := range doc.Links {
		if l.Router1 == "" || l.Router2 == "" {
			return fmt.Errorf("topology: link missing an endpoint: %+v", l)
		}
		if l.Router1 == l.Router2 {
			return fmt.Errorf("topology: self-loop on %q", l.Router1)
		}
		if l.Cost < 1 || l.Cost > cost.Infinity {
			return fmt.Errorf("topology: cost %d out of range [1, %d] on link %s-%s", l.Cost, cost.Infinity, l.Router1, l.Router2)
		}
		if l.Delay != nil && *l.Delay < 0 {
			return fmt.Errorf("topology: negative delay %v on link %s-%s", *l.Delay, l.Router1, l.Router2)
		}
		if l.LossRate != nil && (*l.LossRate < 0 || *l.LossRate > 1) {
			return fmt.Errorf("topology: loss_rate %v outside [0,1] on link %s-%s", *l.LossRate, l.Router1, l.Router2)
		}
		k := fabric.NewKey(fabric.RouterID(l.Router1), fabric.RouterID(l.Router2))
		if seen[k] {
			return fmt.Errorf("topology: duplicate link between %s and %s", l.Router1, l.Router2)
		}
		seen[k] = true
	}
	return nil
}

// Build converts a validated Document into fabric.Link values and the
// sorted set of router ids they reference, applying the delay and
// loss_rate defaults.
func Build(doc Document) ([]fabric.Link, []fabric.RouterID) {
	routers := make(map[fabric.RouterID]struct{})
	links := make([]fabric.Link, 0, len(doc.Links))
	for _, l := range doc.Links {
		delay := defaultPropagationDelay
		if l.Delay != nil {
			delay = time.Duration(*l.Delay * float64(time.Second))
		}
		loss := defaultLossRate
		if l.LossRate != nil {
			loss = *l.LossRate
		}
		r1, r2 := fabric.RouterID(l.Router1), fabric.RouterID(l.Router2)
		links = append(links, fabric.Link{
			Router1:          r1,
			Router2:          r2,
			Cost:             l.Cost,
			PropagationDelay: delay,
			LossRate:         loss,
			Status:           fabric.Up,
		})
		routers[r1] = struct{}{}
		routers[r2] = struct{}{}
	}
	ids := make([]fabric.RouterID, 0, len(routers))
	for id := range routers {
		ids = append(ids, id)
	}
	return links, ids
}

// Default returns spec.md §6's default four-router topology (A-D, five
// links), used when no --topology file is given.
func Default() Document {
	f := func(v float64) *float64 { return &v }
	return Document{
		Links: []LinkSpec{
			{Router1: "A", Router2: "B", Cost: 2, Delay: f(0.01), LossRate: f(0.0)},
			{Router1: "A", Router2: "C", Cost: 5, Delay: f(0.01), LossRate: f(0.0)},
			{Router1: "B", Router2: "C", Cost: 1, Delay: f(0.01), LossRate: f(0.0)},
			{Router1: "B", Router2: "D", Cost: 3, Delay: f(0.01), LossRate: f(0.0)},
			{Router1: "C", Router2: "D", Cost: 2, Delay: f(0.01), LossRate: f(0.0)},
		},
	}
}
