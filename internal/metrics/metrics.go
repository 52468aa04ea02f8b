// Package metrics defines the engine's Prometheus instrumentation
// surface (component C10), following the registerer-constructor idiom
// used throughout the telemetry pipeline's writers (see
// telemetry/gnmi-writer/internal/gnmi/metrics.go).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the engine exposes.
type Metrics struct {
	MessagesTotal     *prometheus.CounterVec
	RouteChangesTotal *prometheus.CounterVec
	Routes            *prometheus.GaugeVec
	LinksUp           prometheus.Gauge
	ConvergenceState  prometheus.Gauge
	EventDropsTotal   prometheus.Counter
}

// New creates and registers the engine's metrics against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "routesim_messages_total",
			Help: "Total distance-vector messages sent, by kind",
		}, []string{"kind"}),
		RouteChangesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "routesim_route_changes_total",
			Help: "Total routing table changes, by router",
		}, []string{"router"}),
		Routes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "routesim_routes",
			Help: "Current route count per router, by table status",
		}, []string{"router", "status"}),
		LinksUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "routesim_links_up",
			Help: "Number of links currently operational",
		}),
		ConvergenceState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "routesim_convergence_state",
			Help: "Network convergence state: 0=converging, 1=converged, 2=diverging",
		}),
		EventDropsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "routesim_event_drops_total",
			Help: "Total domain events dropped due to a full subscriber buffer",
		}),
	}
}
