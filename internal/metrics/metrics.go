// Package metrics exposes the Prometheus instruments an ISAM2 instance
// updates at the end of every Update call, grounded on the teacher's
// promauto-based counters in internal/graph/storagewrapper.go.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the instruments for one ISAM2 instance. Each Registry
// wraps its own private prometheus.Registry rather than the global
// default registerer, so that constructing multiple ISAM2 instances (as
// the test suite does) never collides on duplicate metric registration.
type Registry struct {
	registry *prometheus.Registry

	Cliques                   prometheus.Gauge
	VariablesRelinearized     prometheus.Counter
	VariablesReeliminated     prometheus.Counter
	LastBacksubVariableCount  prometheus.Gauge
	DogLegRadius              prometheus.Gauge
}

// New builds a Registry with all instruments registered under the isam2
// namespace.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Registry{
		registry: reg,
		Cliques: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "isam2",
			Name:      "cliques",
			Help:      "Current number of cliques in the Bayes tree.",
		}),
		VariablesRelinearized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "isam2",
			Name:      "variables_relinearized_total",
			Help:      "Cumulative count of variables selected for relinearization.",
		}),
		VariablesReeliminated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "isam2",
			Name:      "variables_reeliminated_total",
			Help:      "Cumulative count of variables re-eliminated by local re-elimination.",
		}),
		LastBacksubVariableCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "isam2",
			Name:      "last_backsub_variable_count",
			Help:      "Number of variables recomputed by the most recent wildfire back-substitution.",
		}),
		DogLegRadius: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "isam2",
			Name:      "dogleg_radius",
			Help:      "Current dog-leg trust-region radius (0 under Gauss-Newton).",
		}),
	}
}

// Registerer exposes the private registry so a host process can federate
// it into its own Prometheus gatherer.
func (r *Registry) Registerer() prometheus.Registerer { return r.registry }

// Gatherer exposes the private registry for scraping.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }
