// Package metrics exposes prometheus counters for the storage adapter and
// the check-in flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RemoteRetries counts remote queries that failed and were retried.
	RemoteRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eventsx_remote_query_retries_total",
		Help: "Remote store queries that failed and were retried.",
	})

	// Fallbacks counts per-call fallbacks from the remote to the local store.
	Fallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsx_adapter_fallbacks_total",
		Help: "Adapter calls that fell back to the local store, by operation.",
	}, []string{"op"})

	// CheckIns counts check-in attempts by outcome.
	CheckIns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsx_checkins_total",
		Help: "Check-in attempts by outcome (ok, capacity_reached, outside_window, error).",
	}, []string{"outcome"})

	// MigratedEntities counts entities handled by local-to-remote migration.
	MigratedEntities = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsx_migrated_entities_total",
		Help: "Entities processed by local-to-remote migration, by type and result.",
	}, []string{"entity", "result"})
)

// Register registers all collectors with the default registry.
func Register() {
	prometheus.MustRegister(RemoteRetries, Fallbacks, CheckIns, MigratedEntities)
}
