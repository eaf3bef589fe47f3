// Package metrics wraps prometheus/client_golang counters for the engine:
// a handful of counters and one gauge rather than a full registry
// translation layer, since there is no foreign metrics registry to adapt
// here.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry groups the counters the engine reports. A nil *Registry is
// valid and every method on it is a no-op, so callers that don't care
// about metrics never need a special case.
type Registry struct {
	successes prometheus.Counter
	skips     prometheus.Counter
	aborts    prometheus.Counter
	shardLag  *prometheus.GaugeVec
	gatherer  prometheus.Gatherer
}

// NewRegistry builds a Registry backed by a fresh prometheus.Registry,
// retrievable via Gatherer for an HTTP /metrics handler.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		successes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger_engine", Name: "transactions_succeeded_total",
			Help: "Transactions applied successfully.",
		}),
		skips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger_engine", Name: "transactions_skipped_total",
			Help: "Transactions that failed and were skipped by policy.",
		}),
		aborts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger_engine", Name: "transactions_aborted_total",
			Help: "Transactions whose failure triggered pipeline abort.",
		}),
		shardLag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ledger_engine", Name: "shard_queue_depth",
			Help: "Number of streams currently assigned to each shard.",
		}, []string{"shard"}),
	}
	reg.MustRegister(r.successes, r.skips, r.aborts, r.shardLag)
	r.gatherer = reg
	return r
}

// Observe records the given event kind against the right counter. kind
// uses the small int values from the engine package to avoid an import
// cycle (engine imports metrics, not the reverse).
func (r *Registry) Observe(kind uint8) {
	if r == nil {
		return
	}
	switch kind {
	case 0: // success
		r.successes.Inc()
	case 1: // skip
		r.skips.Inc()
	case 2: // abort
		r.aborts.Inc()
	}
}

// SetShardDepth records how many streams are currently assigned to shard.
func (r *Registry) SetShardDepth(shard int, depth int) {
	if r == nil {
		return
	}
	r.shardLag.WithLabelValues(strconv.Itoa(shard)).Set(float64(depth))
}

// Gatherer exposes the underlying prometheus.Gatherer for wiring an HTTP
// /metrics endpoint in the embeddable server.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

