package adapters

import (
	"github.com/flow-hydraulics/wallet-orchestrator/wallets"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var stateKinds = []StateKind{KindSynced, KindSyncing, KindSearchingTransactions, KindNotSynced}

type metrics struct {
	active               prometheus.Gauge
	constructionFailures *prometheus.CounterVec
	reconciliation       prometheus.Histogram
	states               *prometheus.GaugeVec
}

// newMetrics creates the manager metrics. A nil registerer leaves them
// unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "adapters_active",
			Help: "Number of live adapters",
		}),
		constructionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adapter_construction_failures_total",
			Help: "Number of adapters that could not be constructed",
		}, []string{"blockchain"}),
		reconciliation: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "adapter_reconciliation_seconds",
			Help:    "Duration of adapter pool reconciliation passes",
			Buckets: prometheus.DefBuckets,
		}),
		states: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "adapter_states",
			Help: "Number of wallets per adapter state",
		}, []string{"state"}),
	}
}

func (mm *metrics) observeStates(states map[wallets.Key]State) {
	counts := make(map[StateKind]int, len(stateKinds))
	for _, s := range states {
		counts[s.Kind]++
	}
	for _, k := range stateKinds {
		mm.states.WithLabelValues(string(k)).Set(float64(counts[k]))
	}
}
