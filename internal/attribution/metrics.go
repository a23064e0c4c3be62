package attribution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	EventsHandled   *prometheus.CounterVec
	EventsSkipped   *prometheus.CounterVec
	ScratchResolved *prometheus.CounterVec
	ClampResidue    *prometheus.CounterVec
	ReadsDegraded   *prometheus.CounterVec
	PoolsRegistered *prometheus.CounterVec
	PositionsBound  prometheus.Counter
	LastBlock       prometheus.Gauge
}

// NewMetrics registers the engine collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		EventsHandled: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "lp_attribution",
			Name:      "events_handled_total",
			Help:      "Events applied to the ledgers, by event kind.",
		}, []string{"kind"}),
		EventsSkipped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "lp_attribution",
			Name:      "events_skipped_total",
			Help:      "Events ignored without a ledger change, by event kind and reason.",
		}, []string{"kind", "reason"}),
		ScratchResolved: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "lp_attribution",
			Name:      "scratch_records_total",
			Help:      "Transaction scratch records by outcome (finalized, cleared, discarded).",
		}, []string{"outcome"}),
		ClampResidue: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "lp_attribution",
			Name:      "clamped_subtractions_total",
			Help:      "Subtractions that would have driven a balance negative, by ledger.",
		}, []string{"ledger"}),
		ReadsDegraded: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "lp_attribution",
			Name:      "contract_reads_degraded_total",
			Help:      "Contract reads that failed and fell back to a placeholder, by call.",
		}, []string{"call"}),
		PoolsRegistered: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "lp_attribution",
			Name:      "pools_registered_total",
			Help:      "Whitelisted pools admitted to the registry, by kind.",
		}, []string{"kind"}),
		PositionsBound: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "lp_attribution",
			Name:      "positions_bound_total",
			Help:      "Positions bound to a whitelisted pool.",
		}),
		LastBlock: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "lp_attribution",
			Name:      "last_block",
			Help:      "Block number of the last handled event.",
		}),
	}
}

func (m *Metrics) handled(kind string) {
	if m != nil {
		m.EventsHandled.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) skipped(kind, reason string) {
	if m != nil {
		m.EventsSkipped.WithLabelValues(kind, reason).Inc()
	}
}

func (m *Metrics) scratch(outcome string) {
	if m != nil {
		m.ScratchResolved.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) clamped(ledger string) {
	if m != nil {
		m.ClampResidue.WithLabelValues(ledger).Inc()
	}
}

func (m *Metrics) degraded(call string) {
	if m != nil {
		m.ReadsDegraded.WithLabelValues(call).Inc()
	}
}

func (m *Metrics) registered(kind string) {
	if m != nil {
		m.PoolsRegistered.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) bound() {
	if m != nil {
		m.PositionsBound.Inc()
	}
}

func (m *Metrics) block(number uint64) {
	if m != nil {
		m.LastBlock.Set(float64(number))
	}
}
