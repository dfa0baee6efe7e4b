package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ringrelay/ringrelay/ring"
)

const (
	RingLabel = "ring"
)

// RingMetrics implements ring.RingObserver, translating claim/publish
// notifications from the local worker's ring into prometheus series.
// It never touches the ring's hot path directly; ring.ObserveSequencer
// calls it after a claim or publish has already completed.
type RingMetrics struct {
	name      string
	enabled   bool
	occupancy *prometheus.GaugeVec
	claimed   *prometheus.CounterVec
	published *prometheus.CounterVec
}

// NewRingMetrics builds a RingMetrics registered under name (e.g.
// "local"), sharing m's enabled flag and registry.
func (m *Metrics) NewRingMetrics(name string) *RingMetrics {
	rm := &RingMetrics{name: name, enabled: m.IsEnabled}
	if !rm.enabled {
		return rm
	}

	rm.occupancy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hookrelay_ring_claimed_sequence",
			Help: "Highest sequence claimed so far on a ring, by ring name.",
		},
		[]string{RingLabel},
	)
	rm.claimed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookrelay_ring_claims_total",
			Help: "Total number of sequences claimed from a ring, by ring name.",
		},
		[]string{RingLabel},
	)
	rm.published = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookrelay_ring_publishes_total",
			Help: "Total number of sequences published on a ring, by ring name.",
		},
		[]string{RingLabel},
	)
	m.Registery.MustRegister(rm.occupancy, rm.claimed, rm.published)
	return rm
}

func (rm *RingMetrics) OnClaim(lo, hi int64) {
	if !rm.enabled {
		return
	}
	rm.occupancy.With(prometheus.Labels{RingLabel: rm.name}).Set(float64(hi))
	rm.claimed.With(prometheus.Labels{RingLabel: rm.name}).Add(float64(hi - lo + 1))
}

func (rm *RingMetrics) OnPublish(lo, hi int64) {
	if !rm.enabled {
		return
	}
	rm.published.With(prometheus.Labels{RingLabel: rm.name}).Add(float64(hi - lo + 1))
}

var _ ring.RingObserver = (*RingMetrics)(nil)
