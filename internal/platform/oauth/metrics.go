package oauth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts grants and cache lookups. A nil *Metrics records nothing.
type Metrics struct {
	grantsTotal       *prometheus.CounterVec
	cacheLookupsTotal *prometheus.CounterVec
}

// NewMetrics creates the oauth metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		grantsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_oauth_grants_total",
				Help: "Token endpoint calls by grant type and outcome",
			},
			[]string{"grant", "outcome"},
		),
		cacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_oauth_cache_lookups_total",
				Help: "Token cache lookups by identity kind and result",
			},
			[]string{"identity", "result"},
		),
	}
	reg.MustRegister(m.grantsTotal, m.cacheLookupsTotal)
	return m
}

func (m *Metrics) recordGrant(kind GrantKind, outcome string) {
	if m == nil {
		return
	}
	m.grantsTotal.WithLabelValues(kind.String(), outcome).Inc()
}

func (m *Metrics) recordLookup(identity string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(identity, result).Inc()
}
