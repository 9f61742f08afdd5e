package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the auth context's Prometheus metrics.
type Metrics struct {
	WalletsCreated prometheus.Counter
	TokensIssued   prometheus.Counter
	TokenFailures  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		WalletsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_auth_wallets_created_total",
			Help: "Total wallet credentials created",
		}),
		TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_auth_tokens_issued_total",
			Help: "Total access tokens issued",
		}),
		TokenFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_auth_token_failures_total",
			Help: "Token requests refused",
		}),
	}
}
