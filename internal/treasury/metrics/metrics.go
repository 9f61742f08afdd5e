package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the treasury context's Prometheus metrics.
type Metrics struct {
	Deposits         prometheus.Counter
	Transfers        prometheus.Counter
	TransferFailures prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Deposits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_treasury_deposits_total",
			Help: "Total deposits credited to wallets",
		}),
		Transfers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_treasury_transfers_total",
			Help: "Total wallet-to-wallet transfers completed",
		}),
		TransferFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_treasury_transfer_failures_total",
			Help: "Transfers refused or aborted",
		}),
	}
}
