package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the hierarchy context's Prometheus metrics.
type Metrics struct {
	AgentsRegistered   prometheus.Counter
	AgentsSpawned      prometheus.Counter
	EarningsRecorded   prometheus.Counter
	RevenueDistributed prometheus.Counter
	AgentsDeactivated  prometheus.Counter
	OperationDuration  *prometheus.HistogramVec
	AgentCacheHits     prometheus.Counter
	AgentCacheMisses   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		AgentsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_agents_registered_total",
			Help: "Total root agents registered",
		}),
		AgentsSpawned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_agents_spawned_total",
			Help: "Total child agents spawned",
		}),
		EarningsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_earnings_recorded_total",
			Help: "Total earning operations recorded",
		}),
		RevenueDistributed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_revenue_distributed_total",
			Help: "Total distribution operations completed",
		}),
		AgentsDeactivated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_agents_deactivated_total",
			Help: "Total deactivation operations",
		}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lineage_hierarchy_operation_duration_seconds",
			Help:    "Duration of hierarchy operations by name and outcome",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		AgentCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_agent_cache_hits_total",
			Help: "Agent reads served from the redis cache",
		}),
		AgentCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_agent_cache_misses_total",
			Help: "Agent reads that fell through to the store",
		}),
	}
}

// ObserveOperation records one finished operation.
func (m *Metrics) ObserveOperation(operation string, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.OperationDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// CacheHit satisfies the agent store's cache meter.
func (m *Metrics) CacheHit() { m.AgentCacheHits.Inc() }

// CacheMiss satisfies the agent store's cache meter.
func (m *Metrics) CacheMiss() { m.AgentCacheMisses.Inc() }
