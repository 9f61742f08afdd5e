// Package worker drains the transactional outbox into Kafka. Rows are
// published oldest-first and marked only after the produce succeeds, so
// a crash between produce and mark yields at-least-once delivery; the
// consumer side is idempotent.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"lineage/pkg/platform/eventlog"
)

var (
	publishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lineage_outbox_published_total",
		Help: "Outbox entries successfully published to the broker.",
	})
	publishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lineage_outbox_publish_failures_total",
		Help: "Outbox publish attempts that failed and will be retried.",
	})
)

// Producer publishes one record to the broker.
type Producer interface {
	Produce(ctx context.Context, key, value []byte) error
}

// Worker polls the outbox and publishes pending entries.
type Worker struct {
	store    eventlog.OutboxStore
	producer Producer
	logger   *slog.Logger

	interval  time.Duration
	batchSize int
}

// NewWorker builds an outbox worker. interval is the poll period.
func NewWorker(store eventlog.OutboxStore, producer Producer, logger *slog.Logger, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Worker{
		store:     store,
		producer:  producer,
		logger:    logger,
		interval:  interval,
		batchSize: 100,
	}
}

// Run polls until ctx is cancelled. Publish failures are retried on the
// next tick; they never crash the worker.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil {
				w.logger.Error("outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drainOnce(ctx context.Context) error {
	entries, err := w.store.ListUnpublished(ctx, w.batchSize)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := w.producer.Produce(ctx, []byte(entry.ID.String()), entry.Payload); err != nil {
			publishFailures.Inc()
			w.logger.Error("produce outbox entry failed",
				"entry_id", entry.ID,
				"event_type", entry.Type,
				"error", err,
			)
			// Stop the batch; ordering within the outbox is preserved
			// by retrying from the oldest unpublished row.
			return nil
		}
		if err := w.store.MarkPublished(ctx, entry.ID); err != nil {
			w.logger.Error("mark outbox entry published failed",
				"entry_id", entry.ID,
				"error", err,
			)
			return nil
		}
		publishedTotal.Inc()
	}
	return nil
}
