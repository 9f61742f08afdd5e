// Package consumer provides a franz-go poll loop that hands records to a
// Handler one at a time. Offsets are committed only for records the
// handler accepted, so a handler error means redelivery.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one consumed record.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Handler processes a message. Returning nil commits the record;
// returning an error leaves it uncommitted for redelivery.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer polls the given topics as part of a consumer group.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// NewConsumer joins group and subscribes to topics.
func NewConsumer(brokers []string, group string, topics []string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				c.logger.Error("kafka fetch error",
					"topic", fe.Topic,
					"partition", fe.Partition,
					"error", fe.Err,
				)
			}
			continue
		}

		var handled []*kgo.Record
		var failed bool
		fetches.EachRecord(func(record *kgo.Record) {
			if failed {
				return
			}
			msg := &Message{Topic: record.Topic, Key: record.Key, Value: record.Value}
			if err := c.handler.Handle(ctx, msg); err != nil {
				c.logger.Error("message handling failed, will redeliver",
					"topic", record.Topic,
					"key", string(record.Key),
					"error", err,
				)
				failed = true
				return
			}
			handled = append(handled, record)
		})

		if len(handled) > 0 {
			if err := c.client.CommitRecords(ctx, handled...); err != nil {
				c.logger.Error("commit offsets failed", "error", err)
			}
		}
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}
