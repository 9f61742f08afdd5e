// Package publisher provides the fail-closed event publisher.
//
// Emit is synchronous by default: the caller blocks until the store
// append succeeds, and an append failure MUST fail the calling
// operation. That is what keeps "all mutations plus exactly one event,
// or nothing" true — in postgres mode the append joins the operation's
// transaction, in memory mode it happens under the operation's lock.
//
// WithAsyncBuffer trades that guarantee for throughput and is only
// appropriate for advisory events.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	id "lineage/pkg/domain"
	"lineage/pkg/platform/eventlog"
	"lineage/pkg/requestcontext"

	"github.com/google/uuid"
)

// Publisher appends events to a store, synchronously or through a
// buffered channel.
type Publisher struct {
	store  eventlog.Store
	logger *slog.Logger

	inbox  chan eventlog.Event
	done   chan struct{}
	closed sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAsyncBuffer switches the publisher to asynchronous mode with the
// given channel capacity. Emit never blocks on the store; append
// failures are logged, not returned.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan eventlog.Event, size)
	}
}

// NewPublisher creates a publisher over store.
func NewPublisher(store eventlog.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

// Emit records one event. In sync mode an error means the event was not
// persisted and the calling operation must abort.
func (p *Publisher) Emit(ctx context.Context, event eventlog.Event) error {
	if event.Action == "" {
		return fmt.Errorf("event requires an action")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if p.inbox != nil {
		select {
		case p.inbox <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}

	if err := p.store.Append(ctx, event); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "event append failed",
				"action", event.Action,
				"agent", event.Agent,
				"error", err,
			)
		}
		return fmt.Errorf("event persistence failed: %w", err)
	}
	return nil
}

// ListByAgent exposes the store's per-agent view.
func (p *Publisher) ListByAgent(ctx context.Context, agent id.Address) ([]eventlog.Event, error) {
	return p.store.ListByAgent(ctx, agent)
}

// Close stops the async drain goroutine after flushing buffered events.
// No-op in sync mode.
func (p *Publisher) Close() error {
	p.closed.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			<-p.done
		}
	})
	return nil
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("async event append failed",
				"action", event.Action,
				"agent", event.Agent,
				"error", err,
			)
		}
	}
}
