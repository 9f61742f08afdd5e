package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"lineage/internal/platform/kafka/consumer"
	"lineage/pkg/platform/eventlog"
)

// FeedStore materializes consumed events for querying.
type FeedStore interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event eventlog.Event) error
}

// FeedHandler writes consumed ledger events into the event feed. The
// outbox worker is at-least-once, so AppendWithID must be idempotent.
type FeedHandler struct {
	store  FeedStore
	logger *slog.Logger
}

// NewFeedHandler creates a feed materialization handler.
func NewFeedHandler(store FeedStore, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{store: store, logger: logger}
}

// Handle processes one ledger event. Malformed messages are logged and
// committed; they would fail identically on redelivery.
func (h *FeedHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Error("failed to parse event ID, skipping message",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var event eventlog.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("failed to unmarshal event payload, skipping message",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}
	if event.Action == "" {
		h.logger.Error("event missing action, skipping message", "event_id", eventID)
		return nil
	}

	if err := h.store.AppendWithID(ctx, eventID, event); err != nil {
		return fmt.Errorf("materialize event %s: %w", eventID, err)
	}

	h.logger.Debug("materialized event",
		"event_id", eventID,
		"action", event.Action,
		"agent", event.Agent,
	)
	return nil
}
