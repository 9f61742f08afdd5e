package eventlog

import (
	"context"

	"github.com/google/uuid"
)

// OutboxEntry is one event awaiting publication to the broker.
type OutboxEntry struct {
	ID      uuid.UUID
	Agent   string
	Type    string
	Payload []byte
}

// OutboxStore is the slice of the postgres store the outbox worker
// needs.
type OutboxStore interface {
	ListUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, entryID uuid.UUID) error
}
