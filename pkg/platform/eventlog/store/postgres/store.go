package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	id "lineage/pkg/domain"
	"lineage/pkg/platform/eventlog"
	txcontext "lineage/pkg/platform/tx"
)

// Schema holds the DDL for the outbox and the materialized feed. Applied
// at boot and by the integration test container manager.
//
// Ledger amounts are u64; BIGINT tops out at 2^63-1, so amounts live in
// NUMERIC(20,0) and cross the driver as decimal strings.
const Schema = `
CREATE TABLE IF NOT EXISTS event_outbox (
	id           UUID PRIMARY KEY,
	agent        TEXT NOT NULL DEFAULT '',
	event_type   TEXT NOT NULL,
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_event_outbox_unpublished
	ON event_outbox (created_at) WHERE published_at IS NULL;

CREATE TABLE IF NOT EXISTS event_feed (
	id                UUID PRIMARY KEY,
	ts                TIMESTAMPTZ NOT NULL,
	action            TEXT NOT NULL,
	agent             TEXT NOT NULL DEFAULT '',
	wallet            TEXT NOT NULL DEFAULT '',
	parent            TEXT NOT NULL DEFAULT '',
	name              TEXT NOT NULL DEFAULT '',
	specialization    TEXT NOT NULL DEFAULT '',
	depth             SMALLINT NOT NULL DEFAULT 0,
	revenue_share_bps INTEGER NOT NULL DEFAULT 0,
	amount            NUMERIC(20,0) NOT NULL DEFAULT 0,
	total_earned      NUMERIC(20,0) NOT NULL DEFAULT 0,
	total_distributed NUMERIC(20,0) NOT NULL DEFAULT 0,
	request_id        TEXT NOT NULL DEFAULT '',
	device            TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_event_feed_agent ON event_feed (agent, ts DESC);
`

// Store implements eventlog.Store using the transactional outbox
// pattern. Append writes to the outbox inside the caller's transaction;
// the outbox worker publishes rows to Kafka, and the consumer
// materializes them into event_feed for querying.
type Store struct {
	db *sql.DB
}

// New creates a postgres event store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema applies the DDL. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply eventlog schema: %w", err)
	}
	return nil
}

// Append writes an event to the outbox. Joins the transaction carried in
// ctx when present, so the append commits or rolls back with the ledger
// mutation that emitted it.
func (s *Store) Append(ctx context.Context, event eventlog.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	query := `
		INSERT INTO event_outbox (id, agent, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = txcontext.ExecerFrom(ctx, s.db).ExecContext(ctx, query,
		event.ID,
		string(event.Agent),
		string(event.Action),
		payload,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListUnpublished returns up to limit unpublished outbox rows, oldest
// first. Used by the outbox worker.
func (s *Store) ListUnpublished(ctx context.Context, limit int) ([]eventlog.OutboxEntry, error) {
	query := `
		SELECT id, agent, event_type, payload
		FROM event_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []eventlog.OutboxEntry
	for rows.Next() {
		var e eventlog.OutboxEntry
		if err := rows.Scan(&e.ID, &e.Agent, &e.Type, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps an outbox row after its Kafka produce succeeded.
func (s *Store) MarkPublished(ctx context.Context, entryID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE event_outbox SET published_at = $1 WHERE id = $2`,
		time.Now(), entryID,
	)
	if err != nil {
		return fmt.Errorf("mark outbox entry published: %w", err)
	}
	return nil
}

// AppendWithID materializes a consumed event into event_feed. Idempotent
// via ON CONFLICT DO NOTHING, so redelivered Kafka messages are safe.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event eventlog.Event) error {
	query := `
		INSERT INTO event_feed (
			id, ts, action, agent, wallet, parent,
			name, specialization, depth, revenue_share_bps,
			amount, total_earned, total_distributed, request_id, device
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		eventID,
		event.Timestamp,
		string(event.Action),
		string(event.Agent),
		event.Wallet,
		string(event.Parent),
		event.Name,
		event.Specialization,
		int16(event.Depth),
		int32(event.RevenueShareBps),
		fmtU64(event.Amount),
		fmtU64(event.TotalEarned),
		fmtU64(event.TotalDistributed),
		event.RequestID,
		event.Device,
	)
	if err != nil {
		return fmt.Errorf("insert feed event: %w", err)
	}
	return nil
}

// ListByAgent returns the materialized events for one agent, newest
// first.
func (s *Store) ListByAgent(ctx context.Context, agent id.Address) ([]eventlog.Event, error) {
	query := selectFeed + ` WHERE agent = $1 ORDER BY ts DESC`
	rows, err := s.db.QueryContext(ctx, query, string(agent))
	if err != nil {
		return nil, fmt.Errorf("query feed events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the N most recent materialized events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]eventlog.Event, error) {
	query := selectFeed + ` ORDER BY ts DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query feed events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

const selectFeed = `
	SELECT id, ts, action, agent, wallet, parent,
	       name, specialization, depth, revenue_share_bps,
	       amount, total_earned, total_distributed, request_id, device
	FROM event_feed`

func scanEvents(rows *sql.Rows) ([]eventlog.Event, error) {
	var events []eventlog.Event
	for rows.Next() {
		var e eventlog.Event
		var action, agent, parent string
		var depth int16
		var shareBps int32
		var amount, earned, distrib string
		err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&action,
			&agent,
			&e.Wallet,
			&parent,
			&e.Name,
			&e.Specialization,
			&depth,
			&shareBps,
			&amount,
			&earned,
			&distrib,
			&e.RequestID,
			&e.Device,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feed event: %w", err)
		}
		e.Action = eventlog.Action(action)
		e.Agent = id.Address(agent)
		e.Parent = id.Address(parent)
		e.Depth = uint8(depth)
		e.RevenueShareBps = uint16(shareBps)
		if e.Amount, err = scanU64(amount); err != nil {
			return nil, err
		}
		if e.TotalEarned, err = scanU64(earned); err != nil {
			return nil, err
		}
		if e.TotalDistributed, err = scanU64(distrib); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed events: %w", err)
	}
	return events, nil
}

func fmtU64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func scanU64(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse u64 column: %w", err)
	}
	return v, nil
}
