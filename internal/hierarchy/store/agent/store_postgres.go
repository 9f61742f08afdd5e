package agent

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"lineage/internal/hierarchy/models"
	id "lineage/pkg/domain"
	"lineage/pkg/platform/sentinel"
	txcontext "lineage/pkg/platform/tx"
)

// Schema holds the agent table DDL. Lifetime counters are u64 and live in
// NUMERIC(20,0); parent is NULL for the root rather than an empty string
// so the partial index stays small.
const Schema = `
CREATE TABLE IF NOT EXISTS agents (
	address           TEXT PRIMARY KEY,
	wallet            UUID NOT NULL UNIQUE,
	parent            TEXT,
	name              TEXT NOT NULL,
	specialization    TEXT NOT NULL,
	total_earned      NUMERIC(20,0) NOT NULL DEFAULT 0,
	total_distributed NUMERIC(20,0) NOT NULL DEFAULT 0,
	children_count    NUMERIC(20,0) NOT NULL DEFAULT 0,
	depth             SMALLINT NOT NULL DEFAULT 0,
	revenue_share_bps INTEGER NOT NULL DEFAULT 0,
	is_active         BOOLEAN NOT NULL DEFAULT TRUE,
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agents_parent
	ON agents (parent, created_at) WHERE parent IS NOT NULL;
`

// Postgres persists agent accounts. Pure I/O: preconditions and counter
// math belong to the service and the model.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a postgres-backed agent store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema applies the DDL. Idempotent.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply agent schema: %w", err)
	}
	return nil
}

// Create inserts a new agent. The address derives from the wallet, so a
// wallet that already backs an agent lands on the same primary key and
// conflicts.
func (s *Postgres) Create(ctx context.Context, agent *models.AgentAccount) error {
	query := `
		INSERT INTO agents (
			address, wallet, parent, name, specialization,
			total_earned, total_distributed, children_count,
			depth, revenue_share_bps, is_active, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (address) DO NOTHING
	`
	result, err := txcontext.ExecerFrom(ctx, s.db).ExecContext(ctx, query,
		string(agent.Address),
		agent.Wallet.String(),
		parentParam(agent.Parent),
		agent.Name,
		agent.Specialization,
		fmtU64(agent.TotalEarned),
		fmtU64(agent.TotalDistributedToParent),
		fmtU64(agent.ChildrenCount),
		int16(agent.Depth),
		int32(agent.RevenueShareBps),
		agent.IsActive,
		agent.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert agent rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("agent address already taken: %w", sentinel.ErrConflict)
	}
	return nil
}

func (s *Postgres) FindByAddress(ctx context.Context, address id.Address) (*models.AgentAccount, error) {
	query := selectAgent + ` WHERE address = $1`
	row := txcontext.ExecerFrom(ctx, s.db).QueryRowContext(ctx, query, string(address))
	agent, err := scanAgent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("agent not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return agent, nil
}

// FindByAddressForUpdate locks the agent row for the rest of the
// transaction. Mutating operations read through this so concurrent
// read-modify-write cycles serialize instead of losing updates.
func (s *Postgres) FindByAddressForUpdate(ctx context.Context, address id.Address) (*models.AgentAccount, error) {
	query := selectAgent + ` WHERE address = $1 FOR UPDATE`
	row := txcontext.ExecerFrom(ctx, s.db).QueryRowContext(ctx, query, string(address))
	agent, err := scanAgent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("agent not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("lock agent: %w", err)
	}
	return agent, nil
}

// Update persists the mutable fields. Identity fields (wallet, parent,
// name, specialization, depth, share, created_at) never change after
// creation and are deliberately absent from the SET list.
func (s *Postgres) Update(ctx context.Context, agent *models.AgentAccount) error {
	query := `
		UPDATE agents
		SET total_earned = $2, total_distributed = $3,
		    children_count = $4, is_active = $5
		WHERE address = $1
	`
	result, err := txcontext.ExecerFrom(ctx, s.db).ExecContext(ctx, query,
		string(agent.Address),
		fmtU64(agent.TotalEarned),
		fmtU64(agent.TotalDistributedToParent),
		fmtU64(agent.ChildrenCount),
		agent.IsActive,
	)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update agent rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("agent not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) ListChildren(ctx context.Context, parent id.Address) ([]*models.AgentAccount, error) {
	query := selectAgent + ` WHERE parent = $1 ORDER BY created_at, address`
	rows, err := txcontext.ExecerFrom(ctx, s.db).QueryContext(ctx, query, string(parent))
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer rows.Close()

	var children []*models.AgentAccount
	for rows.Next() {
		child, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child agent: %w", err)
		}
		children = append(children, child)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children: %w", err)
	}
	return children, nil
}

const selectAgent = `
	SELECT address, wallet, parent, name, specialization,
	       total_earned, total_distributed, children_count,
	       depth, revenue_share_bps, is_active, created_at
	FROM agents`

type agentRow interface {
	Scan(dest ...any) error
}

func scanAgent(row agentRow) (*models.AgentAccount, error) {
	var a models.AgentAccount
	var address, wallet string
	var parent sql.NullString
	var earned, distributed, children string
	var depth int16
	var shareBps int32
	err := row.Scan(
		&address,
		&wallet,
		&parent,
		&a.Name,
		&a.Specialization,
		&earned,
		&distributed,
		&children,
		&depth,
		&shareBps,
		&a.IsActive,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Address = id.Address(address)
	if a.Wallet, err = id.ParseWalletID(wallet); err != nil {
		return nil, fmt.Errorf("parse agent wallet: %w", err)
	}
	if parent.Valid {
		a.Parent = id.Address(parent.String)
	}
	a.Depth = uint8(depth)
	a.RevenueShareBps = uint16(shareBps)
	if a.TotalEarned, err = scanU64(earned); err != nil {
		return nil, err
	}
	if a.TotalDistributedToParent, err = scanU64(distributed); err != nil {
		return nil, err
	}
	if a.ChildrenCount, err = scanU64(children); err != nil {
		return nil, err
	}
	return &a, nil
}

func parentParam(parent id.Address) any {
	if parent.IsZero() {
		return nil
	}
	return string(parent)
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
