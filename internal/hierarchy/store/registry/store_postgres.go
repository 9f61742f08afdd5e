package registry

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

// Schema holds the registry DDL. Counters are u64, which BIGINT cannot
// hold past 2^63-1, so they live in NUMERIC(20,0) and cross the driver
// as decimal strings.
const Schema = `
CREATE TABLE IF NOT EXISTS registry (
	address        TEXT PRIMARY KEY,
	authority      UUID NOT NULL,
	total_agents   NUMERIC(20,0) NOT NULL DEFAULT 0,
	total_earnings NUMERIC(20,0) NOT NULL DEFAULT 0,
	total_spawns   NUMERIC(20,0) NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL
);
`

// Postgres persists the registry singleton. Pure I/O: counter math and
// authority checks belong to the service and the model.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a postgres-backed registry store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema applies the DDL. Idempotent.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply registry schema: %w", err)
	}
	return nil
}

// Create inserts the registry. The address is fixed, so a second
// initialize lands on the same primary key and conflicts.
func (s *Postgres) Create(ctx context.Context, registry *models.Registry) error {
	query := `
		INSERT INTO registry (address, authority, total_agents, total_earnings, total_spawns, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (address) DO NOTHING
	`
	result, err := txcontext.ExecerFrom(ctx, s.db).ExecContext(ctx, query,
		string(registry.Address),
		registry.Authority.String(),
		fmtU64(registry.TotalAgents),
		fmtU64(registry.TotalEarnings),
		fmtU64(registry.TotalSpawns),
		registry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert registry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert registry rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("registry already initialized: %w", sentinel.ErrConflict)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context) (*models.Registry, error) {
	return s.get(ctx, selectRegistry)
}

// GetForUpdate locks the registry row for the rest of the transaction.
// Mutating operations read through this so concurrent counter updates
// serialize instead of losing increments.
func (s *Postgres) GetForUpdate(ctx context.Context) (*models.Registry, error) {
	return s.get(ctx, selectRegistry+` FOR UPDATE`)
}

const selectRegistry = `
	SELECT address, authority, total_agents, total_earnings, total_spawns, created_at
	FROM registry
	WHERE address = $1`

func (s *Postgres) get(ctx context.Context, query string) (*models.Registry, error) {
	row := txcontext.ExecerFrom(ctx, s.db).QueryRowContext(ctx, query, string(id.RegistryAddress()))

	var r models.Registry
	var address, authority string
	var agents, earnings, spawns string
	err := row.Scan(&address, &authority, &agents, &earnings, &spawns, &r.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("registry not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get registry: %w", err)
	}

	r.Address = id.Address(address)
	if r.Authority, err = id.ParseWalletID(authority); err != nil {
		return nil, fmt.Errorf("parse registry authority: %w", err)
	}
	if r.TotalAgents, err = scanU64(agents); err != nil {
		return nil, err
	}
	if r.TotalEarnings, err = scanU64(earnings); err != nil {
		return nil, err
	}
	if r.TotalSpawns, err = scanU64(spawns); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Postgres) Update(ctx context.Context, registry *models.Registry) error {
	query := `
		UPDATE registry
		SET total_agents = $2, total_earnings = $3, total_spawns = $4
		WHERE address = $1
	`
	result, err := txcontext.ExecerFrom(ctx, s.db).ExecContext(ctx, query,
		string(registry.Address),
		fmtU64(registry.TotalAgents),
		fmtU64(registry.TotalEarnings),
		fmtU64(registry.TotalSpawns),
	)
	if err != nil {
		return fmt.Errorf("update registry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registry rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("registry not found: %w", sentinel.ErrNotFound)
	}
	return nil
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
