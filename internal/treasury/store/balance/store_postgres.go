package balance

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"lineage/internal/treasury/models"
	id "lineage/pkg/domain"
	"lineage/pkg/platform/sentinel"
	txcontext "lineage/pkg/platform/tx"
)

// Schema holds the balance DDL. Amounts are u64 and live in NUMERIC(20,0),
// crossing the driver as decimal strings.
const Schema = `
CREATE TABLE IF NOT EXISTS treasury_balances (
	wallet     UUID PRIMARY KEY,
	amount     NUMERIC(20,0) NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// Postgres persists wallet balances. Pure I/O: funds checks and checked
// arithmetic belong to the model.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a postgres-backed balance store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema applies the DDL. Idempotent.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply treasury schema: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, wallet id.WalletID) (*models.Balance, error) {
	return s.get(ctx, selectBalance, wallet)
}

// GetForUpdate locks the balance row for the rest of the transaction so
// concurrent transfers touching the same wallet serialize. A missing row
// is inserted empty first: FOR UPDATE cannot lock a row that does not
// exist, and two first credits to the same wallet must not both start
// from zero.
func (s *Postgres) GetForUpdate(ctx context.Context, wallet id.WalletID) (*models.Balance, error) {
	ensure := `
		INSERT INTO treasury_balances (wallet, amount, updated_at)
		VALUES ($1, 0, now())
		ON CONFLICT (wallet) DO NOTHING
	`
	if _, err := txcontext.ExecerFrom(ctx, s.db).ExecContext(ctx, ensure, wallet.String()); err != nil {
		return nil, fmt.Errorf("ensure balance row: %w", err)
	}
	return s.get(ctx, selectBalance+` FOR UPDATE`, wallet)
}

const selectBalance = `
	SELECT wallet, amount, updated_at
	FROM treasury_balances
	WHERE wallet = $1`

func (s *Postgres) get(ctx context.Context, query string, wallet id.WalletID) (*models.Balance, error) {
	row := txcontext.ExecerFrom(ctx, s.db).QueryRowContext(ctx, query, wallet.String())

	var b models.Balance
	var walletCol, amount string
	err := row.Scan(&walletCol, &amount, &b.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("balance for %s: %w", wallet, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}

	if b.Wallet, err = id.ParseWalletID(walletCol); err != nil {
		return nil, fmt.Errorf("parse balance wallet: %w", err)
	}
	if b.Amount, err = scanU64(amount); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Postgres) Upsert(ctx context.Context, balance *models.Balance) error {
	query := `
		INSERT INTO treasury_balances (wallet, amount, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet) DO UPDATE
		SET amount = EXCLUDED.amount, updated_at = EXCLUDED.updated_at
	`
	_, err := txcontext.ExecerFrom(ctx, s.db).ExecContext(ctx, query,
		balance.Wallet.String(),
		fmtU64(balance.Amount),
		balance.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
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
