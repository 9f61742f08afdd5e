package credential

import (
	"context"
	"database/sql"
	"fmt"

	"lineage/internal/auth/models"
	id "lineage/pkg/domain"
	"lineage/pkg/platform/sentinel"
	txcontext "lineage/pkg/platform/tx"
)

// Schema holds the credential DDL. Only the bcrypt hash of a wallet
// secret is ever stored.
const Schema = `
CREATE TABLE IF NOT EXISTS wallet_credentials (
	wallet      UUID PRIMARY KEY,
	secret_hash TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
`

// Postgres persists wallet credentials.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a postgres-backed credential store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema applies the DDL. Idempotent.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply credential schema: %w", err)
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, cred *models.Credential) error {
	query := `
		INSERT INTO wallet_credentials (wallet, secret_hash, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet) DO NOTHING
	`
	result, err := txcontext.ExecerFrom(ctx, s.db).ExecContext(ctx, query,
		cred.Wallet.String(),
		cred.SecretHash,
		cred.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert credential rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("credential for %s: %w", cred.Wallet, sentinel.ErrConflict)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, wallet id.WalletID) (*models.Credential, error) {
	query := `
		SELECT wallet, secret_hash, created_at
		FROM wallet_credentials
		WHERE wallet = $1
	`
	row := txcontext.ExecerFrom(ctx, s.db).QueryRowContext(ctx, query, wallet.String())

	var cred models.Credential
	var walletCol string
	err := row.Scan(&walletCol, &cred.SecretHash, &cred.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("credential for %s: %w", wallet, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}

	if cred.Wallet, err = id.ParseWalletID(walletCol); err != nil {
		return nil, fmt.Errorf("parse credential wallet: %w", err)
	}
	return &cred, nil
}
