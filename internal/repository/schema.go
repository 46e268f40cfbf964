package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS accounts (
	id             BIGSERIAL PRIMARY KEY,
	account_number TEXT NOT NULL UNIQUE,
	owner_name     TEXT NOT NULL UNIQUE,
	balance        BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transactions (
	id             BIGSERIAL PRIMARY KEY,
	reference_code TEXT NOT NULL UNIQUE,
	account_id     BIGINT NOT NULL REFERENCES accounts(id),
	kind           TEXT NOT NULL CHECK (kind IN ('deposit', 'withdraw')),
	amount         BIGINT NOT NULL CHECK (amount > 0),
	note           TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending'
	               CHECK (status IN ('pending', 'approved', 'rejected')),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	settled_at     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions(account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_status     ON transactions(status);
CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC);
`

// EnsureSchema creates the tables on startup if they do not exist yet. The
// database-level CHECK constraints back up the invariants the engine enforces.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
