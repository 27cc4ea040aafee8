package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ledgerSchema = []string{
	`CREATE TABLE IF NOT EXISTS payments (
		id                     TEXT PRIMARY KEY,
		session_id             TEXT NOT NULL,
		payer_id               TEXT NOT NULL,
		payee_id               TEXT NOT NULL,
		amount                 BIGINT NOT NULL CHECK (amount > 0),
		captured_amount        BIGINT NOT NULL DEFAULT 0,
		refunded_amount        BIGINT NOT NULL DEFAULT 0,
		refund_reserved_amount BIGINT NOT NULL DEFAULT 0,
		currency               TEXT NOT NULL,
		gateway                TEXT NOT NULL,
		gateway_payment_id     TEXT NOT NULL,
		gateway_status         TEXT NOT NULL DEFAULT '',
		status                 TEXT NOT NULL,
		description            TEXT NOT NULL DEFAULT '',
		metadata               JSONB NOT NULL DEFAULT '{}',
		version                BIGINT NOT NULL DEFAULT 1,
		created_at             TIMESTAMPTZ NOT NULL,
		updated_at             TIMESTAMPTZ NOT NULL,
		CHECK (refunded_amount + refund_reserved_amount <= captured_amount)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS payments_gateway_ref_idx ON payments (gateway, gateway_payment_id)`,
	`CREATE INDEX IF NOT EXISTS payments_session_id_idx ON payments (session_id)`,
	`CREATE TABLE IF NOT EXISTS refunds (
		id                TEXT PRIMARY KEY,
		payment_id        TEXT NOT NULL REFERENCES payments (id),
		gateway           TEXT NOT NULL,
		amount            BIGINT NOT NULL CHECK (amount > 0),
		currency          TEXT NOT NULL,
		reason            TEXT NOT NULL DEFAULT '',
		gateway_refund_id TEXT,
		status            TEXT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS refunds_payment_id_idx ON refunds (payment_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS refunds_gateway_ref_idx ON refunds (gateway, gateway_refund_id) WHERE gateway_refund_id IS NOT NULL`,
}

// MigratePostgres creates the ledger tables when missing.
func MigratePostgres(ctx context.Context, db *pgxpool.Pool) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, stmt := range ledgerSchema {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
