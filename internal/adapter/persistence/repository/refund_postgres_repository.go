package repository

import (
	"context"
	"errors"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/usecase/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const refundColumns = `id, payment_id, gateway, amount, currency, reason, COALESCE(gateway_refund_id, ''), status, created_at, updated_at`

// RefundPostgresRepository keeps refunds and payment bookkeeping in one transaction.
type RefundPostgresRepository struct {
	db *pgxpool.Pool
}

var _ interfaces.IRefundRepository = (*RefundPostgresRepository)(nil)

func NewRefundPostgresRepository(db *pgxpool.Pool) *RefundPostgresRepository {
	return &RefundPostgresRepository{db: db}
}

func (r *RefundPostgresRepository) ApplyRefundChange(ctx context.Context, change entities.RefundChange) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	p := change.Payment
	tag, err := tx.Exec(ctx, `UPDATE payments
		SET status = $3, captured_amount = $4, refunded_amount = $5, refund_reserved_amount = $6,
			gateway_status = $7, updated_at = $8, version = version + 1
		WHERE id = $1 AND version = $2`,
		p.ID, change.ExpectedVersion, string(p.Status), p.CapturedAmount, p.RefundedAmount,
		p.RefundReserved, p.GatewayStatus, utc(p.UpdatedAt))
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	rf := change.Refund
	if change.CreateRefund {
		_, err = tx.Exec(ctx, `INSERT INTO refunds (id, payment_id, gateway, amount, currency, reason, gateway_refund_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)`,
			rf.ID, rf.PaymentID, rf.Gateway, rf.Amount, rf.Currency, rf.Reason, rf.GatewayRefundID,
			string(rf.Status), utc(rf.CreatedAt), utc(rf.UpdatedAt))
	} else {
		_, err = tx.Exec(ctx, `UPDATE refunds SET gateway_refund_id = NULLIF($2, ''), status = $3, updated_at = $4 WHERE id = $1`,
			rf.ID, rf.GatewayRefundID, string(rf.Status), utc(rf.UpdatedAt))
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return false, nil
		}
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *RefundPostgresRepository) GetByID(ctx context.Context, id string) (entities.Refund, error) {
	return scanRefund(r.db.QueryRow(ctx, `SELECT `+refundColumns+` FROM refunds WHERE id = $1`, id))
}

func (r *RefundPostgresRepository) GetByGatewayRefundID(ctx context.Context, gateway, gatewayRefundID string) (entities.Refund, error) {
	return scanRefund(r.db.QueryRow(ctx, `SELECT `+refundColumns+` FROM refunds WHERE gateway = $1 AND gateway_refund_id = $2`, gateway, gatewayRefundID))
}

func (r *RefundPostgresRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]entities.Refund, error) {
	rows, err := r.db.Query(ctx, `SELECT `+refundColumns+` FROM refunds WHERE payment_id = $1 ORDER BY created_at`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]entities.Refund, 0)
	for rows.Next() {
		rf, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rf)
	}
	return items, rows.Err()
}

func scanRefund(row rowScanner) (entities.Refund, error) {
	var (
		rf     entities.Refund
		status string
	)
	err := row.Scan(&rf.ID, &rf.PaymentID, &rf.Gateway, &rf.Amount, &rf.Currency, &rf.Reason,
		&rf.GatewayRefundID, &status, &rf.CreatedAt, &rf.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.Refund{}, nil
	}
	if err != nil {
		return entities.Refund{}, err
	}
	rf.Status = entities.RefundStatus(status)
	rf.CreatedAt = rf.CreatedAt.UTC()
	rf.UpdatedAt = rf.UpdatedAt.UTC()
	return rf, nil
}
