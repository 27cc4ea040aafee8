package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/usecase/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `id, session_id, payer_id, payee_id, amount, captured_amount, refunded_amount,
	refund_reserved_amount, currency, gateway, gateway_payment_id, gateway_status, status, description,
	metadata, version, created_at, updated_at`

const pgUniqueViolation = "23505"

// PaymentPostgresRepository persists payments in Postgres through pgx.
type PaymentPostgresRepository struct {
	db *pgxpool.Pool
}

var _ interfaces.IPaymentRepository = (*PaymentPostgresRepository)(nil)

func NewPaymentPostgresRepository(db *pgxpool.Pool) *PaymentPostgresRepository {
	return &PaymentPostgresRepository{db: db}
}

func (r *PaymentPostgresRepository) Create(ctx context.Context, p entities.Payment) (entities.Payment, error) {
	meta, err := encodeMetadata(p.Metadata)
	if err != nil {
		return entities.Payment{}, err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		p.ID, p.SessionID, p.PayerID, p.PayeeID, p.Amount, p.CapturedAmount, p.RefundedAmount,
		p.RefundReserved, p.Currency, p.Gateway, p.GatewayPaymentID, p.GatewayStatus, string(p.Status),
		p.Description, meta, p.Version, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return entities.Payment{}, ErrDuplicateRecord
		}
		return entities.Payment{}, err
	}
	return p, nil
}

func (r *PaymentPostgresRepository) GetByID(ctx context.Context, id string) (entities.Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

func (r *PaymentPostgresRepository) GetByGatewayPaymentID(ctx context.Context, gateway, externalID string) (entities.Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE gateway = $1 AND gateway_payment_id = $2`, gateway, externalID)
	return scanPayment(row)
}

func (r *PaymentPostgresRepository) ListBySessionID(ctx context.Context, sessionID string) ([]entities.Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]entities.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *PaymentPostgresRepository) TransitionStatus(ctx context.Context, id string, change entities.StatusChange) (entities.Payment, bool, error) {
	row := r.db.QueryRow(ctx, `UPDATE payments
		SET status = $3, gateway_status = $4, captured_amount = COALESCE($5, captured_amount),
			updated_at = $6, version = version + 1
		WHERE id = $1 AND status = $2
		RETURNING `+paymentColumns,
		id, string(change.From), string(change.To), change.GatewayStatus, change.CapturedAmount, change.At.UTC())
	p, err := scanPayment(row)
	if err != nil {
		return entities.Payment{}, false, err
	}
	if p.ID == "" {
		return entities.Payment{}, false, nil
	}
	return p, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanPayment returns an empty Payment when the row does not exist.
func scanPayment(row rowScanner) (entities.Payment, error) {
	var (
		p      entities.Payment
		status string
		meta   []byte
	)
	err := row.Scan(&p.ID, &p.SessionID, &p.PayerID, &p.PayeeID, &p.Amount, &p.CapturedAmount,
		&p.RefundedAmount, &p.RefundReserved, &p.Currency, &p.Gateway, &p.GatewayPaymentID,
		&p.GatewayStatus, &status, &p.Description, &meta, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.Payment{}, nil
	}
	if err != nil {
		return entities.Payment{}, err
	}
	p.Status = entities.PaymentStatus(status)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Metadata); err != nil {
			return entities.Payment{}, err
		}
	}
	return p, nil
}

func encodeMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m)
}

func utc(t time.Time) time.Time { return t.UTC() }
