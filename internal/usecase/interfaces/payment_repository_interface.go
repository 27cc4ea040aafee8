package interfaces

import (
	"context"
	"mentor_payments/internal/domain/entities"
)

// IPaymentRepository persists payment attempts. Lookups of missing records return
// an empty Payment and a nil error.
type IPaymentRepository interface {
	Create(ctx context.Context, p entities.Payment) (entities.Payment, error)
	GetByID(ctx context.Context, id string) (entities.Payment, error)
	GetByGatewayPaymentID(ctx context.Context, gateway, externalID string) (entities.Payment, error)
	ListBySessionID(ctx context.Context, sessionID string) ([]entities.Payment, error)
	// TransitionStatus applies change only while the stored status equals change.From.
	// applied is false, with a nil error, when another writer got there first.
	TransitionStatus(ctx context.Context, id string, change entities.StatusChange) (updated entities.Payment, applied bool, err error)
}

// IRefundRepository persists refunds together with the payment bookkeeping they move.
type IRefundRepository interface {
	// ApplyRefundChange writes the payment and refund in one atomic step, guarded by
	// the payment version. applied is false when the version moved.
	ApplyRefundChange(ctx context.Context, change entities.RefundChange) (applied bool, err error)
	GetByID(ctx context.Context, id string) (entities.Refund, error)
	GetByGatewayRefundID(ctx context.Context, gateway, gatewayRefundID string) (entities.Refund, error)
	ListByPaymentID(ctx context.Context, paymentID string) ([]entities.Refund, error)
}
