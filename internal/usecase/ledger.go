package usecase

import (
	"context"
	"fmt"
	"time"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/infrastructure/telemetry"
	"mentor_payments/internal/usecase/interfaces"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxRefundWriteAttempts bounds the optimistic retry loop on refund bookkeeping.
const maxRefundWriteAttempts = 5

// Collaborators are the outbound boundaries of the payment core. Nil members are
// replaced by no-op implementations.
type Collaborators struct {
	Notifier  interfaces.ISessionNotifier
	Publisher interfaces.IEventPublisher
	Locker    interfaces.ILocker
	Logger    *zap.Logger
}

// ledgerBook owns every ledger write shared by the payment and webhook flows.
type ledgerBook struct {
	payments  interfaces.IPaymentRepository
	refunds   interfaces.IRefundRepository
	notifier  interfaces.ISessionNotifier
	publisher interfaces.IEventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func newLedgerBook(payments interfaces.IPaymentRepository, refunds interfaces.IRefundRepository, c Collaborators, logger *zap.Logger) ledgerBook {
	b := ledgerBook{
		payments:  payments,
		refunds:   refunds,
		notifier:  c.Notifier,
		publisher: c.Publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if b.notifier == nil {
		b.notifier = noopNotifier{}
	}
	if b.publisher == nil {
		b.publisher = noopPublisher{}
	}
	return b
}

func (b *ledgerBook) load(ctx context.Context, id string) (entities.Payment, error) {
	p, err := b.payments.GetByID(ctx, id)
	if err != nil {
		return entities.Payment{}, err
	}
	if p.ID == "" {
		return entities.Payment{}, ErrPaymentNotFound
	}
	return p, nil
}

// transition moves p to `to` only while the stored status is still p.Status.
// When another writer won, the stored record is returned with applied=false.
func (b *ledgerBook) transition(ctx context.Context, p entities.Payment, to entities.PaymentStatus, gatewayStatus string, captured *int64) (entities.Payment, bool, error) {
	if !entities.CanTransition(p.Status, to) {
		return p, false, fmt.Errorf("%w: %s -> %s", interfaces.ErrInvalidStateTransition, p.Status, to)
	}
	if captured != nil && *captured > p.Amount {
		b.logger.Warn("vendor reported more than the payment amount, capping capture",
			zap.String("payment_id", p.ID),
			zap.Int64("reported", *captured),
			zap.Int64("amount", p.Amount),
		)
		capped := p.Amount
		captured = &capped
	}
	updated, applied, err := b.payments.TransitionStatus(ctx, p.ID, entities.StatusChange{
		From:           p.Status,
		To:             to,
		GatewayStatus:  gatewayStatus,
		CapturedAmount: captured,
		At:             b.now(),
	})
	if err != nil {
		return p, false, err
	}
	if !applied {
		current, err := b.load(ctx, p.ID)
		if err != nil {
			return p, false, err
		}
		b.logger.Info("transition already applied by another writer",
			zap.String("payment_id", p.ID),
			zap.String("wanted", string(to)),
			zap.String("stored", string(current.Status)),
		)
		return current, false, nil
	}

	telemetry.PaymentTransitions.WithLabelValues(updated.Gateway, string(p.Status), string(to)).Inc()
	b.logger.Info("payment transitioned",
		zap.String("payment_id", updated.ID),
		zap.String("gateway", updated.Gateway),
		zap.String("from", string(p.Status)),
		zap.String("to", string(to)),
	)

	eventType := entities.EventPaymentFailed
	if to == entities.PaymentStatusCompleted {
		eventType = entities.EventPaymentCompleted
	}
	b.publish(ctx, eventType, updated, p.Status, "")
	if to == entities.PaymentStatusCompleted {
		if err := b.notifier.SessionConfirmed(ctx, updated); err != nil {
			b.logger.Error("session notifier failed",
				zap.String("payment_id", updated.ID),
				zap.String("session_id", updated.SessionID),
				zap.Error(err),
			)
		}
	}
	return updated, true, nil
}

// reserveRefund books amount against the payment before any vendor call. A
// nil amount reserves the whole refundable balance.
func (b *ledgerBook) reserveRefund(ctx context.Context, paymentID string, amount *int64, reason string) (entities.Payment, entities.Refund, error) {
	for attempt := 0; attempt < maxRefundWriteAttempts; attempt++ {
		p, err := b.load(ctx, paymentID)
		if err != nil {
			return entities.Payment{}, entities.Refund{}, err
		}
		if !p.Status.IsRefundable() {
			return p, entities.Refund{}, fmt.Errorf("%w: cannot refund a %s payment", interfaces.ErrInvalidStateTransition, p.Status)
		}

		refundable := p.RefundableAmount()
		want := refundable
		if amount != nil {
			want = *amount
		}
		if want <= 0 {
			if amount == nil && refundable == 0 {
				return p, entities.Refund{}, ErrRefundExceedsBalance
			}
			return p, entities.Refund{}, fmt.Errorf("%w: %d", interfaces.ErrInvalidAmount, want)
		}
		if want > refundable {
			return p, entities.Refund{}, fmt.Errorf("%w: requested %d, refundable %d", ErrRefundExceedsBalance, want, refundable)
		}

		now := b.now()
		rf := entities.Refund{
			ID:        uuid.NewString(),
			PaymentID: p.ID,
			Gateway:   p.Gateway,
			Amount:    want,
			Currency:  p.Currency,
			Reason:    reason,
			Status:    entities.RefundStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		next := p
		next.RefundReserved += want
		next.UpdatedAt = now

		applied, err := b.refunds.ApplyRefundChange(ctx, entities.RefundChange{Payment: next, ExpectedVersion: p.Version, Refund: rf, CreateRefund: true})
		if err != nil {
			return p, entities.Refund{}, err
		}
		if applied {
			next.Version = p.Version + 1
			return next, rf, nil
		}
	}
	return entities.Payment{}, entities.Refund{}, ErrConcurrentModification
}

// settleRefund releases the reservation and, for accepted refunds, moves the
// amount into RefundedAmount.
func (b *ledgerBook) settleRefund(ctx context.Context, rf entities.Refund, gr interfaces.GatewayRefund, accepted bool) (entities.Payment, entities.Refund, error) {
	for attempt := 0; attempt < maxRefundWriteAttempts; attempt++ {
		p, err := b.load(ctx, rf.PaymentID)
		if err != nil {
			return entities.Payment{}, rf, err
		}
		now := b.now()
		next := p
		next.RefundReserved -= rf.Amount
		if next.RefundReserved < 0 {
			next.RefundReserved = 0
		}
		next.UpdatedAt = now

		settled := rf
		settled.UpdatedAt = now
		settled.GatewayRefundID = gr.ExternalRefundID
		if accepted {
			next.RefundedAmount += rf.Amount
			next.Status = refundedStatus(next)
			settled.Status = entities.RefundStatusPending
			if gr.Status == interfaces.GatewayRefundSucceeded {
				settled.Status = entities.RefundStatusSucceeded
			}
		} else {
			settled.Status = entities.RefundStatusFailed
		}

		applied, err := b.refunds.ApplyRefundChange(ctx, entities.RefundChange{Payment: next, ExpectedVersion: p.Version, Refund: settled})
		if err != nil {
			return p, rf, err
		}
		if applied {
			next.Version = p.Version + 1
			if accepted {
				b.publish(ctx, entities.EventRefundSucceeded, next, p.Status, settled.ID)
			}
			return next, settled, nil
		}
	}
	return entities.Payment{}, rf, ErrConcurrentModification
}

// completeRefund marks a refund the vendor finished. Amounts already booked at
// settle time are not counted twice.
func (b *ledgerBook) completeRefund(ctx context.Context, rf entities.Refund, gatewayRefundID string) (bool, error) {
	for attempt := 0; attempt < maxRefundWriteAttempts; attempt++ {
		p, err := b.load(ctx, rf.PaymentID)
		if err != nil {
			return false, err
		}
		now := b.now()
		next := p
		next.UpdatedAt = now
		if rf.Status == entities.RefundStatusFailed {
			if rf.Amount > p.RefundableAmount() {
				b.logger.Warn("vendor completed a refund the ledger released, balance exhausted",
					zap.String("payment_id", p.ID),
					zap.String("refund_id", rf.ID),
					zap.Int64("amount", rf.Amount),
				)
				return false, nil
			}
			next.RefundedAmount += rf.Amount
			next.Status = refundedStatus(next)
		}

		done := rf
		done.Status = entities.RefundStatusSucceeded
		done.UpdatedAt = now
		if done.GatewayRefundID == "" {
			done.GatewayRefundID = gatewayRefundID
		}
		applied, err := b.refunds.ApplyRefundChange(ctx, entities.RefundChange{Payment: next, ExpectedVersion: p.Version, Refund: done})
		if err != nil {
			return false, err
		}
		if applied {
			if rf.Status == entities.RefundStatusFailed {
				b.publish(ctx, entities.EventRefundSucceeded, next, p.Status, done.ID)
			}
			return true, nil
		}
	}
	return false, ErrConcurrentModification
}

// appendExternalRefund records a refund issued outside this service, within the bound.
func (b *ledgerBook) appendExternalRefund(ctx context.Context, p entities.Payment, ev interfaces.WebhookEvent) (bool, error) {
	for attempt := 0; attempt < maxRefundWriteAttempts; attempt++ {
		if attempt > 0 {
			var err error
			if p, err = b.load(ctx, p.ID); err != nil {
				return false, err
			}
		}
		if !p.Status.IsRefundable() {
			return false, nil
		}
		amount := ev.Amount
		if amount <= 0 || amount > p.RefundableAmount() {
			b.logger.Warn("external refund outside refundable balance",
				zap.String("payment_id", p.ID),
				zap.String("gateway_refund_id", ev.ExternalRefundID),
				zap.Int64("amount", amount),
				zap.Int64("refundable", p.RefundableAmount()),
			)
			return false, nil
		}

		now := b.now()
		rf := entities.Refund{
			ID:              uuid.NewString(),
			PaymentID:       p.ID,
			Gateway:         p.Gateway,
			Amount:          amount,
			Currency:        p.Currency,
			Reason:          "issued at gateway",
			GatewayRefundID: ev.ExternalRefundID,
			Status:          entities.RefundStatusSucceeded,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		next := p
		next.RefundedAmount += amount
		next.Status = refundedStatus(next)
		next.UpdatedAt = now

		applied, err := b.refunds.ApplyRefundChange(ctx, entities.RefundChange{Payment: next, ExpectedVersion: p.Version, Refund: rf, CreateRefund: true})
		if err != nil {
			return false, err
		}
		if applied {
			b.publish(ctx, entities.EventRefundSucceeded, next, p.Status, rf.ID)
			return true, nil
		}
	}
	return false, ErrConcurrentModification
}

func (b *ledgerBook) publish(ctx context.Context, eventType string, p entities.Payment, previous entities.PaymentStatus, refundID string) {
	ev := entities.PaymentEvent{
		Type:           eventType,
		PaymentID:      p.ID,
		SessionID:      p.SessionID,
		Gateway:        p.Gateway,
		Status:         p.Status,
		PreviousStatus: previous,
		Amount:         p.Amount,
		RefundedAmount: p.RefundedAmount,
		Currency:       p.Currency,
		RefundID:       refundID,
		Timestamp:      b.now(),
	}
	if err := b.publisher.PublishPaymentEvent(ctx, ev); err != nil {
		b.logger.Error("publish payment event failed",
			zap.String("payment_id", p.ID),
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}

func refundedStatus(p entities.Payment) entities.PaymentStatus {
	if p.RefundedAmount >= p.CapturedAmount {
		return entities.PaymentStatusRefunded
	}
	return entities.PaymentStatusPartiallyRefunded
}

type noopNotifier struct{}

func (noopNotifier) SessionConfirmed(context.Context, entities.Payment) error { return nil }

type noopPublisher struct{}

func (noopPublisher) PublishPaymentEvent(context.Context, entities.PaymentEvent) error { return nil }

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string, time.Duration) (bool, error) { return true, nil }

func (noopLocker) Release(context.Context, string) error { return nil }

func recordRefund(gateway, outcome string) {
	telemetry.Refunds.WithLabelValues(gateway, outcome).Inc()
}
