package repository

import (
	"context"
	"sort"
	"sync"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/usecase/interfaces"
)

// MemoryLedger keeps payments and refunds in process. The payment and refund
// repositories it hands out share one lock, so refund changes stay atomic.
type MemoryLedger struct {
	mu       sync.Mutex
	payments map[string]entities.Payment
	refunds  map[string]entities.Refund
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		payments: map[string]entities.Payment{},
		refunds:  map[string]entities.Refund{},
	}
}

func (l *MemoryLedger) Payments() *MemoryPaymentRepository { return &MemoryPaymentRepository{l: l} }

func (l *MemoryLedger) Refunds() *MemoryRefundRepository { return &MemoryRefundRepository{l: l} }

type MemoryPaymentRepository struct {
	l *MemoryLedger
}

var _ interfaces.IPaymentRepository = (*MemoryPaymentRepository)(nil)

func (r *MemoryPaymentRepository) Create(_ context.Context, p entities.Payment) (entities.Payment, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	if _, ok := r.l.payments[p.ID]; ok {
		return entities.Payment{}, ErrDuplicateRecord
	}
	if p.GatewayPaymentID != "" {
		for _, existing := range r.l.payments {
			if existing.Gateway == p.Gateway && existing.GatewayPaymentID == p.GatewayPaymentID {
				return entities.Payment{}, ErrDuplicateRecord
			}
		}
	}
	r.l.payments[p.ID] = clonePayment(p)
	return p, nil
}

func (r *MemoryPaymentRepository) GetByID(_ context.Context, id string) (entities.Payment, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	return clonePayment(r.l.payments[id]), nil
}

func (r *MemoryPaymentRepository) GetByGatewayPaymentID(_ context.Context, gateway, externalID string) (entities.Payment, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	for _, p := range r.l.payments {
		if p.Gateway == gateway && p.GatewayPaymentID == externalID {
			return clonePayment(p), nil
		}
	}
	return entities.Payment{}, nil
}

func (r *MemoryPaymentRepository) ListBySessionID(_ context.Context, sessionID string) ([]entities.Payment, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	items := make([]entities.Payment, 0)
	for _, p := range r.l.payments {
		if p.SessionID == sessionID {
			items = append(items, clonePayment(p))
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (r *MemoryPaymentRepository) TransitionStatus(_ context.Context, id string, change entities.StatusChange) (entities.Payment, bool, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	p, ok := r.l.payments[id]
	if !ok || p.Status != change.From {
		return entities.Payment{}, false, nil
	}
	p.Status = change.To
	p.GatewayStatus = change.GatewayStatus
	if change.CapturedAmount != nil {
		p.CapturedAmount = *change.CapturedAmount
	}
	p.UpdatedAt = change.At
	p.Version++
	r.l.payments[id] = p
	return clonePayment(p), true, nil
}

type MemoryRefundRepository struct {
	l *MemoryLedger
}

var _ interfaces.IRefundRepository = (*MemoryRefundRepository)(nil)

func (r *MemoryRefundRepository) ApplyRefundChange(_ context.Context, change entities.RefundChange) (bool, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	current, ok := r.l.payments[change.Payment.ID]
	if !ok || current.Version != change.ExpectedVersion {
		return false, nil
	}
	if _, exists := r.l.refunds[change.Refund.ID]; exists == change.CreateRefund {
		return false, nil
	}
	if change.Refund.GatewayRefundID != "" {
		for id, existing := range r.l.refunds {
			if id != change.Refund.ID && existing.Gateway == change.Refund.Gateway && existing.GatewayRefundID == change.Refund.GatewayRefundID {
				return false, nil
			}
		}
	}

	p := clonePayment(change.Payment)
	p.Version = change.ExpectedVersion + 1
	r.l.payments[p.ID] = p
	r.l.refunds[change.Refund.ID] = change.Refund
	return true, nil
}

func (r *MemoryRefundRepository) GetByID(_ context.Context, id string) (entities.Refund, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	return r.l.refunds[id], nil
}

func (r *MemoryRefundRepository) GetByGatewayRefundID(_ context.Context, gateway, gatewayRefundID string) (entities.Refund, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	for _, rf := range r.l.refunds {
		if rf.Gateway == gateway && rf.GatewayRefundID == gatewayRefundID {
			return rf, nil
		}
	}
	return entities.Refund{}, nil
}

func (r *MemoryRefundRepository) ListByPaymentID(_ context.Context, paymentID string) ([]entities.Refund, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	items := make([]entities.Refund, 0)
	for _, rf := range r.l.refunds {
		if rf.PaymentID == paymentID {
			items = append(items, rf)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func clonePayment(p entities.Payment) entities.Payment {
	if p.Metadata != nil {
		p.Metadata = copyStringMap(p.Metadata)
	}
	return p
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
