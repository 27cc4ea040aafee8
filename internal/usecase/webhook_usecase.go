package usecase

import (
	"context"
	"errors"
	"net/http"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/infrastructure/telemetry"
	"mentor_payments/internal/usecase/interfaces"

	"go.uber.org/zap"
)

type WebhookOutcome string

const (
	WebhookApplied   WebhookOutcome = "applied"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookIgnored   WebhookOutcome = "ignored"
)

type WebhookResult struct {
	EventID string         `json:"event_id"`
	Type    string         `json:"type"`
	Outcome WebhookOutcome `json:"outcome"`
}

// IWebhookUseCase applies verified vendor notifications to the ledger. It never
// calls back into the gateway.
type IWebhookUseCase interface {
	HandleWebhook(ctx context.Context, gateway string, payload []byte, headers http.Header) (WebhookResult, error)
}

type WebhookUseCase struct {
	ledgerBook
	registry *GatewayRegistry
}

var _ IWebhookUseCase = (*WebhookUseCase)(nil)

func NewWebhookUseCase(registry *GatewayRegistry, payments interfaces.IPaymentRepository, refunds interfaces.IRefundRepository, c Collaborators) *WebhookUseCase {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookUseCase{
		ledgerBook: newLedgerBook(payments, refunds, c, logger.Named("payment.webhook")),
		registry:   registry,
	}
}

func (u *WebhookUseCase) HandleWebhook(ctx context.Context, gatewayName string, payload []byte, headers http.Header) (WebhookResult, error) {
	gateway, err := u.registry.Get(gatewayName)
	if err != nil {
		return WebhookResult{}, err
	}
	name := gateway.Name()

	ev, err := gateway.ValidateWebhook(ctx, payload, headers)
	if err != nil {
		outcome := "invalid"
		if errors.Is(err, interfaces.ErrInvalidWebhookSignature) {
			outcome = "rejected"
			u.logger.Warn("webhook signature rejected",
				zap.String("gateway", name),
				zap.Int("payload_bytes", len(payload)),
				zap.String("remote_signature_header", signatureHeader(headers)),
				zap.Bool("security", true),
			)
		} else {
			u.logger.Warn("webhook could not be parsed", zap.String("gateway", name), zap.Error(err))
		}
		telemetry.Webhooks.WithLabelValues(name, outcome).Inc()
		return WebhookResult{}, err
	}

	logger := u.logger.With(
		zap.String("gateway", name),
		zap.String("event_id", ev.ID),
		zap.String("vendor_type", ev.VendorType),
	)

	var outcome WebhookOutcome
	switch ev.Type {
	case interfaces.WebhookPaymentSucceeded, interfaces.WebhookPaymentFailed:
		outcome, err = u.handlePaymentEvent(ctx, name, ev, logger)
	case interfaces.WebhookRefundCompleted:
		outcome, err = u.handleRefundEvent(ctx, name, ev, logger)
	default:
		logger.Info("webhook type not handled")
		outcome = WebhookIgnored
	}
	if err != nil {
		telemetry.Webhooks.WithLabelValues(name, "error").Inc()
		logger.Error("webhook processing failed", zap.Error(err))
		return WebhookResult{}, err
	}

	telemetry.Webhooks.WithLabelValues(name, string(outcome)).Inc()
	logger.Info("webhook processed", zap.String("outcome", string(outcome)))
	return WebhookResult{EventID: ev.ID, Type: string(ev.Type), Outcome: outcome}, nil
}

func (u *WebhookUseCase) handlePaymentEvent(ctx context.Context, gateway string, ev interfaces.WebhookEvent, logger *zap.Logger) (WebhookOutcome, error) {
	p, err := u.lookupPayment(ctx, gateway, ev)
	if err != nil {
		return "", err
	}
	if p.ID == "" {
		logger.Info("webhook references unknown payment",
			zap.String("gateway_payment_id", ev.ExternalPaymentID),
			zap.String("payment_ref", ev.PaymentRef),
		)
		return WebhookIgnored, nil
	}
	logger = logger.With(zap.String("payment_id", p.ID), zap.String("status", string(p.Status)))

	to := entities.PaymentStatusCompleted
	gatewayStatus := interfaces.GatewayStatusSucceeded
	var captured *int64
	if ev.Type == interfaces.WebhookPaymentFailed {
		to = entities.PaymentStatusFailed
		gatewayStatus = interfaces.GatewayStatusFailed
	} else {
		amount := ev.Amount
		if amount <= 0 {
			amount = p.Amount
		}
		captured = &amount
	}

	switch {
	case p.Status == to, to == entities.PaymentStatusCompleted && p.Status.IsPaid():
		return WebhookDuplicate, nil
	case p.Status != entities.PaymentStatusPending:
		logger.Warn("webhook conflicts with ledger state", zap.String("wanted", string(to)))
		return WebhookIgnored, nil
	}

	_, applied, err := u.transition(ctx, p, to, string(gatewayStatus), captured)
	if err != nil {
		return "", err
	}
	if !applied {
		return WebhookDuplicate, nil
	}
	return WebhookApplied, nil
}

func (u *WebhookUseCase) lookupPayment(ctx context.Context, gateway string, ev interfaces.WebhookEvent) (entities.Payment, error) {
	if ev.ExternalPaymentID != "" {
		p, err := u.payments.GetByGatewayPaymentID(ctx, gateway, ev.ExternalPaymentID)
		if err != nil || p.ID != "" {
			return p, err
		}
	}
	if ev.PaymentRef != "" {
		p, err := u.payments.GetByID(ctx, ev.PaymentRef)
		if err != nil {
			return entities.Payment{}, err
		}
		if p.ID != "" && p.Gateway == gateway {
			return p, nil
		}
	}
	return entities.Payment{}, nil
}

func (u *WebhookUseCase) handleRefundEvent(ctx context.Context, gateway string, ev interfaces.WebhookEvent, logger *zap.Logger) (WebhookOutcome, error) {
	rf, err := u.lookupRefund(ctx, gateway, ev)
	if err != nil {
		return "", err
	}
	if rf.ID != "" {
		logger = logger.With(zap.String("refund_id", rf.ID), zap.String("payment_id", rf.PaymentID))
		switch {
		case rf.InFlight():
			logger.Info("refund still reserved by an in-flight request")
			return "", ErrRefundInFlight
		case rf.Status == entities.RefundStatusSucceeded:
			return WebhookDuplicate, nil
		}
		applied, err := u.completeRefund(ctx, rf, ev.ExternalRefundID)
		if err != nil {
			return "", err
		}
		if !applied {
			return WebhookIgnored, nil
		}
		return WebhookApplied, nil
	}

	p, err := u.lookupPayment(ctx, gateway, ev)
	if err != nil {
		return "", err
	}
	if p.ID == "" {
		logger.Info("refund webhook references unknown payment", zap.String("gateway_payment_id", ev.ExternalPaymentID))
		return WebhookIgnored, nil
	}
	if ev.ExternalRefundID == "" {
		logger.Warn("refund webhook without refund id", zap.String("payment_id", p.ID))
		return WebhookIgnored, nil
	}
	applied, err := u.appendExternalRefund(ctx, p, ev)
	if err != nil {
		return "", err
	}
	if !applied {
		return WebhookIgnored, nil
	}
	logger.Info("external refund recorded", zap.String("payment_id", p.ID), zap.Int64("amount", ev.Amount))
	return WebhookApplied, nil
}

func (u *WebhookUseCase) lookupRefund(ctx context.Context, gateway string, ev interfaces.WebhookEvent) (entities.Refund, error) {
	if ev.ExternalRefundID != "" {
		rf, err := u.refunds.GetByGatewayRefundID(ctx, gateway, ev.ExternalRefundID)
		if err != nil || rf.ID != "" {
			return rf, err
		}
	}
	if ev.RefundRef != "" {
		rf, err := u.refunds.GetByID(ctx, ev.RefundRef)
		if err != nil {
			return entities.Refund{}, err
		}
		if rf.ID != "" && rf.Gateway == gateway {
			return rf, nil
		}
	}
	return entities.Refund{}, nil
}

func signatureHeader(h http.Header) string {
	for _, name := range []string{"Stripe-Signature", "Paypal-Transmission-Sig", "X-Signature"} {
		if v := h.Get(name); v != "" {
			if len(v) > 16 {
				v = v[:16] + "..."
			}
			return name + "=" + v
		}
	}
	return ""
}
