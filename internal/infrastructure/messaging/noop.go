package messaging

import (
	"context"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/usecase/interfaces"

	"go.uber.org/zap"
)

// LogPublisher stands in for Kafka when no brokers are configured.
type LogPublisher struct {
	logger *zap.Logger
}

var _ interfaces.IEventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger.Named("payment.events.log")}
}

func (p *LogPublisher) PublishPaymentEvent(_ context.Context, event entities.PaymentEvent) error {
	p.logger.Info("payment event",
		zap.String("type", event.Type),
		zap.String("payment_id", event.PaymentID),
		zap.String("status", string(event.Status)),
	)
	return nil
}

// LogSessionNotifier stands in for NATS when no server is configured.
type LogSessionNotifier struct {
	logger *zap.Logger
}

var _ interfaces.ISessionNotifier = (*LogSessionNotifier)(nil)

func NewLogSessionNotifier(logger *zap.Logger) *LogSessionNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSessionNotifier{logger: logger.Named("payment.session.log")}
}

func (n *LogSessionNotifier) SessionConfirmed(_ context.Context, p entities.Payment) error {
	n.logger.Info("session confirmed", zap.String("session_id", p.SessionID), zap.String("payment_id", p.ID))
	return nil
}
