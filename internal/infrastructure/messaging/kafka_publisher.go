package messaging

import (
	"context"
	"encoding/json"
	"time"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/usecase/interfaces"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// defaultPublishTimeout caps one publish, retries included. Publishing runs on
// the request path after the ledger write.
const defaultPublishTimeout = 2 * time.Second

// KafkaPublisher writes ledger events keyed by payment id, so one payment's
// events stay ordered within a partition.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
	logger  *zap.Logger
}

var _ interfaces.IEventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: defaultPublishTimeout,
		MaxAttempts:  3,
	}
	return newKafkaPublisher(w, logger)
}

func newKafkaPublisher(w messageWriter, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: w, timeout: defaultPublishTimeout, logger: logger.Named("payment.events.kafka")}
}

func (p *KafkaPublisher) PublishPaymentEvent(ctx context.Context, event entities.PaymentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.PaymentID),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "gateway", Value: []byte(event.Gateway)},
		},
	})
	if err != nil {
		p.logger.Warn("publish failed", zap.String("payment_id", event.PaymentID), zap.String("type", event.Type), zap.Error(err))
		return err
	}
	p.logger.Debug("event published", zap.String("payment_id", event.PaymentID), zap.String("type", event.Type))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
