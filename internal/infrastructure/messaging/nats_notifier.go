package messaging

import (
	"context"
	"encoding/json"
	"time"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/usecase/interfaces"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type natsPublisher interface {
	Publish(subject string, data []byte) error
}

type sessionConfirmedMessage struct {
	SessionID   string    `json:"session_id"`
	PaymentID   string    `json:"payment_id"`
	PayerID     string    `json:"payer_id"`
	PayeeID     string    `json:"payee_id"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Gateway     string    `json:"gateway"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// NATSSessionNotifier tells the booking system a session was paid for.
type NATSSessionNotifier struct {
	conn    natsPublisher
	subject string
	logger  *zap.Logger
}

var _ interfaces.ISessionNotifier = (*NATSSessionNotifier)(nil)

// ConnectNATS dials the server with reconnects enabled.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

func NewNATSSessionNotifier(conn *nats.Conn, subject string, logger *zap.Logger) *NATSSessionNotifier {
	return newNATSSessionNotifier(conn, subject, logger)
}

func newNATSSessionNotifier(conn natsPublisher, subject string, logger *zap.Logger) *NATSSessionNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSSessionNotifier{conn: conn, subject: subject, logger: logger.Named("payment.session.nats")}
}

func (n *NATSSessionNotifier) SessionConfirmed(_ context.Context, p entities.Payment) error {
	data, err := json.Marshal(sessionConfirmedMessage{
		SessionID:   p.SessionID,
		PaymentID:   p.ID,
		PayerID:     p.PayerID,
		PayeeID:     p.PayeeID,
		Amount:      p.CapturedAmount,
		Currency:    p.Currency,
		Gateway:     p.Gateway,
		ConfirmedAt: p.UpdatedAt,
	})
	if err != nil {
		return err
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		n.logger.Warn("session confirmation failed", zap.String("session_id", p.SessionID), zap.Error(err))
		return err
	}
	n.logger.Info("session confirmed", zap.String("session_id", p.SessionID), zap.String("payment_id", p.ID))
	return nil
}
