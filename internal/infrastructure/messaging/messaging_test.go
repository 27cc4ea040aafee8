package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"mentor_payments/internal/domain/entities"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs  []kafka.Message
	err   error
	block bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

type fakeConn struct {
	subject string
	data    []byte
	err     error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subject = subject
	f.data = data
	return f.err
}

func TestKafkaPublisher_PublishPaymentEvent(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, nil)
	ev := entities.PaymentEvent{Type: entities.EventPaymentCompleted, PaymentID: "pay-1", Gateway: "stripe", Status: entities.PaymentStatusCompleted, Amount: 15000, Currency: "USD", Timestamp: time.Now().UTC()}

	if err := p.PublishPaymentEvent(context.Background(), ev); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "pay-1" {
		t.Fatalf("expected one message keyed by payment id, got %+v", w.msgs)
	}
	var decoded entities.PaymentEvent
	if err := json.Unmarshal(w.msgs[0].Value, &decoded); err != nil || decoded.Type != entities.EventPaymentCompleted || decoded.Amount != 15000 {
		t.Fatalf("unexpected payload: %s (%v)", w.msgs[0].Value, err)
	}
	if string(w.msgs[0].Headers[0].Value) != entities.EventPaymentCompleted {
		t.Fatalf("expected event_type header")
	}

	w.err = errors.New("broker down")
	if err := p.PublishPaymentEvent(context.Background(), ev); err == nil {
		t.Fatalf("expected error")
	}
}

func TestKafkaPublisher_UnreachableBrokerIsBounded(t *testing.T) {
	p := newKafkaPublisher(&fakeWriter{block: true}, nil)
	p.timeout = 20 * time.Millisecond

	start := time.Now()
	err := p.PublishPaymentEvent(context.WithoutCancel(context.Background()), entities.PaymentEvent{PaymentID: "pay-1"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("publish blocked for %s", elapsed)
	}
}

func TestNATSSessionNotifier_SessionConfirmed(t *testing.T) {
	conn := &fakeConn{}
	n := newNATSSessionNotifier(conn, "session.confirmed", nil)
	p := entities.Payment{ID: "pay-1", SessionID: "sess-1", PayerID: "mentee-1", PayeeID: "mentor-1", CapturedAmount: 15000, Currency: "USD", Gateway: "stripe"}

	if err := n.SessionConfirmed(context.Background(), p); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if conn.subject != "session.confirmed" {
		t.Fatalf("unexpected subject %q", conn.subject)
	}
	var msg sessionConfirmedMessage
	if err := json.Unmarshal(conn.data, &msg); err != nil || msg.SessionID != "sess-1" || msg.Amount != 15000 {
		t.Fatalf("unexpected message: %s (%v)", conn.data, err)
	}
}
