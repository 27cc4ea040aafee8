package entities

import "time"

// PaymentEvent is published on every ledger change.
type PaymentEvent struct {
	Type           string        `json:"type"`
	PaymentID      string        `json:"payment_id"`
	SessionID      string        `json:"session_id"`
	Gateway        string        `json:"gateway"`
	Status         PaymentStatus `json:"status"`
	PreviousStatus PaymentStatus `json:"previous_status,omitempty"`
	Amount         int64         `json:"amount"`
	RefundedAmount int64         `json:"refunded_amount"`
	Currency       string        `json:"currency"`
	RefundID       string        `json:"refund_id,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

const (
	EventPaymentCreated   = "payment.created"
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventRefundSucceeded  = "payment.refunded"
)
