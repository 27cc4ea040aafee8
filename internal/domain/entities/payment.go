package entities

import "time"

// PaymentStatus is the ledger status of a payment attempt.
//
//	pending -> completed | failed
//	completed -> partially_refunded | refunded
//	partially_refunded -> partially_refunded | refunded
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusCompleted         PaymentStatus = "completed"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:           {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted:         {PaymentStatusPartiallyRefunded, PaymentStatusRefunded},
	PaymentStatusPartiallyRefunded: {PaymentStatusPartiallyRefunded, PaymentStatusRefunded},
}

// CanTransition reports whether the status graph allows from -> to.
func CanTransition(from, to PaymentStatus) bool {
	for _, s := range paymentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusFailed || s == PaymentStatusRefunded
}

// IsPaid is true once funds were collected, refunded or not.
func (s PaymentStatus) IsPaid() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusPartiallyRefunded || s == PaymentStatusRefunded
}

func (s PaymentStatus) IsRefundable() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusPartiallyRefunded
}

// Payment is one payment attempt for a mentoring session.
//
// Amounts are integer minor units of Currency (cents for USD, yen for JPY).
// GatewayPaymentID is immutable once assigned. Version increments on every write
// and guards refund bookkeeping.
type Payment struct {
	ID               string            `json:"id"`
	SessionID        string            `json:"session_id"`
	PayerID          string            `json:"payer_id"`
	PayeeID          string            `json:"payee_id"`
	Amount           int64             `json:"amount"`
	CapturedAmount   int64             `json:"captured_amount"`
	RefundedAmount   int64             `json:"refunded_amount"`
	RefundReserved   int64             `json:"refund_reserved_amount"`
	Currency         string            `json:"currency"`
	Gateway          string            `json:"gateway"`
	GatewayPaymentID string            `json:"gateway_payment_id"`
	GatewayStatus    string            `json:"gateway_status"`
	Status           PaymentStatus     `json:"status"`
	Description      string            `json:"description,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Version          int64             `json:"version"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// RefundableAmount is what is still available for new refunds.
func (p Payment) RefundableAmount() int64 {
	left := p.CapturedAmount - p.RefundedAmount - p.RefundReserved
	if left < 0 {
		return 0
	}
	return left
}

// StatusChange is a conditional status write: applied only while the stored status is From.
type StatusChange struct {
	From           PaymentStatus
	To             PaymentStatus
	GatewayStatus  string
	CapturedAmount *int64
	At             time.Time
}
