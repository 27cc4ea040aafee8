package entities

import "time"

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusFailed    RefundStatus = "failed"
)

// Refund returns part or all of a captured payment. A pending refund without
// GatewayRefundID is still reserved against the payment and has not reached the vendor.
type Refund struct {
	ID              string       `json:"id"`
	PaymentID       string       `json:"payment_id"`
	Gateway         string       `json:"gateway"`
	Amount          int64        `json:"amount"`
	Currency        string       `json:"currency"`
	Reason          string       `json:"reason,omitempty"`
	GatewayRefundID string       `json:"gateway_refund_id,omitempty"`
	Status          RefundStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// InFlight is true while the vendor call for this refund has not returned.
func (r Refund) InFlight() bool {
	return r.Status == RefundStatusPending && r.GatewayRefundID == ""
}

// RefundChange writes a payment and one of its refunds atomically. The payment
// write only happens while the stored version equals ExpectedVersion.
type RefundChange struct {
	Payment         Payment
	ExpectedVersion int64
	Refund          Refund
	CreateRefund    bool
}
