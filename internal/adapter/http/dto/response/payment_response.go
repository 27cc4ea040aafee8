package response

import (
	"time"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/usecase"
)

// Amounts are rendered twice: major-unit decimal strings for people and *_minor
// integers for machines.

type PaymentResponse struct {
	ID                    string            `json:"id"`
	SessionID             string            `json:"session_id"`
	PayerID               string            `json:"payer_id"`
	PayeeID               string            `json:"payee_id"`
	Gateway               string            `json:"gateway"`
	GatewayPaymentID      string            `json:"gateway_payment_id"`
	Status                string            `json:"status"`
	GatewayStatus         string            `json:"gateway_status,omitempty"`
	Currency              string            `json:"currency"`
	Amount                string            `json:"amount"`
	AmountMinor           int64             `json:"amount_minor"`
	CapturedAmount        string            `json:"captured_amount"`
	CapturedAmountMinor   int64             `json:"captured_amount_minor"`
	RefundedAmount        string            `json:"refunded_amount"`
	RefundedAmountMinor   int64             `json:"refunded_amount_minor"`
	RefundableAmount      string            `json:"refundable_amount"`
	RefundableAmountMinor int64             `json:"refundable_amount_minor"`
	Description           string            `json:"description,omitempty"`
	Metadata              map[string]string `json:"metadata,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

func FromPayment(p entities.Payment) PaymentResponse {
	refundable := p.RefundableAmount()
	return PaymentResponse{
		ID:                    p.ID,
		SessionID:             p.SessionID,
		PayerID:               p.PayerID,
		PayeeID:               p.PayeeID,
		Gateway:               p.Gateway,
		GatewayPaymentID:      p.GatewayPaymentID,
		Status:                string(p.Status),
		GatewayStatus:         p.GatewayStatus,
		Currency:              p.Currency,
		Amount:                entities.FormatMajor(p.Amount, p.Currency),
		AmountMinor:           p.Amount,
		CapturedAmount:        entities.FormatMajor(p.CapturedAmount, p.Currency),
		CapturedAmountMinor:   p.CapturedAmount,
		RefundedAmount:        entities.FormatMajor(p.RefundedAmount, p.Currency),
		RefundedAmountMinor:   p.RefundedAmount,
		RefundableAmount:      entities.FormatMajor(refundable, p.Currency),
		RefundableAmountMinor: refundable,
		Description:           p.Description,
		Metadata:              p.Metadata,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

func FromPayments(ps []entities.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, FromPayment(p))
	}
	return out
}

type CreatedPaymentResponse struct {
	Payment                 PaymentResponse `json:"payment"`
	ClientContinuationToken string          `json:"client_continuation_token,omitempty"`
}

func FromCreatedPayment(c usecase.CreatedPayment) CreatedPaymentResponse {
	return CreatedPaymentResponse{Payment: FromPayment(c.Payment), ClientContinuationToken: c.ClientContinuationToken}
}

type PaymentStatusResponse struct {
	Payment       PaymentResponse `json:"payment"`
	GatewayStatus string          `json:"gateway_status"`
	Live          bool            `json:"live"`
}

func FromPaymentStatus(v usecase.PaymentStatusView) PaymentStatusResponse {
	return PaymentStatusResponse{Payment: FromPayment(v.Payment), GatewayStatus: v.GatewayStatus, Live: v.Live}
}

type RefundResponse struct {
	ID              string    `json:"id"`
	PaymentID       string    `json:"payment_id"`
	Gateway         string    `json:"gateway"`
	GatewayRefundID string    `json:"gateway_refund_id,omitempty"`
	Status          string    `json:"status"`
	Currency        string    `json:"currency"`
	Amount          string    `json:"amount"`
	AmountMinor     int64     `json:"amount_minor"`
	Reason          string    `json:"reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func FromRefund(r entities.Refund) RefundResponse {
	return RefundResponse{
		ID:              r.ID,
		PaymentID:       r.PaymentID,
		Gateway:         r.Gateway,
		GatewayRefundID: r.GatewayRefundID,
		Status:          string(r.Status),
		Currency:        r.Currency,
		Amount:          entities.FormatMajor(r.Amount, r.Currency),
		AmountMinor:     r.Amount,
		Reason:          r.Reason,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func FromRefunds(rs []entities.Refund) []RefundResponse {
	out := make([]RefundResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, FromRefund(r))
	}
	return out
}

type GatewaysResponse struct {
	Gateways []usecase.GatewayInfo `json:"gateways"`
}

type CustomerResponse struct {
	Gateway    string `json:"gateway"`
	CustomerID string `json:"customer_id"`
}

type PaymentMethodResponse struct {
	Gateway         string `json:"gateway"`
	PaymentMethodID string `json:"payment_method_id"`
}
