package request

import (
	"fmt"
	"strings"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/usecase"
	"mentor_payments/internal/usecase/interfaces"

	"github.com/shopspring/decimal"
)

// CreatePaymentRequest books a mentoring session. Amount is in major units of
// Currency and accepts either a JSON number or a decimal string ("150.00").
type CreatePaymentRequest struct {
	SessionID     string            `json:"session_id" binding:"required"`
	PayeeID       string            `json:"payee_id" binding:"required"`
	Amount        decimal.Decimal   `json:"amount" swaggertype:"string" example:"150.00"`
	Currency      string            `json:"currency" binding:"required" example:"USD"`
	Description   string            `json:"description"`
	Metadata      map[string]string `json:"metadata"`
	Gateway       string            `json:"gateway" example:"stripe"`
	PaymentMethod string            `json:"payment_method"`
	PaymentToken  string            `json:"payment_token"`
	CaptureMethod string            `json:"capture_method" example:"automatic"`
	CustomerID    string            `json:"customer_id"`
	PayerEmail    string            `json:"payer_email"`
}

func (r CreatePaymentRequest) ToInput(payerID string) (usecase.CreatePaymentInput, error) {
	amount, err := toMinor(r.Amount, r.Currency)
	if err != nil {
		return usecase.CreatePaymentInput{}, err
	}
	capture := interfaces.CaptureMethod(strings.ToLower(strings.TrimSpace(r.CaptureMethod)))
	switch capture {
	case "", interfaces.CaptureAutomatic, interfaces.CaptureManual:
	default:
		return usecase.CreatePaymentInput{}, fmt.Errorf("%w: capture_method %q", interfaces.ErrValidation, r.CaptureMethod)
	}
	return usecase.CreatePaymentInput{
		SessionID:     r.SessionID,
		PayerID:       payerID,
		PayeeID:       r.PayeeID,
		PayerEmail:    r.PayerEmail,
		Amount:        amount,
		Currency:      r.Currency,
		Description:   r.Description,
		Metadata:      r.Metadata,
		Gateway:       r.Gateway,
		PaymentMethod: r.PaymentMethod,
		PaymentToken:  r.PaymentToken,
		CaptureMethod: capture,
		CustomerID:    r.CustomerID,
	}, nil
}

type ConfirmPaymentRequest struct {
	PaymentMethod string            `json:"payment_method"`
	ReturnURL     string            `json:"return_url"`
	Data          map[string]string `json:"data"`
}

func (r ConfirmPaymentRequest) ToConfirmation() usecase.ConfirmationData {
	return usecase.ConfirmationData{PaymentMethod: r.PaymentMethod, ReturnURL: r.ReturnURL, Data: r.Data}
}

// CapturePaymentRequest captures an authorization; a missing amount captures it in full.
type CapturePaymentRequest struct {
	Amount decimal.NullDecimal `json:"amount" swaggertype:"string" example:"100.00"`
}

func (r CapturePaymentRequest) MinorAmount(currency string) (*int64, error) {
	return optionalMinor(r.Amount, currency)
}

// RefundRequest refunds part of a payment; a missing amount refunds the whole
// refundable balance.
type RefundRequest struct {
	Amount decimal.NullDecimal `json:"amount" swaggertype:"string" example:"50.00"`
	Reason string              `json:"reason" example:"requested_by_customer"`
}

func (r RefundRequest) MinorAmount(currency string) (*int64, error) {
	return optionalMinor(r.Amount, currency)
}

type CreateCustomerRequest struct {
	Email       string            `json:"email" binding:"required"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

func (r CreateCustomerRequest) ToProfile(idempotencyKey string) interfaces.CustomerProfile {
	return interfaces.CustomerProfile{
		Email:          r.Email,
		Name:           r.Name,
		Description:    r.Description,
		Metadata:       r.Metadata,
		IdempotencyKey: idempotencyKey,
	}
}

type CreatePaymentMethodRequest struct {
	Type       string            `json:"type" example:"card"`
	Token      string            `json:"token" binding:"required"`
	CustomerID string            `json:"customer_id"`
	Metadata   map[string]string `json:"metadata"`
}

func (r CreatePaymentMethodRequest) ToDetails(idempotencyKey string) interfaces.PaymentMethodDetails {
	kind := r.Type
	if kind == "" {
		kind = "card"
	}
	return interfaces.PaymentMethodDetails{
		Type:           kind,
		Token:          r.Token,
		CustomerID:     r.CustomerID,
		Metadata:       r.Metadata,
		IdempotencyKey: idempotencyKey,
	}
}

func toMinor(amount decimal.Decimal, currency string) (int64, error) {
	minor, err := entities.ToMinorUnits(amount, currency)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", interfaces.ErrInvalidAmount, err)
	}
	return minor, nil
}

func optionalMinor(amount decimal.NullDecimal, currency string) (*int64, error) {
	if !amount.Valid {
		return nil, nil
	}
	minor, err := toMinor(amount.Decimal, currency)
	if err != nil {
		return nil, err
	}
	if minor <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", interfaces.ErrInvalidAmount)
	}
	return &minor, nil
}
