package interfaces

import (
	"context"
	"net/http"
)

// GatewayStatus is the vendor-neutral payment status every adapter maps into.
type GatewayStatus string

const (
	GatewayStatusRequiresPaymentMethod GatewayStatus = "requires_payment_method"
	GatewayStatusRequiresConfirmation  GatewayStatus = "requires_confirmation"
	GatewayStatusRequiresAction        GatewayStatus = "requires_action"
	GatewayStatusProcessing            GatewayStatus = "processing"
	GatewayStatusRequiresCapture       GatewayStatus = "requires_capture"
	GatewayStatusSucceeded             GatewayStatus = "succeeded"
	GatewayStatusFailed                GatewayStatus = "failed"
	GatewayStatusCanceled              GatewayStatus = "canceled"
)

type CaptureMethod string

const (
	CaptureAutomatic CaptureMethod = "automatic"
	CaptureManual    CaptureMethod = "manual"
)

// All amounts below are ledger minor units of Currency.

type CreateIntentRequest struct {
	Amount         int64
	Currency       string
	Description    string
	Metadata       map[string]string
	PayerRef       string
	PayerEmail     string
	CustomerID     string
	PaymentMethod  string
	PaymentToken   string
	CaptureMethod  CaptureMethod
	IdempotencyKey string
}

type PaymentIntent struct {
	ExternalID              string
	ClientContinuationToken string
	Amount                  int64
	Currency                string
	Status                  GatewayStatus
}

type ConfirmRequest struct {
	ExternalID     string
	PaymentMethod  string
	ReturnURL      string
	Data           map[string]string
	IdempotencyKey string
}

type CaptureRequest struct {
	ExternalID     string
	Amount         *int64
	Currency       string
	IdempotencyKey string
}

// GatewayPayment is the vendor view of a payment.
type GatewayPayment struct {
	ExternalID   string
	Status       GatewayStatus
	VendorStatus string
	Amount       int64
	Currency     string
	Metadata     map[string]string
}

type RefundRequest struct {
	ExternalID     string
	Amount         *int64
	Currency       string
	Reason         string
	Metadata       map[string]string
	IdempotencyKey string
}

type GatewayRefundStatus string

const (
	GatewayRefundPending   GatewayRefundStatus = "pending"
	GatewayRefundSucceeded GatewayRefundStatus = "succeeded"
	GatewayRefundFailed    GatewayRefundStatus = "failed"
)

type GatewayRefund struct {
	ExternalRefundID string
	Amount           int64
	Currency         string
	Status           GatewayRefundStatus
}

type CustomerProfile struct {
	Email          string
	Name           string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

type PaymentMethodDetails struct {
	Type           string
	Token          string
	CustomerID     string
	Metadata       map[string]string
	IdempotencyKey string
}

type WebhookEventType string

const (
	WebhookPaymentSucceeded WebhookEventType = "payment_succeeded"
	WebhookPaymentFailed    WebhookEventType = "payment_failed"
	WebhookRefundCompleted  WebhookEventType = "refund_completed"
	WebhookUnknown          WebhookEventType = "unknown"
)

// WebhookEvent is a verified vendor notification. PaymentRef and RefundRef are the
// internal ids echoed back by the vendor through metadata, when present.
type WebhookEvent struct {
	ID                string
	Type              WebhookEventType
	VendorType        string
	ExternalPaymentID string
	PaymentRef        string
	ExternalRefundID  string
	RefundRef         string
	Amount            int64
	Currency          string
}

// IPaymentGateway is implemented by every payment provider adapter.
//
// Adapters are stateless translators. Operations a vendor cannot perform return
// ErrNotSupported. Failures are classified with the sentinels in errors.go.
type IPaymentGateway interface {
	Name() string
	CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (PaymentIntent, error)
	ConfirmPayment(ctx context.Context, req ConfirmRequest) (GatewayPayment, error)
	CapturePayment(ctx context.Context, req CaptureRequest) (GatewayPayment, error)
	RefundPayment(ctx context.Context, req RefundRequest) (GatewayRefund, error)
	GetPaymentStatus(ctx context.Context, externalID string) (GatewayPayment, error)
	CreateCustomer(ctx context.Context, profile CustomerProfile) (string, error)
	CreatePaymentMethod(ctx context.Context, details PaymentMethodDetails) (string, error)
	// ValidateWebhook fails closed with ErrInvalidWebhookSignature.
	ValidateWebhook(ctx context.Context, payload []byte, headers http.Header) (WebhookEvent, error)
	SupportedCurrencies() []string
	SupportedPaymentMethods() []string
	FormatAmount(amount int64, currency string) (string, error)
	UnformatAmount(amount string, currency string) (int64, error)
}
