package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"testing"

	"mentor_payments/internal/usecase/interfaces"

	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/refund"
)

type fakeMPPayments struct {
	lastCreate    payment.Request
	lastCaptureID int
	lastAmount    float64
	resp          *payment.Response
	err           error
}

func (f *fakeMPPayments) Create(_ context.Context, request payment.Request) (*payment.Response, error) {
	f.lastCreate = request
	return f.resp, f.err
}

func (f *fakeMPPayments) Get(_ context.Context, _ int) (*payment.Response, error) {
	return f.resp, f.err
}

func (f *fakeMPPayments) Capture(_ context.Context, id int) (*payment.Response, error) {
	f.lastCaptureID = id
	return f.resp, f.err
}

func (f *fakeMPPayments) CaptureAmount(_ context.Context, id int, amount float64) (*payment.Response, error) {
	f.lastCaptureID = id
	f.lastAmount = amount
	return f.resp, f.err
}

type fakeMPRefunds struct {
	lastAmount float64
	resp       *refund.Response
	err        error
}

func (f *fakeMPRefunds) Create(_ context.Context, _ int) (*refund.Response, error) {
	return f.resp, f.err
}

func (f *fakeMPRefunds) CreatePartialRefund(_ context.Context, _ int, amount float64) (*refund.Response, error) {
	f.lastAmount = amount
	return f.resp, f.err
}

func TestMercadoPagoGateway_CreatePaymentIntent(t *testing.T) {
	t.Setenv("PAYMENT_GATEWAY_MOCK", "")
	t.Setenv("MERCADOPAGO_MOCK", "")

	t.Run("authorizes without capture", func(t *testing.T) {
		payments := &fakeMPPayments{resp: &payment.Response{ID: 123, Status: "authorized"}}
		g := newMercadoPagoGateway(payments, nil, "", nil)

		out, err := g.CreatePaymentIntent(context.Background(), interfaces.CreateIntentRequest{
			Amount: 15000, Currency: "BRL", PaymentToken: "card-token", PayerEmail: "mentee@test.com",
			Metadata: map[string]string{"payment_id": "pay-1"},
		})
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if out.ExternalID != "123" || out.Status != interfaces.GatewayStatusRequiresCapture || out.Amount != 15000 {
			t.Fatalf("unexpected intent: %+v", out)
		}
		if payments.lastCreate.TransactionAmount != 150 || payments.lastCreate.Capture || payments.lastCreate.ExternalReference != "pay-1" {
			t.Fatalf("unexpected request: %+v", payments.lastCreate)
		}
	})

	t.Run("unsupported currency", func(t *testing.T) {
		payments := &fakeMPPayments{}
		g := newMercadoPagoGateway(payments, nil, "", nil)
		_, err := g.CreatePaymentIntent(context.Background(), interfaces.CreateIntentRequest{Amount: 100, Currency: "USD"})
		if !errors.Is(err, interfaces.ErrUnsupportedCurrency) {
			t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
		}
	})

	t.Run("bad request is rejected", func(t *testing.T) {
		payments := &fakeMPPayments{err: errors.New(`{"message":"Customer not found","error":"bad_request","status":400,"cause":[{"code":2002}]}`)}
		g := newMercadoPagoGateway(payments, nil, "", nil)
		_, err := g.CreatePaymentIntent(context.Background(), interfaces.CreateIntentRequest{Amount: 100, Currency: "BRL"})
		if !errors.Is(err, interfaces.ErrGatewayRejected) || interfaces.VendorCode(err) != "2002" {
			t.Fatalf("expected rejected 2002, got %v", err)
		}
	})

	t.Run("server error is transient", func(t *testing.T) {
		payments := &fakeMPPayments{err: errors.New(`{"message":"internal","status":500}`)}
		g := newMercadoPagoGateway(payments, nil, "", nil)
		_, err := g.CreatePaymentIntent(context.Background(), interfaces.CreateIntentRequest{Amount: 100, Currency: "BRL"})
		if !errors.Is(err, interfaces.ErrTransientGateway) {
			t.Fatalf("expected ErrTransientGateway, got %v", err)
		}
	})
}

func TestMercadoPagoGateway_ConfirmAndRefund(t *testing.T) {
	payments := &fakeMPPayments{resp: &payment.Response{ID: 123, Status: "approved", TransactionAmount: 150, CurrencyID: "BRL", ExternalReference: "pay-1"}}
	refunds := &fakeMPRefunds{resp: &refund.Response{ID: 9, Amount: 50, Status: "approved"}}
	g := newMercadoPagoGateway(payments, refunds, "", nil)

	got, err := g.ConfirmPayment(context.Background(), interfaces.ConfirmRequest{ExternalID: "123"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if payments.lastCaptureID != 123 || got.Status != interfaces.GatewayStatusSucceeded || got.Amount != 15000 || got.Metadata["payment_id"] != "pay-1" {
		t.Fatalf("unexpected payment: %+v", got)
	}

	amount := int64(5000)
	r, err := g.RefundPayment(context.Background(), interfaces.RefundRequest{ExternalID: "123", Amount: &amount, Currency: "BRL"})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunds.lastAmount != 50 || r.ExternalRefundID != "9" || r.Amount != 5000 || r.Status != interfaces.GatewayRefundSucceeded {
		t.Fatalf("unexpected refund: %+v", r)
	}

	if _, err := g.ConfirmPayment(context.Background(), interfaces.ConfirmRequest{ExternalID: "abc"}); !errors.Is(err, interfaces.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad id, got %v", err)
	}
}

func TestMercadoPagoGateway_StatusMapping(t *testing.T) {
	for vendor, want := range mercadoPagoStatuses {
		g := newMercadoPagoGateway(&fakeMPPayments{resp: &payment.Response{ID: 1, Status: vendor, TransactionAmount: 10, CurrencyID: "BRL"}}, nil, "", nil)
		got, err := g.GetPaymentStatus(context.Background(), "1")
		if err != nil || got.Status != want {
			t.Fatalf("%s: expected %s, got %s (%v)", vendor, want, got.Status, err)
		}
	}
	g := newMercadoPagoGateway(&fakeMPPayments{resp: &payment.Response{ID: 1, Status: "lost"}}, nil, "", nil)
	if _, err := g.GetPaymentStatus(context.Background(), "1"); !errors.Is(err, interfaces.ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestMercadoPagoGateway_MockMode(t *testing.T) {
	t.Setenv("PAYMENT_GATEWAY_MOCK", "true")

	g, err := NewMercadoPagoGateway("", "", nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	out, err := g.CreatePaymentIntent(context.Background(), interfaces.CreateIntentRequest{Amount: 1000, Currency: "BRL"})
	if err != nil || out.ExternalID == "" || out.Status != interfaces.GatewayStatusRequiresCapture {
		t.Fatalf("unexpected mock intent: %+v (%v)", out, err)
	}
	got, err := g.ConfirmPayment(context.Background(), interfaces.ConfirmRequest{ExternalID: out.ExternalID})
	if err != nil || got.Status != interfaces.GatewayStatusSucceeded {
		t.Fatalf("unexpected mock confirm: %+v (%v)", got, err)
	}
}

func TestNewMercadoPagoGateway_MissingToken(t *testing.T) {
	t.Setenv("PAYMENT_GATEWAY_MOCK", "")
	t.Setenv("MERCADOPAGO_MOCK", "")
	if _, err := NewMercadoPagoGateway("", "", nil); !errors.Is(err, ErrMissingMercadoPagoAccessToken) {
		t.Fatalf("expected ErrMissingMercadoPagoAccessToken, got %v", err)
	}
}

func TestMercadoPagoGateway_ValidateWebhook(t *testing.T) {
	const secret = "mp-secret"
	g := newMercadoPagoGateway(nil, nil, secret, nil)
	payload := []byte(`{"id":12345,"type":"payment","action":"payment.updated","data":{"id":"999"}}`)

	sign := func(key string) http.Header {
		mac := hmac.New(sha256.New, []byte(key))
		mac.Write([]byte("id:999;request-id:req-1;ts:1700000000;"))
		h := http.Header{}
		h.Set("x-signature", "ts=1700000000,v1="+hex.EncodeToString(mac.Sum(nil)))
		h.Set("x-request-id", "req-1")
		return h
	}

	ev, err := g.ValidateWebhook(context.Background(), payload, sign(secret))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if ev.ID != "12345" || ev.ExternalPaymentID != "999" || ev.Type != interfaces.WebhookUnknown || ev.VendorType != "payment.updated" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	if _, err := g.ValidateWebhook(context.Background(), payload, sign("other")); !errors.Is(err, interfaces.ErrInvalidWebhookSignature) {
		t.Fatalf("expected ErrInvalidWebhookSignature, got %v", err)
	}
	if _, err := g.ValidateWebhook(context.Background(), payload, http.Header{}); !errors.Is(err, interfaces.ErrInvalidWebhookSignature) {
		t.Fatalf("expected ErrInvalidWebhookSignature, got %v", err)
	}
}

func TestMercadoPagoGateway_CaptureClientErrorIsNotRejection(t *testing.T) {
	payments := &fakeMPPayments{err: errors.New(`{"message":"Payment already captured","error":"bad_request","status":400}`)}
	g := newMercadoPagoGateway(payments, nil, "", nil)

	_, err := g.ConfirmPayment(context.Background(), interfaces.ConfirmRequest{ExternalID: "123"})
	if errors.Is(err, interfaces.ErrGatewayRejected) {
		t.Fatalf("client error must not fail the payment: %v", err)
	}
	if !errors.Is(err, interfaces.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
