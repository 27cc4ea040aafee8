package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"mentor_payments/internal/usecase/interfaces"
)

func newPayPalTestGateway(t *testing.T, baseURL string) *PayPalGateway {
	t.Helper()
	g, err := NewPayPalGateway("client", "secret", baseURL, "WH-1", "https://app/return", "https://app/cancel", nil)
	if err != nil {
		t.Fatalf("NewPayPalGateway: %v", err)
	}
	return g
}

type paypalStub struct {
	t        *testing.T
	handlers map[string]http.HandlerFunc
	requests map[string]*http.Request
	bodies   map[string][]byte
}

func newPayPalStub(t *testing.T) (*paypalStub, *httptest.Server) {
	s := &paypalStub{t: t, handlers: map[string]http.HandlerFunc{}, requests: map[string]*http.Request{}, bodies: map[string][]byte{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"Bearer","expires_in":3600}`)
			return
		}
		key := r.Method + " " + r.URL.Path
		body, _ := io.ReadAll(r.Body)
		s.requests[key] = r
		s.bodies[key] = body
		h, ok := s.handlers[key]
		if !ok {
			t.Errorf("unexpected request %s", key)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *paypalStub) on(key string, status int, body string) {
	s.handlers[key] = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestPayPalGateway_CreatePaymentIntent(t *testing.T) {
	stub, srv := newPayPalStub(t)
	stub.on("POST /v2/checkout/orders", http.StatusCreated, `{"id":"ORDER-1","status":"CREATED","links":[{"href":"https://paypal/approve","rel":"approve"}]}`)
	g := newPayPalTestGateway(t, srv.URL)

	out, err := g.CreatePaymentIntent(context.Background(), interfaces.CreateIntentRequest{
		Amount: 15000, Currency: "usd", Description: "Coaching session with mentor",
		Metadata: map[string]string{"payment_id": "pay-1", "session_id": "sess-1"}, IdempotencyKey: "pay-1",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.ExternalID != "ORDER-1" || out.ClientContinuationToken != "https://paypal/approve" || out.Status != interfaces.GatewayStatusRequiresAction {
		t.Fatalf("unexpected intent: %+v", out)
	}

	req := stub.requests["POST /v2/checkout/orders"]
	if req.Header.Get("PayPal-Request-Id") != "pay-1" {
		t.Fatalf("expected PayPal-Request-Id header")
	}
	var sent struct {
		Intent        string               `json:"intent"`
		PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
	}
	if err := json.Unmarshal(stub.bodies["POST /v2/checkout/orders"], &sent); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	pu := sent.PurchaseUnits[0]
	if sent.Intent != "CAPTURE" || pu.Amount.Value != "150.00" || pu.Amount.CurrencyCode != "USD" || pu.CustomID != "pay-1" || pu.ReferenceID != "sess-1" {
		t.Fatalf("unexpected order body: %+v", sent)
	}
}

func TestPayPalGateway_ConfirmPayment(t *testing.T) {
	t.Run("captured", func(t *testing.T) {
		stub, srv := newPayPalStub(t)
		stub.on("POST /v2/checkout/orders/ORDER-1/capture", http.StatusCreated, `{"id":"ORDER-1","status":"COMPLETED","purchase_units":[{"custom_id":"pay-1","payments":{"captures":[{"id":"CAP-1","status":"COMPLETED","amount":{"currency_code":"USD","value":"150.00"}}]}}]}`)
		g := newPayPalTestGateway(t, srv.URL)

		got, err := g.ConfirmPayment(context.Background(), interfaces.ConfirmRequest{ExternalID: "ORDER-1"})
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if got.Status != interfaces.GatewayStatusSucceeded || got.Amount != 15000 || got.Metadata["payment_id"] != "pay-1" {
			t.Fatalf("unexpected payment: %+v", got)
		}
	})

	t.Run("already captured falls back to lookup", func(t *testing.T) {
		stub, srv := newPayPalStub(t)
		stub.on("POST /v2/checkout/orders/ORDER-1/capture", http.StatusUnprocessableEntity, `{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_ALREADY_CAPTURED"}]}`)
		stub.on("GET /v2/checkout/orders/ORDER-1", http.StatusOK, `{"id":"ORDER-1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[{"id":"CAP-1","status":"COMPLETED","amount":{"currency_code":"USD","value":"150.00"}}]}}]}`)
		g := newPayPalTestGateway(t, srv.URL)

		got, err := g.ConfirmPayment(context.Background(), interfaces.ConfirmRequest{ExternalID: "ORDER-1"})
		if err != nil || got.Status != interfaces.GatewayStatusSucceeded {
			t.Fatalf("expected succeeded, got %+v (%v)", got, err)
		}
	})

	t.Run("declined instrument is rejected", func(t *testing.T) {
		stub, srv := newPayPalStub(t)
		stub.on("POST /v2/checkout/orders/ORDER-1/capture", http.StatusUnprocessableEntity, `{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"INSTRUMENT_DECLINED"}]}`)
		g := newPayPalTestGateway(t, srv.URL)

		_, err := g.ConfirmPayment(context.Background(), interfaces.ConfirmRequest{ExternalID: "ORDER-1"})
		if !errors.Is(err, interfaces.ErrGatewayRejected) || interfaces.VendorCode(err) != "INSTRUMENT_DECLINED" {
			t.Fatalf("expected rejected INSTRUMENT_DECLINED, got %v", err)
		}
	})

	t.Run("unapproved order is not a decline", func(t *testing.T) {
		stub, srv := newPayPalStub(t)
		stub.on("POST /v2/checkout/orders/ORDER-1/capture", http.StatusUnprocessableEntity, `{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_NOT_APPROVED"}]}`)
		g := newPayPalTestGateway(t, srv.URL)

		_, err := g.ConfirmPayment(context.Background(), interfaces.ConfirmRequest{ExternalID: "ORDER-1"})
		if errors.Is(err, interfaces.ErrGatewayRejected) {
			t.Fatalf("ORDER_NOT_APPROVED must not fail the payment: %v", err)
		}
		if !errors.Is(err, interfaces.ErrInvalidStateTransition) || interfaces.VendorCode(err) != "ORDER_NOT_APPROVED" {
			t.Fatalf("expected invalid state ORDER_NOT_APPROVED, got %v", err)
		}
	})

	t.Run("malformed request is a validation error", func(t *testing.T) {
		stub, srv := newPayPalStub(t)
		stub.on("POST /v2/checkout/orders/ORDER-1/capture", http.StatusBadRequest, `{"name":"INVALID_REQUEST","details":[{"issue":"MALFORMED_REQUEST_JSON"}]}`)
		g := newPayPalTestGateway(t, srv.URL)

		_, err := g.ConfirmPayment(context.Background(), interfaces.ConfirmRequest{ExternalID: "ORDER-1"})
		if !errors.Is(err, interfaces.ErrValidation) || errors.Is(err, interfaces.ErrGatewayRejected) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("server error is transient", func(t *testing.T) {
		stub, srv := newPayPalStub(t)
		stub.on("POST /v2/checkout/orders/ORDER-1/capture", http.StatusServiceUnavailable, `{"name":"SERVICE_UNAVAILABLE"}`)
		g := newPayPalTestGateway(t, srv.URL)

		_, err := g.ConfirmPayment(context.Background(), interfaces.ConfirmRequest{ExternalID: "ORDER-1"})
		if !errors.Is(err, interfaces.ErrTransientGateway) {
			t.Fatalf("expected ErrTransientGateway, got %v", err)
		}
	})
}

func TestPayPalGateway_RefundPayment(t *testing.T) {
	stub, srv := newPayPalStub(t)
	stub.on("GET /v2/checkout/orders/ORDER-1", http.StatusOK, `{"id":"ORDER-1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[{"id":"CAP-1","status":"COMPLETED","amount":{"currency_code":"USD","value":"150.00"}}]}}]}`)
	stub.on("POST /v2/payments/captures/CAP-1/refund", http.StatusCreated, `{"id":"REF-1","status":"COMPLETED","amount":{"currency_code":"USD","value":"50.00"}}`)
	g := newPayPalTestGateway(t, srv.URL)

	amount := int64(5000)
	got, err := g.RefundPayment(context.Background(), interfaces.RefundRequest{
		ExternalID: "ORDER-1", Amount: &amount, Currency: "USD", Reason: "mentor no-show",
		Metadata: map[string]string{"refund_id": "ref-1"}, IdempotencyKey: "ref-1",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.ExternalRefundID != "REF-1" || got.Amount != 5000 || got.Status != interfaces.GatewayRefundSucceeded {
		t.Fatalf("unexpected refund: %+v", got)
	}
	body := string(stub.bodies["POST /v2/payments/captures/CAP-1/refund"])
	if !strings.Contains(body, `"value":"50.00"`) || !strings.Contains(body, `"custom_id":"ref-1"`) {
		t.Fatalf("unexpected refund body: %s", body)
	}
}

func TestPayPalGateway_StatusMapping(t *testing.T) {
	g := newPayPalTestGateway(t, "http://127.0.0.1:0")
	for vendor, want := range paypalOrderStatuses {
		got, err := g.orderView(paypalOrder{ID: "O", Status: vendor})
		if err != nil || got.Status != want {
			t.Fatalf("%s: expected %s, got %s (%v)", vendor, want, got.Status, err)
		}
	}
	for vendor, want := range paypalCaptureStatuses {
		order := paypalOrder{ID: "O", Status: "COMPLETED", PurchaseUnits: []paypalPurchaseUnit{{}}}
		order.PurchaseUnits[0].Payments = &struct {
			Captures []paypalCapture `json:"captures"`
		}{Captures: []paypalCapture{{ID: "C", Status: vendor}}}
		got, err := g.orderView(order)
		if err != nil || got.Status != want {
			t.Fatalf("capture %s: expected %s, got %s (%v)", vendor, want, got.Status, err)
		}
	}
	if _, err := g.orderView(paypalOrder{ID: "O", Status: "LOST"}); !errors.Is(err, interfaces.ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestPayPalGateway_Unsupported(t *testing.T) {
	g := newPayPalTestGateway(t, "http://127.0.0.1:0")
	if _, err := g.CreateCustomer(context.Background(), interfaces.CustomerProfile{}); !errors.Is(err, interfaces.ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
	if _, err := g.CreatePaymentMethod(context.Background(), interfaces.PaymentMethodDetails{}); !errors.Is(err, interfaces.ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
	if _, err := g.FormatAmount(100, "HUF"); !errors.Is(err, interfaces.ErrUnsupportedCurrency) {
		t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
	}
}

func TestPayPalGateway_ValidateWebhook(t *testing.T) {
	payload := []byte(`{"id":"WH-EVT-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP-1","status":"COMPLETED","custom_id":"pay-1","amount":{"currency_code":"USD","value":"150.00"},"supplementary_data":{"related_ids":{"order_id":"ORDER-1"}}}}`)
	headers := http.Header{}
	headers.Set("PAYPAL-AUTH-ALGO", "SHA256withRSA")
	headers.Set("PAYPAL-CERT-URL", "https://api.paypal.com/cert")
	headers.Set("PAYPAL-TRANSMISSION-ID", "tx-1")
	headers.Set("PAYPAL-TRANSMISSION-SIG", "sig")
	headers.Set("PAYPAL-TRANSMISSION-TIME", "2026-01-01T00:00:00Z")

	t.Run("verified", func(t *testing.T) {
		stub, srv := newPayPalStub(t)
		stub.on("POST /v1/notifications/verify-webhook-signature", http.StatusOK, `{"verification_status":"SUCCESS"}`)
		g := newPayPalTestGateway(t, srv.URL)

		ev, err := g.ValidateWebhook(context.Background(), payload, headers)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if ev.ID != "WH-EVT-1" || ev.Type != interfaces.WebhookPaymentSucceeded || ev.ExternalPaymentID != "ORDER-1" || ev.PaymentRef != "pay-1" || ev.Amount != 15000 {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if !strings.Contains(string(stub.bodies["POST /v1/notifications/verify-webhook-signature"]), `"webhook_id":"WH-1"`) {
			t.Fatalf("expected webhook id in verification request")
		}
	})

	t.Run("verification failure", func(t *testing.T) {
		stub, srv := newPayPalStub(t)
		stub.on("POST /v1/notifications/verify-webhook-signature", http.StatusOK, `{"verification_status":"FAILURE"}`)
		g := newPayPalTestGateway(t, srv.URL)

		if _, err := g.ValidateWebhook(context.Background(), payload, headers); !errors.Is(err, interfaces.ErrInvalidWebhookSignature) {
			t.Fatalf("expected ErrInvalidWebhookSignature, got %v", err)
		}
	})

	t.Run("missing headers", func(t *testing.T) {
		g := newPayPalTestGateway(t, "http://127.0.0.1:0")
		if _, err := g.ValidateWebhook(context.Background(), payload, http.Header{}); !errors.Is(err, interfaces.ErrInvalidWebhookSignature) {
			t.Fatalf("expected ErrInvalidWebhookSignature, got %v", err)
		}
	})
}

func TestTruncate(t *testing.T) {
	t.Run("multibyte text is cut on a character boundary", func(t *testing.T) {
		got := truncate("Sessão de mentoria", 5)
		if got != "Sessã" || !utf8.ValidString(got) {
			t.Fatalf("unexpected truncation %q", got)
		}
	})

	t.Run("short text is unchanged", func(t *testing.T) {
		if got := truncate("ação", 4); got != "ação" {
			t.Fatalf("unexpected truncation %q", got)
		}
	})
}
