package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"mentor_payments/internal/usecase/interfaces"

	"github.com/stripe/stripe-go/v76"
)

type fakeStripeIntents struct {
	lastNew     *stripe.PaymentIntentParams
	lastCapture *stripe.PaymentIntentCaptureParams
	intent      *stripe.PaymentIntent
	err         error
}

func (f *fakeStripeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.lastNew = params
	return f.intent, f.err
}

func (f *fakeStripeIntents) Get(string, *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return f.intent, f.err
}

func (f *fakeStripeIntents) Confirm(string, *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	return f.intent, f.err
}

func (f *fakeStripeIntents) Capture(_ string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error) {
	f.lastCapture = params
	return f.intent, f.err
}

type fakeStripeRefunds struct {
	last   *stripe.RefundParams
	refund *stripe.Refund
	err    error
}

func (f *fakeStripeRefunds) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	f.last = params
	return f.refund, f.err
}

func signStripe(t *testing.T, payload []byte, secret string) http.Header {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10) + "."))
	mac.Write(payload)
	h := http.Header{}
	h.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return h
}

func TestStripeGateway_CreatePaymentIntent(t *testing.T) {
	t.Run("sends minor units and metadata", func(t *testing.T) {
		intents := &fakeStripeIntents{intent: &stripe.PaymentIntent{
			ID: "pi_1", ClientSecret: "pi_1_secret", Amount: 15000, Currency: "usd",
			Status: stripe.PaymentIntentStatusRequiresPaymentMethod,
		}}
		g := newStripeGateway(intents, nil, nil, nil, "", nil)

		out, err := g.CreatePaymentIntent(context.Background(), interfaces.CreateIntentRequest{
			Amount: 15000, Currency: "USD", Description: "Coaching session with mentor",
			Metadata: map[string]string{"payment_id": "pay-1"}, CaptureMethod: interfaces.CaptureManual,
			IdempotencyKey: "pay-1",
		})
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if *intents.lastNew.Amount != 15000 || *intents.lastNew.Currency != "usd" {
			t.Fatalf("unexpected wire amount: %d %s", *intents.lastNew.Amount, *intents.lastNew.Currency)
		}
		if intents.lastNew.Metadata["payment_id"] != "pay-1" {
			t.Fatalf("expected payment_id metadata, got %v", intents.lastNew.Metadata)
		}
		if *intents.lastNew.IdempotencyKey != "pay-1" {
			t.Fatalf("expected idempotency key pay-1")
		}
		if *intents.lastNew.CaptureMethod != "manual" {
			t.Fatalf("expected manual capture")
		}
		if out.ExternalID != "pi_1" || out.ClientContinuationToken != "pi_1_secret" || out.Amount != 15000 || out.Currency != "USD" {
			t.Fatalf("unexpected intent: %+v", out)
		}
		if out.Status != interfaces.GatewayStatusRequiresPaymentMethod {
			t.Fatalf("unexpected status: %s", out.Status)
		}
	})

	t.Run("zero decimal currency", func(t *testing.T) {
		intents := &fakeStripeIntents{intent: &stripe.PaymentIntent{ID: "pi_2", Amount: 1500, Currency: "jpy", Status: stripe.PaymentIntentStatusRequiresConfirmation}}
		g := newStripeGateway(intents, nil, nil, nil, "", nil)

		out, err := g.CreatePaymentIntent(context.Background(), interfaces.CreateIntentRequest{Amount: 1500, Currency: "JPY"})
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if *intents.lastNew.Amount != 1500 || out.Amount != 1500 {
			t.Fatalf("expected 1500 both ways, got wire=%d ledger=%d", *intents.lastNew.Amount, out.Amount)
		}
	})

	t.Run("validation happens before the vendor call", func(t *testing.T) {
		intents := &fakeStripeIntents{}
		g := newStripeGateway(intents, nil, nil, nil, "", nil)

		_, err := g.CreatePaymentIntent(context.Background(), interfaces.CreateIntentRequest{Amount: 100, Currency: "XYZ"})
		if !errors.Is(err, interfaces.ErrUnsupportedCurrency) {
			t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
		}
		_, err = g.CreatePaymentIntent(context.Background(), interfaces.CreateIntentRequest{Amount: 0, Currency: "USD"})
		if !errors.Is(err, interfaces.ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
		if intents.lastNew != nil {
			t.Fatalf("vendor must not be called")
		}
	})

	t.Run("card declined is rejected", func(t *testing.T) {
		intents := &fakeStripeIntents{err: &stripe.Error{HTTPStatusCode: 402, Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined, DeclineCode: "insufficient_funds"}}
		g := newStripeGateway(intents, nil, nil, nil, "", nil)

		_, err := g.CreatePaymentIntent(context.Background(), interfaces.CreateIntentRequest{Amount: 100, Currency: "USD"})
		if !errors.Is(err, interfaces.ErrGatewayRejected) {
			t.Fatalf("expected ErrGatewayRejected, got %v", err)
		}
		if interfaces.VendorCode(err) != "insufficient_funds" {
			t.Fatalf("expected decline code, got %q", interfaces.VendorCode(err))
		}
	})

	t.Run("rate limit and network errors are transient", func(t *testing.T) {
		for _, vendorErr := range []error{
			&stripe.Error{HTTPStatusCode: 429, Type: stripe.ErrorTypeInvalidRequest},
			&stripe.Error{HTTPStatusCode: 503, Type: stripe.ErrorTypeAPI},
			errors.New("connection reset"),
		} {
			g := newStripeGateway(&fakeStripeIntents{err: vendorErr}, nil, nil, nil, "", nil)
			_, err := g.CreatePaymentIntent(context.Background(), interfaces.CreateIntentRequest{Amount: 100, Currency: "USD"})
			if !errors.Is(err, interfaces.ErrTransientGateway) {
				t.Fatalf("expected ErrTransientGateway for %v, got %v", vendorErr, err)
			}
		}
	})
}

func TestStripeGateway_StatusMapping(t *testing.T) {
	for vendor, want := range stripeStatuses {
		g := newStripeGateway(&fakeStripeIntents{intent: &stripe.PaymentIntent{ID: "pi", Amount: 100, Currency: "usd", Status: vendor}}, nil, nil, nil, "", nil)
		got, err := g.GetPaymentStatus(context.Background(), "pi")
		if err != nil {
			t.Fatalf("%s: unexpected error %v", vendor, err)
		}
		if got.Status != want {
			t.Fatalf("%s: expected %s, got %s", vendor, want, got.Status)
		}
	}

	t.Run("unknown status", func(t *testing.T) {
		g := newStripeGateway(&fakeStripeIntents{intent: &stripe.PaymentIntent{ID: "pi", Status: "teleported"}}, nil, nil, nil, "", nil)
		if _, err := g.GetPaymentStatus(context.Background(), "pi"); !errors.Is(err, interfaces.ErrUnknownStatus) {
			t.Fatalf("expected ErrUnknownStatus, got %v", err)
		}
	})

	t.Run("declined confirm reads as failed", func(t *testing.T) {
		g := newStripeGateway(&fakeStripeIntents{intent: &stripe.PaymentIntent{
			ID: "pi", Amount: 100, Currency: "usd", Status: stripe.PaymentIntentStatusRequiresPaymentMethod,
			LastPaymentError: &stripe.Error{Code: stripe.ErrorCodeCardDeclined},
		}}, nil, nil, nil, "", nil)
		got, err := g.ConfirmPayment(context.Background(), interfaces.ConfirmRequest{ExternalID: "pi"})
		if err != nil || got.Status != interfaces.GatewayStatusFailed {
			t.Fatalf("expected failed, got %s (%v)", got.Status, err)
		}
	})
}

func TestStripeGateway_CaptureAndRefund(t *testing.T) {
	intents := &fakeStripeIntents{intent: &stripe.PaymentIntent{ID: "pi", Amount: 15000, AmountReceived: 10000, Currency: "usd", Status: stripe.PaymentIntentStatusSucceeded}}
	refunds := &fakeStripeRefunds{refund: &stripe.Refund{ID: "re_1", Amount: 5000, Currency: "usd", Status: stripe.RefundStatusPending}}
	g := newStripeGateway(intents, refunds, nil, nil, "", nil)

	amount := int64(10000)
	got, err := g.CapturePayment(context.Background(), interfaces.CaptureRequest{ExternalID: "pi", Amount: &amount, Currency: "USD"})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if *intents.lastCapture.AmountToCapture != 10000 || got.Amount != 10000 {
		t.Fatalf("expected captured 10000, got %d", got.Amount)
	}

	refundAmount := int64(5000)
	r, err := g.RefundPayment(context.Background(), interfaces.RefundRequest{
		ExternalID: "pi", Amount: &refundAmount, Currency: "USD", Reason: "mentor no-show",
		Metadata: map[string]string{"refund_id": "ref-1"},
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if r.ExternalRefundID != "re_1" || r.Amount != 5000 || r.Status != interfaces.GatewayRefundPending {
		t.Fatalf("unexpected refund: %+v", r)
	}
	if *refunds.last.Reason != "requested_by_customer" || refunds.last.Metadata["reason"] != "mentor no-show" {
		t.Fatalf("unexpected reason mapping: %v %v", *refunds.last.Reason, refunds.last.Metadata)
	}
	if refunds.last.Metadata["refund_id"] != "ref-1" {
		t.Fatalf("expected refund_id metadata")
	}
}

func TestStripeGateway_ValidateWebhook(t *testing.T) {
	const secret = "whsec_test"
	g := newStripeGateway(nil, nil, nil, nil, secret, nil)

	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent","amount":15000,"amount_received":15000,"currency":"usd","status":"succeeded","metadata":{"payment_id":"pay-1"}}}}`)

	t.Run("valid signature", func(t *testing.T) {
		ev, err := g.ValidateWebhook(context.Background(), payload, signStripe(t, payload, secret))
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if ev.ID != "evt_1" || ev.Type != interfaces.WebhookPaymentSucceeded || ev.ExternalPaymentID != "pi_1" || ev.PaymentRef != "pay-1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if ev.Amount != 15000 || ev.Currency != "USD" {
			t.Fatalf("unexpected amount: %d %s", ev.Amount, ev.Currency)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := g.ValidateWebhook(context.Background(), payload, signStripe(t, payload, "whsec_other"))
		if !errors.Is(err, interfaces.ErrInvalidWebhookSignature) {
			t.Fatalf("expected ErrInvalidWebhookSignature, got %v", err)
		}
	})

	t.Run("tampered payload", func(t *testing.T) {
		headers := signStripe(t, payload, secret)
		tampered := append([]byte(nil), payload...)
		tampered[len(tampered)-3] = ' '
		if _, err := g.ValidateWebhook(context.Background(), tampered, headers); !errors.Is(err, interfaces.ErrInvalidWebhookSignature) {
			t.Fatalf("expected ErrInvalidWebhookSignature, got %v", err)
		}
	})

	t.Run("missing secret fails closed", func(t *testing.T) {
		unsigned := newStripeGateway(nil, nil, nil, nil, "", nil)
		if _, err := unsigned.ValidateWebhook(context.Background(), payload, signStripe(t, payload, secret)); !errors.Is(err, interfaces.ErrInvalidWebhookSignature) {
			t.Fatalf("expected ErrInvalidWebhookSignature, got %v", err)
		}
	})

	t.Run("refund event", func(t *testing.T) {
		refund := []byte(`{"id":"evt_2","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1","object":"charge","payment_intent":"pi_1","refunds":{"object":"list","data":[{"id":"re_1","object":"refund","amount":5000,"currency":"usd","status":"succeeded","metadata":{"refund_id":"ref-1","payment_id":"pay-1"}}]}}}}`)
		ev, err := g.ValidateWebhook(context.Background(), refund, signStripe(t, refund, secret))
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if ev.Type != interfaces.WebhookRefundCompleted || ev.ExternalRefundID != "re_1" || ev.RefundRef != "ref-1" || ev.ExternalPaymentID != "pi_1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	})

	t.Run("unhandled type is unknown", func(t *testing.T) {
		other := []byte(`{"id":"evt_3","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)
		ev, err := g.ValidateWebhook(context.Background(), other, signStripe(t, other, secret))
		if err != nil || ev.Type != interfaces.WebhookUnknown {
			t.Fatalf("expected unknown event, got %+v (%v)", ev, err)
		}
	})
}

func TestStripeGateway_ConfirmErrorClassification(t *testing.T) {
	cases := []struct {
		name string
		err  *stripe.Error
		want error
	}{
		{"card decline", &stripe.Error{HTTPStatusCode: 402, Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined}, interfaces.ErrGatewayRejected},
		{"decline code on invalid request", &stripe.Error{HTTPStatusCode: 402, Type: stripe.ErrorTypeInvalidRequest, DeclineCode: "do_not_honor"}, interfaces.ErrGatewayRejected},
		{"unexpected intent state", &stripe.Error{HTTPStatusCode: 400, Type: stripe.ErrorTypeInvalidRequest, Code: "payment_intent_unexpected_state"}, interfaces.ErrInvalidStateTransition},
		{"other invalid request", &stripe.Error{HTTPStatusCode: 400, Type: stripe.ErrorTypeInvalidRequest, Code: "parameter_invalid_empty"}, interfaces.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newStripeGateway(&fakeStripeIntents{err: tc.err}, nil, nil, nil, "", nil)
			_, err := g.ConfirmPayment(context.Background(), interfaces.ConfirmRequest{ExternalID: "pi_1"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.want != interfaces.ErrGatewayRejected && errors.Is(err, interfaces.ErrGatewayRejected) {
				t.Fatalf("non-decline must not be a rejection: %v", err)
			}
		})
	}
}

func TestStripeGateway_SupportedPaymentMethods(t *testing.T) {
	g := newStripeGateway(nil, nil, nil, nil, "", nil)
	methods := g.SupportedPaymentMethods()
	if len(methods) == 0 || methods[0] != "card" {
		t.Fatalf("expected card first, got %v", methods)
	}
	methods[0] = "changed"
	if g.SupportedPaymentMethods()[0] != "card" {
		t.Fatalf("caller mutated the method list")
	}
}
