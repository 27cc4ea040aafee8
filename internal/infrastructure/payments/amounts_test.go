package payments

import (
	"errors"
	"testing"

	"mentor_payments/internal/usecase/interfaces"
)

func TestAdapters_AmountRoundTrip(t *testing.T) {
	t.Setenv("PAYMENT_GATEWAY_MOCK", "")
	t.Setenv("MERCADOPAGO_MOCK", "")

	gateways := []interfaces.IPaymentGateway{
		newStripeGateway(nil, nil, nil, nil, "", nil),
		newPayPalTestGateway(t, "http://127.0.0.1:0"),
		newMercadoPagoGateway(nil, nil, "", nil),
	}
	for _, g := range gateways {
		for _, currency := range g.SupportedCurrencies() {
			for _, amount := range []int64{1, 99, 15000, 123456789} {
				wire, err := g.FormatAmount(amount, currency)
				if err != nil {
					t.Fatalf("%s format %d %s: %v", g.Name(), amount, currency, err)
				}
				back, err := g.UnformatAmount(wire, currency)
				if err != nil {
					t.Fatalf("%s unformat %q %s: %v", g.Name(), wire, currency, err)
				}
				if back != amount {
					t.Fatalf("%s round trip %d %s: got %d via %q", g.Name(), amount, currency, back, wire)
				}
			}
		}
	}
}

func TestAmountCodec_Format(t *testing.T) {
	integer := newAmountCodec([]string{"USD", "JPY"}, map[string]int32{"JPY": 0}, true)
	decimalCodec := newAmountCodec([]string{"USD", "JPY"}, nil, false)

	cases := []struct {
		codec    amountCodec
		amount   int64
		currency string
		want     string
	}{
		{integer, 15000, "usd", "15000"},
		{integer, 1500, "JPY", "1500"},
		{decimalCodec, 15000, "USD", "150.00"},
		{decimalCodec, 5, "USD", "0.05"},
		{decimalCodec, 1500, "JPY", "1500"},
	}
	for _, tc := range cases {
		got, err := tc.codec.format(tc.amount, tc.currency)
		if err != nil {
			t.Fatalf("format %d %s: %v", tc.amount, tc.currency, err)
		}
		if got != tc.want {
			t.Fatalf("format %d %s: expected %q, got %q", tc.amount, tc.currency, tc.want, got)
		}
	}
}

func TestAmountCodec_Validate(t *testing.T) {
	c := newAmountCodec([]string{"USD"}, nil, false)

	if err := c.validate(0, "USD"); !errors.Is(err, interfaces.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := c.validate(-10, "USD"); !errors.Is(err, interfaces.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := c.validate(100, "XYZ"); !errors.Is(err, interfaces.ErrUnsupportedCurrency) {
		t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
	}
	if err := c.validate(100, "usd"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAmountCodec_Parse(t *testing.T) {
	c := newAmountCodec([]string{"USD"}, nil, false)
	if _, err := c.parse("1.001", "USD"); !errors.Is(err, interfaces.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for excess precision, got %v", err)
	}
	if _, err := c.parse("abc", "USD"); !errors.Is(err, interfaces.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	got, err := c.parseFloat(150.1, "USD")
	if err != nil || got != 15010 {
		t.Fatalf("expected 15010, got %d (%v)", got, err)
	}
}
