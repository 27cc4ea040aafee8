package entities

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCurrencyExponent(t *testing.T) {
	cases := map[string]int32{"usd": 2, "EUR": 2, "JPY": 0, " krw ": 0, "CLP": 0, "BRL": 2}
	for code, want := range cases {
		if got := CurrencyExponent(code); got != want {
			t.Fatalf("%s: expected %d, got %d", code, want, got)
		}
	}
}

func TestParseMajor(t *testing.T) {
	t.Run("two decimals", func(t *testing.T) {
		got, err := ParseMajor("150.00", "USD")
		if err != nil || got != 15000 {
			t.Fatalf("expected 15000, got %d err=%v", got, err)
		}
	})

	t.Run("zero decimal currency", func(t *testing.T) {
		got, err := ParseMajor("1500", "JPY")
		if err != nil || got != 1500 {
			t.Fatalf("expected 1500, got %d err=%v", got, err)
		}
	})

	t.Run("too precise", func(t *testing.T) {
		if _, err := ParseMajor("10.005", "USD"); !errors.Is(err, ErrInvalidMoney) {
			t.Fatalf("expected ErrInvalidMoney, got %v", err)
		}
		if _, err := ParseMajor("10.5", "JPY"); !errors.Is(err, ErrInvalidMoney) {
			t.Fatalf("expected ErrInvalidMoney, got %v", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := ParseMajor("ten", "USD"); !errors.Is(err, ErrInvalidMoney) {
			t.Fatalf("expected ErrInvalidMoney, got %v", err)
		}
	})
}

func TestFormatMajor_RoundTrip(t *testing.T) {
	for _, currency := range []string{"USD", "JPY", "BRL", "KRW"} {
		for _, minor := range []int64{1, 99, 100, 15000, 123456789} {
			s := FormatMajor(minor, currency)
			back, err := ParseMajor(s, currency)
			if err != nil || back != minor {
				t.Fatalf("%s %d: formatted %q parsed back to %d err=%v", currency, minor, s, back, err)
			}
		}
	}
	if FormatMajor(5000, "USD") != "50.00" {
		t.Fatalf("unexpected format: %s", FormatMajor(5000, "USD"))
	}
	if !FromMinorUnits(10050, "EUR").Equal(decimal.RequireFromString("100.5")) {
		t.Fatalf("unexpected major amount")
	}
}
