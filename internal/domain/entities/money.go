package entities

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidMoney = errors.New("invalid money amount")

// zeroExponentCurrencies lists ISO-4217 currencies without a minor unit.
var zeroExponentCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "ISK": {}, "JPY": {}, "KMF": {}, "KRW": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "UYI": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// NormalizeCurrency returns the upper-case ISO code.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// CurrencyExponent is the number of decimal places of the currency minor unit.
func CurrencyExponent(currency string) int32 {
	if _, ok := zeroExponentCurrencies[NormalizeCurrency(currency)]; ok {
		return 0
	}
	return 2
}

// ToMinorUnits converts a major-unit amount ("150.00") into ledger minor units (15000).
// Amounts with more precision than the currency allows are rejected.
func ToMinorUnits(major decimal.Decimal, currency string) (int64, error) {
	shifted := major.Shift(CurrencyExponent(currency))
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has more than %d decimals for %s", ErrInvalidMoney, major.String(), CurrencyExponent(currency), NormalizeCurrency(currency))
	}
	if shifted.Cmp(decimal.NewFromInt(maxMinor)) > 0 || shifted.Cmp(decimal.NewFromInt(-maxMinor)) < 0 {
		return 0, fmt.Errorf("%w: %s out of range", ErrInvalidMoney, major.String())
	}
	return shifted.IntPart(), nil
}

// FromMinorUnits converts ledger minor units into a major-unit decimal.
func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-CurrencyExponent(currency))
}

// FormatMajor renders minor units with the currency's fixed number of decimals.
func FormatMajor(minor int64, currency string) string {
	return FromMinorUnits(minor, currency).StringFixed(CurrencyExponent(currency))
}

// ParseMajor parses a major-unit decimal string into minor units.
func ParseMajor(amount string, currency string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, amount)
	}
	return ToMinorUnits(d, currency)
}

const maxMinor = int64(1) << 53
