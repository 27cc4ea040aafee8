package payments

import (
	"fmt"
	"sort"
	"strings"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/usecase/interfaces"

	"github.com/shopspring/decimal"
)

// amountCodec converts ledger minor units to a vendor's wire amount and back.
//
// Wire precision comes from vendorDecimals, falling back to the ISO exponent.
// integer vendors take the amount in their smallest unit ("15000"), the others
// take a major-unit decimal string ("150.00").
type amountCodec struct {
	currencies     map[string]struct{}
	vendorDecimals map[string]int32
	integer        bool
}

func newAmountCodec(currencies []string, vendorDecimals map[string]int32, integer bool) amountCodec {
	set := make(map[string]struct{}, len(currencies))
	for _, c := range currencies {
		set[entities.NormalizeCurrency(c)] = struct{}{}
	}
	return amountCodec{currencies: set, vendorDecimals: vendorDecimals, integer: integer}
}

func (c amountCodec) supports(currency string) bool {
	_, ok := c.currencies[entities.NormalizeCurrency(currency)]
	return ok
}

func (c amountCodec) list() []string {
	out := make([]string, 0, len(c.currencies))
	for cur := range c.currencies {
		out = append(out, cur)
	}
	sort.Strings(out)
	return out
}

func (c amountCodec) decimals(currency string) int32 {
	if d, ok := c.vendorDecimals[currency]; ok {
		return d
	}
	return entities.CurrencyExponent(currency)
}

// validate runs before any vendor call.
func (c amountCodec) validate(amount int64, currency string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", interfaces.ErrInvalidAmount, amount)
	}
	_, err := c.format(amount, currency)
	return err
}

func (c amountCodec) format(amount int64, currency string) (string, error) {
	cur := entities.NormalizeCurrency(currency)
	if !c.supports(cur) {
		return "", fmt.Errorf("%w: %s", interfaces.ErrUnsupportedCurrency, cur)
	}
	major := entities.FromMinorUnits(amount, cur)
	exp := c.decimals(cur)
	if c.integer {
		v := major.Shift(exp)
		if !v.Equal(v.Truncate(0)) {
			return "", fmt.Errorf("%w: %d %s is not representable", interfaces.ErrInvalidAmount, amount, cur)
		}
		return v.StringFixed(0), nil
	}
	if !major.Equal(major.Round(exp)) {
		return "", fmt.Errorf("%w: %d %s is not representable", interfaces.ErrInvalidAmount, amount, cur)
	}
	return major.StringFixed(exp), nil
}

func (c amountCodec) parse(amount string, currency string) (int64, error) {
	cur := entities.NormalizeCurrency(currency)
	if !c.supports(cur) {
		return 0, fmt.Errorf("%w: %s", interfaces.ErrUnsupportedCurrency, cur)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", interfaces.ErrInvalidAmount, amount)
	}
	if c.integer {
		if !d.Equal(d.Truncate(0)) {
			return 0, fmt.Errorf("%w: %q is not an integer amount", interfaces.ErrInvalidAmount, amount)
		}
		d = d.Shift(-c.decimals(cur))
	}
	minor, err := entities.ToMinorUnits(d, cur)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", interfaces.ErrInvalidAmount, err)
	}
	return minor, nil
}

func (c amountCodec) parseFloat(amount float64, currency string) (int64, error) {
	return c.parse(decimal.NewFromFloat(amount).StringFixed(c.decimals(entities.NormalizeCurrency(currency))), currency)
}

func gatewayError(gateway, op string, kind error, code string, err error) error {
	return &interfaces.GatewayError{Gateway: gateway, Op: op, Code: code, Kind: kind, Err: err}
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
