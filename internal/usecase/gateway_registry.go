package usecase

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"mentor_payments/internal/usecase/interfaces"
)

// GatewayInfo describes a configured gateway to API clients.
type GatewayInfo struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	SupportedCurrencies []string `json:"supported_currencies"`
	SupportedMethods    []string `json:"supported_methods"`
	Default             bool     `json:"default"`
}

// GatewayRegistry selects adapters by name.
type GatewayRegistry struct {
	gateways    map[string]interfaces.IPaymentGateway
	defaultName string
}

func NewGatewayRegistry(defaultName string, gateways ...interfaces.IPaymentGateway) *GatewayRegistry {
	r := &GatewayRegistry{
		gateways:    map[string]interfaces.IPaymentGateway{},
		defaultName: normalizeGatewayName(defaultName),
	}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

func (r *GatewayRegistry) Register(g interfaces.IPaymentGateway) {
	if g == nil {
		return
	}
	r.gateways[normalizeGatewayName(g.Name())] = g
}

// Resolve returns the named gateway, or the default one when name is empty.
func (r *GatewayRegistry) Resolve(name string) (interfaces.IPaymentGateway, error) {
	if strings.TrimSpace(name) == "" {
		name = r.defaultName
	}
	return r.Get(name)
}

func (r *GatewayRegistry) Get(name string) (interfaces.IPaymentGateway, error) {
	g, ok := r.gateways[normalizeGatewayName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrGatewayNotConfigured, name)
	}
	return g, nil
}

func (r *GatewayRegistry) DefaultName() string { return r.defaultName }

func (r *GatewayRegistry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *GatewayRegistry) List() []GatewayInfo {
	out := make([]GatewayInfo, 0, len(r.gateways))
	for _, name := range r.Names() {
		g := r.gateways[name]
		display := displayName(name)
		out = append(out, GatewayInfo{
			ID:                  name,
			Name:                display,
			Description:         "Accept payments with " + display,
			SupportedCurrencies: g.SupportedCurrencies(),
			SupportedMethods:    g.SupportedPaymentMethods(),
			Default:             name == r.defaultName,
		})
	}
	return out
}

func normalizeGatewayName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var gatewayDisplayNames = map[string]string{
	"paypal":      "PayPal",
	"mercadopago": "Mercado Pago",
}

func displayName(id string) string {
	if n, ok := gatewayDisplayNames[id]; ok {
		return n
	}
	if id == "" {
		return id
	}
	r := []rune(id)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
