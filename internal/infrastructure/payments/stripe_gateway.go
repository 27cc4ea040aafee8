package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/usecase/interfaces"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const GatewayStripe = "stripe"

var ErrMissingStripeSecretKey = errors.New("missing STRIPE_SECRET_KEY")

var stripeCurrencies = []string{
	"USD", "EUR", "GBP", "CAD", "AUD", "JPY", "CHF", "SEK", "NOK", "DKK", "PLN", "CZK", "HUF",
	"RON", "BGN", "HRK", "RUB", "TRY", "BRL", "MXN", "ARS", "CLP", "COP", "PEN", "UYU", "INR",
	"SGD", "HKD", "TWD", "KRW", "THB", "MYR", "IDR", "PHP", "VND", "NGN", "ZAR", "EGP", "MAD", "AED",
}

// Stripe takes these in whole units.
var stripeZeroDecimal = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "JPY": 0, "KMF": 0, "KRW": 0, "MGA": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
}

var stripeMethodNames = []string{
	"card", "bank_transfer", "sepa_debit", "sofort", "ideal", "bancontact", "eps",
	"giropay", "p24", "alipay", "wechat_pay", "afterpay_clearpay",
}

var stripeStatuses = map[stripe.PaymentIntentStatus]interfaces.GatewayStatus{
	stripe.PaymentIntentStatusRequiresPaymentMethod: interfaces.GatewayStatusRequiresPaymentMethod,
	stripe.PaymentIntentStatusRequiresConfirmation:  interfaces.GatewayStatusRequiresConfirmation,
	stripe.PaymentIntentStatusRequiresAction:        interfaces.GatewayStatusRequiresAction,
	stripe.PaymentIntentStatusProcessing:            interfaces.GatewayStatusProcessing,
	stripe.PaymentIntentStatusRequiresCapture:       interfaces.GatewayStatusRequiresCapture,
	stripe.PaymentIntentStatusSucceeded:             interfaces.GatewayStatusSucceeded,
	stripe.PaymentIntentStatusCanceled:              interfaces.GatewayStatusCanceled,
}

var stripeRefundStatuses = map[stripe.RefundStatus]interfaces.GatewayRefundStatus{
	stripe.RefundStatusPending:        interfaces.GatewayRefundPending,
	stripe.RefundStatusRequiresAction: interfaces.GatewayRefundPending,
	stripe.RefundStatusSucceeded:      interfaces.GatewayRefundSucceeded,
	stripe.RefundStatusFailed:         interfaces.GatewayRefundFailed,
	stripe.RefundStatusCanceled:       interfaces.GatewayRefundFailed,
}

var stripeRefundReasons = map[string]bool{
	string(stripe.RefundReasonDuplicate):           true,
	string(stripe.RefundReasonFraudulent):          true,
	string(stripe.RefundReasonRequestedByCustomer): true,
}

// Narrow views of the stripe-go service clients.
type stripePaymentIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
	Capture(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
}

type stripeRefunds interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeCustomers interface {
	New(params *stripe.CustomerParams) (*stripe.Customer, error)
}

type stripePaymentMethods interface {
	New(params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error)
	Attach(id string, params *stripe.PaymentMethodAttachParams) (*stripe.PaymentMethod, error)
}

// StripeGateway implements IPaymentGateway on top of Stripe PaymentIntents.
type StripeGateway struct {
	intents        stripePaymentIntents
	refunds        stripeRefunds
	customers      stripeCustomers
	methods        stripePaymentMethods
	webhookSecret  string
	publishableKey string
	amounts        amountCodec
	logger         *zap.Logger
}

var _ interfaces.IPaymentGateway = (*StripeGateway)(nil)

func NewStripeGateway(secretKey, webhookSecret, publishableKey string, logger *zap.Logger) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, ErrMissingStripeSecretKey
	}
	api := client.New(secretKey, nil)
	g := newStripeGateway(api.PaymentIntents, api.Refunds, api.Customers, api.PaymentMethods, webhookSecret, logger)
	g.publishableKey = publishableKey
	g.logger.Info("stripe client initialized")
	return g, nil
}

func newStripeGateway(intents stripePaymentIntents, refunds stripeRefunds, customers stripeCustomers, methods stripePaymentMethods, webhookSecret string, logger *zap.Logger) *StripeGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeGateway{
		intents:       intents,
		refunds:       refunds,
		customers:     customers,
		methods:       methods,
		webhookSecret: webhookSecret,
		amounts:       newAmountCodec(stripeCurrencies, stripeZeroDecimal, true),
		logger:        logger.Named("payment.gateway.stripe"),
	}
}

func (g *StripeGateway) Name() string { return GatewayStripe }

// PublishableKey is safe to hand to clients.
func (g *StripeGateway) PublishableKey() string { return g.publishableKey }

func (g *StripeGateway) SupportedCurrencies() []string { return g.amounts.list() }

func (g *StripeGateway) SupportedPaymentMethods() []string {
	return append([]string(nil), stripeMethodNames...)
}

func (g *StripeGateway) FormatAmount(amount int64, currency string) (string, error) {
	return g.amounts.format(amount, currency)
}

func (g *StripeGateway) UnformatAmount(amount string, currency string) (int64, error) {
	return g.amounts.parse(amount, currency)
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req interfaces.CreateIntentRequest) (interfaces.PaymentIntent, error) {
	if err := g.amounts.validate(req.Amount, req.Currency); err != nil {
		return interfaces.PaymentIntent{}, err
	}
	wire, err := g.vendorAmount(req.Amount, req.Currency)
	if err != nil {
		return interfaces.PaymentIntent{}, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(wire),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
	}
	if req.PaymentMethod != "" {
		params.PaymentMethod = stripe.String(req.PaymentMethod)
	} else {
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{Enabled: stripe.Bool(true)}
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	if req.PayerEmail != "" {
		params.ReceiptEmail = stripe.String(req.PayerEmail)
	}
	if req.CaptureMethod == interfaces.CaptureManual {
		params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.intents.New(params)
	if err != nil {
		return interfaces.PaymentIntent{}, g.classify("create_intent", err)
	}
	status, err := g.status(pi.Status)
	if err != nil {
		return interfaces.PaymentIntent{}, err
	}
	amount, err := g.ledgerAmount(pi.Amount, string(pi.Currency))
	if err != nil {
		return interfaces.PaymentIntent{}, err
	}
	g.logger.Info("payment intent created", zap.String("external_id", pi.ID), zap.String("status", string(pi.Status)))
	return interfaces.PaymentIntent{
		ExternalID:              pi.ID,
		ClientContinuationToken: pi.ClientSecret,
		Amount:                  amount,
		Currency:                entities.NormalizeCurrency(string(pi.Currency)),
		Status:                  status,
	}, nil
}

func (g *StripeGateway) ConfirmPayment(ctx context.Context, req interfaces.ConfirmRequest) (interfaces.GatewayPayment, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	if req.PaymentMethod != "" {
		params.PaymentMethod = stripe.String(req.PaymentMethod)
	}
	if req.ReturnURL != "" {
		params.ReturnURL = stripe.String(req.ReturnURL)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.intents.Confirm(req.ExternalID, params)
	if err != nil {
		return interfaces.GatewayPayment{}, g.classify("confirm", err)
	}
	return g.paymentView(pi)
}

func (g *StripeGateway) CapturePayment(ctx context.Context, req interfaces.CaptureRequest) (interfaces.GatewayPayment, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	if req.Amount != nil {
		wire, err := g.vendorAmount(*req.Amount, req.Currency)
		if err != nil {
			return interfaces.GatewayPayment{}, err
		}
		params.AmountToCapture = stripe.Int64(wire)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.intents.Capture(req.ExternalID, params)
	if err != nil {
		return interfaces.GatewayPayment{}, g.classify("capture", err)
	}
	return g.paymentView(pi)
}

func (g *StripeGateway) RefundPayment(ctx context.Context, req interfaces.RefundRequest) (interfaces.GatewayRefund, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(req.ExternalID)}
	if req.Amount != nil {
		if err := g.amounts.validate(*req.Amount, req.Currency); err != nil {
			return interfaces.GatewayRefund{}, err
		}
		wire, err := g.vendorAmount(*req.Amount, req.Currency)
		if err != nil {
			return interfaces.GatewayRefund{}, err
		}
		params.Amount = stripe.Int64(wire)
	}
	reason := "requested_by_customer"
	if stripeRefundReasons[req.Reason] {
		reason = req.Reason
	} else if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}
	params.Reason = stripe.String(reason)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	r, err := g.refunds.New(params)
	if err != nil {
		return interfaces.GatewayRefund{}, g.classify("refund", err)
	}
	return g.refundView(r)
}

func (g *StripeGateway) GetPaymentStatus(ctx context.Context, externalID string) (interfaces.GatewayPayment, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.intents.Get(externalID, params)
	if err != nil {
		return interfaces.GatewayPayment{}, g.classify("get_status", err)
	}
	return g.paymentView(pi)
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, profile interfaces.CustomerProfile) (string, error) {
	params := &stripe.CustomerParams{}
	if profile.Email != "" {
		params.Email = stripe.String(profile.Email)
	}
	if profile.Name != "" {
		params.Name = stripe.String(profile.Name)
	}
	if profile.Description != "" {
		params.Description = stripe.String(profile.Description)
	}
	for k, v := range profile.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	if profile.IdempotencyKey != "" {
		params.SetIdempotencyKey(profile.IdempotencyKey)
	}
	c, err := g.customers.New(params)
	if err != nil {
		return "", g.classify("create_customer", err)
	}
	return c.ID, nil
}

func (g *StripeGateway) CreatePaymentMethod(ctx context.Context, details interfaces.PaymentMethodDetails) (string, error) {
	if details.Token == "" {
		return "", fmt.Errorf("%w: card token is required", interfaces.ErrValidation)
	}
	methodType := details.Type
	if methodType == "" {
		methodType = "card"
	}
	if methodType != "card" {
		return "", fmt.Errorf("%w: payment method type %s", interfaces.ErrNotSupported, methodType)
	}
	params := &stripe.PaymentMethodParams{
		Type: stripe.String(methodType),
		Card: &stripe.PaymentMethodCardParams{Token: stripe.String(details.Token)},
	}
	for k, v := range details.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	if details.IdempotencyKey != "" {
		params.SetIdempotencyKey(details.IdempotencyKey)
	}
	pm, err := g.methods.New(params)
	if err != nil {
		return "", g.classify("create_payment_method", err)
	}
	if details.CustomerID != "" {
		attach := &stripe.PaymentMethodAttachParams{Customer: stripe.String(details.CustomerID)}
		attach.Context = ctx
		if _, err := g.methods.Attach(pm.ID, attach); err != nil {
			return "", g.classify("attach_payment_method", err)
		}
	}
	return pm.ID, nil
}

func (g *StripeGateway) ValidateWebhook(_ context.Context, payload []byte, headers http.Header) (interfaces.WebhookEvent, error) {
	if g.webhookSecret == "" {
		return interfaces.WebhookEvent{}, fmt.Errorf("%w: webhook secret not configured", interfaces.ErrInvalidWebhookSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, headers.Get("Stripe-Signature"), g.webhookSecret, webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return interfaces.WebhookEvent{}, fmt.Errorf("%w: %v", interfaces.ErrInvalidWebhookSignature, err)
	}

	out := interfaces.WebhookEvent{ID: event.ID, VendorType: string(event.Type), Type: interfaces.WebhookUnknown}
	if event.Data == nil {
		return out, nil
	}
	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return interfaces.WebhookEvent{}, fmt.Errorf("%w: malformed payment intent: %v", interfaces.ErrInvalidWebhookSignature, err)
		}
		out.Type = interfaces.WebhookPaymentFailed
		if event.Type == "payment_intent.succeeded" {
			out.Type = interfaces.WebhookPaymentSucceeded
		}
		out.ExternalPaymentID = pi.ID
		out.PaymentRef = pi.Metadata["payment_id"]
		out.Currency = entities.NormalizeCurrency(string(pi.Currency))
		amount := pi.Amount
		if out.Type == interfaces.WebhookPaymentSucceeded && pi.AmountReceived > 0 {
			amount = pi.AmountReceived
		}
		out.Amount, _ = g.ledgerAmount(amount, string(pi.Currency))
	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return interfaces.WebhookEvent{}, fmt.Errorf("%w: malformed charge: %v", interfaces.ErrInvalidWebhookSignature, err)
		}
		if ch.Refunds == nil || len(ch.Refunds.Data) == 0 {
			return out, nil
		}
		r := ch.Refunds.Data[0]
		if ch.PaymentIntent != nil && r.PaymentIntent == nil {
			r.PaymentIntent = ch.PaymentIntent
		}
		g.fillRefundEvent(&out, r)
	case "refund.created", "refund.updated", "charge.refund.updated":
		var r stripe.Refund
		if err := json.Unmarshal(event.Data.Raw, &r); err != nil {
			return interfaces.WebhookEvent{}, fmt.Errorf("%w: malformed refund: %v", interfaces.ErrInvalidWebhookSignature, err)
		}
		g.fillRefundEvent(&out, &r)
	}
	return out, nil
}

func (g *StripeGateway) fillRefundEvent(out *interfaces.WebhookEvent, r *stripe.Refund) {
	if r.Status != stripe.RefundStatusSucceeded {
		return
	}
	out.Type = interfaces.WebhookRefundCompleted
	out.ExternalRefundID = r.ID
	out.RefundRef = r.Metadata["refund_id"]
	out.PaymentRef = r.Metadata["payment_id"]
	if r.PaymentIntent != nil {
		out.ExternalPaymentID = r.PaymentIntent.ID
	}
	out.Currency = entities.NormalizeCurrency(string(r.Currency))
	out.Amount, _ = g.ledgerAmount(r.Amount, string(r.Currency))
}

func (g *StripeGateway) paymentView(pi *stripe.PaymentIntent) (interfaces.GatewayPayment, error) {
	status, err := g.status(pi.Status)
	if err != nil {
		return interfaces.GatewayPayment{}, err
	}
	if status == interfaces.GatewayStatusRequiresPaymentMethod && pi.LastPaymentError != nil {
		// A confirm that bounced back to requires_payment_method was declined.
		status = interfaces.GatewayStatusFailed
	}
	wire := pi.Amount
	if pi.AmountReceived > 0 {
		wire = pi.AmountReceived
	}
	amount, err := g.ledgerAmount(wire, string(pi.Currency))
	if err != nil {
		return interfaces.GatewayPayment{}, err
	}
	return interfaces.GatewayPayment{
		ExternalID:   pi.ID,
		Status:       status,
		VendorStatus: string(pi.Status),
		Amount:       amount,
		Currency:     entities.NormalizeCurrency(string(pi.Currency)),
		Metadata:     copyMetadata(pi.Metadata),
	}, nil
}

func (g *StripeGateway) refundView(r *stripe.Refund) (interfaces.GatewayRefund, error) {
	status, ok := stripeRefundStatuses[r.Status]
	if !ok {
		return interfaces.GatewayRefund{}, gatewayError(GatewayStripe, "refund", interfaces.ErrUnknownStatus, string(r.Status), nil)
	}
	amount, err := g.ledgerAmount(r.Amount, string(r.Currency))
	if err != nil {
		return interfaces.GatewayRefund{}, err
	}
	return interfaces.GatewayRefund{
		ExternalRefundID: r.ID,
		Amount:           amount,
		Currency:         entities.NormalizeCurrency(string(r.Currency)),
		Status:           status,
	}, nil
}

func (g *StripeGateway) status(s stripe.PaymentIntentStatus) (interfaces.GatewayStatus, error) {
	status, ok := stripeStatuses[s]
	if !ok {
		return "", gatewayError(GatewayStripe, "status", interfaces.ErrUnknownStatus, string(s), nil)
	}
	return status, nil
}

func (g *StripeGateway) vendorAmount(amount int64, currency string) (int64, error) {
	s, err := g.amounts.format(amount, currency)
	if err != nil {
		return 0, err
	}
	wire, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", interfaces.ErrInvalidAmount, err)
	}
	return wire, nil
}

func (g *StripeGateway) ledgerAmount(wire int64, currency string) (int64, error) {
	return g.amounts.parse(strconv.FormatInt(wire, 10), currency)
}

// stripeStateCodes are invalid_request_error codes caused by the intent's current
// state rather than by the request itself.
var stripeStateCodes = map[string]bool{
	"payment_intent_unexpected_state": true,
	"payment_intent_action_required":  true,
	"charge_already_captured":         true,
	"charge_already_refunded":         true,
	"charge_expired_for_capture":      true,
}

// classify maps stripe-go errors onto the gateway error taxonomy. Only card
// declines are ErrGatewayRejected, which fails the payment.
func (g *StripeGateway) classify(op string, err error) error {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		g.logger.Warn("stripe call failed", zap.String("operation", op), zap.Error(err))
		return gatewayError(GatewayStripe, op, interfaces.ErrTransientGateway, "", err)
	}
	code := string(serr.Code)
	if serr.DeclineCode != "" {
		code = string(serr.DeclineCode)
	}
	var kind error
	switch {
	case serr.HTTPStatusCode == http.StatusTooManyRequests, serr.HTTPStatusCode >= 500, serr.Type == stripe.ErrorTypeAPI:
		kind = interfaces.ErrTransientGateway
	case serr.Type == stripe.ErrorTypeCard, serr.DeclineCode != "", serr.Code == "payment_intent_authentication_failure":
		kind = interfaces.ErrGatewayRejected
	case stripeStateCodes[string(serr.Code)]:
		kind = interfaces.ErrInvalidStateTransition
	default:
		// Not a decline: the intent is still live at Stripe.
		kind = interfaces.ErrValidation
	}
	g.logger.Warn("stripe call failed",
		zap.String("operation", op),
		zap.String("vendor_code", code),
		zap.Int("http_status", serr.HTTPStatusCode),
		zap.String("request_id", serr.RequestID),
	)
	return gatewayError(GatewayStripe, op, kind, code, serr)
}
