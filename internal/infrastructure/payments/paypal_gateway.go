package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/usecase/interfaces"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const GatewayPayPal = "paypal"

var ErrMissingPayPalCredentials = errors.New("missing PAYPAL_CLIENT_ID or PAYPAL_CLIENT_SECRET")

// HUF and TWD are integer-only on PayPal but carry two ISO decimals, so they
// cannot round-trip and are left out.
var paypalCurrencies = []string{
	"AUD", "BRL", "CAD", "CNY", "CZK", "DKK", "EUR", "HKD", "ILS", "JPY", "MYR", "MXN",
	"NOK", "NZD", "PHP", "PLN", "GBP", "SGD", "SEK", "CHF", "THB", "USD",
}

var paypalPaymentMethods = []string{"paypal", "card", "bank_transfer", "venmo", "paylater"}

var paypalOrderStatuses = map[string]interfaces.GatewayStatus{
	"CREATED":               interfaces.GatewayStatusRequiresAction,
	"PAYER_ACTION_REQUIRED": interfaces.GatewayStatusRequiresAction,
	"SAVED":                 interfaces.GatewayStatusRequiresConfirmation,
	"APPROVED":              interfaces.GatewayStatusRequiresConfirmation,
	"VOIDED":                interfaces.GatewayStatusCanceled,
	"COMPLETED":             interfaces.GatewayStatusSucceeded,
}

var paypalCaptureStatuses = map[string]interfaces.GatewayStatus{
	"COMPLETED":          interfaces.GatewayStatusSucceeded,
	"REFUNDED":           interfaces.GatewayStatusSucceeded,
	"PARTIALLY_REFUNDED": interfaces.GatewayStatusSucceeded,
	"PENDING":            interfaces.GatewayStatusProcessing,
	"DECLINED":           interfaces.GatewayStatusFailed,
	"FAILED":             interfaces.GatewayStatusFailed,
}

var paypalRefundStatuses = map[string]interfaces.GatewayRefundStatus{
	"COMPLETED": interfaces.GatewayRefundSucceeded,
	"PENDING":   interfaces.GatewayRefundPending,
	"FAILED":    interfaces.GatewayRefundFailed,
	"CANCELLED": interfaces.GatewayRefundFailed,
}

type paypalMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type paypalCapture struct {
	ID                string       `json:"id"`
	Status            string       `json:"status"`
	Amount            *paypalMoney `json:"amount,omitempty"`
	CustomID          string       `json:"custom_id,omitempty"`
	SupplementaryData *struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data,omitempty"`
}

type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id,omitempty"`
	CustomID    string       `json:"custom_id,omitempty"`
	Description string       `json:"description,omitempty"`
	Amount      *paypalMoney `json:"amount,omitempty"`
	Payments    *struct {
		Captures []paypalCapture `json:"captures"`
	} `json:"payments,omitempty"`
}

type paypalOrder struct {
	ID            string               `json:"id"`
	Status        string               `json:"status"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
	Links         []paypalLink         `json:"links"`
}

type paypalRefund struct {
	ID       string       `json:"id"`
	Status   string       `json:"status"`
	Amount   *paypalMoney `json:"amount,omitempty"`
	CustomID string       `json:"custom_id,omitempty"`
	Links    []paypalLink `json:"links,omitempty"`
}

type paypalErrorBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

type paypalWebhookEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

// PayPalGateway implements IPaymentGateway on the PayPal Orders v2 REST API.
type PayPalGateway struct {
	baseURL   string
	client    *http.Client
	webhookID string
	returnURL string
	cancelURL string
	amounts   amountCodec
	logger    *zap.Logger
}

var _ interfaces.IPaymentGateway = (*PayPalGateway)(nil)

func NewPayPalGateway(clientID, clientSecret, baseURL, webhookID, returnURL, cancelURL string, logger *zap.Logger) (*PayPalGateway, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingPayPalCredentials
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL = strings.TrimRight(baseURL, "/")
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	client := cc.Client(context.Background())
	client.Timeout = 30 * time.Second

	g := &PayPalGateway{
		baseURL:   baseURL,
		client:    client,
		webhookID: webhookID,
		returnURL: returnURL,
		cancelURL: cancelURL,
		amounts:   newAmountCodec(paypalCurrencies, map[string]int32{"JPY": 0}, false),
		logger:    logger.Named("payment.gateway.paypal"),
	}
	g.logger.Info("paypal client initialized", zap.String("base_url", baseURL))
	return g, nil
}

func (g *PayPalGateway) Name() string { return GatewayPayPal }

func (g *PayPalGateway) SupportedCurrencies() []string { return g.amounts.list() }

func (g *PayPalGateway) SupportedPaymentMethods() []string {
	return append([]string(nil), paypalPaymentMethods...)
}

func (g *PayPalGateway) FormatAmount(amount int64, currency string) (string, error) {
	return g.amounts.format(amount, currency)
}

func (g *PayPalGateway) UnformatAmount(amount string, currency string) (int64, error) {
	return g.amounts.parse(amount, currency)
}

func (g *PayPalGateway) CreatePaymentIntent(ctx context.Context, req interfaces.CreateIntentRequest) (interfaces.PaymentIntent, error) {
	if err := g.amounts.validate(req.Amount, req.Currency); err != nil {
		return interfaces.PaymentIntent{}, err
	}
	value, _ := g.amounts.format(req.Amount, req.Currency)
	currency := entities.NormalizeCurrency(req.Currency)

	appCtx := map[string]any{"user_action": "PAY_NOW", "shipping_preference": "NO_SHIPPING"}
	if g.returnURL != "" {
		appCtx["return_url"] = g.returnURL
	}
	if g.cancelURL != "" {
		appCtx["cancel_url"] = g.cancelURL
	}
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []paypalPurchaseUnit{{
			ReferenceID: req.Metadata["session_id"],
			CustomID:    req.Metadata["payment_id"],
			Description: truncate(req.Description, 127),
			Amount:      &paypalMoney{CurrencyCode: currency, Value: value},
		}},
		"application_context": appCtx,
	}

	var order paypalOrder
	if err := g.do(ctx, "create_intent", http.MethodPost, "/v2/checkout/orders", req.IdempotencyKey, body, &order); err != nil {
		return interfaces.PaymentIntent{}, err
	}
	view, err := g.orderView(order)
	if err != nil {
		return interfaces.PaymentIntent{}, err
	}
	g.logger.Info("order created", zap.String("external_id", order.ID), zap.String("status", order.Status))
	return interfaces.PaymentIntent{
		ExternalID:              order.ID,
		ClientContinuationToken: approveLink(order.Links),
		Amount:                  req.Amount,
		Currency:                currency,
		Status:                  view.Status,
	}, nil
}

// ConfirmPayment captures the approved order.
func (g *PayPalGateway) ConfirmPayment(ctx context.Context, req interfaces.ConfirmRequest) (interfaces.GatewayPayment, error) {
	var order paypalOrder
	path := "/v2/checkout/orders/" + url.PathEscape(req.ExternalID) + "/capture"
	err := g.do(ctx, "confirm", http.MethodPost, path, req.IdempotencyKey, map[string]any{}, &order)
	if err != nil && interfaces.VendorCode(err) == "ORDER_ALREADY_CAPTURED" {
		return g.GetPaymentStatus(ctx, req.ExternalID)
	}
	if err != nil {
		return interfaces.GatewayPayment{}, err
	}
	return g.orderView(order)
}

// CapturePayment only supports capturing the full order amount.
func (g *PayPalGateway) CapturePayment(ctx context.Context, req interfaces.CaptureRequest) (interfaces.GatewayPayment, error) {
	if req.Amount != nil {
		current, err := g.GetPaymentStatus(ctx, req.ExternalID)
		if err != nil {
			return interfaces.GatewayPayment{}, err
		}
		if current.Amount != *req.Amount {
			return interfaces.GatewayPayment{}, fmt.Errorf("%w: paypal orders capture the full amount", interfaces.ErrNotSupported)
		}
	}
	return g.ConfirmPayment(ctx, interfaces.ConfirmRequest{ExternalID: req.ExternalID, IdempotencyKey: req.IdempotencyKey})
}

func (g *PayPalGateway) RefundPayment(ctx context.Context, req interfaces.RefundRequest) (interfaces.GatewayRefund, error) {
	var order paypalOrder
	if err := g.do(ctx, "refund", http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(req.ExternalID), "", nil, &order); err != nil {
		return interfaces.GatewayRefund{}, err
	}
	capture := firstCapture(order)
	if capture == nil {
		return interfaces.GatewayRefund{}, gatewayError(GatewayPayPal, "refund", interfaces.ErrInvalidStateTransition, "NOT_CAPTURED", nil)
	}

	body := map[string]any{}
	if req.Amount != nil {
		if err := g.amounts.validate(*req.Amount, req.Currency); err != nil {
			return interfaces.GatewayRefund{}, err
		}
		value, _ := g.amounts.format(*req.Amount, req.Currency)
		body["amount"] = paypalMoney{CurrencyCode: entities.NormalizeCurrency(req.Currency), Value: value}
	}
	if req.Reason != "" {
		body["note_to_payer"] = truncate(req.Reason, 255)
	}
	if id := req.Metadata["refund_id"]; id != "" {
		body["custom_id"] = id
	}

	var refund paypalRefund
	path := "/v2/payments/captures/" + url.PathEscape(capture.ID) + "/refund"
	if err := g.do(ctx, "refund", http.MethodPost, path, req.IdempotencyKey, body, &refund); err != nil {
		return interfaces.GatewayRefund{}, err
	}
	status, ok := paypalRefundStatuses[refund.Status]
	if !ok {
		return interfaces.GatewayRefund{}, gatewayError(GatewayPayPal, "refund", interfaces.ErrUnknownStatus, refund.Status, nil)
	}
	out := interfaces.GatewayRefund{ExternalRefundID: refund.ID, Status: status, Currency: entities.NormalizeCurrency(req.Currency)}
	if req.Amount != nil {
		out.Amount = *req.Amount
	}
	if refund.Amount != nil {
		amount, err := g.amounts.parse(refund.Amount.Value, refund.Amount.CurrencyCode)
		if err != nil {
			return interfaces.GatewayRefund{}, err
		}
		out.Amount = amount
		out.Currency = entities.NormalizeCurrency(refund.Amount.CurrencyCode)
	}
	return out, nil
}

func (g *PayPalGateway) GetPaymentStatus(ctx context.Context, externalID string) (interfaces.GatewayPayment, error) {
	var order paypalOrder
	if err := g.do(ctx, "get_status", http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(externalID), "", nil, &order); err != nil {
		return interfaces.GatewayPayment{}, err
	}
	return g.orderView(order)
}

func (g *PayPalGateway) CreateCustomer(context.Context, interfaces.CustomerProfile) (string, error) {
	return "", fmt.Errorf("%w: paypal customers", interfaces.ErrNotSupported)
}

func (g *PayPalGateway) CreatePaymentMethod(context.Context, interfaces.PaymentMethodDetails) (string, error) {
	return "", fmt.Errorf("%w: paypal payment methods", interfaces.ErrNotSupported)
}

// ValidateWebhook asks PayPal to verify the transmission signature.
func (g *PayPalGateway) ValidateWebhook(ctx context.Context, payload []byte, headers http.Header) (interfaces.WebhookEvent, error) {
	if g.webhookID == "" {
		return interfaces.WebhookEvent{}, fmt.Errorf("%w: webhook id not configured", interfaces.ErrInvalidWebhookSignature)
	}
	if !json.Valid(payload) {
		return interfaces.WebhookEvent{}, fmt.Errorf("%w: payload is not json", interfaces.ErrInvalidWebhookSignature)
	}
	verify := map[string]any{"webhook_id": g.webhookID, "webhook_event": json.RawMessage(payload)}
	for field, header := range map[string]string{
		"auth_algo":         "PAYPAL-AUTH-ALGO",
		"cert_url":          "PAYPAL-CERT-URL",
		"transmission_id":   "PAYPAL-TRANSMISSION-ID",
		"transmission_sig":  "PAYPAL-TRANSMISSION-SIG",
		"transmission_time": "PAYPAL-TRANSMISSION-TIME",
	} {
		v := headers.Get(header)
		if v == "" {
			return interfaces.WebhookEvent{}, fmt.Errorf("%w: missing %s", interfaces.ErrInvalidWebhookSignature, header)
		}
		verify[field] = v
	}

	var res struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := g.do(ctx, "verify_webhook", http.MethodPost, "/v1/notifications/verify-webhook-signature", "", verify, &res); err != nil {
		return interfaces.WebhookEvent{}, fmt.Errorf("%w: %v", interfaces.ErrInvalidWebhookSignature, err)
	}
	if res.VerificationStatus != "SUCCESS" {
		return interfaces.WebhookEvent{}, fmt.Errorf("%w: verification_status=%s", interfaces.ErrInvalidWebhookSignature, res.VerificationStatus)
	}

	var ev paypalWebhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return interfaces.WebhookEvent{}, fmt.Errorf("%w: %v", interfaces.ErrInvalidWebhookSignature, err)
	}
	out := interfaces.WebhookEvent{ID: ev.ID, VendorType: ev.EventType, Type: interfaces.WebhookUnknown}

	switch ev.EventType {
	case "PAYMENT.CAPTURE.COMPLETED", "PAYMENT.CAPTURE.DENIED":
		var c paypalCapture
		if err := json.Unmarshal(ev.Resource, &c); err != nil {
			return out, nil
		}
		out.Type = interfaces.WebhookPaymentSucceeded
		if ev.EventType == "PAYMENT.CAPTURE.DENIED" {
			out.Type = interfaces.WebhookPaymentFailed
		}
		if c.SupplementaryData != nil {
			out.ExternalPaymentID = c.SupplementaryData.RelatedIDs.OrderID
		}
		out.PaymentRef = c.CustomID
		if c.Amount != nil {
			out.Currency = entities.NormalizeCurrency(c.Amount.CurrencyCode)
			out.Amount, _ = g.amounts.parse(c.Amount.Value, c.Amount.CurrencyCode)
		}
	case "PAYMENT.CAPTURE.REFUNDED":
		var r paypalRefund
		if err := json.Unmarshal(ev.Resource, &r); err != nil || r.Status != "COMPLETED" {
			return out, nil
		}
		out.Type = interfaces.WebhookRefundCompleted
		out.ExternalRefundID = r.ID
		out.RefundRef = r.CustomID
		if r.Amount != nil {
			out.Currency = entities.NormalizeCurrency(r.Amount.CurrencyCode)
			out.Amount, _ = g.amounts.parse(r.Amount.Value, r.Amount.CurrencyCode)
		}
	}
	return out, nil
}

func (g *PayPalGateway) orderView(order paypalOrder) (interfaces.GatewayPayment, error) {
	vendorStatus := order.Status
	status, ok := paypalOrderStatuses[order.Status]
	if c := firstCapture(order); c != nil {
		vendorStatus = c.Status
		status, ok = paypalCaptureStatuses[c.Status]
	}
	if !ok {
		return interfaces.GatewayPayment{}, gatewayError(GatewayPayPal, "status", interfaces.ErrUnknownStatus, vendorStatus, nil)
	}

	out := interfaces.GatewayPayment{ExternalID: order.ID, Status: status, VendorStatus: vendorStatus, Metadata: map[string]string{}}
	if len(order.PurchaseUnits) > 0 {
		pu := order.PurchaseUnits[0]
		money := pu.Amount
		if c := firstCapture(order); c != nil && c.Amount != nil {
			money = c.Amount
		}
		if money != nil {
			amount, err := g.amounts.parse(money.Value, money.CurrencyCode)
			if err != nil {
				return interfaces.GatewayPayment{}, err
			}
			out.Amount = amount
			out.Currency = entities.NormalizeCurrency(money.CurrencyCode)
		}
		if pu.CustomID != "" {
			out.Metadata["payment_id"] = pu.CustomID
		}
		if pu.ReferenceID != "" {
			out.Metadata["session_id"] = pu.ReferenceID
		}
	}
	return out, nil
}

func (g *PayPalGateway) do(ctx context.Context, op, method, path, idempotencyKey string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")
	if idempotencyKey != "" {
		req.Header.Set("PayPal-Request-Id", idempotencyKey)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < 500 {
			g.logger.Error("paypal authentication failed", zap.String("operation", op), zap.Int("http_status", rerr.Response.StatusCode))
			return gatewayError(GatewayPayPal, op, interfaces.ErrGatewayNotConfigured, "AUTHENTICATION_FAILURE", err)
		}
		g.logger.Warn("paypal call failed", zap.String("operation", op), zap.Error(err))
		return gatewayError(GatewayPayPal, op, interfaces.ErrTransientGateway, "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gatewayError(GatewayPayPal, op, interfaces.ErrTransientGateway, "", err)
	}
	g.logger.Debug("paypal call", zap.String("operation", op), zap.Int("http_status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= 300 {
		return g.classify(op, resp.StatusCode, raw)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return gatewayError(GatewayPayPal, op, interfaces.ErrTransientGateway, "MALFORMED_RESPONSE", err)
		}
	}
	return nil
}

// paypalDeclineIssues are the issues that mean the payer's funding was refused.
var paypalDeclineIssues = map[string]bool{
	"INSTRUMENT_DECLINED":                     true,
	"PAYER_CANNOT_PAY":                        true,
	"PAYER_ACCOUNT_RESTRICTED":                true,
	"PAYER_ACCOUNT_LOCKED_OR_CLOSED":          true,
	"TRANSACTION_REFUSED":                     true,
	"CARD_EXPIRED":                            true,
	"MAX_NUMBER_OF_PAYMENT_ATTEMPTS_EXCEEDED": true,
}

// paypalStateIssues leave the order live at PayPal, so the payment stays pending.
var paypalStateIssues = map[string]bool{
	"ORDER_NOT_APPROVED":       true,
	"ORDER_ALREADY_CAPTURED":   true,
	"ORDER_ALREADY_AUTHORIZED": true,
	"PAYER_ACTION_REQUIRED":    true,
	"CAPTURE_FULLY_REFUNDED":   true,
}

func (g *PayPalGateway) classify(op string, status int, raw []byte) error {
	var body paypalErrorBody
	_ = json.Unmarshal(raw, &body)
	code := body.Name
	if len(body.Details) > 0 && body.Details[0].Issue != "" {
		code = body.Details[0].Issue
	}
	var kind error
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		kind = interfaces.ErrTransientGateway
	case paypalDeclineIssues[code]:
		kind = interfaces.ErrGatewayRejected
	case paypalStateIssues[code]:
		kind = interfaces.ErrInvalidStateTransition
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = interfaces.ErrGatewayNotConfigured
	default:
		kind = interfaces.ErrValidation
	}
	g.logger.Warn("paypal call rejected",
		zap.String("operation", op),
		zap.Int("http_status", status),
		zap.String("vendor_code", code),
		zap.String("debug_id", body.DebugID),
	)
	return gatewayError(GatewayPayPal, op, kind, code, fmt.Errorf("http %d: %s", status, body.Message))
}

func firstCapture(order paypalOrder) *paypalCapture {
	for i := range order.PurchaseUnits {
		if p := order.PurchaseUnits[i].Payments; p != nil && len(p.Captures) > 0 {
			return &p.Captures[0]
		}
	}
	return nil
}

func approveLink(links []paypalLink) string {
	for _, l := range links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

// truncate keeps at most n characters; PayPal limits count characters, not bytes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
