package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/usecase/interfaces"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/refund"
	"go.uber.org/zap"
)

const GatewayMercadoPago = "mercadopago"

var ErrMissingMercadoPagoAccessToken = errors.New("missing MERCADOPAGO_ACCESS_TOKEN")

var mercadoPagoCurrencies = []string{"ARS", "BRL", "CLP", "COP", "MXN", "PEN", "UYU"}

var mercadoPagoPaymentMethods = []string{"card", "pix", "boleto", "account_money"}

var mercadoPagoStatuses = map[string]interfaces.GatewayStatus{
	"pending":      interfaces.GatewayStatusRequiresAction,
	"in_process":   interfaces.GatewayStatusProcessing,
	"authorized":   interfaces.GatewayStatusRequiresCapture,
	"approved":     interfaces.GatewayStatusSucceeded,
	"in_mediation": interfaces.GatewayStatusSucceeded,
	"refunded":     interfaces.GatewayStatusSucceeded,
	"charged_back": interfaces.GatewayStatusSucceeded,
	"rejected":     interfaces.GatewayStatusFailed,
	"cancelled":    interfaces.GatewayStatusCanceled,
}

var mercadoPagoRefundStatuses = map[string]interfaces.GatewayRefundStatus{
	"approved":   interfaces.GatewayRefundSucceeded,
	"in_process": interfaces.GatewayRefundPending,
	"rejected":   interfaces.GatewayRefundFailed,
	"cancelled":  interfaces.GatewayRefundFailed,
}

type mercadoPagoPayments interface {
	Create(ctx context.Context, request payment.Request) (*payment.Response, error)
	Get(ctx context.Context, id int) (*payment.Response, error)
	Capture(ctx context.Context, id int) (*payment.Response, error)
	CaptureAmount(ctx context.Context, id int, amount float64) (*payment.Response, error)
}

type mercadoPagoRefunds interface {
	Create(ctx context.Context, paymentID int) (*refund.Response, error)
	CreatePartialRefund(ctx context.Context, paymentID int, amount float64) (*refund.Response, error)
}

// mpPayment is the subset of the payment resource the adapter reads.
type mpPayment struct {
	ID                 int64          `json:"id"`
	Status             string         `json:"status"`
	StatusDetail       string         `json:"status_detail"`
	TransactionAmount  float64        `json:"transaction_amount"`
	CurrencyID         string         `json:"currency_id"`
	ExternalReference  string         `json:"external_reference"`
	Metadata           map[string]any `json:"metadata"`
	PointOfInteraction struct {
		TransactionData struct {
			TicketURL string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

type mpRefund struct {
	ID     int64   `json:"id"`
	Amount float64 `json:"amount"`
	Status string  `json:"status"`
}

// MercadoPagoGateway authorizes card payments on creation and captures them on confirm.
type MercadoPagoGateway struct {
	payments      mercadoPagoPayments
	refunds       mercadoPagoRefunds
	webhookSecret string
	amounts       amountCodec
	mockMode      bool
	logger        *zap.Logger
}

var _ interfaces.IPaymentGateway = (*MercadoPagoGateway)(nil)

func NewMercadoPagoGateway(accessToken, webhookSecret string, logger *zap.Logger) (*MercadoPagoGateway, error) {
	g := newMercadoPagoGateway(nil, nil, webhookSecret, logger)
	if IsPaymentGatewayMockEnabled() {
		g.logger.Info("mock mode enabled")
		g.mockMode = true
		return g, nil
	}

	if accessToken == "" {
		return nil, ErrMissingMercadoPagoAccessToken
	}

	cfg, err := config.New(accessToken)
	if err != nil {
		g.logger.Error("failed creating sdk config", zap.Error(err))
		return nil, err
	}
	g.payments = payment.NewClient(cfg)
	g.refunds = refund.NewClient(cfg)
	g.logger.Info("mercado pago client initialized")
	return g, nil
}

func newMercadoPagoGateway(payments mercadoPagoPayments, refunds mercadoPagoRefunds, webhookSecret string, logger *zap.Logger) *MercadoPagoGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MercadoPagoGateway{
		payments:      payments,
		refunds:       refunds,
		webhookSecret: webhookSecret,
		amounts:       newAmountCodec(mercadoPagoCurrencies, nil, false),
		logger:        logger.Named("payment.gateway.mercadopago"),
	}
}

func (g *MercadoPagoGateway) Name() string { return GatewayMercadoPago }

func (g *MercadoPagoGateway) SupportedCurrencies() []string { return g.amounts.list() }

func (g *MercadoPagoGateway) SupportedPaymentMethods() []string {
	return append([]string(nil), mercadoPagoPaymentMethods...)
}

func (g *MercadoPagoGateway) FormatAmount(amount int64, currency string) (string, error) {
	return g.amounts.format(amount, currency)
}

func (g *MercadoPagoGateway) UnformatAmount(amount string, currency string) (int64, error) {
	return g.amounts.parse(amount, currency)
}

// CreatePaymentIntent places an authorization hold (capture=false). Card tokens
// are single use, so a retried create cannot charge twice.
func (g *MercadoPagoGateway) CreatePaymentIntent(ctx context.Context, req interfaces.CreateIntentRequest) (interfaces.PaymentIntent, error) {
	if err := g.amounts.validate(req.Amount, req.Currency); err != nil {
		return interfaces.PaymentIntent{}, err
	}
	currency := entities.NormalizeCurrency(req.Currency)

	if g.mockMode {
		id := strconv.FormatInt(time.Now().UTC().UnixNano(), 10)
		g.logger.Info("mock create success", zap.String("external_id", id))
		return interfaces.PaymentIntent{ExternalID: id, Amount: req.Amount, Currency: currency, Status: interfaces.GatewayStatusRequiresCapture}, nil
	}
	if g.payments == nil {
		return interfaces.PaymentIntent{}, fmt.Errorf("%w: mercadopago", interfaces.ErrGatewayNotConfigured)
	}

	methodID := req.PaymentMethod
	if methodID == "" || methodID == "card" {
		methodID = "visa"
	}
	reqMap := map[string]any{
		"transaction_amount": majorFloat(req.Amount, currency),
		"description":        req.Description,
		"payment_method_id":  methodID,
		"installments":       1,
		"capture":            req.PaymentToken == "",
		"external_reference": req.Metadata["payment_id"],
		"metadata":           req.Metadata,
	}
	if req.PaymentToken != "" {
		reqMap["token"] = req.PaymentToken
	}
	payer := map[string]any{"type": "customer"}
	if req.PayerEmail != "" {
		payer["email"] = req.PayerEmail
	} else if email := strings.TrimSpace(os.Getenv("MERCADOPAGO_TEST_PAYER_EMAIL")); email != "" {
		payer["email"] = email
	}
	reqMap["payer"] = payer

	b, err := json.Marshal(reqMap)
	if err != nil {
		return interfaces.PaymentIntent{}, err
	}
	var request payment.Request
	if err := json.Unmarshal(b, &request); err != nil {
		g.logger.Error("payload unmarshal failed", zap.Error(err))
		return interfaces.PaymentIntent{}, fmt.Errorf("%w: %v", interfaces.ErrValidation, err)
	}

	resp, err := g.payments.Create(ctx, request)
	if err != nil {
		return interfaces.PaymentIntent{}, g.classify("create_intent", err)
	}
	p, err := decodeMPPayment(resp)
	if err != nil {
		return interfaces.PaymentIntent{}, err
	}
	status, err := g.status(p.Status)
	if err != nil {
		return interfaces.PaymentIntent{}, err
	}
	g.logger.Info("create success", zap.Int64("external_id", p.ID), zap.String("status", p.Status))
	return interfaces.PaymentIntent{
		ExternalID:              strconv.FormatInt(p.ID, 10),
		ClientContinuationToken: p.PointOfInteraction.TransactionData.TicketURL,
		Amount:                  req.Amount,
		Currency:                currency,
		Status:                  status,
	}, nil
}

// ConfirmPayment captures the authorized amount.
func (g *MercadoPagoGateway) ConfirmPayment(ctx context.Context, req interfaces.ConfirmRequest) (interfaces.GatewayPayment, error) {
	return g.CapturePayment(ctx, interfaces.CaptureRequest{ExternalID: req.ExternalID, IdempotencyKey: req.IdempotencyKey})
}

func (g *MercadoPagoGateway) CapturePayment(ctx context.Context, req interfaces.CaptureRequest) (interfaces.GatewayPayment, error) {
	if g.mockMode {
		return g.mockPayment(req.ExternalID, "approved"), nil
	}
	id, err := mpID(req.ExternalID)
	if err != nil {
		return interfaces.GatewayPayment{}, err
	}
	if g.payments == nil {
		return interfaces.GatewayPayment{}, fmt.Errorf("%w: mercadopago", interfaces.ErrGatewayNotConfigured)
	}

	var resp *payment.Response
	if req.Amount != nil {
		resp, err = g.payments.CaptureAmount(ctx, id, majorFloat(*req.Amount, req.Currency))
	} else {
		resp, err = g.payments.Capture(ctx, id)
	}
	if err != nil {
		return interfaces.GatewayPayment{}, g.classify("capture", err)
	}
	return g.paymentView(resp)
}

func (g *MercadoPagoGateway) RefundPayment(ctx context.Context, req interfaces.RefundRequest) (interfaces.GatewayRefund, error) {
	currency := entities.NormalizeCurrency(req.Currency)
	if req.Amount != nil {
		if err := g.amounts.validate(*req.Amount, currency); err != nil {
			return interfaces.GatewayRefund{}, err
		}
	}
	if g.mockMode {
		out := interfaces.GatewayRefund{ExternalRefundID: strconv.FormatInt(time.Now().UTC().UnixNano(), 10), Currency: currency, Status: interfaces.GatewayRefundSucceeded}
		if req.Amount != nil {
			out.Amount = *req.Amount
		}
		return out, nil
	}
	id, err := mpID(req.ExternalID)
	if err != nil {
		return interfaces.GatewayRefund{}, err
	}
	if g.refunds == nil {
		return interfaces.GatewayRefund{}, fmt.Errorf("%w: mercadopago", interfaces.ErrGatewayNotConfigured)
	}

	var resp *refund.Response
	if req.Amount != nil {
		resp, err = g.refunds.CreatePartialRefund(ctx, id, majorFloat(*req.Amount, currency))
	} else {
		resp, err = g.refunds.Create(ctx, id)
	}
	if err != nil {
		return interfaces.GatewayRefund{}, g.classify("refund", err)
	}

	var r mpRefund
	if err := remarshal(resp, &r); err != nil {
		return interfaces.GatewayRefund{}, gatewayError(GatewayMercadoPago, "refund", interfaces.ErrTransientGateway, "MALFORMED_RESPONSE", err)
	}
	status, ok := mercadoPagoRefundStatuses[r.Status]
	if !ok {
		return interfaces.GatewayRefund{}, gatewayError(GatewayMercadoPago, "refund", interfaces.ErrUnknownStatus, r.Status, nil)
	}
	amount, err := g.amounts.parseFloat(r.Amount, currency)
	if err != nil {
		return interfaces.GatewayRefund{}, err
	}
	return interfaces.GatewayRefund{ExternalRefundID: strconv.FormatInt(r.ID, 10), Amount: amount, Currency: currency, Status: status}, nil
}

func (g *MercadoPagoGateway) GetPaymentStatus(ctx context.Context, externalID string) (interfaces.GatewayPayment, error) {
	if g.mockMode {
		return g.mockPayment(externalID, "approved"), nil
	}
	id, err := mpID(externalID)
	if err != nil {
		return interfaces.GatewayPayment{}, err
	}
	if g.payments == nil {
		return interfaces.GatewayPayment{}, fmt.Errorf("%w: mercadopago", interfaces.ErrGatewayNotConfigured)
	}
	resp, err := g.payments.Get(ctx, id)
	if err != nil {
		return interfaces.GatewayPayment{}, g.classify("get_status", err)
	}
	return g.paymentView(resp)
}

func (g *MercadoPagoGateway) CreateCustomer(context.Context, interfaces.CustomerProfile) (string, error) {
	return "", fmt.Errorf("%w: mercadopago customers", interfaces.ErrNotSupported)
}

func (g *MercadoPagoGateway) CreatePaymentMethod(context.Context, interfaces.PaymentMethodDetails) (string, error) {
	return "", fmt.Errorf("%w: mercadopago payment methods", interfaces.ErrNotSupported)
}

// ValidateWebhook checks the x-signature HMAC. Notifications only carry the
// resource id, never its state, so verified events are reported as unknown.
func (g *MercadoPagoGateway) ValidateWebhook(_ context.Context, payload []byte, headers http.Header) (interfaces.WebhookEvent, error) {
	if g.webhookSecret == "" {
		return interfaces.WebhookEvent{}, fmt.Errorf("%w: webhook secret not configured", interfaces.ErrInvalidWebhookSignature)
	}
	var body struct {
		ID     json.Number `json:"id"`
		Type   string      `json:"type"`
		Action string      `json:"action"`
		Data   struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	}
	dec := json.NewDecoder(strings.NewReader(string(payload)))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return interfaces.WebhookEvent{}, fmt.Errorf("%w: %v", interfaces.ErrInvalidWebhookSignature, err)
	}

	ts, v1 := parseMPSignature(headers.Get("x-signature"))
	if ts == "" || v1 == "" {
		return interfaces.WebhookEvent{}, fmt.Errorf("%w: malformed x-signature", interfaces.ErrInvalidWebhookSignature)
	}
	manifest := mpManifest(strings.ToLower(body.Data.ID.String()), headers.Get("x-request-id"), ts)
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(v1))) {
		return interfaces.WebhookEvent{}, fmt.Errorf("%w: signature mismatch", interfaces.ErrInvalidWebhookSignature)
	}

	vendorType := body.Type
	if body.Action != "" {
		vendorType = body.Action
	}
	return interfaces.WebhookEvent{
		ID:                body.ID.String(),
		Type:              interfaces.WebhookUnknown,
		VendorType:        vendorType,
		ExternalPaymentID: body.Data.ID.String(),
	}, nil
}

func (g *MercadoPagoGateway) paymentView(resp *payment.Response) (interfaces.GatewayPayment, error) {
	p, err := decodeMPPayment(resp)
	if err != nil {
		return interfaces.GatewayPayment{}, err
	}
	status, err := g.status(p.Status)
	if err != nil {
		return interfaces.GatewayPayment{}, err
	}
	currency := entities.NormalizeCurrency(p.CurrencyID)
	out := interfaces.GatewayPayment{
		ExternalID:   strconv.FormatInt(p.ID, 10),
		Status:       status,
		VendorStatus: p.Status,
		Currency:     currency,
		Metadata:     map[string]string{},
	}
	if currency != "" {
		if out.Amount, err = g.amounts.parseFloat(p.TransactionAmount, currency); err != nil {
			return interfaces.GatewayPayment{}, err
		}
	}
	if p.ExternalReference != "" {
		out.Metadata["payment_id"] = p.ExternalReference
	}
	for k, v := range p.Metadata {
		if s, ok := v.(string); ok {
			out.Metadata[k] = s
		}
	}
	return out, nil
}

func (g *MercadoPagoGateway) mockPayment(externalID, status string) interfaces.GatewayPayment {
	return interfaces.GatewayPayment{ExternalID: externalID, Status: mercadoPagoStatuses[status], VendorStatus: status, Metadata: map[string]string{}}
}

func (g *MercadoPagoGateway) status(s string) (interfaces.GatewayStatus, error) {
	status, ok := mercadoPagoStatuses[s]
	if !ok {
		return "", gatewayError(GatewayMercadoPago, "status", interfaces.ErrUnknownStatus, s, nil)
	}
	return status, nil
}

var mpHTTPStatus = regexp.MustCompile(`"status"\s*:\s*(\d{3})`)

// classify maps sdk errors onto the taxonomy. The sdk surfaces the API body in
// the error text, so status and cause codes are read from there.
func (g *MercadoPagoGateway) classify(op string, err error) error {
	msg := strings.ToLower(err.Error())
	code := ""
	switch {
	case strings.Contains(msg, "customer not found") || strings.Contains(msg, `"code":2002`):
		code = "2002"
	case strings.Contains(msg, "invalid users involved") || strings.Contains(msg, `"code":2034`):
		code = "2034"
	case strings.Contains(msg, `"error":"unauthorized"`):
		code = "unauthorized"
	case strings.Contains(msg, `"error":"bad_request"`):
		code = "bad_request"
	}

	clientError := code != ""
	if m := mpHTTPStatus.FindStringSubmatch(msg); m != nil {
		status, _ := strconv.Atoi(m[1])
		clientError = status >= 400 && status < 500 && status != http.StatusTooManyRequests
	}

	// Card declines arrive as a rejected payment, not as an error. Only payer
	// problems are rejections here; other client errors leave the payment live.
	kind := interfaces.ErrTransientGateway
	switch {
	case !clientError:
	case code == "2002" || code == "2034":
		kind = interfaces.ErrGatewayRejected
	case code == "unauthorized":
		kind = interfaces.ErrGatewayNotConfigured
	default:
		kind = interfaces.ErrValidation
	}
	g.logger.Warn("sdk call failed", zap.String("operation", op), zap.String("vendor_code", code), zap.Error(err))
	return gatewayError(GatewayMercadoPago, op, kind, code, err)
}

func decodeMPPayment(resp *payment.Response) (mpPayment, error) {
	var p mpPayment
	if resp == nil {
		return p, gatewayError(GatewayMercadoPago, "decode", interfaces.ErrTransientGateway, "EMPTY_RESPONSE", nil)
	}
	if err := remarshal(resp, &p); err != nil {
		return p, gatewayError(GatewayMercadoPago, "decode", interfaces.ErrTransientGateway, "MALFORMED_RESPONSE", err)
	}
	if p.ID == 0 {
		p.ID = int64(resp.ID)
	}
	if p.Status == "" {
		p.Status = resp.Status
	}
	return p, nil
}

func remarshal(in any, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func mpID(externalID string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(externalID))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid mercado pago payment id %q", interfaces.ErrValidation, externalID)
	}
	return id, nil
}

func majorFloat(amount int64, currency string) float64 {
	f, _ := entities.FromMinorUnits(amount, currency).Float64()
	return f
}

func parseMPSignature(header string) (ts, v1 string) {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "v1":
			v1 = v
		}
	}
	return ts, v1
}

func mpManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:" + dataID + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")
	return b.String()
}

// IsPaymentGatewayMockEnabled reports whether PAYMENT_GATEWAY_MOCK or MERCADOPAGO_MOCK is set.
func IsPaymentGatewayMockEnabled() bool {
	for _, key := range []string{"PAYMENT_GATEWAY_MOCK", "MERCADOPAGO_MOCK"} {
		v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
		switch v {
		case "1", "true", "yes", "on", "mock":
			return true
		}
	}
	return false
}
