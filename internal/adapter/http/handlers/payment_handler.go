package handlers

import (
	"net/http"
	"strings"

	request "mentor_payments/internal/adapter/http/dto/request"
	response "mentor_payments/internal/adapter/http/dto/response"
	"mentor_payments/internal/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	HeaderUserID         = "X-User-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// PaymentHandler exposes the session payment operations.
type PaymentHandler struct {
	usecase usecase.IPaymentUseCase
	logger  *zap.Logger
}

func NewPaymentHandler(uc usecase.IPaymentUseCase, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{usecase: uc, logger: logger.Named("payment.http")}
}

// CreatePayment godoc
// @Summary      Create a session payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-User-ID        header  string                          true   "Payer id"
// @Param        Idempotency-Key  header  string                          false  "Replay key"
// @Param        body             body    request.CreatePaymentRequest    true   "Payment"
// @Success      201  {object}  response.CreatedPaymentResponse
// @Failure      400  {object}  pkg.HTTPError
// @Failure      402  {object}  pkg.HTTPError
// @Failure      409  {object}  pkg.HTTPError
// @Router       /payments [post]
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var payload request.CreatePaymentRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Info("invalid create payload", zap.Error(err))
		c.JSON(errInvalidPaymentPayload.HTTPStatus, errInvalidPaymentPayload.ToHTTPError())
		return
	}
	in, err := payload.ToInput(strings.TrimSpace(c.GetHeader(HeaderUserID)))
	if err != nil {
		writeError(c, err)
		return
	}

	created, err := h.usecase.CreateSessionPayment(c.Request.Context(), in)
	if err != nil {
		h.logger.Warn("create payment failed", zap.String("session_id", in.SessionID), zap.Error(err))
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.FromCreatedPayment(created))
}

// ConfirmPayment godoc
// @Summary      Confirm a pending payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        payment_id  path  string                          true   "Payment id"
// @Param        body        body  request.ConfirmPaymentRequest   false  "Confirmation data"
// @Success      200  {object}  response.PaymentResponse
// @Failure      402  {object}  pkg.HTTPError
// @Failure      404  {object}  pkg.HTTPError
// @Router       /payments/{payment_id}/confirm [post]
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	var payload request.ConfirmPaymentRequest
	if !bindOptionalJSON(c, &payload) {
		return
	}
	p, err := h.usecase.ConfirmPayment(c.Request.Context(), c.Param("payment_id"), payload.ToConfirmation())
	if err != nil {
		h.logger.Warn("confirm payment failed", zap.String("payment_id", c.Param("payment_id")), zap.Error(err))
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.FromPayment(p))
}

// CapturePayment godoc
// @Summary      Capture an authorized payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        payment_id  path  string                          true   "Payment id"
// @Param        body        body  request.CapturePaymentRequest   false  "Capture amount"
// @Success      200  {object}  response.PaymentResponse
// @Router       /payments/{payment_id}/capture [post]
func (h *PaymentHandler) CapturePayment(c *gin.Context) {
	var payload request.CapturePaymentRequest
	if !bindOptionalJSON(c, &payload) {
		return
	}
	ctx := c.Request.Context()
	p, err := h.usecase.GetPayment(ctx, c.Param("payment_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	amount, err := payload.MinorAmount(p.Currency)
	if err != nil {
		writeError(c, err)
		return
	}
	captured, err := h.usecase.CapturePayment(ctx, p.ID, amount)
	if err != nil {
		h.logger.Warn("capture payment failed", zap.String("payment_id", p.ID), zap.Error(err))
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.FromPayment(captured))
}

// GetPaymentStatus godoc
// @Summary      Payment status with the live gateway view
// @Tags         payments
// @Produce      json
// @Param        payment_id  path  string  true  "Payment id"
// @Success      200  {object}  response.PaymentStatusResponse
// @Failure      404  {object}  pkg.HTTPError
// @Router       /payments/{payment_id} [get]
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	view, err := h.usecase.GetPaymentStatus(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.FromPaymentStatus(view))
}

// ProcessRefund godoc
// @Summary      Refund a payment
// @Tags         refunds
// @Accept       json
// @Produce      json
// @Param        payment_id       path    string                 true   "Payment id"
// @Param        Idempotency-Key  header  string                 false  "Replay key"
// @Param        body             body    request.RefundRequest  false  "Refund"
// @Success      201  {object}  response.RefundResponse
// @Failure      400  {object}  pkg.HTTPError
// @Failure      409  {object}  pkg.HTTPError
// @Router       /payments/{payment_id}/refunds [post]
func (h *PaymentHandler) ProcessRefund(c *gin.Context) {
	var payload request.RefundRequest
	if !bindOptionalJSON(c, &payload) {
		return
	}
	ctx := c.Request.Context()
	p, err := h.usecase.GetPayment(ctx, c.Param("payment_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	amount, err := payload.MinorAmount(p.Currency)
	if err != nil {
		writeError(c, err)
		return
	}
	rf, err := h.usecase.ProcessRefund(ctx, p.ID, amount, payload.Reason)
	if err != nil {
		h.logger.Warn("refund failed", zap.String("payment_id", p.ID), zap.Error(err))
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.FromRefund(rf))
}

// ListRefunds godoc
// @Summary      Refunds of a payment
// @Tags         refunds
// @Produce      json
// @Param        payment_id  path  string  true  "Payment id"
// @Success      200  {array}  response.RefundResponse
// @Router       /payments/{payment_id}/refunds [get]
func (h *PaymentHandler) ListRefunds(c *gin.Context) {
	refunds, err := h.usecase.ListRefunds(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.FromRefunds(refunds))
}

// ListSessionPayments godoc
// @Summary      Payments of a session
// @Tags         payments
// @Produce      json
// @Param        session_id  path  string  true  "Session id"
// @Success      200  {array}  response.PaymentResponse
// @Router       /sessions/{session_id}/payments [get]
func (h *PaymentHandler) ListSessionPayments(c *gin.Context) {
	payments, err := h.usecase.ListSessionPayments(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.FromPayments(payments))
}

// ListGateways godoc
// @Summary      Configured payment gateways
// @Tags         gateways
// @Produce      json
// @Success      200  {object}  response.GatewaysResponse
// @Router       /gateways [get]
func (h *PaymentHandler) ListGateways(c *gin.Context) {
	c.JSON(http.StatusOK, response.GatewaysResponse{Gateways: h.usecase.ListGateways()})
}

// CreateCustomer godoc
// @Summary      Create a vendor customer
// @Tags         gateways
// @Accept       json
// @Produce      json
// @Param        gateway  path  string                          true  "Gateway"
// @Param        body     body  request.CreateCustomerRequest   true  "Customer"
// @Success      201  {object}  response.CustomerResponse
// @Failure      501  {object}  pkg.HTTPError
// @Router       /gateways/{gateway}/customers [post]
func (h *PaymentHandler) CreateCustomer(c *gin.Context) {
	var payload request.CreateCustomerRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(errInvalidPaymentPayload.HTTPStatus, errInvalidPaymentPayload.ToHTTPError())
		return
	}
	gateway := c.Param("gateway")
	id, err := h.usecase.CreateCustomer(c.Request.Context(), gateway, payload.ToProfile(c.GetHeader(HeaderIdempotencyKey)))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.CustomerResponse{Gateway: gateway, CustomerID: id})
}

// CreatePaymentMethod godoc
// @Summary      Store a payment method at the vendor
// @Tags         gateways
// @Accept       json
// @Produce      json
// @Param        gateway  path  string                               true  "Gateway"
// @Param        body     body  request.CreatePaymentMethodRequest   true  "Payment method"
// @Success      201  {object}  response.PaymentMethodResponse
// @Failure      501  {object}  pkg.HTTPError
// @Router       /gateways/{gateway}/payment-methods [post]
func (h *PaymentHandler) CreatePaymentMethod(c *gin.Context) {
	var payload request.CreatePaymentMethodRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(errInvalidPaymentPayload.HTTPStatus, errInvalidPaymentPayload.ToHTTPError())
		return
	}
	gateway := c.Param("gateway")
	id, err := h.usecase.CreatePaymentMethod(c.Request.Context(), gateway, payload.ToDetails(c.GetHeader(HeaderIdempotencyKey)))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.PaymentMethodResponse{Gateway: gateway, PaymentMethodID: id})
}

// bindOptionalJSON accepts an empty body as the zero payload.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(errInvalidPaymentPayload.HTTPStatus, errInvalidPaymentPayload.ToHTTPError())
		return false
	}
	return true
}
