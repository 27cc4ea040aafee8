package handlers

import (
	"errors"
	"net/http"

	"mentor_payments/internal/usecase"
	"mentor_payments/internal/usecase/interfaces"
	"mentor_payments/pkg"

	"github.com/gin-gonic/gin"
)

var errInvalidPaymentPayload = pkg.NewDomainErrorSimple("INVALID_REQUEST", "Invalid request", http.StatusBadRequest)

func mapPaymentError(err error) *pkg.AppError {
	switch {
	case errors.Is(err, usecase.ErrRefundExceedsBalance):
		return pkg.NewDomainError("REFUND_EXCEEDS_BALANCE", "Refund exceeds the refundable balance", err, http.StatusBadRequest)
	case errors.Is(err, interfaces.ErrUnsupportedCurrency):
		return pkg.NewDomainError("UNSUPPORTED_CURRENCY", "Currency not supported by the gateway", err, http.StatusBadRequest)
	case errors.Is(err, interfaces.ErrInvalidAmount):
		return pkg.NewDomainError("INVALID_AMOUNT", "Invalid amount", err, http.StatusBadRequest)
	case errors.Is(err, interfaces.ErrValidation):
		return pkg.NewDomainError("INVALID_REQUEST", "Invalid request", err, http.StatusBadRequest)
	case errors.Is(err, usecase.ErrPaymentNotFound):
		return pkg.NewDomainErrorSimple("PAYMENT_NOT_FOUND", "Payment not found", http.StatusNotFound)
	case errors.Is(err, usecase.ErrRefundNotFound):
		return pkg.NewDomainErrorSimple("REFUND_NOT_FOUND", "Refund not found", http.StatusNotFound)
	case errors.Is(err, interfaces.ErrGatewayRejected):
		return pkg.NewDomainError("PAYMENT_REJECTED", "Payment rejected by the gateway", err, http.StatusPaymentRequired)
	case errors.Is(err, usecase.ErrSessionAlreadyPaid):
		return pkg.NewDomainError("SESSION_ALREADY_PAID", "Session already paid", err, http.StatusConflict)
	case errors.Is(err, usecase.ErrSessionPaymentInFlight):
		return pkg.NewDomainError("SESSION_PAYMENT_IN_PROGRESS", "Session already has a payment in progress", err, http.StatusConflict)
	case errors.Is(err, usecase.ErrRefundInFlight):
		return pkg.NewDomainError("REFUND_IN_PROGRESS", "Refund still in progress", err, http.StatusConflict)
	case errors.Is(err, usecase.ErrConcurrentModification):
		return pkg.NewDomainError("CONCURRENT_MODIFICATION", "Payment modified concurrently, retry", err, http.StatusConflict)
	case errors.Is(err, interfaces.ErrInvalidStateTransition):
		return pkg.NewDomainError("INVALID_PAYMENT_STATE", "Operation not allowed in the current payment state", err, http.StatusConflict)
	case errors.Is(err, interfaces.ErrInvalidWebhookSignature):
		return pkg.NewDomainErrorSimple("INVALID_WEBHOOK_SIGNATURE", "Invalid webhook signature", http.StatusUnauthorized)
	case errors.Is(err, interfaces.ErrNotSupported):
		return pkg.NewDomainError("NOT_SUPPORTED", "Operation not supported by the gateway", err, http.StatusNotImplemented)
	case errors.Is(err, interfaces.ErrGatewayNotConfigured):
		return pkg.NewDomainError("GATEWAY_NOT_CONFIGURED", "Payment gateway not configured", err, http.StatusServiceUnavailable)
	case errors.Is(err, interfaces.ErrTransientGateway):
		return pkg.NewDomainError("GATEWAY_UNAVAILABLE", "Payment gateway unavailable, retry later", err, http.StatusBadGateway)
	default:
		return pkg.NewDomainError("INTERNAL_ERROR", "An internal error occurred", err, http.StatusInternalServerError)
	}
}

func writeError(c *gin.Context, err error) {
	appErr := mapPaymentError(err)
	_ = c.Error(appErr)
	c.JSON(appErr.HTTPStatus, appErr.ToHTTPError())
}
