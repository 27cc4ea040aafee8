package routes

import (
	"mentor_payments/internal/adapter/http/handlers"

	"github.com/gin-gonic/gin"
)

const (
	PathPayments = "/payments"
	PathSessions = "/sessions"
	PathGateways = "/gateways"
	PathWebhooks = "/webhooks"
)

func addPaymentRoutes(rg *gin.RouterGroup, paymentHandler *handlers.PaymentHandler, idempotency gin.HandlerFunc) {
	payments := rg.Group(PathPayments)
	{
		payments.POST("", idempotency, paymentHandler.CreatePayment)
		payments.GET("/:payment_id", paymentHandler.GetPaymentStatus)
		payments.POST("/:payment_id/confirm", paymentHandler.ConfirmPayment)
		payments.POST("/:payment_id/capture", idempotency, paymentHandler.CapturePayment)
		payments.POST("/:payment_id/refunds", idempotency, paymentHandler.ProcessRefund)
		payments.GET("/:payment_id/refunds", paymentHandler.ListRefunds)
	}

	sessions := rg.Group(PathSessions)
	{
		sessions.GET("/:session_id/payments", paymentHandler.ListSessionPayments)
	}

	gateways := rg.Group(PathGateways)
	{
		gateways.GET("", paymentHandler.ListGateways)
		gateways.POST("/:gateway/customers", paymentHandler.CreateCustomer)
		gateways.POST("/:gateway/payment-methods", paymentHandler.CreatePaymentMethod)
	}
}

// Webhooks are authenticated by vendor signatures, not by idempotency keys.
func addWebhookRoutes(rg *gin.RouterGroup, webhookHandler *handlers.WebhookHandler) {
	rg.POST(PathWebhooks+"/:gateway", webhookHandler.HandleWebhook)
}

func addPingRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
}
