package handlers

import (
	"io"
	"net/http"

	"mentor_payments/internal/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBody bounds what a vendor may post to the webhook receiver.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	usecase usecase.IWebhookUseCase
	logger  *zap.Logger
}

func NewWebhookHandler(uc usecase.IWebhookUseCase, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{usecase: uc, logger: logger.Named("payment.http.webhook")}
}

// HandleWebhook godoc
// @Summary      Receive a gateway webhook
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        gateway  path  string  true  "Gateway"
// @Success      200  {object}  usecase.WebhookResult
// @Failure      401  {object}  pkg.HTTPError
// @Failure      409  {object}  pkg.HTTPError
// @Router       /webhooks/{gateway} [post]
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	// Signatures cover the exact bytes, so the body is read raw and never re-encoded.
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil || len(payload) > maxWebhookBody {
		h.logger.Warn("webhook body unreadable", zap.Int("bytes", len(payload)), zap.Error(err))
		c.JSON(errInvalidPaymentPayload.HTTPStatus, errInvalidPaymentPayload.ToHTTPError())
		return
	}

	res, err := h.usecase.HandleWebhook(c.Request.Context(), c.Param("gateway"), payload, c.Request.Header)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
