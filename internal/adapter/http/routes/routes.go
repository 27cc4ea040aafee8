package routes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mentor_payments/internal/adapter/http/handlers"
	"mentor_payments/internal/infrastructure/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Handlers is everything the router mounts.
type Handlers struct {
	Payments    *handlers.PaymentHandler
	Webhooks    *handlers.WebhookHandler
	Idempotency gin.HandlerFunc
	// Ready reports whether dependencies are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

func NewRouter(serviceName string, h Handlers, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	setMiddlewares(router, logger)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		if h.Ready != nil {
			if err := h.Ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "service": serviceName, "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	})

	idempotency := h.Idempotency
	if idempotency == nil {
		idempotency = func(c *gin.Context) { c.Next() }
	}

	v1 := router.Group("/v1")
	addPingRoutes(v1)
	addPaymentRoutes(v1, h.Payments, idempotency)
	addWebhookRoutes(v1, h.Webhooks)
	return router
}

// Run serves until ctx is canceled, then drains in-flight requests.
func Run(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}
	logger.Info("http server exited")
	return nil
}

func setMiddlewares(router *gin.Engine, logger *zap.Logger) {
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("recovered from panic", zap.Any("panic", recovered), zap.String("path", c.FullPath()))
		c.AbortWithStatus(http.StatusInternalServerError)
	}))
	router.Use(telemetry.TracingMiddleware())
	router.Use(telemetry.MetricsMiddleware())
	router.Use(requestLogger(logger))
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.Info("request", fields...)
	}
}
