package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "mentor_payments/docs"
	"mentor_payments/internal/adapter/http/routes"
	"mentor_payments/internal/app"
	"mentor_payments/internal/config"
	"mentor_payments/internal/infrastructure/telemetry"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

// @title           Mentor Payments API
// @version         1.0
// @description     Session payments, refunds and vendor webhooks for the mentoring marketplace.

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080

// @BasePath  /v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := run(); err != nil {
		telemetry.Logger.Error("service stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := telemetry.InitTelemetry(cfg.ServiceName); err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.Shutdown(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, telemetry.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return routes.Run(ctx, ":"+cfg.Port, a.Router, telemetry.Logger)
}
