package app

import (
	"context"
	"errors"
	"fmt"

	"mentor_payments/internal/adapter/http/handlers"
	"mentor_payments/internal/adapter/http/middleware"
	"mentor_payments/internal/adapter/http/routes"
	"mentor_payments/internal/adapter/persistence/repository"
	"mentor_payments/internal/config"
	"mentor_payments/internal/infrastructure/cache"
	"mentor_payments/internal/infrastructure/database"
	"mentor_payments/internal/infrastructure/messaging"
	"mentor_payments/internal/infrastructure/payments"
	"mentor_payments/internal/usecase"
	"mentor_payments/internal/usecase/interfaces"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var ErrUnknownLedgerBackend = errors.New("unknown ledger backend")

// App is the wired service. Close releases every connection Build opened.
type App struct {
	Payments *usecase.PaymentUseCase
	Webhooks *usecase.WebhookUseCase
	Registry *usecase.GatewayRegistry
	Router   *gin.Engine

	ready   []func(ctx context.Context) error
	closers []func() error
	logger  *zap.Logger
}

type ledger struct {
	payments interfaces.IPaymentRepository
	refunds  interfaces.IRefundRepository
}

func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger}

	l, err := a.openLedger(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	registry := Registry(cfg, logger)
	if len(registry.Names()) == 0 {
		logger.Warn("no payment gateway configured")
	}

	locker, store := a.openRedis(ctx, cfg)
	collab := usecase.Collaborators{
		Notifier:  a.openNotifier(cfg),
		Publisher: a.openPublisher(cfg),
		Locker:    locker,
		Logger:    logger,
	}

	opts := usecase.Options{
		Retry: usecase.RetryPolicy{
			MaxRetries:      cfg.GatewayMaxRetries,
			InitialInterval: cfg.RetryInitial,
			MaxInterval:     cfg.RetryMax,
			CallTimeout:     cfg.GatewayCallTimeout,
		},
		PendingTTL: cfg.PendingPaymentTTL,
	}

	a.Registry = registry
	a.Payments = usecase.NewPaymentUseCase(registry, l.payments, l.refunds, collab, opts)
	a.Webhooks = usecase.NewWebhookUseCase(registry, l.payments, l.refunds, collab)
	a.Router = routes.NewRouter(cfg.ServiceName, routes.Handlers{
		Payments:    handlers.NewPaymentHandler(a.Payments, logger),
		Webhooks:    handlers.NewWebhookHandler(a.Webhooks, logger),
		Idempotency: middleware.Idempotency(store, cfg.IdempotencyTTL, logger),
		Ready:       a.Ready,
	}, logger)

	logger.Info("service wired",
		zap.String("ledger", cfg.LedgerBackend),
		zap.Strings("gateways", registry.Names()),
		zap.String("default_gateway", registry.DefaultName()),
	)
	return a, nil
}

func Registry(cfg *config.Config, logger *zap.Logger) *usecase.GatewayRegistry {
	return usecase.NewGatewayRegistry(cfg.DefaultGateway, Gateways(cfg, logger)...)
}

// Gateways builds every adapter whose credentials are present.
func Gateways(cfg *config.Config, logger *zap.Logger) []interfaces.IPaymentGateway {
	var out []interfaces.IPaymentGateway

	if cfg.Stripe.SecretKey != "" {
		g, err := payments.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.PublishableKey, logger)
		if err != nil {
			logger.Warn("stripe gateway not configured", zap.Error(err))
		} else {
			out = append(out, g)
		}
	}

	if cfg.PayPal.ClientID != "" && cfg.PayPal.ClientSecret != "" {
		p := cfg.PayPal
		g, err := payments.NewPayPalGateway(p.ClientID, p.ClientSecret, p.BaseURL, p.WebhookID, p.ReturnURL, p.CancelURL, logger)
		if err != nil {
			logger.Warn("paypal gateway not configured", zap.Error(err))
		} else {
			out = append(out, g)
		}
	}

	if cfg.MercadoPago.AccessToken != "" || payments.IsPaymentGatewayMockEnabled() {
		g, err := payments.NewMercadoPagoGateway(cfg.MercadoPago.AccessToken, cfg.MercadoPago.WebhookSecret, logger)
		if err != nil {
			logger.Warn("mercado pago gateway not configured", zap.Error(err))
		} else {
			out = append(out, g)
		}
	}
	return out
}

func (a *App) openLedger(ctx context.Context, cfg *config.Config) (ledger, error) {
	switch cfg.LedgerBackend {
	case config.LedgerMemory:
		m := repository.NewMemoryLedger()
		a.logger.Warn("using in-memory ledger; data is lost on restart")
		return ledger{payments: m.Payments(), refunds: m.Refunds()}, nil

	case config.LedgerPostgres:
		pool, err := database.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return ledger{}, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		a.ready = append(a.ready, pool.Ping)
		if err := repository.MigratePostgres(ctx, pool); err != nil {
			return ledger{}, fmt.Errorf("migrate postgres: %w", err)
		}
		return ledger{
			payments: repository.NewPaymentPostgresRepository(pool),
			refunds:  repository.NewRefundPostgresRepository(pool),
		}, nil

	case config.LedgerDynamoDB:
		ddb, err := database.ConnectDynamoDB(ctx)
		if err != nil {
			return ledger{}, fmt.Errorf("connect dynamodb: %w", err)
		}
		return ledger{
			payments: repository.NewPaymentDynamoRepository(ddb),
			refunds:  repository.NewRefundDynamoRepository(ddb),
		}, nil
	}
	return ledger{}, fmt.Errorf("%w: %q", ErrUnknownLedgerBackend, cfg.LedgerBackend)
}

// openRedis falls back to process-local locking when Redis is absent or down,
// which is only correct for a single replica.
func (a *App) openRedis(ctx context.Context, cfg *config.Config) (interfaces.ILocker, middleware.IdempotencyStore) {
	if cfg.RedisURL != "" {
		client, err := cache.ConnectRedis(ctx, cfg.RedisURL)
		if err == nil {
			a.closers = append(a.closers, client.Close)
			a.ready = append(a.ready, func(ctx context.Context) error { return client.Ping(ctx).Err() })
			return cache.NewRedisLocker(client), cache.NewRedisIdempotencyStore(client)
		}
		a.logger.Warn("redis unavailable, using local locks", zap.Error(err))
	}
	return cache.NewLocalLocker(), cache.NewMemoryIdempotencyStore()
}

func (a *App) openPublisher(cfg *config.Config) interfaces.IEventPublisher {
	if len(cfg.KafkaBrokers) == 0 {
		return messaging.NewLogPublisher(a.logger)
	}
	p := messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, a.logger)
	a.closers = append(a.closers, p.Close)
	return p
}

func (a *App) openNotifier(cfg *config.Config) interfaces.ISessionNotifier {
	if cfg.NATSURL != "" {
		conn, err := messaging.ConnectNATS(cfg.NATSURL, cfg.ServiceName)
		if err == nil {
			a.closers = append(a.closers, func() error { conn.Close(); return nil })
			return messaging.NewNATSSessionNotifier(conn, cfg.SessionSubject, a.logger)
		}
		a.logger.Warn("nats unavailable, logging session confirmations", zap.Error(err))
	}
	return messaging.NewLogSessionNotifier(a.logger)
}

// Ready pings the stateful dependencies.
func (a *App) Ready(ctx context.Context) error {
	for _, ping := range a.ready {
		if err := ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
