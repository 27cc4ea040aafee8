package usecase

import (
	"context"
	"errors"
	"time"

	"mentor_payments/internal/infrastructure/telemetry"
	"mentor_payments/internal/usecase/interfaces"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RetryPolicy bounds every gateway call. Only ErrTransientGateway and per-call
// timeouts are retried.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	CallTimeout     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		CallTimeout:     10 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, p.MaxRetries), ctx)
}

var tracer = otel.Tracer("mentor_payments/usecase")

func callGateway[T any](ctx context.Context, policy RetryPolicy, logger *zap.Logger, gateway, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, "gateway."+op, trace.WithAttributes(
		attribute.String("payment.gateway", gateway),
		attribute.String("payment.operation", op),
	))
	defer span.End()

	var (
		out     T
		attempt int
	)
	operation := func() error {
		attempt++
		callCtx := ctx
		cancel := context.CancelFunc(func() {})
		if policy.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, policy.CallTimeout)
		}
		defer cancel()

		start := time.Now()
		res, err := fn(callCtx)
		telemetry.GatewayCalls.WithLabelValues(gateway, op, resultLabel(err)).Observe(time.Since(start).Seconds())
		if err == nil {
			out = res
			return nil
		}
		if isRetryable(ctx, callCtx, err) {
			logger.Warn("gateway call failed, retrying",
				zap.String("gateway", gateway),
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.String("vendor_code", interfaces.VendorCode(err)),
				zap.Error(err),
			)
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(operation, policy.backOff(ctx))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, interfaces.ErrTransientGateway) && ctx.Err() == nil {
			err = &interfaces.GatewayError{Gateway: gateway, Op: op, Kind: interfaces.ErrTransientGateway, Code: "TIMEOUT", Err: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, resultLabel(err))
		return out, err
	}
	span.SetAttributes(attribute.Int("payment.attempts", attempt))
	return out, nil
}

func isRetryable(parent, callCtx context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	if errors.Is(err, interfaces.ErrTransientGateway) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) && callCtx.Err() != nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, interfaces.ErrTransientGateway):
		return "transient"
	case errors.Is(err, interfaces.ErrGatewayRejected):
		return "rejected"
	case errors.Is(err, interfaces.ErrValidation):
		return "invalid"
	case errors.Is(err, interfaces.ErrNotSupported):
		return "not_supported"
	default:
		return "error"
	}
}
