package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"mentor_payments/internal/usecase/interfaces"
	mock_interfaces "mentor_payments/internal/usecase/interfaces/mocks"

	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func namedGateway(ctrl *gomock.Controller, name string, currencies ...string) *mock_interfaces.MockIPaymentGateway {
	g := mock_interfaces.NewMockIPaymentGateway(ctrl)
	g.EXPECT().Name().Return(name).AnyTimes()
	g.EXPECT().SupportedCurrencies().Return(currencies).AnyTimes()
	g.EXPECT().SupportedPaymentMethods().Return([]string{"card"}).AnyTimes()
	return g
}

func TestGatewayRegistry(t *testing.T) {
	ctrl := gomock.NewController(t)
	stripe := namedGateway(ctrl, "stripe", "USD")
	paypal := namedGateway(ctrl, "paypal", "USD", "EUR")
	reg := NewGatewayRegistry("STRIPE", paypal, stripe)

	t.Run("empty name resolves the default", func(t *testing.T) {
		g, err := reg.Resolve("")
		if err != nil || g.Name() != "stripe" {
			t.Fatalf("expected stripe, got %v %v", g, err)
		}
	})

	t.Run("lookup is case insensitive", func(t *testing.T) {
		g, err := reg.Get(" PayPal ")
		if err != nil || g.Name() != "paypal" {
			t.Fatalf("expected paypal, got %v %v", g, err)
		}
	})

	t.Run("unknown gateway", func(t *testing.T) {
		_, err := reg.Get("adyen")
		if !errors.Is(err, interfaces.ErrGatewayNotConfigured) {
			t.Fatalf("expected ErrGatewayNotConfigured, got %v", err)
		}
	})

	t.Run("list is sorted with display names", func(t *testing.T) {
		list := reg.List()
		if len(list) != 2 || list[0].ID != "paypal" || list[1].ID != "stripe" {
			t.Fatalf("unexpected list %+v", list)
		}
		if list[0].Name != "PayPal" || list[0].Default || !list[1].Default || list[1].Name != "Stripe" {
			t.Fatalf("unexpected info %+v", list)
		}
		if len(list[0].SupportedCurrencies) != 2 {
			t.Fatalf("unexpected currencies %v", list[0].SupportedCurrencies)
		}
	})
}

func TestCallGateway(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, CallTimeout: 20 * time.Millisecond}
	logger := zap.NewNop()
	transient := &interfaces.GatewayError{Gateway: "stripe", Op: "x", Kind: interfaces.ErrTransientGateway}

	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		out, err := callGateway(context.Background(), policy, logger, "stripe", "x", func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", transient
			}
			return "ok", nil
		})
		if err != nil || out != "ok" || calls != 3 {
			t.Fatalf("unexpected result %q %v after %d calls", out, err, calls)
		}
	})

	t.Run("validation errors are permanent", func(t *testing.T) {
		calls := 0
		_, err := callGateway(context.Background(), policy, logger, "stripe", "x", func(context.Context) (string, error) {
			calls++
			return "", interfaces.ErrInvalidAmount
		})
		if !errors.Is(err, interfaces.ErrValidation) || calls != 1 {
			t.Fatalf("expected one validation failure, got %v after %d calls", err, calls)
		}
	})

	t.Run("per-call timeout becomes transient", func(t *testing.T) {
		calls := 0
		_, err := callGateway(context.Background(), policy, logger, "stripe", "x", func(ctx context.Context) (string, error) {
			calls++
			<-ctx.Done()
			return "", ctx.Err()
		})
		if !errors.Is(err, interfaces.ErrTransientGateway) || calls != 3 {
			t.Fatalf("expected transient timeout after 3 calls, got %v after %d", err, calls)
		}
	})

	t.Run("canceled parent stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := callGateway(ctx, policy, logger, "stripe", "x", func(context.Context) (string, error) {
			calls++
			cancel()
			return "", transient
		})
		if err == nil || calls != 1 {
			t.Fatalf("expected a single call, got %d (%v)", calls, err)
		}
	})
}
