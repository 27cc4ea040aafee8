package interfaces

import (
	"context"
	"time"

	"mentor_payments/internal/domain/entities"
)

// ISessionNotifier tells the booking system a session was paid for.
type ISessionNotifier interface {
	SessionConfirmed(ctx context.Context, p entities.Payment) error
}

// IEventPublisher fans ledger changes out to downstream consumers.
type IEventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event entities.PaymentEvent) error
}

// ILocker is a best-effort distributed lock.
type ILocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
