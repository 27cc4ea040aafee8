package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mentor_payments/internal/domain/entities"
	"mentor_payments/internal/usecase/interfaces"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultSessionDescription = "Coaching session with mentor"
	sessionLockPrefix         = "session_payment_lock:"
)

// IPaymentUseCase drives session payments through the configured gateways.
//
// Amounts are ledger minor units of the payment currency.
type IPaymentUseCase interface {
	CreateSessionPayment(ctx context.Context, in CreatePaymentInput) (CreatedPayment, error)
	ConfirmPayment(ctx context.Context, paymentID string, data ConfirmationData) (entities.Payment, error)
	CapturePayment(ctx context.Context, paymentID string, amount *int64) (entities.Payment, error)
	ProcessRefund(ctx context.Context, paymentID string, amount *int64, reason string) (entities.Refund, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (PaymentStatusView, error)
	GetPayment(ctx context.Context, paymentID string) (entities.Payment, error)
	ListSessionPayments(ctx context.Context, sessionID string) ([]entities.Payment, error)
	ListRefunds(ctx context.Context, paymentID string) ([]entities.Refund, error)
	ListGateways() []GatewayInfo
	CreateCustomer(ctx context.Context, gateway string, profile interfaces.CustomerProfile) (string, error)
	CreatePaymentMethod(ctx context.Context, gateway string, details interfaces.PaymentMethodDetails) (string, error)
}

type CreatePaymentInput struct {
	SessionID     string
	PayerID       string
	PayeeID       string
	PayerEmail    string
	Amount        int64
	Currency      string
	Description   string
	Metadata      map[string]string
	Gateway       string
	PaymentMethod string
	PaymentToken  string
	CaptureMethod interfaces.CaptureMethod
	CustomerID    string
}

type CreatedPayment struct {
	Payment                 entities.Payment
	ClientContinuationToken string
}

type ConfirmationData struct {
	PaymentMethod string
	ReturnURL     string
	Data          map[string]string
}

// PaymentStatusView is the ledger record plus what the gateway reported, when it
// could be reached.
type PaymentStatusView struct {
	Payment       entities.Payment
	GatewayStatus string
	Live          bool
}

type Options struct {
	Retry RetryPolicy
	// PendingTTL is how long a pending payment blocks new payments for the session.
	PendingTTL time.Duration
	LockTTL    time.Duration
}

func DefaultOptions() Options {
	return Options{
		Retry:      DefaultRetryPolicy(),
		PendingTTL: 30 * time.Minute,
		LockTTL:    30 * time.Second,
	}
}

type PaymentUseCase struct {
	ledgerBook
	registry *GatewayRegistry
	locker   interfaces.ILocker
	opts     Options
}

var _ IPaymentUseCase = (*PaymentUseCase)(nil)

func NewPaymentUseCase(registry *GatewayRegistry, payments interfaces.IPaymentRepository, refunds interfaces.IRefundRepository, c Collaborators, opts Options) *PaymentUseCase {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultOptions()
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = defaults.Retry
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = defaults.PendingTTL
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaults.LockTTL
	}
	locker := c.Locker
	if locker == nil {
		locker = noopLocker{}
	}
	return &PaymentUseCase{
		ledgerBook: newLedgerBook(payments, refunds, c, logger.Named("payment.usecase")),
		registry:   registry,
		locker:     locker,
		opts:       opts,
	}
}

func (u *PaymentUseCase) CreateSessionPayment(ctx context.Context, in CreatePaymentInput) (CreatedPayment, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.PayerID = strings.TrimSpace(in.PayerID)
	in.PayeeID = strings.TrimSpace(in.PayeeID)
	in.Currency = entities.NormalizeCurrency(in.Currency)
	switch {
	case in.SessionID == "":
		return CreatedPayment{}, ErrInvalidSessionID
	case in.PayerID == "":
		return CreatedPayment{}, ErrInvalidPayerID
	case in.PayeeID == "":
		return CreatedPayment{}, ErrInvalidPayeeID
	case in.Amount <= 0:
		return CreatedPayment{}, fmt.Errorf("%w: amount must be positive", interfaces.ErrInvalidAmount)
	case in.Currency == "":
		return CreatedPayment{}, fmt.Errorf("%w: currency is required", interfaces.ErrValidation)
	}

	gateway, err := u.registry.Resolve(in.Gateway)
	if err != nil {
		return CreatedPayment{}, err
	}
	if !supportsCurrency(gateway, in.Currency) {
		return CreatedPayment{}, fmt.Errorf("%w: %s does not accept %s", interfaces.ErrUnsupportedCurrency, gateway.Name(), in.Currency)
	}

	logger := u.logger.With(zap.String("session_id", in.SessionID), zap.String("gateway", gateway.Name()))
	lockKey := sessionLockPrefix + in.SessionID
	locked, err := u.locker.Acquire(ctx, lockKey, u.opts.LockTTL)
	if err != nil {
		return CreatedPayment{}, err
	}
	if !locked {
		logger.Info("session payment lock held by another request")
		return CreatedPayment{}, ErrSessionPaymentInFlight
	}
	defer func() {
		if err := u.locker.Release(context.WithoutCancel(ctx), lockKey); err != nil {
			logger.Warn("release session lock failed", zap.Error(err))
		}
	}()

	if err := u.checkSessionPolicy(ctx, in.SessionID); err != nil {
		logger.Info("session payment refused", zap.Error(err))
		return CreatedPayment{}, err
	}

	paymentID := uuid.NewString()
	metadata := make(map[string]string, len(in.Metadata)+5)
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	metadata["payment_id"] = paymentID
	metadata["session_id"] = in.SessionID
	metadata["payer_id"] = in.PayerID
	metadata["payee_id"] = in.PayeeID
	metadata["type"] = "session_booking"

	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = defaultSessionDescription
	}
	captureMethod := in.CaptureMethod
	if captureMethod == "" {
		captureMethod = interfaces.CaptureAutomatic
	}

	intent, err := callGateway(ctx, u.opts.Retry, logger, gateway.Name(), "create_payment_intent", func(ctx context.Context) (interfaces.PaymentIntent, error) {
		return gateway.CreatePaymentIntent(ctx, interfaces.CreateIntentRequest{
			Amount:         in.Amount,
			Currency:       in.Currency,
			Description:    description,
			Metadata:       metadata,
			PayerRef:       in.PayerID,
			PayerEmail:     in.PayerEmail,
			CustomerID:     in.CustomerID,
			PaymentMethod:  in.PaymentMethod,
			PaymentToken:   in.PaymentToken,
			CaptureMethod:  captureMethod,
			IdempotencyKey: paymentID,
		})
	})
	if err != nil {
		logger.Error("create payment intent failed",
			zap.String("payment_id", paymentID),
			zap.String("vendor_code", interfaces.VendorCode(err)),
			zap.Error(err),
		)
		return CreatedPayment{}, err
	}

	now := u.now()
	p := entities.Payment{
		ID:               paymentID,
		SessionID:        in.SessionID,
		PayerID:          in.PayerID,
		PayeeID:          in.PayeeID,
		Amount:           in.Amount,
		Currency:         in.Currency,
		Gateway:          gateway.Name(),
		GatewayPaymentID: intent.ExternalID,
		GatewayStatus:    string(intent.Status),
		Status:           entities.PaymentStatusPending,
		Description:      description,
		Metadata:         metadata,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	created, err := u.payments.Create(ctx, p)
	if err != nil {
		logger.Error("persist payment failed",
			zap.String("payment_id", paymentID),
			zap.String("gateway_payment_id", intent.ExternalID),
			zap.Error(err),
		)
		return CreatedPayment{}, err
	}
	logger.Info("session payment created",
		zap.String("payment_id", created.ID),
		zap.String("gateway_payment_id", created.GatewayPaymentID),
		zap.Int64("amount", created.Amount),
		zap.String("currency", created.Currency),
	)
	u.publish(ctx, entities.EventPaymentCreated, created, "", "")

	return CreatedPayment{Payment: created, ClientContinuationToken: intent.ClientContinuationToken}, nil
}

func (u *PaymentUseCase) checkSessionPolicy(ctx context.Context, sessionID string) error {
	existing, err := u.payments.ListBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	now := u.now()
	for _, p := range existing {
		if p.Status.IsPaid() {
			return fmt.Errorf("%w: payment %s", ErrSessionAlreadyPaid, p.ID)
		}
		if p.Status == entities.PaymentStatusPending && now.Sub(p.CreatedAt) < u.opts.PendingTTL {
			return fmt.Errorf("%w: payment %s", ErrSessionPaymentInFlight, p.ID)
		}
	}
	return nil
}

func (u *PaymentUseCase) ConfirmPayment(ctx context.Context, paymentID string, data ConfirmationData) (entities.Payment, error) {
	p, gateway, err := u.pendingPayment(ctx, paymentID)
	if err != nil || gateway == nil {
		return p, err
	}
	gp, err := callGateway(ctx, u.opts.Retry, u.logger, p.Gateway, "confirm_payment", func(ctx context.Context) (interfaces.GatewayPayment, error) {
		return gateway.ConfirmPayment(ctx, interfaces.ConfirmRequest{
			ExternalID:     p.GatewayPaymentID,
			PaymentMethod:  data.PaymentMethod,
			ReturnURL:      data.ReturnURL,
			Data:           data.Data,
			IdempotencyKey: "confirm-" + p.ID,
		})
	})
	return u.afterGatewayCall(ctx, p, gp, err)
}

func (u *PaymentUseCase) CapturePayment(ctx context.Context, paymentID string, amount *int64) (entities.Payment, error) {
	p, gateway, err := u.pendingPayment(ctx, paymentID)
	if err != nil || gateway == nil {
		return p, err
	}
	if amount != nil && (*amount <= 0 || *amount > p.Amount) {
		return p, fmt.Errorf("%w: capture %d of %d", interfaces.ErrInvalidAmount, *amount, p.Amount)
	}
	gp, err := callGateway(ctx, u.opts.Retry, u.logger, p.Gateway, "capture_payment", func(ctx context.Context) (interfaces.GatewayPayment, error) {
		return gateway.CapturePayment(ctx, interfaces.CaptureRequest{
			ExternalID:     p.GatewayPaymentID,
			Amount:         amount,
			Currency:       p.Currency,
			IdempotencyKey: "capture-" + p.ID,
		})
	})
	return u.afterGatewayCall(ctx, p, gp, err)
}

// pendingPayment loads the payment and its gateway. A nil gateway with a nil error
// means the payment already left pending and is returned as stored.
func (u *PaymentUseCase) pendingPayment(ctx context.Context, paymentID string) (entities.Payment, interfaces.IPaymentGateway, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return entities.Payment{}, nil, ErrInvalidPaymentID
	}
	p, err := u.load(ctx, paymentID)
	if err != nil {
		return entities.Payment{}, nil, err
	}
	if p.Status != entities.PaymentStatusPending {
		u.logger.Info("payment no longer pending, nothing to do",
			zap.String("payment_id", p.ID),
			zap.String("status", string(p.Status)),
		)
		return p, nil, nil
	}
	gateway, err := u.registry.Get(p.Gateway)
	if err != nil {
		return p, nil, err
	}
	return p, gateway, nil
}

func (u *PaymentUseCase) afterGatewayCall(ctx context.Context, p entities.Payment, gp interfaces.GatewayPayment, callErr error) (entities.Payment, error) {
	if callErr != nil {
		u.logger.Error("gateway call failed",
			zap.String("payment_id", p.ID),
			zap.String("gateway", p.Gateway),
			zap.String("vendor_code", interfaces.VendorCode(callErr)),
			zap.Error(callErr),
		)
		if !errors.Is(callErr, interfaces.ErrGatewayRejected) {
			return p, callErr
		}
		failed, _, err := u.transition(ctx, p, entities.PaymentStatusFailed, string(interfaces.GatewayStatusFailed), nil)
		if err != nil {
			return p, err
		}
		return failed, callErr
	}
	return u.applyGatewayStatus(ctx, p, gp)
}

// applyGatewayStatus moves a pending payment forward when the vendor status is final.
func (u *PaymentUseCase) applyGatewayStatus(ctx context.Context, p entities.Payment, gp interfaces.GatewayPayment) (entities.Payment, error) {
	switch gp.Status {
	case interfaces.GatewayStatusSucceeded:
		captured := gp.Amount
		if captured <= 0 {
			captured = p.Amount
		}
		updated, _, err := u.transition(ctx, p, entities.PaymentStatusCompleted, string(gp.Status), &captured)
		return updated, err
	case interfaces.GatewayStatusFailed, interfaces.GatewayStatusCanceled:
		updated, _, err := u.transition(ctx, p, entities.PaymentStatusFailed, string(gp.Status), nil)
		return updated, err
	default:
		return p, nil
	}
}

func (u *PaymentUseCase) ProcessRefund(ctx context.Context, paymentID string, amount *int64, reason string) (entities.Refund, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return entities.Refund{}, ErrInvalidPaymentID
	}
	p, err := u.load(ctx, paymentID)
	if err != nil {
		return entities.Refund{}, err
	}
	gateway, err := u.registry.Get(p.Gateway)
	if err != nil {
		return entities.Refund{}, err
	}

	p, rf, err := u.reserveRefund(ctx, paymentID, amount, reason)
	if err != nil {
		return entities.Refund{}, err
	}
	logger := u.logger.With(zap.String("payment_id", p.ID), zap.String("refund_id", rf.ID), zap.String("gateway", p.Gateway))
	logger.Info("refund reserved", zap.Int64("amount", rf.Amount))

	refundAmount := rf.Amount
	gr, callErr := callGateway(ctx, u.opts.Retry, logger, p.Gateway, "refund_payment", func(ctx context.Context) (interfaces.GatewayRefund, error) {
		return gateway.RefundPayment(ctx, interfaces.RefundRequest{
			ExternalID:     p.GatewayPaymentID,
			Amount:         &refundAmount,
			Currency:       p.Currency,
			Reason:         reason,
			Metadata:       map[string]string{"payment_id": p.ID, "refund_id": rf.ID},
			IdempotencyKey: rf.ID,
		})
	})

	accepted := callErr == nil && gr.Status != interfaces.GatewayRefundFailed
	_, settled, err := u.settleRefund(context.WithoutCancel(ctx), rf, gr, accepted)
	if err != nil {
		logger.Error("settle refund failed", zap.Error(err))
		return rf, err
	}

	outcome := string(settled.Status)
	defer func() { recordRefund(p.Gateway, outcome) }()
	switch {
	case callErr != nil:
		outcome = "error"
		logger.Error("gateway refund failed, reservation released",
			zap.String("vendor_code", interfaces.VendorCode(callErr)),
			zap.Error(callErr),
		)
		return settled, callErr
	case !accepted:
		logger.Warn("gateway declined refund", zap.String("gateway_refund_id", gr.ExternalRefundID))
		return settled, fmt.Errorf("%w: refund %s declined", interfaces.ErrGatewayRejected, rf.ID)
	}
	logger.Info("refund settled",
		zap.String("gateway_refund_id", settled.GatewayRefundID),
		zap.String("status", string(settled.Status)),
	)
	return settled, nil
}

func (u *PaymentUseCase) GetPaymentStatus(ctx context.Context, paymentID string) (PaymentStatusView, error) {
	p, err := u.GetPayment(ctx, paymentID)
	if err != nil {
		return PaymentStatusView{}, err
	}
	view := PaymentStatusView{Payment: p, GatewayStatus: p.GatewayStatus}
	if p.GatewayPaymentID == "" {
		return view, nil
	}
	gateway, err := u.registry.Get(p.Gateway)
	if err != nil {
		return view, nil
	}

	gp, err := callGateway(ctx, u.opts.Retry, u.logger, p.Gateway, "get_payment_status", func(ctx context.Context) (interfaces.GatewayPayment, error) {
		return gateway.GetPaymentStatus(ctx, p.GatewayPaymentID)
	})
	if err != nil {
		u.logger.Warn("live gateway status unavailable, serving ledger record",
			zap.String("payment_id", p.ID),
			zap.String("gateway", p.Gateway),
			zap.Error(err),
		)
		return view, nil
	}
	view.Live = true
	view.GatewayStatus = string(gp.Status)
	if p.Status == entities.PaymentStatusPending {
		updated, err := u.applyGatewayStatus(ctx, p, gp)
		if err != nil {
			return view, err
		}
		view.Payment = updated
	}
	return view, nil
}

func (u *PaymentUseCase) GetPayment(ctx context.Context, paymentID string) (entities.Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return entities.Payment{}, ErrInvalidPaymentID
	}
	return u.load(ctx, paymentID)
}

func (u *PaymentUseCase) ListSessionPayments(ctx context.Context, sessionID string) ([]entities.Payment, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}
	return u.payments.ListBySessionID(ctx, sessionID)
}

func (u *PaymentUseCase) ListRefunds(ctx context.Context, paymentID string) ([]entities.Refund, error) {
	p, err := u.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return u.refunds.ListByPaymentID(ctx, p.ID)
}

func (u *PaymentUseCase) ListGateways() []GatewayInfo {
	return u.registry.List()
}

func (u *PaymentUseCase) CreateCustomer(ctx context.Context, gatewayName string, profile interfaces.CustomerProfile) (string, error) {
	gateway, err := u.registry.Resolve(gatewayName)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(profile.Email) == "" {
		return "", fmt.Errorf("%w: email is required", interfaces.ErrValidation)
	}
	if profile.IdempotencyKey == "" {
		profile.IdempotencyKey = uuid.NewString()
	}
	return callGateway(ctx, u.opts.Retry, u.logger, gateway.Name(), "create_customer", func(ctx context.Context) (string, error) {
		return gateway.CreateCustomer(ctx, profile)
	})
}

func (u *PaymentUseCase) CreatePaymentMethod(ctx context.Context, gatewayName string, details interfaces.PaymentMethodDetails) (string, error) {
	gateway, err := u.registry.Resolve(gatewayName)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(details.Token) == "" {
		return "", fmt.Errorf("%w: token is required", interfaces.ErrValidation)
	}
	if details.IdempotencyKey == "" {
		details.IdempotencyKey = uuid.NewString()
	}
	return callGateway(ctx, u.opts.Retry, u.logger, gateway.Name(), "create_payment_method", func(ctx context.Context) (string, error) {
		return gateway.CreatePaymentMethod(ctx, details)
	})
}

func supportsCurrency(g interfaces.IPaymentGateway, currency string) bool {
	for _, c := range g.SupportedCurrencies() {
		if strings.EqualFold(c, currency) {
			return true
		}
	}
	return false
}
