package usecase

import (
	"errors"
	"fmt"

	"mentor_payments/internal/usecase/interfaces"
)

var (
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrRefundNotFound         = errors.New("refund not found")
	ErrInvalidSessionID       = fmt.Errorf("%w: session_id is required", interfaces.ErrValidation)
	ErrInvalidPayerID         = fmt.Errorf("%w: payer_id is required", interfaces.ErrValidation)
	ErrInvalidPayeeID         = fmt.Errorf("%w: payee_id is required", interfaces.ErrValidation)
	ErrInvalidPaymentID       = fmt.Errorf("%w: payment_id is required", interfaces.ErrValidation)
	ErrRefundExceedsBalance   = fmt.Errorf("%w: refund exceeds refundable balance", interfaces.ErrValidation)
	ErrSessionPaymentInFlight = errors.New("session already has a payment in progress")
	ErrSessionAlreadyPaid     = errors.New("session already paid")
	ErrRefundInFlight         = errors.New("refund still in flight")
	ErrConcurrentModification = errors.New("payment modified concurrently")
)
