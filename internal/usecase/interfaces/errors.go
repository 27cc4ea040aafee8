package interfaces

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation              = errors.New("validation error")
	ErrUnsupportedCurrency     = fmt.Errorf("%w: unsupported currency", ErrValidation)
	ErrInvalidAmount           = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrGatewayNotConfigured    = errors.New("payment gateway not configured")
	ErrGatewayRejected         = errors.New("payment gateway rejected the request")
	ErrTransientGateway        = errors.New("transient payment gateway error")
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
	ErrInvalidStateTransition  = errors.New("invalid payment state transition")
	ErrNotSupported            = errors.New("operation not supported by payment gateway")
	ErrUnknownStatus           = errors.New("unknown payment gateway status")
)

// GatewayError carries vendor context for a failed gateway call. Kind is one of
// the sentinels above so callers keep using errors.Is.
type GatewayError struct {
	Gateway string
	Op      string
	Code    string
	Kind    error
	Err     error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %v", e.Gateway, e.Op, e.Kind)
	if e.Code != "" {
		fmt.Fprintf(&b, " (code=%s)", e.Code)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *GatewayError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// VendorCode returns the vendor error code carried by err, if any.
func VendorCode(err error) string {
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return ""
}
