package entities

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := [][2]PaymentStatus{
		{PaymentStatusPending, PaymentStatusCompleted},
		{PaymentStatusPending, PaymentStatusFailed},
		{PaymentStatusCompleted, PaymentStatusPartiallyRefunded},
		{PaymentStatusCompleted, PaymentStatusRefunded},
		{PaymentStatusPartiallyRefunded, PaymentStatusPartiallyRefunded},
		{PaymentStatusPartiallyRefunded, PaymentStatusRefunded},
	}
	for _, tr := range allowed {
		if !CanTransition(tr[0], tr[1]) {
			t.Fatalf("expected %s -> %s to be allowed", tr[0], tr[1])
		}
	}

	denied := [][2]PaymentStatus{
		{PaymentStatusCompleted, PaymentStatusPending},
		{PaymentStatusFailed, PaymentStatusCompleted},
		{PaymentStatusRefunded, PaymentStatusPartiallyRefunded},
		{PaymentStatusPending, PaymentStatusRefunded},
	}
	for _, tr := range denied {
		if CanTransition(tr[0], tr[1]) {
			t.Fatalf("expected %s -> %s to be denied", tr[0], tr[1])
		}
	}
}

func TestPayment_RefundableAmount(t *testing.T) {
	p := Payment{CapturedAmount: 15000, RefundedAmount: 5000, RefundReserved: 2500}
	if got := p.RefundableAmount(); got != 7500 {
		t.Fatalf("expected 7500, got %d", got)
	}
	p.RefundReserved = 20000
	if got := p.RefundableAmount(); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestRefund_InFlight(t *testing.T) {
	if !(Refund{Status: RefundStatusPending}).InFlight() {
		t.Fatalf("expected reserved refund to be in flight")
	}
	if (Refund{Status: RefundStatusPending, GatewayRefundID: "re_1"}).InFlight() {
		t.Fatalf("expected vendor-acknowledged refund not to be in flight")
	}
}
