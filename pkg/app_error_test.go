package pkg

import (
	"errors"
	"net/http"
	"testing"
)

func TestAppError(t *testing.T) {
	t.Run("simple", func(t *testing.T) {
		e := NewDomainErrorSimple("PAYMENT_NOT_FOUND", "Payment not found", http.StatusNotFound)
		if e.HTTPStatus != http.StatusNotFound {
			t.Fatalf("unexpected status: %d", e.HTTPStatus)
		}
		if e.Error() != "PAYMENT_NOT_FOUND: Payment not found" {
			t.Fatalf("unexpected message: %s", e.Error())
		}
	})

	t.Run("wrapped cause stays internal", func(t *testing.T) {
		cause := errors.New("dynamo timeout")
		e := NewDomainError("INTERNAL_ERROR", "An internal error occurred", cause, http.StatusInternalServerError)
		if !errors.Is(e, cause) {
			t.Fatalf("expected cause to be unwrapped")
		}
		body := e.ToHTTPError()
		if body.Code != "INTERNAL_ERROR" || body.Message != "An internal error occurred" {
			t.Fatalf("unexpected body: %+v", body)
		}
	})
}
