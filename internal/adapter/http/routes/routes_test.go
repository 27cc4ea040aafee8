package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mentor_payments/internal/adapter/http/handlers"
	"mentor_payments/internal/adapter/http/handlers/mocks"
	"mentor_payments/internal/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T, ready func(context.Context) error) (*gin.Engine, *mocks.MockIPaymentUseCase) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	uc := mocks.NewMockIPaymentUseCase(ctrl)
	hooks := mocks.NewMockIWebhookUseCase(ctrl)
	r := NewRouter("mentor-payments", Handlers{
		Payments: handlers.NewPaymentHandler(uc, nil),
		Webhooks: handlers.NewWebhookHandler(hooks, nil),
		Ready:    ready,
	}, zap.NewNop())
	return r, uc
}

func TestRouter_OpsEndpoints(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		r, _ := newTestRouter(t, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("degraded health", func(t *testing.T) {
		r, _ := newTestRouter(t, func(context.Context) error { return errors.New("redis down") })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", w.Code)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		r, _ := newTestRouter(t, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("ping", func(t *testing.T) {
		r, _ := newTestRouter(t, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})
}

func TestRouter_MountsPaymentRoutes(t *testing.T) {
	r, uc := newTestRouter(t, nil)
	uc.EXPECT().ListGateways().Return([]usecase.GatewayInfo{{ID: "stripe"}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/gateways", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
