package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mentor_payments/internal/infrastructure/cache"

	"github.com/gin-gonic/gin"
)

func TestIdempotency(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(calls *int, status int) *gin.Engine {
		r := gin.New()
		r.POST("/v1/payments", Idempotency(cache.NewMemoryIdempotencyStore(), time.Hour, nil), func(c *gin.Context) {
			*calls++
			c.JSON(status, gin.H{"call": *calls})
		})
		return r
	}
	post := func(r *gin.Engine, key, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/payments", bytes.NewBufferString(`{}`))
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		req.Header.Set("X-User-ID", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("replays the first response", func(t *testing.T) {
		calls := 0
		r := newRouter(&calls, http.StatusCreated)
		first := post(r, "k1", "u1")
		second := post(r, "k1", "u1")
		if calls != 1 {
			t.Fatalf("expected one handler call, got %d", calls)
		}
		if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
			t.Fatalf("unexpected replay %d %s", second.Code, second.Body.String())
		}
		if second.Header().Get(HeaderReplayed) != "true" {
			t.Fatalf("expected replay header")
		}
	})

	t.Run("keys are scoped per caller", func(t *testing.T) {
		calls := 0
		r := newRouter(&calls, http.StatusCreated)
		post(r, "k1", "u1")
		post(r, "k1", "u2")
		if calls != 2 {
			t.Fatalf("expected two handler calls, got %d", calls)
		}
	})

	t.Run("keys are scoped per resource", func(t *testing.T) {
		calls := 0
		r := gin.New()
		r.POST("/v1/payments/:payment_id/refunds", Idempotency(cache.NewMemoryIdempotencyStore(), time.Hour, nil), func(c *gin.Context) {
			calls++
			c.JSON(http.StatusCreated, gin.H{"payment_id": c.Param("payment_id")})
		})
		for _, id := range []string{"A", "B"} {
			req := httptest.NewRequest(http.MethodPost, "/v1/payments/"+id+"/refunds", bytes.NewBufferString(`{}`))
			req.Header.Set(HeaderIdempotencyKey, "k1")
			req.Header.Set("X-User-ID", "u1")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Header().Get(HeaderReplayed) == "true" {
				t.Fatalf("payment %s got a replay of another payment's response: %s", id, w.Body.String())
			}
		}
		if calls != 2 {
			t.Fatalf("expected two handler calls, got %d", calls)
		}
	})

	t.Run("server errors are not stored", func(t *testing.T) {
		calls := 0
		r := newRouter(&calls, http.StatusBadGateway)
		post(r, "k1", "u1")
		post(r, "k1", "u1")
		if calls != 2 {
			t.Fatalf("expected a retry to reach the handler, got %d calls", calls)
		}
	})

	t.Run("no key passes through", func(t *testing.T) {
		calls := 0
		r := newRouter(&calls, http.StatusCreated)
		post(r, "", "u1")
		post(r, "", "u1")
		if calls != 2 {
			t.Fatalf("expected two calls, got %d", calls)
		}
	})
}
