package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"mentor_payments/pkg"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
	inFlightTTL          = time.Minute
)

// IdempotencyStore keeps replayable responses. Implemented by the cache package.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a repeated Idempotency-Key on the
// same route and caller. Requests without the header pass through.
func Idempotency(store IdempotencyStore, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	logger = logger.Named("payment.http.idempotency")
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		scoped := scopeKey(c, key)

		if raw, ok, err := store.Get(ctx, scoped); err != nil {
			logger.Warn("idempotency lookup failed", zap.Error(err))
		} else if ok {
			var saved storedResponse
			if err := json.Unmarshal(raw, &saved); err == nil {
				c.Header(HeaderReplayed, "true")
				c.Data(saved.Status, "application/json; charset=utf-8", saved.Body)
				c.Abort()
				return
			}
		}

		reserved, err := store.Reserve(ctx, scoped, inFlightTTL)
		if err != nil {
			logger.Warn("idempotency reserve failed, continuing without replay", zap.Error(err))
			c.Next()
			return
		}
		if !reserved {
			appErr := pkg.NewDomainErrorSimple("IDEMPOTENCY_KEY_IN_USE", "A request with this Idempotency-Key is still being processed", http.StatusConflict)
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToHTTPError())
			return
		}
		defer func() {
			if err := store.Release(context.WithoutCancel(ctx), scoped); err != nil {
				logger.Warn("idempotency release failed", zap.Error(err))
			}
		}()

		rec := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status >= http.StatusInternalServerError || !json.Valid(rec.body.Bytes()) {
			return
		}
		raw, err := json.Marshal(storedResponse{Status: status, Body: rec.body.Bytes()})
		if err != nil {
			return
		}
		if err := store.Save(context.WithoutCancel(ctx), scoped, raw, ttl); err != nil {
			logger.Warn("idempotency save failed", zap.Error(err))
		}
	}
}

func scopeKey(c *gin.Context, key string) string {
	sum := sha256.Sum256([]byte(c.Request.Method + " " + c.Request.URL.Path + " " + c.GetHeader("X-User-ID") + " " + key))
	return hex.EncodeToString(sum[:])
}
