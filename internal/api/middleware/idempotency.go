package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const IdempotencyHeader = "Idempotency-Key"

// KeyReserver claims idempotency keys. Reserve reports false when the key is
// already held.
type KeyReserver interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisReserver holds keys in Redis with a TTL.
type RedisReserver struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisReserver(rdb redis.Cmdable, ttl time.Duration) *RedisReserver {
	return &RedisReserver{rdb: rdb, ttl: ttl}
}

func (s *RedisReserver) Reserve(ctx context.Context, key string) (bool, error) {
	return s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
}

func (s *RedisReserver) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// Idempotency rejects a repeated request carrying the same Idempotency-Key
// from the same caller with 409. Requests without the header pass through.
// A failed request releases its key so the client may retry. When the
// reserver is unreachable the request proceeds unprotected.
func Idempotency(reserver KeyReserver, scope string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idemKey := r.Header.Get(IdempotencyHeader)
			if idemKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			callerID := ""
			if caller, ok := GetCaller(r.Context()); ok {
				callerID = caller.ID
			}
			key := fmt.Sprintf("idem:%s:%s:%s", scope, callerID, idemKey)

			reserved, err := reserver.Reserve(r.Context(), key)
			if err != nil {
				logger.Warn("idempotency store unavailable", zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !reserved {
				respondError(w, "duplicate request", http.StatusConflict)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if ww.Status() >= http.StatusBadRequest {
				if err := reserver.Release(context.WithoutCancel(r.Context()), key); err != nil {
					logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
				}
			}
		})
	}
}
