package api

import (
	"context"
	"net/http"
	"time"

	"github.com/example/ec-order-lifecycle/internal/api/middleware"
	"github.com/example/ec-order-lifecycle/internal/domain/user"
	"github.com/example/ec-order-lifecycle/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Handlers   *Handlers
	JWTService middleware.TokenValidator
	// Reserver enables Idempotency-Key handling on checkout when set.
	Reserver middleware.KeyReserver
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// Health reports whether backing services are reachable.
	Health func(ctx context.Context) error
	Logger *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger.Named("http")

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(withTraceContext)
	r.Use(cfg.Metrics.Middleware)
	r.Use(withLogging(logger))

	r.Get("/healthz", healthHandler(cfg.Health))
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))
	}

	h := cfg.Handlers
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.JWTService))

		r.Route("/orders", func(r chi.Router) {
			r.With(idempotent(cfg.Reserver, logger)).Post("/", h.PlaceOrder)
			r.Get("/", h.GetMyOrders)
			r.With(middleware.RequireRole(user.RoleVendor, user.RoleAdmin)).Get("/vendor/mine", h.GetVendorOrders)
			r.Get("/{id}", h.GetOrder)
			r.Patch("/{id}/cancel", h.CancelOrder)
			r.Patch("/{id}/status", h.UpdateOrderStatus)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddToCart)
			r.Put("/items/{productId}", h.SetCartQuantity)
			r.Delete("/items/{productId}", h.RemoveFromCart)
		})
	})

	return r
}

func idempotent(reserver middleware.KeyReserver, logger *zap.Logger) func(http.Handler) http.Handler {
	if reserver == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.Idempotency(reserver, "orders", logger)
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// withTraceContext continues a trace started by the caller.
func withTraceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func withLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}
