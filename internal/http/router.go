package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	JWTSecret      string
	RequestTimeout time.Duration
	RateLimiter    *RateLimiter
	Health         Pinger
	Log            *slog.Logger
}

func NewRouter(cfg RouterConfig, cart *CartHandler, checkout *CheckoutHandler, orders *OrdersHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(middleware.RequestSize(1 << 20)) // 1MB
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health.Ping(r.Context()); err != nil {
				cfg.Log.WarnContext(r.Context(), "health check failed", "error", err)
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		// Signed by the processor, not by a customer token.
		r.Post("/webhooks/payments", checkout.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.JWTSecret))

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/orders", checkout.CreateOrder)
				r.Post("/sessions", checkout.CreateSession)
				r.Get("/success", checkout.Success)
			})

			r.Group(func(r chi.Router) {
				r.Use(RequireAuth)
				r.Route("/cart", func(r chi.Router) {
					r.Get("/", cart.GetCart)
					r.Post("/", cart.AddItem)
					r.Patch("/", cart.UpdateQuantity)
					r.Delete("/", cart.Delete)
					r.Post("/sync", cart.Sync)
				})
				r.Get("/orders", orders.ListOrders)
				r.Get("/orders/{id}", orders.GetOrder)
				r.Get("/notifications", orders.ListNotifications)
				r.Post("/notifications/{id}/read", orders.MarkNotificationRead)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
