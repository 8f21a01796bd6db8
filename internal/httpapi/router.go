// Package httpapi wires the §6 HTTP surface: chi router, middleware chain,
// and the WebSocket upgrade endpoint, all fronting the order-lifecycle
// components assembled in main.go.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"delixmi-order-core/internal/config"
	"delixmi-order-core/internal/httpapi/handlers"
	"delixmi-order-core/internal/middleware"
	"delixmi-order-core/internal/realtime"
)

func NewRouter(h *handlers.Handler, cfg config.Config, logger *zap.Logger, authMiddleware func(http.Handler) http.Handler, ws *realtime.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"X-Signature",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}
		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool { return true }
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}
		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// The gateway calls this unauthenticated; its own HMAC signature (spec
	// §4.4) is the trust boundary, not a bearer token.
	r.Post("/webhooks/mercadopago", h.WebhookMercadoPago)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.CartList)
			r.Post("/add", h.CartAdd)
			r.Put("/update/{itemId}", h.CartUpdate)
			r.Delete("/remove/{itemId}", h.CartRemove)
			r.Delete("/clear", h.CartClear)
		})

		r.Post("/checkout/create-preference", h.CheckoutCreatePreference)

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Get("/", h.OrderDetail)
			r.Patch("/cancel", h.OrderCancel)
		})

		r.Patch("/restaurant/orders/{orderId}/status", h.RestaurantOrderStatus)

		r.Route("/driver", func(r chi.Router) {
			r.Get("/orders/available", h.DriverOrdersAvailable)
			r.Patch("/orders/{orderId}/accept", h.DriverOrderAccept)
			r.Patch("/orders/{orderId}/complete", h.DriverOrderComplete)
			r.Patch("/status", h.DriverStatusUpdate)
			r.Patch("/location", h.DriverLocationUpdate)
		})
	})

	if ws != nil {
		r.Get("/ws", ws.ServeHTTP)
	}

	return r
}
