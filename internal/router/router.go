package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tailorly/api/internal/config"
	"github.com/tailorly/api/internal/handler"
	mw "github.com/tailorly/api/internal/middleware"
	"github.com/tailorly/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, role-based middleware and payment throttling as needed.
func New(cfg *config.Config, svc handler.GroupOrderServicer, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", handler.IdempotencyKeyHeader},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	discountHandler := handler.NewDiscountHandler()
	r.Route("/discounts", discountHandler.RegisterRoutes)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/group-orders/{gid}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, svc, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Payments are throttled per user after authentication.
		limiter := mw.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		groupOrderHandler := handler.NewGroupOrderHandler(svc, limiter.Handler)
		r.Route("/group-orders", groupOrderHandler.RegisterRoutes)
	})

	log.Println("Router initialized with all handlers")
	return r
}
