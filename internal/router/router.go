package router

import (
	"net/http"

	"github.com/dinehub/ops-api/internal/config"
	"github.com/dinehub/ops-api/internal/database"
	"github.com/dinehub/ops-api/internal/handler"
	mw "github.com/dinehub/ops-api/internal/middleware"
	"github.com/dinehub/ops-api/internal/service"
	"github.com/dinehub/ops-api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and restaurant scoping middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pricing service.PricingConfig, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, // dashboard dev server
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	r.Route("/auth", authHandler.RegisterRoutes)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/restaurants/{rid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Restaurant-scoped routes
		r.Route("/restaurants/{rid}", func(r chi.Router) {
			r.Use(mw.RequireRestaurant)

			orderService := service.NewOrderService(queries, pricing)
			orderHandler := handler.NewOrderHandler(orderService, hub)
			r.Route("/orders", orderHandler.RegisterRoutes)
		})
	})

	return r
}
