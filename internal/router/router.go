package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/optik-pos/api/internal/config"
	"github.com/optik-pos/api/internal/enum"
	"github.com/optik-pos/api/internal/handler"
	"github.com/optik-pos/api/internal/logger"
	mw "github.com/optik-pos/api/internal/middleware"
	"github.com/optik-pos/api/internal/service"
	"github.com/optik-pos/api/internal/ws"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Orders  *service.OrderService
	Reports *service.ReportService
	Hub     *ws.Hub
}

// New creates a Chi router with all application routes wired up.
// Applies authentication, shop scoping, and role-based middleware as needed.
func New(cfg *config.Config, svc Services) chi.Router {
	log := logger.WithComponent("router")
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(logger.WithComponent("http")))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/shops/{sid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(svc.Hub, cfg.JWTSecret, w, r)
	})

	orderHandler := handler.NewOrderHandler(svc.Orders)
	paymentHandler := handler.NewPaymentHandler(svc.Orders)
	refundHandler := handler.NewRefundHandler(svc.Orders)
	reportsHandler := handler.NewReportsHandler(svc.Reports, cfg.ShopTimezone)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Shop-scoped routes
		r.Route("/shops/{sid}", func(r chi.Router) {
			r.Use(mw.RequireShop)

			r.Route("/orders", func(r chi.Router) {
				orderHandler.RegisterRoutes(r)

				// Ledger and refunds (nested under orders)
				r.Route("/{id}/payments", paymentHandler.RegisterRoutes)
				r.Route("/{id}/refunds", refundHandler.RegisterRoutes)
			})

			r.Route("/work-orders", orderHandler.RegisterWorkOrderRoutes)
			r.Route("/patients", orderHandler.RegisterPatientRoutes)

			// Reports are for owners and managers only
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager))
				r.Route("/reports", reportsHandler.RegisterRoutes)
			})
		})
	})

	log.Info().Msg("router initialized")
	return r
}
