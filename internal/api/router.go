package api

import (
	"net/http"

	"github.com/dennisdiepolder/monti/console/internal/auth"
	"github.com/dennisdiepolder/monti/console/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RouterConfig collects everything the console router serves
type RouterConfig struct {
	AllowedOrigins []string
	Health         http.HandlerFunc
	Auth           *auth.Authenticator
	View           *ViewHandler
	Simulation     *SimulationHandler
	WebSocket      http.Handler
	Metrics        http.HandlerFunc
	Recorder       middleware.RequestRecorder
	Logger         zerolog.Logger
}

// NewRouter builds the console's HTTP surface. Reads need any authenticated
// user; commands need the operator or admin role.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.Recorder != nil {
		r.Use(middleware.Metrics(cfg.Recorder))
	}

	// Public routes
	r.Get("/health", cfg.Health)
	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth.Middleware)

		r.Get("/view", cfg.View.GetView)
		r.Get("/agents/{id}", cfg.View.GetAgent)
		r.Post("/routing/matrix", cfg.View.RoutingMatrix)
		if cfg.WebSocket != nil {
			r.Get("/ws", cfg.WebSocket.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleOperator, auth.RoleAdmin))
			r.Post("/simulation/start", cfg.Simulation.Start)
			r.Post("/simulation/stop", cfg.Simulation.Stop)
			r.Post("/view/reset", cfg.View.ResetView)
		})
	})

	return r
}
