package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/pagegate/internal/api/handlers"
	"github.com/nikhilbhutani/pagegate/internal/api/middleware"
	"github.com/nikhilbhutani/pagegate/internal/config"
	"github.com/nikhilbhutani/pagegate/internal/logging"
)

// Deps are the services behind the HTTP surface. Heartbeats and Limiter are
// optional and must be left nil (not a typed nil) when Redis is disabled.
type Deps struct {
	Pipeline   handlers.Decider
	Rules      handlers.Toucher
	Heartbeats handlers.HeartbeatEnqueuer
	Limiter    middleware.WindowCounter
	Checks     map[string]handlers.Pinger
}

type Router struct {
	mux    *chi.Mux
	cfg    *config.Config
	deps   Deps
	logger logging.Logger
}

func NewRouter(cfg *config.Config, deps Deps, logger logging.Logger) *Router {
	return &Router{
		mux:    chi.NewRouter(),
		cfg:    cfg,
		deps:   deps,
		logger: logging.OrDefault(logger),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(rt.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}, rt.cfg.Auth.APIKeyHeader))

	// Health endpoints
	health := handlers.NewHealthHandler(rt.deps.Checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	checkH := handlers.NewCheckHandler(rt.deps.Pipeline, rt.cfg.Auth.APIKeyHeader, rt.logger)
	r.Group(func(r chi.Router) {
		if rt.cfg.RateLimit.Enabled && rt.deps.Limiter != nil {
			rl := middleware.NewRateLimiter(rt.deps.Limiter, rt.cfg.RateLimit.Requests, rt.cfg.RateLimit.Window, rt.logger)
			r.Use(rl.Limit)
		}
		r.Post("/check-url", checkH.Check)
	})

	heartbeatH := handlers.NewHeartbeatHandler(rt.deps.Heartbeats, rt.deps.Rules, rt.cfg.Database.QueryTimeout, rt.logger)
	r.Post("/heartbeat", heartbeatH.Heartbeat)

	return r
}
