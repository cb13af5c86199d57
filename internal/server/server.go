// Package server provides the HTTP server and routing for the planner.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/rhenning/finanzplaner/internal/config"
	freibetraghandlers "github.com/rhenning/finanzplaner/internal/modules/freibetrag/handlers"
	"github.com/rhenning/finanzplaner/internal/modules/optimization"
	optimizationhandlers "github.com/rhenning/finanzplaner/internal/modules/optimization/handlers"
	"github.com/rhenning/finanzplaner/internal/modules/rebalancing"
	rebalancinghandlers "github.com/rhenning/finanzplaner/internal/modules/rebalancing/handlers"
	"github.com/rhenning/finanzplaner/internal/modules/simulation"
	simulationhandlers "github.com/rhenning/finanzplaner/internal/modules/simulation/handlers"
	taxhandlers "github.com/rhenning/finanzplaner/internal/modules/tax/handlers"
)

// Server represents the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config

	startedAt time.Time
}

// New creates a new HTTP server with all module routes wired.
func New(cfg *config.Config, log zerolog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       log.With().Str("component", "server").Logger(),
		cfg:       cfg,
		startedAt: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !s.cfg.DevMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	simHandler := simulationhandlers.NewHandler(simulation.NewEngine(s.log), s.log)
	optHandler := optimizationhandlers.NewHandler(optimization.NewOptimizer(s.log), s.log)
	rebHandler := rebalancinghandlers.NewHandler(rebalancing.NewPlanner(s.log), s.log)
	taxHandler := taxhandlers.NewHandler(s.log)
	fbHandler := freibetraghandlers.NewHandler(s.log)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/simulation", func(r chi.Router) {
			r.Post("/run", simHandler.HandleRun)
			r.Post("/chart", simHandler.HandleChart)
			r.Post("/allocation-chart", simHandler.HandleAllocationChart)
		})

		r.Route("/optimizer", func(r chi.Router) {
			r.Post("/run", optHandler.HandleRun)
			r.Post("/evaluate", optHandler.HandleEvaluate)
		})

		r.Route("/rebalancing", func(r chi.Router) {
			r.Post("/check", rebHandler.HandleCheck)
			r.Post("/plan", rebHandler.HandlePlan)
			r.Get("/min-trade-amount", rebHandler.HandleMinTradeAmount)
		})

		r.Route("/tax", func(r chi.Router) {
			r.Post("/vorabpauschale", taxHandler.HandleVorabpauschale)
			r.Get("/basiszins", taxHandler.HandleBasiszins)
		})

		r.Route("/freibetrag", func(r chi.Router) {
			r.Post("/schedule", fbHandler.HandleSchedule)
			r.Post("/horizons", fbHandler.HandleHorizons)
		})

		r.Get("/reference/assets", s.handleReferenceAssets)
		r.Get("/system/health", s.handleSystemHealth)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
