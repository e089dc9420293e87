// SPDX-License-Identifier: MIT

// Package api serves the webhook ingress and the probe endpoints.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Aivify/latvian-voice-agent/internal/api/middleware"
	"github.com/Aivify/latvian-voice-agent/internal/health"
	"github.com/Aivify/latvian-voice-agent/internal/log"
	"github.com/Aivify/latvian-voice-agent/internal/orchestrator"
)

// Config holds the API server's routing configuration.
type Config struct {
	WebhookRateLimit  int
	WebhookRateWindow time.Duration
}

// Server routes webhook deliveries to the orchestrator.
type Server struct {
	cfg    Config
	orch   *orchestrator.Orchestrator
	health *health.Manager
	router chi.Router
}

// New builds the API server and its router.
func New(cfg Config, orch *orchestrator.Orchestrator, healthMgr *health.Manager) *Server {
	s := &Server{
		cfg:    cfg,
		orch:   orch,
		health: healthMgr,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	// Recoverer outermost, correlation before logging, rate limit innermost
	// so rejected requests are still logged.
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Metrics())
	r.Use(log.Middleware())

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	r.Route("/webhooks", func(r chi.Router) {
		if s.cfg.WebhookRateLimit > 0 {
			r.Use(middleware.RateLimit(middleware.RateLimitConfig{
				RequestLimit: s.cfg.WebhookRateLimit,
				WindowSize:   s.cfg.WebhookRateWindow,
			}))
		}
		r.Post("/openai", s.handleWebhook)
	})

	return r
}

// Router returns the configured HTTP handler.
func (s *Server) Router() chi.Router {
	return s.router
}
