package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Reads are open.
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/report", s.handleReport)
		r.Get(s.wsPath(), s.handleWebSocket)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/history", s.handleGetDeviceHistory)

				// Mutations need a bearer token when a JWT secret is configured.
				r.Group(func(r chi.Router) {
					r.Use(s.authMiddleware)

					r.Post("/on", s.handleTurnOn)
					r.Post("/off", s.handleTurnOff)
					r.Post("/toggle", s.handleToggle)
					r.Post("/detect-motion", s.handleDetectMotion)
					r.Post("/randomize", s.handleRandomizeDevice)
					r.Put("/brightness", s.handleSetBrightness)
					r.Put("/temperature", s.handleSetTemperature)
					r.Put("/security-status", s.handleSetSecurityStatus)
				})
			})
		})

		r.With(s.authMiddleware).Post("/simulate", s.handleSimulate)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// wsPath returns the WebSocket route below /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return "/" + strings.TrimLeft(s.wsCfg.Path, "/")
}
