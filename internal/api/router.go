package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each component check behind GET /health.
const healthCheckTimeout = 2 * time.Second

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
		// Unauthenticated
		r.Get("/health", s.handleHealth)
		r.Post("/auth/panel", s.handlePanelLogin)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)
			r.Get("/metrics", s.handleMetrics)

			r.Route("/rooms", func(r chi.Router) {
				r.Get("/", s.handleListRooms)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetRoom)
					r.Get("/sources", s.handleListRoomSources)
					r.Get("/children", s.handleListChildRooms)
					r.Get("/events", s.handleListRoomEvents)
					r.Put("/power", s.handleSetRoomPower)
					r.Put("/source", s.handleSelectSource)
				})
			})

			r.Route("/sources", func(r chi.Router) {
				r.Get("/", s.handleListSources)
				r.Get("/{id}", s.handleGetSource)
			})

			if s.panels != nil {
				r.Route("/panels", func(r chi.Router) {
					r.Use(s.requireAdmin)
					r.Get("/", s.handleListPanels)
					r.Post("/", s.handleCreatePanel)
					r.Put("/{id}/active", s.handleSetPanelActive)
					r.Delete("/{id}", s.handleDeletePanel)
				})
			}
		})
	})

	return r
}

// handleHealth returns the server health status. Any failing component
// check turns the response into 503 "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.health))
	for name := range s.health {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	components := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.health[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":     overall,
		"version":    s.version,
		"rooms":      s.env.RoomCount(),
		"sources":    s.env.SourceCount(),
		"components": components,
	})
}
