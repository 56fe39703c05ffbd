package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /api/inspections", s.handleListInspections)
	s.router.HandleFunc("GET /api/inspections/{id}", s.handleGetInspection)
	s.router.HandleFunc("GET /api/inspections/{id}/history", s.handleGetHistory)
	s.router.HandleFunc("POST /api/inspections/{id}/transitions", s.handleTransition)

	s.router.HandleFunc("GET /api/stats", s.handleGetStats)

	// Health check
	s.router.HandleFunc("GET /api/health", s.handleHealth)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
